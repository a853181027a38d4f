package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/xavierca1/eva-followup/internal/entity"
)

const (
	JobPending    = "pending"
	JobProcessing = "processing"
	JobDone       = "done"
	JobFailed     = "failed"
)

// FollowUpJobRepository é o agendador durável em Postgres: Schedule grava a
// linha e o FollowUpPoller reivindica as vencidas.
type FollowUpJobRepository struct {
	DB *sql.DB
}

func NewFollowUpJobRepository(db *sql.DB) *FollowUpJobRepository {
	return &FollowUpJobRepository{DB: db}
}

func (r *FollowUpJobRepository) Name() string {
	return "postgres"
}

// Schedule ignora o atraso recebido; o vencimento vem de job.DueAt.
func (r *FollowUpJobRepository) Schedule(ctx context.Context, job entity.FollowUpJob, _ time.Duration) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	_, err = r.DB.ExecContext(ctx, `
		INSERT INTO followup_jobs (id, lead_id, payload, status, due_at)
		VALUES ($1, $2, $3, $4, $5)
	`, job.ID, job.LeadID, payload, JobPending, job.DueAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		// já agendado
		return nil
	}
	if err != nil {
		return fmt.Errorf("insert followup job: %w", err)
	}
	return nil
}

// ClaimDue marca até limit jobs vencidos como processing e os devolve.
// SKIP LOCKED deixa várias instâncias rodarem o poller sem pegar o mesmo job.
// Payload que não decodifica vira failed; os demais jobs do lote seguem.
// Em erro de leitura, os jobs já decodificados voltam junto com o erro.
func (r *FollowUpJobRepository) ClaimDue(ctx context.Context, now time.Time, limit int) ([]entity.FollowUpJob, error) {
	rows, err := r.DB.QueryContext(ctx, `
		UPDATE followup_jobs
		SET status = $1, updated_at = NOW()
		WHERE id IN (
			SELECT id FROM followup_jobs
			WHERE status = $2 AND due_at <= $3
			ORDER BY due_at
			LIMIT $4
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, payload
	`, JobProcessing, JobPending, now, limit)
	if err != nil {
		return nil, fmt.Errorf("claim due jobs: %w", err)
	}

	jobs, bad, scanErr := decodeClaimed(rows)
	rows.Close()

	for id, reason := range bad {
		if err := r.MarkFailed(ctx, id, reason); err != nil {
			scanErr = errors.Join(scanErr, fmt.Errorf("mark job %s failed: %w", id, err))
		}
	}
	return jobs, scanErr
}

type claimedRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

func decodeClaimed(rows claimedRows) ([]entity.FollowUpJob, map[string]string, error) {
	var jobs []entity.FollowUpJob
	bad := map[string]string{}

	for rows.Next() {
		var id string
		var payload []byte
		if err := rows.Scan(&id, &payload); err != nil {
			return jobs, bad, fmt.Errorf("scan followup job: %w", err)
		}
		var job entity.FollowUpJob
		if err := json.Unmarshal(payload, &job); err != nil {
			bad[id] = fmt.Sprintf("decode job payload: %v", err)
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs, bad, rows.Err()
}

// Release devolve para pending um job reivindicado que não chegou a rodar.
func (r *FollowUpJobRepository) Release(ctx context.Context, id string) error {
	_, err := r.DB.ExecContext(ctx, `
		UPDATE followup_jobs
		SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = $3
	`, id, JobPending, JobProcessing)
	return err
}

func (r *FollowUpJobRepository) MarkDone(ctx context.Context, id string) error {
	return r.finish(ctx, id, JobDone, "")
}

func (r *FollowUpJobRepository) MarkFailed(ctx context.Context, id string, reason string) error {
	return r.finish(ctx, id, JobFailed, reason)
}

func (r *FollowUpJobRepository) finish(ctx context.Context, id, status, reason string) error {
	_, err := r.DB.ExecContext(ctx, `
		UPDATE followup_jobs
		SET status = $2, last_error = $3, updated_at = NOW()
		WHERE id = $1
	`, id, status, nullString(reason))
	return err
}
