package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/xavierca1/eva-followup/internal/entity"
)

type LeadRepository struct {
	DB *sql.DB
}

func NewLeadRepository(db *sql.DB) *LeadRepository {
	return &LeadRepository{DB: db}
}

// Save grava o lead; reenviar o mesmo internal_id só atualiza os dados de contato.
func (r *LeadRepository) Save(ctx context.Context, lead *entity.Lead) (string, error) {
	query := `
		INSERT INTO leads (internal_id, name, email, phone, source, interest, utm_source, utm_campaign, status, received_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
		ON CONFLICT (internal_id)
		DO UPDATE SET
			name = EXCLUDED.name,
			phone = COALESCE(EXCLUDED.phone, leads.phone),
			updated_at = NOW()
		RETURNING id, updated_at
	`

	var id int64
	err := r.DB.QueryRowContext(
		ctx,
		query,
		lead.InternalID,
		lead.Name,
		lead.Email,
		nullString(lead.Phone),
		lead.Source,
		lead.Interest,
		nullString(lead.UTMSource),
		nullString(lead.UTMCampaign),
		string(lead.Status),
		lead.ReceivedAt,
	).Scan(&id, &lead.UpdatedAt)
	if err != nil {
		return "", fmt.Errorf("insert lead: %w", err)
	}

	return fmt.Sprintf("%d", id), nil
}

// UpdateStatus atualiza o lead e grava o histórico na mesma transação.
func (r *LeadRepository) UpdateStatus(ctx context.Context, email string, status entity.FollowUpStatus, details entity.StatusDetails) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var id int64
	if details.LeadID != "" {
		err = tx.QueryRowContext(ctx,
			`SELECT id FROM leads WHERE internal_id = $1 FOR UPDATE`,
			details.LeadID,
		).Scan(&id)
	} else {
		err = tx.QueryRowContext(ctx,
			`SELECT id FROM leads WHERE email = $1 ORDER BY received_at DESC LIMIT 1 FOR UPDATE`,
			email,
		).Scan(&id)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("lead %s: %w", firstNonEmpty(details.LeadID, email), entity.ErrLeadNotFound)
	}
	if err != nil {
		return fmt.Errorf("select lead: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE leads SET
			status = $2,
			call_id = COALESCE($3, call_id),
			message_id = COALESCE($4, message_id),
			last_error = $5,
			updated_at = NOW()
		WHERE id = $1
	`, id, string(status), nullString(details.CallID), nullString(details.MessageID), nullString(details.ErrorMessage))
	if err != nil {
		return fmt.Errorf("update lead status: %w", err)
	}

	changedAt := details.At
	_, err = tx.ExecContext(ctx, `
		INSERT INTO lead_status_history (lead_id, status, call_id, message_id, error_message, changed_at)
		VALUES ($1, $2, $3, $4, $5, COALESCE($6, NOW()))
	`, id, string(status), nullString(details.CallID), nullString(details.MessageID), nullString(details.ErrorMessage), nullTime(changedAt))
	if err != nil {
		return fmt.Errorf("insert status history: %w", err)
	}

	return tx.Commit()
}

const leadColumns = `
	internal_id, name, email, COALESCE(phone, ''), source, interest,
	COALESCE(utm_source, ''), COALESCE(utm_campaign, ''), status,
	COALESCE(call_id, ''), COALESCE(message_id, ''), COALESCE(last_error, ''),
	received_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanLead(row rowScanner) (*entity.Lead, error) {
	var lead entity.Lead
	var status string
	err := row.Scan(
		&lead.InternalID,
		&lead.Name,
		&lead.Email,
		&lead.Phone,
		&lead.Source,
		&lead.Interest,
		&lead.UTMSource,
		&lead.UTMCampaign,
		&status,
		&lead.CallID,
		&lead.MessageID,
		&lead.LastError,
		&lead.ReceivedAt,
		&lead.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	lead.Status = entity.FollowUpStatus(status)
	return &lead, nil
}

func (r *LeadRepository) FindByInternalID(ctx context.Context, internalID string) (*entity.Lead, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+leadColumns+` FROM leads WHERE internal_id = $1`, internalID)

	lead, err := scanLead(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrLeadNotFound
	}
	return lead, err
}

// List devolve os leads mais recentes primeiro.
func (r *LeadRepository) List(ctx context.Context, filter entity.LeadFilter) ([]*entity.Lead, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.DB.QueryContext(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE ($1 = '' OR status = $1)
		ORDER BY received_at DESC, id DESC
		LIMIT $2
	`, string(filter.Status), limit)
	if err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}
	defer rows.Close()

	leads := []*entity.Lead{}
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, lead)
	}
	return leads, rows.Err()
}

// StatusHistory devolve os status do lead em ordem cronológica.
func (r *LeadRepository) StatusHistory(ctx context.Context, internalID string) ([]entity.FollowUpStatus, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT h.status
		FROM lead_status_history h
		JOIN leads l ON l.id = h.lead_id
		WHERE l.internal_id = $1
		ORDER BY h.changed_at, h.id
	`, internalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []entity.FollowUpStatus
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		history = append(history, entity.FollowUpStatus(s))
	}
	return history, rows.Err()
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
