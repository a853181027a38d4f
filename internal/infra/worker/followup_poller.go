package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/xavierca1/eva-followup/internal/entity"
)

// JobQueue é a tabela followup_jobs vista pelo poller.
type JobQueue interface {
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]entity.FollowUpJob, error)
	MarkDone(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, reason string) error
	Release(ctx context.Context, id string) error
}

type FollowUpHandler interface {
	Execute(ctx context.Context, job entity.FollowUpJob) error
}

type FollowUpPoller struct {
	jobs         JobQueue
	handler      FollowUpHandler
	tickInterval time.Duration
	batchSize    int
	jobTimeout   time.Duration
	now          func() time.Time
}

func NewFollowUpPoller(jobs JobQueue, handler FollowUpHandler, tickInterval time.Duration) *FollowUpPoller {
	if tickInterval <= 0 {
		tickInterval = 15 * time.Second
	}
	return &FollowUpPoller{
		jobs:         jobs,
		handler:      handler,
		tickInterval: tickInterval,
		batchSize:    20,
		jobTimeout:   time.Minute,
		now:          time.Now,
	}
}

func (w *FollowUpPoller) Start(ctx context.Context) {
	log.Info().Dur("interval", w.tickInterval).Msg("🕒 Follow-up poller iniciado")

	ticker := time.NewTicker(w.tickInterval)
	defer ticker.Stop()

	w.processDue(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("⚠️ Follow-up poller encerrado")
			return
		case <-ticker.C:
			w.processDue(ctx)
		}
	}
}

// processDue reivindica um lote de jobs vencidos e executa cada um uma única vez.
// Se o ctx for cancelado no meio do lote, o que não rodou volta para pending.
func (w *FollowUpPoller) processDue(ctx context.Context) int {
	jobs, err := w.jobs.ClaimDue(ctx, w.now(), w.batchSize)
	if err != nil {
		log.Error().Err(err).Int("claimed", len(jobs)).Msg("❌ Erro ao buscar follow-ups vencidos")
	}

	// status final é gravado mesmo depois do shutdown
	bg := context.WithoutCancel(ctx)

	done := 0
	for i, job := range jobs {
		if ctx.Err() != nil {
			w.release(bg, jobs[i:])
			break
		}

		jobCtx, cancel := context.WithTimeout(bg, w.jobTimeout)
		err := w.handler.Execute(jobCtx, job)
		cancel()
		done++

		if err != nil {
			log.Error().Err(err).Str("job_id", job.ID).Msg("❌ Follow-up falhou")
			if err := w.jobs.MarkFailed(bg, job.ID, err.Error()); err != nil {
				log.Error().Err(err).Str("job_id", job.ID).Msg("⚠️ Erro ao marcar job como failed")
			}
			continue
		}
		if err := w.jobs.MarkDone(bg, job.ID); err != nil {
			log.Error().Err(err).Str("job_id", job.ID).Msg("⚠️ Erro ao marcar job como done")
		}
	}

	if done > 0 {
		log.Info().Int("count", done).Msg("✅ follow-ups processados")
	}
	return done
}

func (w *FollowUpPoller) release(ctx context.Context, pending []entity.FollowUpJob) {
	for _, job := range pending {
		if err := w.jobs.Release(ctx, job.ID); err != nil {
			log.Error().Err(err).Str("job_id", job.ID).Msg("⚠️ Erro ao devolver job para pending")
		}
	}
	log.Warn().Int("released", len(pending)).Msg("↩️ follow-ups devolvidos no shutdown")
}
