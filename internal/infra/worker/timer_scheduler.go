package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/xavierca1/eva-followup/internal/entity"
)

var ErrSchedulerStopped = errors.New("timer scheduler stopped")

// TimerScheduler guarda os follow-ups em memória. Um restart perde tudo que
// estava pendente; serve para desenvolvimento e testes.
type TimerScheduler struct {
	handler FollowUpHandler
	timeout time.Duration

	mu      sync.Mutex
	timers  map[string]*time.Timer
	stopped bool
}

func NewTimerScheduler(handler FollowUpHandler) *TimerScheduler {
	return &TimerScheduler{
		handler: handler,
		timeout: time.Minute,
		timers:  make(map[string]*time.Timer),
	}
}

func (s *TimerScheduler) Name() string {
	return "memory"
}

func (s *TimerScheduler) Schedule(_ context.Context, job entity.FollowUpJob, delay time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrSchedulerStopped
	}
	if _, exists := s.timers[job.ID]; exists {
		return nil
	}

	s.timers[job.ID] = time.AfterFunc(delay, func() { s.fire(job) })
	return nil
}

func (s *TimerScheduler) fire(job entity.FollowUpJob) {
	s.mu.Lock()
	delete(s.timers, job.ID)
	s.mu.Unlock()

	// o ctx da requisição já acabou faz tempo
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.handler.Execute(ctx, job); err != nil {
		log.Error().Err(err).Str("job_id", job.ID).Msg("❌ Follow-up em memória falhou")
	}
}

func (s *TimerScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop cancela os timers pendentes e devolve quantos foram descartados.
func (s *TimerScheduler) Stop() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = true
	dropped := 0
	for id, t := range s.timers {
		if t.Stop() {
			dropped++
		}
		delete(s.timers, id)
	}
	if dropped > 0 {
		log.Warn().Int("dropped", dropped).Msg("⚠️ follow-ups em memória descartados no shutdown")
	}
	return dropped
}
