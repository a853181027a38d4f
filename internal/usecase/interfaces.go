package usecase

import (
	"context"
	"time"

	"github.com/xavierca1/eva-followup/internal/entity"
)

type CallingProvider interface {
	InitiateCall(ctx context.Context, input CallRequest) (string, error)
}

type MessagingProvider interface {
	SendMessage(ctx context.Context, to, body string) (string, error)
}

// FollowUpScheduler arma o backup de WhatsApp. Uma vez agendado, o job
// dispara uma única vez, independente da requisição que o criou.
type FollowUpScheduler interface {
	Schedule(ctx context.Context, job entity.FollowUpJob, delay time.Duration) error
	Name() string
}

// IdempotencyGuard devolve false quando a chave já foi reivindicada dentro do TTL.
type IdempotencyGuard interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

type LeadNotifier interface {
	NotifyNewLead(lead *entity.Lead) error
}

type FollowUpPolicy struct {
	Delay                 time.Duration
	SkipWhenCallSucceeded bool
	IdempotencyWindow     time.Duration
	FallbackPhone         string
	BrandName             string
}
