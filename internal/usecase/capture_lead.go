package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/xavierca1/eva-followup/internal/entity"
	"github.com/xavierca1/eva-followup/internal/infra/http/middleware"
)

const DefaultFollowUpDelay = 30 * time.Minute

type CaptureLeadUseCase struct {
	Store     entity.LeadRepositoryInterface
	Caller    CallingProvider
	Scheduler FollowUpScheduler
	Guard     IdempotencyGuard
	Notifier  LeadNotifier
	Policy    FollowUpPolicy

	Now   func() time.Time
	NewID func() string
}

func NewCaptureLeadUseCase(
	store entity.LeadRepositoryInterface,
	caller CallingProvider,
	scheduler FollowUpScheduler,
	guard IdempotencyGuard,
	notifier LeadNotifier,
	policy FollowUpPolicy,
) *CaptureLeadUseCase {
	if policy.Delay <= 0 {
		policy.Delay = DefaultFollowUpDelay
	}
	return &CaptureLeadUseCase{
		Store:     store,
		Caller:    caller,
		Scheduler: scheduler,
		Guard:     guard,
		Notifier:  notifier,
		Policy:    policy,
		Now:       time.Now,
		NewID:     func() string { return uuid.New().String() },
	}
}

type callOutcome struct {
	Status entity.FollowUpStatus
	CallID string
	Err    error
}

// Execute valida o lead, tenta a ligação na hora e arma o backup de WhatsApp.
// Só erros de validação (ou internos) voltam para o chamador; falhas de
// provedor e de persistência degradam a etapa correspondente.
func (uc *CaptureLeadUseCase) Execute(ctx context.Context, input CaptureLeadInput) (*CaptureLeadOutput, error) {
	lead, err := ValidateLead(input, uc.Now(), uc.NewID)
	if err != nil {
		return nil, err
	}

	logger := log.With().
		Str("lead_id", lead.InternalID).
		Str("email", lead.Email).
		Str("source", lead.Source).
		Logger()
	logger.Info().Msg("🎯 novo lead recebido")

	if uc.isDuplicate(ctx, lead, logger) {
		middleware.RecordLeadReceived(true)
		logger.Warn().Msg("lead duplicado dentro da janela de idempotência, ignorando")
		return &CaptureLeadOutput{
			Status:    "success",
			Message:   fmt.Sprintf("Lead %s já está em follow-up.", lead.Name),
			LeadID:    lead.InternalID,
			LeadEmail: lead.Email,
			Duplicate: true,
			Timestamp: lead.ReceivedAt,
		}, nil
	}
	middleware.RecordLeadReceived(false)

	saved := true
	if _, err := uc.Store.Save(ctx, lead); err != nil {
		saved = false
		logger.Error().Err(err).Msg("💾 falha ao salvar lead, seguindo com o follow-up")
	}

	if uc.Notifier != nil {
		go func(l entity.Lead) {
			if err := uc.Notifier.NotifyNewLead(&l); err != nil {
				logger.Warn().Err(err).Msg("📧 falha ao notificar equipe comercial")
			}
		}(*lead)
	}

	call := uc.initiateCall(ctx, lead, logger)
	scheduled := uc.scheduleFollowUp(ctx, lead, call.Status, logger)

	out := &CaptureLeadOutput{
		Status:          "success",
		Message:         fmt.Sprintf("Lead %s capturado com sucesso! Eva Follow-up em andamento.", lead.Name),
		LeadID:          lead.InternalID,
		LeadEmail:       lead.Email,
		CallID:          call.CallID,
		CallStatus:      call.Status,
		BackupScheduled: scheduled,
		Timestamp:       lead.ReceivedAt,
	}
	if call.Err != nil {
		out.ErrorDetails = call.Err.Error()
	}
	out.NextActions = nextActions(call.Status, scheduled, saved, uc.Policy.Delay)
	return out, nil
}

func (uc *CaptureLeadUseCase) initiateCall(ctx context.Context, lead *entity.Lead, logger zerolog.Logger) callOutcome {
	var out callOutcome

	phone, err := NormalizePhone(lead.Phone, uc.Policy.FallbackPhone)
	if err == nil && uc.Caller == nil {
		err = &ConfigurationError{Key: "RETELL_API_KEY", Message: "calling provider not configured"}
	}
	if err == nil {
		out.CallID, err = uc.Caller.InitiateCall(ctx, CallRequest{
			ToNumber: phone,
			Variables: map[string]string{
				"lead_name":     lead.Name,
				"lead_interest": lead.Interest,
				"lead_source":   lead.Source,
			},
			Metadata: map[string]string{
				"email":       lead.Email,
				"source":      lead.Source,
				"timestamp":   lead.ReceivedAt.UTC().Format(time.RFC3339),
				"internal_id": lead.InternalID,
			},
		})
	}

	details := entity.StatusDetails{LeadID: lead.InternalID, At: uc.Now()}
	if err != nil {
		out.Status = entity.StatusCallFailed
		out.Err = err
		details.ErrorMessage = err.Error()
		logger.Error().Err(err).Str("phone", phone).Msg("📞 falha ao iniciar ligação da Eva")
	} else {
		out.Status = entity.StatusCallInitiated
		details.CallID = out.CallID
		logger.Info().Str("call_id", out.CallID).Str("phone", phone).Msg("📞 ligação da Eva iniciada")
	}
	middleware.RecordLeadCall(string(out.Status))

	if err := uc.Store.UpdateStatus(ctx, lead.Email, out.Status, details); err != nil {
		logger.Error().Err(err).Str("status", string(out.Status)).Msg("falha ao atualizar status do lead")
	}
	return out
}

func (uc *CaptureLeadUseCase) scheduleFollowUp(ctx context.Context, lead *entity.Lead, callStatus entity.FollowUpStatus, logger zerolog.Logger) bool {
	if uc.Scheduler == nil {
		logger.Error().Msg("nenhum agendador configurado, backup de WhatsApp não armado")
		return false
	}

	job := entity.NewFollowUpJob(uc.NewID(), lead, callStatus, uc.Policy.Delay)
	delay := job.DueAt.Sub(uc.Now())
	if delay < 0 {
		delay = 0
	}

	if err := uc.Scheduler.Schedule(ctx, job, delay); err != nil {
		middleware.RecordFollowUpScheduled(uc.Scheduler.Name(), "error")
		logger.Error().Err(err).Str("backend", uc.Scheduler.Name()).Msg("💬 falha ao agendar backup de WhatsApp")
		return false
	}

	middleware.RecordFollowUpScheduled(uc.Scheduler.Name(), "ok")
	logger.Info().
		Str("job_id", job.ID).
		Time("due_at", job.DueAt).
		Str("backend", uc.Scheduler.Name()).
		Msg("💬 backup de WhatsApp agendado")
	return true
}

func (uc *CaptureLeadUseCase) isDuplicate(ctx context.Context, lead *entity.Lead, logger zerolog.Logger) bool {
	if uc.Guard == nil || uc.Policy.IdempotencyWindow <= 0 {
		return false
	}

	key := IdempotencyKey(lead.Email, lead.ReceivedAt, uc.Policy.IdempotencyWindow)
	claimed, err := uc.Guard.Claim(ctx, key, uc.Policy.IdempotencyWindow)
	if err != nil {
		logger.Warn().Err(err).Msg("idempotency guard indisponível, processando mesmo assim")
		return false
	}
	return !claimed
}

// IdempotencyKey agrupa envios do mesmo email na mesma janela fixa de tempo.
func IdempotencyKey(email string, at time.Time, window time.Duration) string {
	bucket := at.UnixNano() / int64(window)
	sum := sha256.Sum256([]byte(email + "|" + strconv.FormatInt(bucket, 10)))
	return hex.EncodeToString(sum[:])
}

func nextActions(callStatus entity.FollowUpStatus, scheduled, saved bool, delay time.Duration) []string {
	actions := make([]string, 0, 3)
	if callStatus == entity.StatusCallInitiated {
		actions = append(actions, "Eva está ligando para o lead")
	} else {
		actions = append(actions, "Ligação da Eva falhou")
	}
	if scheduled {
		actions = append(actions, fmt.Sprintf("WhatsApp backup em %s", delay))
	}
	if saved {
		actions = append(actions, "Lead salvo no CRM")
	}
	return actions
}
