package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/xavierca1/eva-followup/internal/entity"
	"github.com/xavierca1/eva-followup/internal/infra/http/middleware"
)

const DefaultBrandName = "Fluxomatika"

type SendFollowUpUseCase struct {
	Store     entity.LeadRepositoryInterface
	Messenger MessagingProvider
	Policy    FollowUpPolicy
	Now       func() time.Time
}

func NewSendFollowUpUseCase(
	store entity.LeadRepositoryInterface,
	messenger MessagingProvider,
	policy FollowUpPolicy,
) *SendFollowUpUseCase {
	if policy.BrandName == "" {
		policy.BrandName = DefaultBrandName
	}
	return &SendFollowUpUseCase{
		Store:     store,
		Messenger: messenger,
		Policy:    policy,
		Now:       time.Now,
	}
}

// Execute envia o backup de WhatsApp de um job vencido. O erro devolvido é
// terminal: quem consome o job não deve tentar de novo.
func (uc *SendFollowUpUseCase) Execute(ctx context.Context, job entity.FollowUpJob) error {
	logger := log.With().
		Str("lead_id", job.LeadID).
		Str("email", job.Email).
		Str("job_id", job.ID).
		Logger()

	details := entity.StatusDetails{LeadID: job.LeadID, At: uc.Now()}

	if uc.Policy.SkipWhenCallSucceeded && job.CallStatus == entity.StatusCallInitiated {
		logger.Info().Msg("ligação já iniciada, backup de WhatsApp dispensado")
		middleware.RecordFollowUpMessage(string(entity.StatusMessageSkipped))
		uc.updateStatus(ctx, job.Email, entity.StatusMessageSkipped, details)
		return nil
	}

	logger.Info().Msg("💬 executando backup de WhatsApp")

	messageID, err := uc.send(ctx, job)
	if err != nil {
		details.ErrorMessage = err.Error()
		middleware.RecordFollowUpMessage(string(entity.StatusMessageFailed))
		logger.Error().Err(err).Msg("❌ backup de WhatsApp falhou")
		uc.updateStatus(ctx, job.Email, entity.StatusMessageFailed, details)
		return fmt.Errorf("follow-up %s: %w", job.ID, err)
	}

	details.MessageID = messageID
	middleware.RecordFollowUpMessage(string(entity.StatusMessageSent))
	logger.Info().Str("message_id", messageID).Msg("✅ backup de WhatsApp enviado")
	uc.updateStatus(ctx, job.Email, entity.StatusMessageSent, details)
	return nil
}

func (uc *SendFollowUpUseCase) send(ctx context.Context, job entity.FollowUpJob) (string, error) {
	if uc.Messenger == nil {
		return "", &ConfigurationError{Key: "WHATSAPP_ACCESS_TOKEN", Message: "messaging provider not configured"}
	}

	phone, err := NormalizePhone(job.Phone, uc.Policy.FallbackPhone)
	if err != nil {
		return "", err
	}

	return uc.Messenger.SendMessage(ctx, phone, BuildFollowUpMessage(job.Name, job.Interest, uc.Policy.BrandName))
}

func (uc *SendFollowUpUseCase) updateStatus(ctx context.Context, email string, status entity.FollowUpStatus, details entity.StatusDetails) {
	if err := uc.Store.UpdateStatus(ctx, email, status, details); err != nil {
		log.Error().Err(err).
			Str("lead_id", details.LeadID).
			Str("status", string(status)).
			Msg("falha ao atualizar status do lead")
	}
}

func BuildFollowUpMessage(name, interest, brand string) string {
	topic := strings.ToLower(strings.TrimSpace(interest))
	if topic == "" || topic == DefaultInterest {
		topic = "nossas soluções"
	}

	return fmt.Sprintf(`Oi %s! 👋

Vi que você se interessou por %s na %s.

Que tal conversarmos sobre seu projeto?

Posso te ligar agora ou prefere agendar um horário? 📞

*Eva - Assistente Virtual da %s*`, name, topic, brand, brand)
}
