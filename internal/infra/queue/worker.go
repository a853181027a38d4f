package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"

	"github.com/xavierca1/eva-followup/internal/entity"
)

// FollowUpHandler executa o job vencido (SendFollowUpUseCase).
type FollowUpHandler interface {
	Execute(ctx context.Context, job entity.FollowUpJob) error
}

type Consumer interface {
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
}

type Worker struct {
	Channel Consumer
	Handler FollowUpHandler
	// Timeout limita cada envio; o job em andamento não herda o cancelamento do shutdown.
	Timeout time.Duration
}

func NewWorker(ch Consumer, handler FollowUpHandler) *Worker {
	return &Worker{
		Channel: ch,
		Handler: handler,
		Timeout: time.Minute,
	}
}

// Start consome a fila até o ctx ser cancelado ou o canal fechar.
func (w *Worker) Start(ctx context.Context, queueName string) error {
	msgs, err := w.Channel.Consume(
		queueName,
		"",
		false, // auto-ack (manual é mais seguro)
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("falha ao registrar consumidor RabbitMQ: %w", err)
	}

	log.Info().Str("queue", queueName).Msg(" [*] Worker rodando e aguardando na fila")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("🛑 [WORKER] Encerrando consumidor")
			return nil
		case d, ok := <-msgs:
			if !ok {
				log.Warn().Msg("[WORKER] Canal de entregas fechado")
				return nil
			}
			if ctx.Err() != nil {
				// shutdown: volta para a fila e outro consumidor envia
				log.Info().Uint64("delivery_tag", d.DeliveryTag).Msg("↩️ [WORKER] Devolvendo entrega durante shutdown")
				d.Nack(false, true)
				return nil
			}
			w.handle(ctx, d)
		}
	}
}

func (w *Worker) handle(ctx context.Context, d amqp.Delivery) {
	var job entity.FollowUpJob
	if err := json.Unmarshal(d.Body, &job); err != nil {
		log.Error().Err(err).Msg("❌ [WORKER] JSON inválido")
		// mensagem podre: sem requeue para não travar a fila
		d.Nack(false, false)
		return
	}

	log.Info().Str("job_id", job.ID).Str("lead_id", job.LeadID).Msg("📥 [WORKER] Follow-up vencido recebido")

	execCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.Timeout)
	defer cancel()

	if err := w.Handler.Execute(execCtx, job); err != nil {
		// sem retentativa: vai pra DLQ
		log.Error().Err(err).Str("job_id", job.ID).Msg("❌ [WORKER] Follow-up falhou, enviando para DLQ")
		d.Nack(false, false)
		return
	}

	d.Ack(false)
}
