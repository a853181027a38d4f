package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/xavierca1/eva-followup/internal/entity"
)

// Publisher é o pedaço do *amqp.Channel que o agendador usa.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// DelayedScheduler agenda o backup de WhatsApp publicando na fila de espera
// com TTL igual ao atraso restante.
type DelayedScheduler struct {
	Ch Publisher
}

func NewDelayedScheduler(ch Publisher) *DelayedScheduler {
	return &DelayedScheduler{Ch: ch}
}

func (s *DelayedScheduler) Name() string {
	return "rabbitmq"
}

func (s *DelayedScheduler) Schedule(ctx context.Context, job entity.FollowUpJob, delay time.Duration) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("erro ao converter job: %w", err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		MessageId:    job.ID,
		Timestamp:    job.ReceivedAt,
	}

	exchange := DelayExchange
	if delay <= 0 {
		// já venceu, vai direto pro worker
		exchange = ExchangeName
	} else {
		msg.Expiration = strconv.FormatInt(delay.Milliseconds(), 10)
	}

	if err := s.Ch.PublishWithContext(ctx, exchange, RoutingKey, false, false, msg); err != nil {
		return fmt.Errorf("falha ao publicar no RabbitMQ: %w", err)
	}
	return nil
}
