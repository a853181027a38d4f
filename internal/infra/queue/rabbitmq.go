package queue

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Topologia do follow-up:
//
//	ex.followups.delay -> q.followups.wait (TTL por mensagem)
//	   expira -> ex.followups -> q.followups.due -> worker
//	   nack   -> ex.dlx -> q.followups.dlq
const (
	DelayExchange = "ex.followups.delay"
	WaitQueue     = "q.followups.wait"
	ExchangeName  = "ex.followups"
	QueueName     = "q.followups.due"
	DLXName       = "ex.dlx" // Dead Letter Exchange
	DLQName       = "q.followups.dlq"
	RoutingKey    = "k.followup"
)

type RabbitMQ struct {
	Conn *amqp.Connection
	Ch   *amqp.Channel
}

func NewRabbitMQ(url string) (*RabbitMQ, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("falha ao conectar no RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("falha ao abrir canal: %w", err)
	}

	if err := setupTopology(ch); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("falha ao declarar topologia: %w", err)
	}

	return &RabbitMQ{Conn: conn, Ch: ch}, nil
}

func setupTopology(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(DLXName, "direct", true, false, false, false, nil); err != nil {
		return err
	}
	if _, err := ch.QueueDeclare(DLQName, true, false, false, false, nil); err != nil {
		return err
	}
	if err := ch.QueueBind(DLQName, RoutingKey, DLXName, false, nil); err != nil {
		return err
	}

	// fila que o worker consome; nack vai pra DLX
	if err := ch.ExchangeDeclare(ExchangeName, "direct", true, false, false, false, nil); err != nil {
		return err
	}
	dueArgs := amqp.Table{
		"x-dead-letter-exchange":    DLXName,
		"x-dead-letter-routing-key": RoutingKey,
	}
	if _, err := ch.QueueDeclare(QueueName, true, false, false, false, dueArgs); err != nil {
		return err
	}
	if err := ch.QueueBind(QueueName, RoutingKey, ExchangeName, false, nil); err != nil {
		return err
	}

	// fila de espera sem consumidor: a mensagem expira e cai na fila de vencidos
	if err := ch.ExchangeDeclare(DelayExchange, "direct", true, false, false, false, nil); err != nil {
		return err
	}
	waitArgs := amqp.Table{
		"x-dead-letter-exchange":    ExchangeName,
		"x-dead-letter-routing-key": RoutingKey,
	}
	if _, err := ch.QueueDeclare(WaitQueue, true, false, false, false, waitArgs); err != nil {
		return err
	}
	return ch.QueueBind(WaitQueue, RoutingKey, DelayExchange, false, nil)
}

func (r *RabbitMQ) Close() error {
	if r.Ch != nil {
		r.Ch.Close()
	}
	if r.Conn != nil {
		return r.Conn.Close()
	}
	return nil
}
