package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xavierca1/eva-followup/internal/entity"
)

type published struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

type fakePublisher struct {
	calls []published
	err   error
}

func (f *fakePublisher) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	f.calls = append(f.calls, published{exchange: exchange, key: key, msg: msg})
	return f.err
}

type fakeAck struct {
	acked    []uint64
	nacked   []uint64
	requeued []uint64
}

func (a *fakeAck) Ack(tag uint64, _ bool) error {
	a.acked = append(a.acked, tag)
	return nil
}

func (a *fakeAck) Nack(tag uint64, _ bool, requeue bool) error {
	if requeue {
		a.requeued = append(a.requeued, tag)
		return nil
	}
	a.nacked = append(a.nacked, tag)
	return nil
}

func (a *fakeAck) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

type fakeConsumer struct {
	deliveries chan amqp.Delivery
}

func (c *fakeConsumer) Consume(string, string, bool, bool, bool, bool, amqp.Table) (<-chan amqp.Delivery, error) {
	return c.deliveries, nil
}

type recordingHandler struct {
	jobs   []entity.FollowUpJob
	fail   map[string]bool
	during func(ctx context.Context) error
}

func (h *recordingHandler) Execute(ctx context.Context, job entity.FollowUpJob) error {
	h.jobs = append(h.jobs, job)
	if h.during != nil {
		return h.during(ctx)
	}
	if h.fail[job.ID] {
		return errors.New("whatsapp error (status 401)")
	}
	return nil
}

func sampleJob(id string) entity.FollowUpJob {
	received := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	return entity.FollowUpJob{
		ID:         id,
		LeadID:     "lead-1",
		Name:       "Ana",
		Email:      "ana@x.com",
		Phone:      "11988887777",
		CallStatus: entity.StatusCallInitiated,
		ReceivedAt: received,
		DueAt:      received.Add(30 * time.Minute),
	}
}

func TestDelayedSchedulerPublishesToWaitQueueWithTTL(t *testing.T) {
	pub := &fakePublisher{}
	s := NewDelayedScheduler(pub)

	err := s.Schedule(context.Background(), sampleJob("job-1"), 30*time.Minute)

	require.NoError(t, err)
	require.Len(t, pub.calls, 1)
	call := pub.calls[0]
	assert.Equal(t, DelayExchange, call.exchange)
	assert.Equal(t, RoutingKey, call.key)
	assert.Equal(t, "1800000", call.msg.Expiration)
	assert.Equal(t, amqp.Persistent, call.msg.DeliveryMode)
	assert.Equal(t, "job-1", call.msg.MessageId)

	var job entity.FollowUpJob
	require.NoError(t, json.Unmarshal(call.msg.Body, &job))
	assert.Equal(t, "lead-1", job.LeadID)
	assert.Equal(t, "rabbitmq", s.Name())
}

func TestDelayedSchedulerOverdueJobSkipsWaitQueue(t *testing.T) {
	pub := &fakePublisher{}
	s := NewDelayedScheduler(pub)

	require.NoError(t, s.Schedule(context.Background(), sampleJob("job-1"), 0))

	require.Len(t, pub.calls, 1)
	assert.Equal(t, ExchangeName, pub.calls[0].exchange)
	assert.Empty(t, pub.calls[0].msg.Expiration)
}

func TestDelayedSchedulerPublishError(t *testing.T) {
	s := NewDelayedScheduler(&fakePublisher{err: amqp.ErrClosed})

	err := s.Schedule(context.Background(), sampleJob("job-1"), time.Minute)

	require.Error(t, err)
	assert.ErrorIs(t, err, amqp.ErrClosed)
}

func TestWorkerAcksSuccessAndDeadLettersFailures(t *testing.T) {
	ack := &fakeAck{}
	deliveries := make(chan amqp.Delivery, 3)

	ok, _ := json.Marshal(sampleJob("job-ok"))
	bad, _ := json.Marshal(sampleJob("job-bad"))
	deliveries <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 1, Body: ok}
	deliveries <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 2, Body: bad}
	deliveries <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 3, Body: []byte("{not json")}
	close(deliveries)

	handler := &recordingHandler{fail: map[string]bool{"job-bad": true}}
	w := NewWorker(&fakeConsumer{deliveries: deliveries}, handler)

	require.NoError(t, w.Start(context.Background(), QueueName))

	assert.Equal(t, []uint64{1}, ack.acked)
	assert.Equal(t, []uint64{2, 3}, ack.nacked)
	assert.Len(t, handler.jobs, 2)
}

func TestWorkerStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	w := NewWorker(&fakeConsumer{deliveries: make(chan amqp.Delivery)}, &recordingHandler{})

	done := make(chan error, 1)
	go func() { done <- w.Start(ctx, QueueName) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}

func TestWorkerRequeuesDeliveriesAfterShutdown(t *testing.T) {
	body, _ := json.Marshal(sampleJob("job-1"))

	for i := 0; i < 50; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		ack := &fakeAck{}
		deliveries := make(chan amqp.Delivery, 1)
		deliveries <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 1, Body: body}

		handler := &recordingHandler{during: func(ctx context.Context) error { return ctx.Err() }}
		w := NewWorker(&fakeConsumer{deliveries: deliveries}, handler)

		require.NoError(t, w.Start(ctx, QueueName))

		assert.Empty(t, handler.jobs, "no send attempt after shutdown")
		assert.Empty(t, ack.nacked, "nothing dead-lettered on shutdown")
		assert.Empty(t, ack.acked)
	}
}

func TestWorkerInFlightJobOutlivesShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ack := &fakeAck{}
	deliveries := make(chan amqp.Delivery, 1)
	body, _ := json.Marshal(sampleJob("job-1"))
	deliveries <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 7, Body: body}
	close(deliveries)

	handler := &recordingHandler{during: func(jobCtx context.Context) error {
		cancel()
		return jobCtx.Err()
	}}
	w := NewWorker(&fakeConsumer{deliveries: deliveries}, handler)

	require.NoError(t, w.Start(ctx, QueueName))

	assert.Len(t, handler.jobs, 1)
	assert.Equal(t, []uint64{7}, ack.acked)
	assert.Empty(t, ack.nacked)
}
