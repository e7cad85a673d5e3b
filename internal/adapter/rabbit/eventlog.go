package rabbit

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/Temutjin2k/grid-dispatch/internal/domain/models"
	"github.com/Temutjin2k/grid-dispatch/internal/domain/types"
	"github.com/Temutjin2k/grid-dispatch/pkg/logger"
	wrap "github.com/Temutjin2k/grid-dispatch/pkg/logger/wrapper"
	"github.com/Temutjin2k/grid-dispatch/pkg/rabbit"
)

// QueueLog is a ride event log on a durable RabbitMQ queue with manual acknowledgment.
// A delivery that was read but not acknowledged is returned again by the next Read.
type QueueLog struct {
	client   *rabbit.RabbitMQ
	queue    string
	consumer string
	block    time.Duration
	l        logger.Logger

	mu         sync.Mutex
	deliveries <-chan amqp.Delivery
	pending    *amqp.Delivery
}

func NewQueueLog(client *rabbit.RabbitMQ, queue, consumer string, block time.Duration, l logger.Logger) *QueueLog {
	return &QueueLog{
		client:   client,
		queue:    queue,
		consumer: consumer,
		block:    block,
		l:        l,
	}
}

// Ensure declares the durable queue. QueueDeclare is idempotent for equal arguments.
func (q *QueueLog) Ensure(ctx context.Context) error {
	const op = "QueueLog.Ensure"
	ctx = wrap.WithAction(ctx, types.ActionEnsureEventLog)

	ch, err := q.client.Channel(ctx)
	if err != nil {
		return wrap.Error(ctx, fmt.Errorf("%s: %w", op, err))
	}

	if _, err := ch.QueueDeclare(q.queue, true, false, false, false, nil); err != nil {
		return wrap.Error(ctx, fmt.Errorf("%s: declare queue failed: %w", op, err))
	}
	return nil
}

func (q *QueueLog) Read(ctx context.Context) (models.Delivery, error) {
	const op = "QueueLog.Read"

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.pending != nil {
		return decodeDelivery(*q.pending), nil
	}

	if err := q.subscribe(ctx); err != nil {
		return models.Delivery{}, wrap.Error(ctx, fmt.Errorf("%s: %w", op, err))
	}

	timer := time.NewTimer(q.block)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return models.Delivery{}, ctx.Err()
	case <-timer.C:
		return models.Delivery{}, types.ErrNoEvent
	case msg, ok := <-q.deliveries:
		if !ok {
			q.deliveries = nil
			q.l.Warn(ctx, "message channel closed, resubscribing", "op", op, "queue", q.queue)
			return models.Delivery{}, types.ErrNoEvent
		}
		q.pending = &msg
		return decodeDelivery(msg), nil
	}
}

// subscribe starts consuming if there is no live subscription. Must hold mu.
func (q *QueueLog) subscribe(ctx context.Context) error {
	if q.deliveries != nil && !q.client.IsConnectionClosed() {
		return nil
	}

	ch, err := q.client.Channel(ctx)
	if err != nil {
		return err
	}

	if _, err := ch.QueueDeclare(q.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue failed: %w", err)
	}

	msgs, err := ch.Consume(q.queue, q.consumer, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume failed: %w", err)
	}

	q.deliveries = msgs
	q.l.Info(ctx, "start consuming ride events", "queue", q.queue)
	return nil
}

func (q *QueueLog) Ack(ctx context.Context, d models.Delivery) error {
	const op = "QueueLog.Ack"

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.pending == nil || strconv.FormatUint(q.pending.DeliveryTag, 10) != d.ID {
		return wrap.Error(ctx, fmt.Errorf("%s: delivery %s is not outstanding", op, d.ID))
	}

	msg := q.pending
	q.pending = nil
	if err := msg.Ack(false); err != nil {
		// The broker redelivers it after the channel is recovered.
		return wrap.Error(ctx, fmt.Errorf("%s: %w", op, err))
	}
	return nil
}

// Publish sends the event as a persistent JSON message to the queue.
func (q *QueueLog) Publish(ctx context.Context, e models.RideEvent) error {
	const op = "QueueLog.Publish"

	body, err := json.Marshal(e)
	if err != nil {
		return wrap.Error(ctx, fmt.Errorf("%s: failed to marshal message: %w", op, err))
	}

	err = retry(ctx, 3, time.Second, func() error {
		ch, err := q.client.Channel(ctx)
		if err != nil {
			return err
		}
		return ch.PublishWithContext(ctx, "", q.queue, false, false, amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Type:         e.Event.String(),
			MessageId:    e.RideID,
			Timestamp:    time.Now(),
			Body:         body,
		})
	})
	if err != nil {
		return wrap.Error(ctx, fmt.Errorf("%s: failed to publish: %w", op, err))
	}
	return nil
}

func decodeDelivery(msg amqp.Delivery) models.Delivery {
	d := models.Delivery{
		ID:      strconv.FormatUint(msg.DeliveryTag, 10),
		Payload: msg.Body,
	}

	if err := json.Unmarshal(msg.Body, &d.Event); err != nil {
		d.Err = fmt.Errorf("%w: %w", types.ErrInvalidEvent, err)
		return d
	}
	if msg.Type != "" {
		d.Event.Event = types.EventType(msg.Type)
	}
	return d
}
