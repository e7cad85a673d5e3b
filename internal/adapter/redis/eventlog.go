package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"github.com/Temutjin2k/grid-dispatch/internal/domain/models"
	"github.com/Temutjin2k/grid-dispatch/internal/domain/types"
	wrap "github.com/Temutjin2k/grid-dispatch/pkg/logger/wrapper"
)

const (
	fieldEvent = "event"
	fieldData  = "data"
)

// StreamLog is a ride event log on a Redis stream read through a consumer group.
// Each StreamLog is one consumer of the group.
type StreamLog struct {
	rdb      *goredis.Client
	stream   string
	group    string
	consumer string
	block    time.Duration
}

func NewStreamLog(rdb *goredis.Client, stream, group, consumer string, block time.Duration) *StreamLog {
	return &StreamLog{
		rdb:      rdb,
		stream:   stream,
		group:    group,
		consumer: consumer,
		block:    block,
	}
}

// Ensure creates the stream and the consumer group if missing. Safe to call concurrently.
func (l *StreamLog) Ensure(ctx context.Context) error {
	const op = "StreamLog.Ensure"
	ctx = wrap.WithAction(ctx, types.ActionEnsureEventLog)

	err := l.rdb.XGroupCreateMkStream(ctx, l.stream, l.group, "0").Err()
	if err != nil && !isRedisError(err, "BUSYGROUP") {
		return wrap.Error(ctx, fmt.Errorf("%s: %w", op, err))
	}
	return nil
}

// Read returns the next delivery for this consumer. Entries delivered earlier and
// never acknowledged come first; then new entries, blocking at most the configured
// block time. types.ErrNoEvent means nothing arrived in time.
func (l *StreamLog) Read(ctx context.Context) (models.Delivery, error) {
	const op = "StreamLog.Read"

	d, err := l.read(ctx)
	if isRedisError(err, "NOGROUP") {
		if err := l.Ensure(ctx); err != nil {
			return models.Delivery{}, wrap.Error(ctx, fmt.Errorf("%s: %w: %w", op, types.ErrNoGroup, err))
		}
		d, err = l.read(ctx)
	}
	if err != nil {
		if errors.Is(err, types.ErrNoEvent) {
			return models.Delivery{}, err
		}
		return models.Delivery{}, wrap.Error(ctx, fmt.Errorf("%s: %w", op, err))
	}
	return d, nil
}

func (l *StreamLog) read(ctx context.Context) (models.Delivery, error) {
	pending, err := l.readGroup(ctx, "0", -1)
	if err != nil {
		return models.Delivery{}, err
	}
	if len(pending) > 0 {
		return decodeMessage(pending[0]), nil
	}

	fresh, err := l.readGroup(ctx, ">", l.block)
	if errors.Is(err, goredis.Nil) {
		return models.Delivery{}, types.ErrNoEvent
	}
	if err != nil {
		return models.Delivery{}, err
	}
	if len(fresh) == 0 {
		return models.Delivery{}, types.ErrNoEvent
	}
	return decodeMessage(fresh[0]), nil
}

func (l *StreamLog) readGroup(ctx context.Context, id string, block time.Duration) ([]goredis.XMessage, error) {
	streams, err := l.rdb.XReadGroup(ctx, &goredis.XReadGroupArgs{
		Group:    l.group,
		Consumer: l.consumer,
		Streams:  []string{l.stream, id},
		Count:    1,
		Block:    block,
	}).Result()
	if err != nil {
		return nil, err
	}

	var msgs []goredis.XMessage
	for _, s := range streams {
		msgs = append(msgs, s.Messages...)
	}
	return msgs, nil
}

func (l *StreamLog) Ack(ctx context.Context, d models.Delivery) error {
	const op = "StreamLog.Ack"

	if err := l.rdb.XAck(ctx, l.stream, l.group, d.ID).Err(); err != nil {
		return wrap.Error(ctx, fmt.Errorf("%s: %w", op, err))
	}
	return nil
}

// Publish appends the event to the stream as {event, data} fields.
func (l *StreamLog) Publish(ctx context.Context, e models.RideEvent) error {
	const op = "StreamLog.Publish"

	data, err := json.Marshal(e)
	if err != nil {
		return wrap.Error(ctx, fmt.Errorf("%s: marshal: %w", op, err))
	}

	err = l.rdb.XAdd(ctx, &goredis.XAddArgs{
		Stream: l.stream,
		Values: map[string]interface{}{
			fieldEvent: e.Event.String(),
			fieldData:  string(data),
		},
	}).Err()
	if err != nil {
		return wrap.Error(ctx, fmt.Errorf("%s: %w", op, err))
	}
	return nil
}

func decodeMessage(msg goredis.XMessage) models.Delivery {
	d := models.Delivery{ID: msg.ID}

	raw, ok := msg.Values[fieldData].(string)
	if !ok {
		d.Err = fmt.Errorf("%w: entry %s has no %q field", types.ErrInvalidEvent, msg.ID, fieldData)
		return d
	}
	d.Payload = []byte(raw)

	if err := json.Unmarshal(d.Payload, &d.Event); err != nil {
		d.Err = fmt.Errorf("%w: %w", types.ErrInvalidEvent, err)
		return d
	}

	if name, ok := msg.Values[fieldEvent].(string); ok && name != "" {
		d.Event.Event = types.EventType(name)
	}
	return d
}
