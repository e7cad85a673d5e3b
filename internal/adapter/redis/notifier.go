package redis

import (
	"context"
	"encoding/json"
	"fmt"

	goredis "github.com/go-redis/redis/v8"

	"github.com/Temutjin2k/grid-dispatch/internal/domain/models"
	"github.com/Temutjin2k/grid-dispatch/pkg/logger"
	wrap "github.com/Temutjin2k/grid-dispatch/pkg/logger/wrapper"
)

const NotificationsChannel = "driver_notifications"

// Notifier publishes proposal notifications on a pub/sub channel and lets the
// gateway subscribe to them. Delivery is at most once.
type Notifier struct {
	rdb     *goredis.Client
	channel string
	log     logger.Logger
}

func NewNotifier(rdb *goredis.Client, channel string, log logger.Logger) *Notifier {
	return &Notifier{rdb: rdb, channel: channel, log: log}
}

// Send publishes msg. delivered is false when no subscriber received it.
func (n *Notifier) Send(ctx context.Context, driverID int64, msg models.ProposalNotification) (bool, error) {
	const op = "Notifier.Send"

	body, err := json.Marshal(msg)
	if err != nil {
		return false, wrap.Error(ctx, fmt.Errorf("%s: marshal: %w", op, err))
	}

	receivers, err := n.rdb.Publish(ctx, n.channel, body).Result()
	if err != nil {
		return false, wrap.Error(ctx, fmt.Errorf("%s: driver %d: %w", op, driverID, err))
	}
	return receivers > 0, nil
}

// Subscribe calls handle for each notification until ctx is done.
// Undecodable messages are logged and skipped.
func (n *Notifier) Subscribe(ctx context.Context, handle func(ctx context.Context, msg models.ProposalNotification)) error {
	const op = "Notifier.Subscribe"

	ps := n.rdb.Subscribe(ctx, n.channel)
	defer ps.Close()

	// Wait for the subscription to be confirmed so no message published after
	// Subscribe returns control is missed.
	if _, err := ps.Receive(ctx); err != nil {
		return wrap.Error(ctx, fmt.Errorf("%s: %w", op, err))
	}

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch:
			if !ok {
				return wrap.Error(ctx, fmt.Errorf("%s: subscription channel closed", op))
			}

			var msg models.ProposalNotification
			if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
				n.log.Warn(ctx, "skipping undecodable notification", "error", err.Error(), "op", op)
				continue
			}
			handle(ctx, msg)
		}
	}
}
