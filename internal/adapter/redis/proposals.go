package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"github.com/Temutjin2k/grid-dispatch/internal/domain/models"
	wrap "github.com/Temutjin2k/grid-dispatch/pkg/logger/wrapper"
)

const ProposalTimeoutsKey = "proposal_timeouts"

// popExpired reads and removes up to ARGV[2] members with score <= ARGV[1] in one step,
// so each expired proposal is handed to exactly one sweeper.
var popExpired = goredis.NewScript(`
local items = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'WITHSCORES', 'LIMIT', 0, tonumber(ARGV[2]))
if #items == 0 then
	return items
end
local members = {}
for i = 1, #items, 2 do
	members[#members + 1] = items[i]
end
redis.call('ZREM', KEYS[1], unpack(members))
return items
`)

// Proposals keeps outstanding proposals in a sorted set scored by deadline (unix ms),
// next to a snapshot of the ride event each proposal was made for.
type Proposals struct {
	rdb         *goredis.Client
	key         string
	snapshotTTL time.Duration
}

func NewProposals(rdb *goredis.Client, snapshotTTL time.Duration) *Proposals {
	return &Proposals{
		rdb:         rdb,
		key:         ProposalTimeoutsKey,
		snapshotTTL: snapshotTTL,
	}
}

// Register stores the proposal and the ride snapshot in one transaction.
func (p *Proposals) Register(ctx context.Context, proposal models.Proposal, event models.RideEvent) error {
	const op = "Proposals.Register"

	snapshot, err := json.Marshal(event)
	if err != nil {
		return wrap.Error(ctx, fmt.Errorf("%s: marshal snapshot: %w", op, err))
	}

	_, err = p.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.ZAdd(ctx, p.key, &goredis.Z{
			Score:  float64(proposal.Deadline.UnixMilli()),
			Member: proposal.Member(),
		})
		pipe.Set(ctx, snapshotKey(proposal.RideID), snapshot, p.snapshotTTL)
		return nil
	})
	if err != nil {
		return wrap.Error(ctx, fmt.Errorf("%s: %w", op, err))
	}
	return nil
}

// Requeue puts a popped proposal back with its original deadline.
func (p *Proposals) Requeue(ctx context.Context, proposal models.Proposal) error {
	const op = "Proposals.Requeue"

	err := p.rdb.ZAdd(ctx, p.key, &goredis.Z{
		Score:  float64(proposal.Deadline.UnixMilli()),
		Member: proposal.Member(),
	}).Err()
	if err != nil {
		return wrap.Error(ctx, fmt.Errorf("%s: %w", op, err))
	}
	return nil
}

// PopExpired atomically removes and returns up to limit proposals whose deadline is not after now.
func (p *Proposals) PopExpired(ctx context.Context, now time.Time, limit int) ([]models.Proposal, error) {
	const op = "Proposals.PopExpired"

	items, err := popExpired.Run(ctx, p.rdb, []string{p.key}, now.UnixMilli(), limit).StringSlice()
	if err != nil {
		return nil, wrap.Error(ctx, fmt.Errorf("%s: %w", op, err))
	}

	proposals := make([]models.Proposal, 0, len(items)/2)
	for i := 0; i+1 < len(items); i += 2 {
		proposal, err := models.ParseProposalMember(items[i])
		if err != nil {
			// The member is already removed; a malformed one can never be released.
			continue
		}
		if score, err := strconv.ParseFloat(items[i+1], 64); err == nil {
			proposal.Deadline = time.UnixMilli(int64(score))
		}
		proposals = append(proposals, proposal)
	}
	return proposals, nil
}

// Snapshot returns the last ride event dispatched for rideID.
func (p *Proposals) Snapshot(ctx context.Context, rideID string) (models.RideEvent, bool, error) {
	const op = "Proposals.Snapshot"

	raw, err := p.rdb.Get(ctx, snapshotKey(rideID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return models.RideEvent{}, false, nil
	}
	if err != nil {
		return models.RideEvent{}, false, wrap.Error(ctx, fmt.Errorf("%s: %w", op, err))
	}

	var event models.RideEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		return models.RideEvent{}, false, wrap.Error(ctx, fmt.Errorf("%s: decode snapshot: %w", op, err))
	}
	return event, true, nil
}

// Forget drops the ride snapshot once the ride leaves dispatch.
func (p *Proposals) Forget(ctx context.Context, rideID string) error {
	const op = "Proposals.Forget"

	if err := p.rdb.Del(ctx, snapshotKey(rideID)).Err(); err != nil {
		return wrap.Error(ctx, fmt.Errorf("%s: %w", op, err))
	}
	return nil
}

// Park keeps a retry event that could not be published so a later sweep can send it.
func (p *Proposals) Park(ctx context.Context, event models.RideEvent) error {
	const op = "Proposals.Park"

	raw, err := json.Marshal(event)
	if err != nil {
		return wrap.Error(ctx, fmt.Errorf("%s: marshal: %w", op, err))
	}
	if err := p.rdb.RPush(ctx, retryOutboxKey, raw).Err(); err != nil {
		return wrap.Error(ctx, fmt.Errorf("%s: %w", op, err))
	}
	return nil
}

// PopParked removes and returns up to limit parked retry events, oldest first.
// Entries that do not decode are dropped and reported in the error next to the
// events that did.
func (p *Proposals) PopParked(ctx context.Context, limit int) ([]models.RideEvent, error) {
	const op = "Proposals.PopParked"

	raws, err := p.rdb.LPopCount(ctx, retryOutboxKey, limit).Result()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap.Error(ctx, fmt.Errorf("%s: %w", op, err))
	}

	var (
		events = make([]models.RideEvent, 0, len(raws))
		errs   []error
	)
	for _, raw := range raws {
		var e models.RideEvent
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			errs = append(errs, err)
			continue
		}
		events = append(events, e)
	}
	if len(errs) > 0 {
		return events, wrap.Error(ctx, fmt.Errorf("%s: dropped undecodable entries: %w", op, errors.Join(errs...)))
	}
	return events, nil
}
