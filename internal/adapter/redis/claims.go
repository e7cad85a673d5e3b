package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/go-redis/redis/v8"

	wrap "github.com/Temutjin2k/grid-dispatch/pkg/logger/wrapper"
)

// releaseIfOwned deletes the lock only when it still holds the expected ride id.
var releaseIfOwned = goredis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

// confirmIfOwned swaps the lock from ARGV[1] to the accepted marker ARGV[2] and
// resets its expiry to ARGV[3] ms. Running it again with the same ride succeeds.
var confirmIfOwned = goredis.NewScript(`
local v = redis.call('GET', KEYS[1])
if v == ARGV[1] or v == ARGV[2] then
	redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
	return 1
end
return 0
`)

// Claims is the driver lock store. A lock maps a driver to the ride it was claimed
// for and expires on its own.
type Claims struct {
	rdb *goredis.Client
}

func NewClaims(rdb *goredis.Client) *Claims {
	return &Claims{rdb: rdb}
}

// TryClaim sets the driver's lock if no live lock exists. Exactly one of any number
// of concurrent callers for the same driver gets true.
func (c *Claims) TryClaim(ctx context.Context, driverID int64, rideID string, ttl time.Duration) (bool, error) {
	const op = "Claims.TryClaim"

	ok, err := c.rdb.SetNX(ctx, lockKey(driverID), rideID, ttl).Result()
	if err != nil {
		return false, wrap.Error(ctx, fmt.Errorf("%s: %w", op, err))
	}
	return ok, nil
}

// ReleaseIfOwnedBy removes the lock if and only if it is held for rideID.
func (c *Claims) ReleaseIfOwnedBy(ctx context.Context, driverID int64, rideID string) (bool, error) {
	const op = "Claims.ReleaseIfOwnedBy"

	n, err := releaseIfOwned.Run(ctx, c.rdb, []string{lockKey(driverID)}, rideID).Int64()
	if err != nil {
		return false, wrap.Error(ctx, fmt.Errorf("%s: %w", op, err))
	}
	return n == 1, nil
}

// Confirm turns the claim held for rideID into an accepted hold that lives for hold.
// The hold is not a claim for rideID any more, so ReleaseIfOwnedBy(driverID, rideID)
// no longer matches it, and TryClaim keeps failing until it expires.
func (c *Claims) Confirm(ctx context.Context, driverID int64, rideID string, hold time.Duration) (bool, error) {
	const op = "Claims.Confirm"

	n, err := confirmIfOwned.Run(ctx, c.rdb, []string{lockKey(driverID)},
		rideID, acceptedHold(rideID), hold.Milliseconds()).Int64()
	if err != nil {
		return false, wrap.Error(ctx, fmt.Errorf("%s: %w", op, err))
	}
	return n == 1, nil
}

// Owner returns the ride the driver is currently claimed for.
func (c *Claims) Owner(ctx context.Context, driverID int64) (string, bool, error) {
	const op = "Claims.Owner"

	rideID, err := c.rdb.Get(ctx, lockKey(driverID)).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, wrap.Error(ctx, fmt.Errorf("%s: %w", op, err))
	}
	return rideID, true, nil
}
