package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redisrepo "github.com/Temutjin2k/grid-dispatch/internal/adapter/redis"
	"github.com/Temutjin2k/grid-dispatch/internal/domain/models"
	"github.com/Temutjin2k/grid-dispatch/internal/domain/types"
)

// Drivers 5 and 9 wait at (2,2); 5 is busy with another ride. A ride at (2,2)
// goes to 9; when 9 does not answer in 25s the claim is released and the ride is
// searched again without 9.
func TestScenario_TimeoutAndRetry(t *testing.T) {
	ctx := context.Background()

	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	geo := redisrepo.NewGeoIndex(rdb)
	claims := redisrepo.NewClaims(rdb)
	proposals := redisrepo.NewProposals(rdb, time.Hour)
	events := redisrepo.NewStreamLog(rdb, "order_events", "matching_group", "worker-1", 10*time.Millisecond)
	sink := redisrepo.NewNotifier(rdb, redisrepo.NotificationsChannel, testLogger())
	recorder := &fakeRecorder{}

	cfg := Config{
		Grid:            testGrid,
		MaxSearchRadius: 20,
		DriverLockTTL:   30 * time.Second,
		ProposalTimeout: 25 * time.Second,
		ErrorBackoff:    time.Millisecond,
	}
	d := NewDispatcher(events, geo, claims, proposals, sink, recorder, cfg, testLogger())
	d.now = func() time.Time { return fixedNow }

	sweeper := NewSweeper(proposals, claims, events, recorder, SweeperConfig{BatchSize: 100, MaxRetries: 5}, testLogger())

	start := models.Cell{X: 2, Y: 2}
	require.NoError(t, geo.SetCell(ctx, start, 5, types.StatusDriverOnline))
	require.NoError(t, geo.SetCell(ctx, start, 9, types.StatusDriverOnline))
	ok, err := claims.TryClaim(ctx, 5, "other-ride", 30*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, events.Ensure(ctx))
	require.NoError(t, events.Publish(ctx, models.RideEvent{Event: types.EventOrderCreated, RideID: "r-1", StartX: 2, StartY: 2, EndX: 6, EndY: 6, Price: 90}))

	consume := func() {
		t.Helper()
		delivery, err := events.Read(ctx)
		require.NoError(t, err)
		require.NoError(t, d.Handle(ctx, delivery))
		require.NoError(t, events.Ack(ctx, delivery))
	}

	consume()

	owner, held, err := claims.Owner(ctx, 9)
	require.NoError(t, err)
	require.True(t, held)
	assert.Equal(t, "r-1", owner)
	assert.Equal(t, float64(fixedNow.Add(25*time.Second).UnixMilli()), mustScore(t, mr, "r-1:9"))

	// Not yet expired.
	sweeper.now = func() time.Time { return fixedNow.Add(25*time.Second - time.Millisecond) }
	n, err := sweeper.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	sweeper.now = func() time.Time { return fixedNow.Add(25 * time.Second) }
	n, err = sweeper.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, held, err = claims.Owner(ctx, 9)
	require.NoError(t, err)
	assert.False(t, held, "claim on 9 released")

	retry, err := events.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.EventRetrySearch, retry.Event.Event)
	assert.Equal(t, []int64{9}, retry.Event.Excluded)
	assert.Equal(t, 1, retry.Event.Attempt)

	// 5 is still busy and 9 is excluded: nothing left to propose.
	require.NoError(t, d.Handle(ctx, retry))
	require.NoError(t, events.Ack(ctx, retry))

	assert.Equal(t, []types.OutcomeType{
		types.OutcomeDriverProposed,
		types.OutcomeProposalExpired,
		types.OutcomeNoDriverFound,
	}, recorder.kinds())

	_, held, err = claims.Owner(ctx, 9)
	require.NoError(t, err)
	assert.False(t, held, "excluded driver is never claimed again for the ride")
}

func mustScore(t *testing.T, mr *miniredis.Miniredis, member string) float64 {
	t.Helper()
	score, err := mr.ZScore(redisrepo.ProposalTimeoutsKey, member)
	require.NoError(t, err)
	return score
}
