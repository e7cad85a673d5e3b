package ride

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redisrepo "github.com/Temutjin2k/grid-dispatch/internal/adapter/redis"
	"github.com/Temutjin2k/grid-dispatch/internal/domain/models"
	"github.com/Temutjin2k/grid-dispatch/internal/domain/types"
	ridecalc "github.com/Temutjin2k/grid-dispatch/internal/service/calculator"
	"github.com/Temutjin2k/grid-dispatch/internal/service/dispatch"
	"github.com/Temutjin2k/grid-dispatch/internal/service/presence"
	"github.com/Temutjin2k/grid-dispatch/pkg/logger"
)

// searchAround runs a hook right before and right after each presence update, the
// points where a dispatcher on another instance can interleave with Accept.
type searchAround struct {
	next   PresenceUpdater
	before func()
	after  func()
}

func (s *searchAround) UpdatePresence(ctx context.Context, u models.PresenceUpdate) error {
	s.before()
	err := s.next.UpdatePresence(ctx, u)
	s.after()
	return err
}

func TestAccept_DriverCannotBeClaimedByAnotherRide(t *testing.T) {
	ctx := context.Background()
	grid := models.Grid{Width: 100, Height: 100}
	log := logger.New(io.Discard, "ride-test", logger.LevelError)

	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	geo := redisrepo.NewGeoIndex(rdb)
	claims := redisrepo.NewClaims(rdb)
	manager := presence.NewManager(geo, grid, log)
	searcher := dispatch.NewSearcher(geo, claims, grid, 20, 30*time.Second, log)

	start := models.Cell{X: 2, Y: 2}
	require.NoError(t, manager.UpdatePresence(ctx, models.PresenceUpdate{DriverID: 7, Status: types.StatusDriverOnline, Location: start}))
	ok, err := claims.TryClaim(ctx, 7, "ride-A", 30*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	var searchErrs []error
	search := func() {
		driverID, _, err := searcher.FindAndClaim(ctx, start, "ride-B", nil)
		assert.Zero(t, driverID, "driver 7 was claimed for ride-B while accepting ride-A")
		searchErrs = append(searchErrs, err)
	}

	calc := ridecalc.New(ridecalc.Tariff{BaseFare: 50, PerCell: 5, SecondsPerCell: 10})
	s := NewRideService(&fakePublisher{}, calc, claims,
		&searchAround{next: manager, before: search, after: search},
		redisrepo.NewProposals(rdb, time.Hour), &fakeOutcomes{statuses: map[string]models.DispatchStatus{}},
		grid, 30*time.Second, log)

	require.NoError(t, s.Accept(ctx, "ride-A", 7))

	require.Len(t, searchErrs, 2)
	for _, err := range searchErrs {
		assert.ErrorIs(t, err, types.ErrNoDriverAvailable)
	}

	members, err := geo.MembersOf(ctx, start)
	require.NoError(t, err)
	assert.Empty(t, members)

	owner, held, err := claims.Owner(ctx, 7)
	require.NoError(t, err)
	assert.True(t, held)
	assert.NotEqual(t, "ride-B", owner)

	// An expired proposal for ride-A no longer owns the driver.
	released, err := claims.ReleaseIfOwnedBy(ctx, 7, "ride-A")
	require.NoError(t, err)
	assert.False(t, released)

	mr.FastForward(31 * time.Second)
	_, held, err = claims.Owner(ctx, 7)
	require.NoError(t, err)
	assert.False(t, held)
}
