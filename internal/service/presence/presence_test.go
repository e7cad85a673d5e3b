package presence

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redisrepo "github.com/Temutjin2k/grid-dispatch/internal/adapter/redis"
	"github.com/Temutjin2k/grid-dispatch/internal/domain/models"
	"github.com/Temutjin2k/grid-dispatch/internal/domain/types"
	"github.com/Temutjin2k/grid-dispatch/pkg/logger"
)

var grid = models.Grid{Width: 100, Height: 100}

func newManager(t *testing.T) (*Manager, *redisrepo.GeoIndex) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	idx := redisrepo.NewGeoIndex(rdb)
	return NewManager(idx, grid, logger.New(io.Discard, "presence-test", logger.LevelError)), idx
}

func online(id int64, x, y int) models.PresenceUpdate {
	return models.PresenceUpdate{DriverID: id, Status: types.StatusDriverOnline, Location: models.Cell{X: x, Y: y}}
}

// assertOnlyIn checks that the driver's location and membership agree.
func assertOnlyIn(t *testing.T, idx *redisrepo.GeoIndex, driverID int64, want models.Cell, cells ...models.Cell) {
	t.Helper()
	ctx := context.Background()

	loc, found, err := idx.GetLocation(ctx, driverID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, want, loc)

	for _, c := range cells {
		members, err := idx.MembersOf(ctx, c)
		require.NoError(t, err)
		if c == want {
			assert.Contains(t, members, driverID, c.String())
		} else {
			assert.NotContains(t, members, driverID, c.String())
		}
	}
}

func TestUpdatePresence_OnlineAndMove(t *testing.T) {
	ctx := context.Background()
	m, idx := newManager(t)
	a, b := models.Cell{X: 1, Y: 1}, models.Cell{X: 2, Y: 3}

	require.NoError(t, m.UpdatePresence(ctx, online(5, 1, 1)))
	assertOnlyIn(t, idx, 5, a, a, b)

	require.NoError(t, m.UpdatePresence(ctx, online(5, 2, 3)))
	assertOnlyIn(t, idx, 5, b, a, b)
}

func TestUpdatePresence_Idempotent(t *testing.T) {
	ctx := context.Background()
	m, idx := newManager(t)
	a := models.Cell{X: 7, Y: 8}

	for range 3 {
		require.NoError(t, m.UpdatePresence(ctx, online(5, 7, 8)))
	}
	assertOnlyIn(t, idx, 5, a, a)

	members, err := idx.MembersOf(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, []int64{5}, members)
}

func TestUpdatePresence_OfflineAndBusyLeaveIndex(t *testing.T) {
	for _, status := range []types.DriverStatus{types.StatusDriverOffline, types.StatusDriverBusy} {
		t.Run(string(status), func(t *testing.T) {
			ctx := context.Background()
			m, idx := newManager(t)
			a := models.Cell{X: 4, Y: 4}

			require.NoError(t, m.UpdatePresence(ctx, online(5, 4, 4)))
			require.NoError(t, m.UpdatePresence(ctx, models.PresenceUpdate{DriverID: 5, Status: status}))

			_, found, err := idx.GetLocation(ctx, 5)
			require.NoError(t, err)
			assert.False(t, found)

			members, err := idx.MembersOf(ctx, a)
			require.NoError(t, err)
			assert.Empty(t, members)

			// Going offline twice is fine.
			require.NoError(t, m.UpdatePresence(ctx, models.PresenceUpdate{DriverID: 5, Status: status}))
		})
	}
}

func TestUpdatePresence_Validation(t *testing.T) {
	ctx := context.Background()
	m, _ := newManager(t)

	tests := []struct {
		name string
		in   models.PresenceUpdate
		want error
	}{
		{"bad id", online(0, 1, 1), types.ErrInvalidDriverID},
		{"bad status", models.PresenceUpdate{DriverID: 1, Status: "flying"}, types.ErrInvalidDriverStatus},
		{"outside grid", online(1, 100, 5), types.ErrInvalidCell},
		{"negative cell", online(1, -1, 5), types.ErrInvalidCell},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, m.UpdatePresence(ctx, tt.in), tt.want)
		})
	}

	// Offline drivers may report any location.
	assert.NoError(t, m.UpdatePresence(ctx, models.PresenceUpdate{DriverID: 1, Status: types.StatusDriverOffline, Location: models.Cell{X: -1, Y: -1}}))
}

type conflictIndex struct{}

func (conflictIndex) Relocate(context.Context, int64, func(*models.Cell) (models.PresencePlan, error)) error {
	return types.ErrPresenceConflict
}

func TestUpdatePresence_Conflict(t *testing.T) {
	m := NewManager(conflictIndex{}, grid, logger.New(io.Discard, "presence-test", logger.LevelError))

	err := m.UpdatePresence(context.Background(), online(5, 1, 1))
	assert.True(t, errors.Is(err, types.ErrPresenceConflict))
}
