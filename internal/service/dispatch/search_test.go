package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Temutjin2k/grid-dispatch/internal/domain/models"
	"github.com/Temutjin2k/grid-dispatch/internal/domain/types"
)

var testGrid = models.Grid{Width: 100, Height: 100}

func newSearcher(geo *fakeGeo, claims *fakeClaims) *Searcher {
	return NewSearcher(geo, claims, testGrid, 20, 30*time.Second, testLogger())
}

func TestFindAndClaim_NearestRingWins(t *testing.T) {
	geo, claims := newFakeGeo(), newFakeClaims()
	geo.put(models.Cell{X: 12, Y: 10}, 1)  // radius 2
	geo.put(models.Cell{X: 11, Y: 11}, 40) // radius 1

	driver, radius, err := newSearcher(geo, claims).FindAndClaim(context.Background(), models.Cell{X: 10, Y: 10}, "r-1", nil)
	require.NoError(t, err)
	assert.EqualValues(t, 40, driver)
	assert.Equal(t, 1, radius)
}

func TestFindAndClaim_LowestIDInRing(t *testing.T) {
	geo, claims := newFakeGeo(), newFakeClaims()
	geo.put(models.Cell{X: 9, Y: 9}, 30)
	geo.put(models.Cell{X: 11, Y: 10}, 7, 12)

	driver, _, err := newSearcher(geo, claims).FindAndClaim(context.Background(), models.Cell{X: 10, Y: 10}, "r-1", nil)
	require.NoError(t, err)
	assert.EqualValues(t, 7, driver)

	owner, ok := claims.owner(7)
	require.True(t, ok)
	assert.Equal(t, "r-1", owner)
}

func TestFindAndClaim_SkipsExcludedAndClaimed(t *testing.T) {
	geo, claims := newFakeGeo(), newFakeClaims()
	start := models.Cell{X: 2, Y: 2}
	geo.put(start, 3, 5, 9)
	claims.locks[3] = "other-ride"

	excluded := models.RideEvent{Excluded: []int64{5}}
	driver, radius, err := newSearcher(geo, claims).FindAndClaim(context.Background(), start, "r-1", excluded.Excludes)
	require.NoError(t, err)
	assert.EqualValues(t, 9, driver)
	assert.Equal(t, 0, radius)
	assert.Equal(t, []int64{3, 9}, claims.attempts, "excluded driver is never tried")
}

func TestFindAndClaim_ContinuesToNextRingWhenAllClaimed(t *testing.T) {
	geo, claims := newFakeGeo(), newFakeClaims()
	geo.put(models.Cell{X: 10, Y: 10}, 1, 2)
	geo.put(models.Cell{X: 13, Y: 10}, 8)
	claims.locks[1] = "a"
	claims.locks[2] = "b"

	driver, radius, err := newSearcher(geo, claims).FindAndClaim(context.Background(), models.Cell{X: 10, Y: 10}, "r-1", nil)
	require.NoError(t, err)
	assert.EqualValues(t, 8, driver)
	assert.Equal(t, 3, radius)
}

func TestFindAndClaim_Exhausted(t *testing.T) {
	geo, claims := newFakeGeo(), newFakeClaims()
	geo.put(models.Cell{X: 50, Y: 71}, 4) // radius 21, beyond the search limit

	_, _, err := newSearcher(geo, claims).FindAndClaim(context.Background(), models.Cell{X: 50, Y: 50}, "r-1", nil)
	assert.ErrorIs(t, err, types.ErrNoDriverAvailable)
	assert.Empty(t, claims.attempts)
	assert.Equal(t, 21, geo.calls)
}

func TestFindAndClaim_StoreErrors(t *testing.T) {
	geo, claims := newFakeGeo(), newFakeClaims()
	geo.err = errStore

	_, _, err := newSearcher(geo, claims).FindAndClaim(context.Background(), models.Cell{X: 1, Y: 1}, "r-1", nil)
	assert.ErrorIs(t, err, errStore)

	geo.err = nil
	geo.put(models.Cell{X: 1, Y: 1}, 2)
	claims.err = errStore
	_, _, err = newSearcher(geo, claims).FindAndClaim(context.Background(), models.Cell{X: 1, Y: 1}, "r-1", nil)
	assert.ErrorIs(t, err, errStore)
	assert.NotErrorIs(t, err, types.ErrNoDriverAvailable)
}
