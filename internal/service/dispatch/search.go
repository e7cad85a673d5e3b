package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/Temutjin2k/grid-dispatch/internal/domain/models"
	"github.com/Temutjin2k/grid-dispatch/internal/domain/types"
	"github.com/Temutjin2k/grid-dispatch/pkg/logger"
	wrap "github.com/Temutjin2k/grid-dispatch/pkg/logger/wrapper"
	"github.com/Temutjin2k/grid-dispatch/pkg/metrics"
)

// Searcher finds and claims the nearest free driver by expanding rings around a cell.
type Searcher struct {
	geo       GeoReader
	claims    ClaimStore
	grid      models.Grid
	maxRadius int
	lockTTL   time.Duration
	l         logger.Logger
}

func NewSearcher(geo GeoReader, claims ClaimStore, grid models.Grid, maxRadius int, lockTTL time.Duration, l logger.Logger) *Searcher {
	return &Searcher{
		geo:       geo,
		claims:    claims,
		grid:      grid,
		maxRadius: maxRadius,
		lockTTL:   lockTTL,
		l:         l,
	}
}

// FindAndClaim claims the first driver, in ascending id order, of the nearest ring
// that has a claimable driver not rejected by excluded. It returns the driver and
// the ring radius, or types.ErrNoDriverAvailable once MaxSearchRadius is exhausted.
// Any other error is a store failure and no claim is held.
func (s *Searcher) FindAndClaim(ctx context.Context, start models.Cell, rideID string, excluded func(driverID int64) bool) (int64, int, error) {
	const op = "Searcher.FindAndClaim"

	for r := 0; r <= s.maxRadius; r++ {
		cells := RingCells(start, r, s.grid)
		if len(cells) == 0 {
			continue
		}

		candidates, err := s.geo.MembersOfCells(ctx, cells)
		if err != nil {
			return 0, r, wrap.Error(ctx, fmt.Errorf("%s: radius %d: %w", op, r, err))
		}

		for _, driverID := range candidates {
			if excluded != nil && excluded(driverID) {
				continue
			}

			ok, err := s.claims.TryClaim(ctx, driverID, rideID, s.lockTTL)
			metrics.RecordClaim(ok, err)
			if err != nil {
				return 0, r, wrap.Error(wrap.WithDriverID(ctx, driverID), fmt.Errorf("%s: %w", op, err))
			}
			if ok {
				return driverID, r, nil
			}

			s.l.Debug(ctx, "driver already claimed", "driver", driverID, "radius", r)
		}
	}

	return 0, s.maxRadius, types.ErrNoDriverAvailable
}
