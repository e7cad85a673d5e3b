package redis

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"

	goredis "github.com/go-redis/redis/v8"

	"github.com/Temutjin2k/grid-dispatch/internal/domain/models"
	"github.com/Temutjin2k/grid-dispatch/internal/domain/types"
	wrap "github.com/Temutjin2k/grid-dispatch/pkg/logger/wrapper"
)

// GeoIndex stores each online driver's cell and the reverse cell -> drivers mapping.
// Cells are hashes keyed by driver id with the status as value; locations are "x:y" strings.
type GeoIndex struct {
	rdb *goredis.Client
}

func NewGeoIndex(rdb *goredis.Client) *GeoIndex {
	return &GeoIndex{rdb: rdb}
}

func (g *GeoIndex) SetCell(ctx context.Context, cell models.Cell, driverID int64, status types.DriverStatus) error {
	const op = "GeoIndex.SetCell"

	if err := g.rdb.HSet(ctx, cellKey(cell), driverField(driverID), string(status)).Err(); err != nil {
		return wrap.Error(ctx, fmt.Errorf("%s: %w", op, err))
	}
	return nil
}

func (g *GeoIndex) RemoveFromCell(ctx context.Context, cell models.Cell, driverID int64) error {
	const op = "GeoIndex.RemoveFromCell"

	if err := g.rdb.HDel(ctx, cellKey(cell), driverField(driverID)).Err(); err != nil {
		return wrap.Error(ctx, fmt.Errorf("%s: %w", op, err))
	}
	return nil
}

// MembersOf returns the drivers registered in cell in ascending id order.
func (g *GeoIndex) MembersOf(ctx context.Context, cell models.Cell) ([]int64, error) {
	const op = "GeoIndex.MembersOf"

	fields, err := g.rdb.HKeys(ctx, cellKey(cell)).Result()
	if err != nil {
		return nil, wrap.Error(ctx, fmt.Errorf("%s: %w", op, err))
	}
	return parseMembers(fields), nil
}

// MembersOfCells returns the union of drivers of all cells in one round trip,
// deduplicated and sorted ascending.
func (g *GeoIndex) MembersOfCells(ctx context.Context, cells []models.Cell) ([]int64, error) {
	const op = "GeoIndex.MembersOfCells"

	if len(cells) == 0 {
		return nil, nil
	}

	cmds := make([]*goredis.StringSliceCmd, 0, len(cells))
	_, err := g.rdb.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		for _, c := range cells {
			cmds = append(cmds, pipe.HKeys(ctx, cellKey(c)))
		}
		return nil
	})
	if err != nil {
		return nil, wrap.Error(ctx, fmt.Errorf("%s: %w", op, err))
	}

	var fields []string
	for _, cmd := range cmds {
		fields = append(fields, cmd.Val()...)
	}
	return parseMembers(fields), nil
}

func (g *GeoIndex) GetLocation(ctx context.Context, driverID int64) (models.Cell, bool, error) {
	const op = "GeoIndex.GetLocation"

	raw, err := g.rdb.Get(ctx, locationKey(driverID)).Result()
	if errors.Is(err, goredis.Nil) {
		return models.Cell{}, false, nil
	}
	if err != nil {
		return models.Cell{}, false, wrap.Error(ctx, fmt.Errorf("%s: %w", op, err))
	}

	cell, err := models.ParseCell(raw)
	if err != nil {
		return models.Cell{}, false, wrap.Error(ctx, fmt.Errorf("%s: %w", op, err))
	}
	return cell, true, nil
}

func (g *GeoIndex) SetLocation(ctx context.Context, driverID int64, cell models.Cell) error {
	const op = "GeoIndex.SetLocation"

	if err := g.rdb.Set(ctx, locationKey(driverID), cell.String(), 0).Err(); err != nil {
		return wrap.Error(ctx, fmt.Errorf("%s: %w", op, err))
	}
	return nil
}

func (g *GeoIndex) ClearLocation(ctx context.Context, driverID int64) error {
	const op = "GeoIndex.ClearLocation"

	if err := g.rdb.Del(ctx, locationKey(driverID)).Err(); err != nil {
		return wrap.Error(ctx, fmt.Errorf("%s: %w", op, err))
	}
	return nil
}

// OnlineCount returns the number of drivers with a persisted location across all
// instances writing to this store.
func (g *GeoIndex) OnlineCount(ctx context.Context) (int64, error) {
	const op = "GeoIndex.OnlineCount"

	n, err := g.rdb.Get(ctx, onlineDriversKey).Int64()
	if errors.Is(err, goredis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, wrap.Error(ctx, fmt.Errorf("%s: %w", op, err))
	}
	return n, nil
}

// Relocate reads the driver's location and applies the plan built from it in one
// MULTI/EXEC block, watching the location key. The online counter moves in the
// same block when the driver gains or loses a location. If the location changes between the
// read and the commit, nothing is written and ErrPresenceConflict is returned.
func (g *GeoIndex) Relocate(ctx context.Context, driverID int64, plan func(current *models.Cell) (models.PresencePlan, error)) error {
	const op = "GeoIndex.Relocate"

	key := locationKey(driverID)
	field := driverField(driverID)

	err := g.rdb.Watch(ctx, func(tx *goredis.Tx) error {
		var current *models.Cell

		raw, err := tx.Get(ctx, key).Result()
		switch {
		case errors.Is(err, goredis.Nil):
		case err != nil:
			return err
		default:
			cell, err := models.ParseCell(raw)
			if err != nil {
				return err
			}
			current = &cell
		}

		p, err := plan(current)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			if p.Leave != nil {
				pipe.HDel(ctx, cellKey(*p.Leave), field)
			}
			if p.Join != nil {
				pipe.HSet(ctx, cellKey(*p.Join), field, string(p.Status))
				pipe.Set(ctx, key, p.Join.String(), 0)
			} else {
				pipe.Del(ctx, key)
			}

			switch {
			case current == nil && p.Join != nil:
				pipe.Incr(ctx, onlineDriversKey)
			case current != nil && p.Join == nil:
				pipe.Decr(ctx, onlineDriversKey)
			}
			return nil
		})
		return err
	}, key)

	if errors.Is(err, goredis.TxFailedErr) {
		return wrap.Error(ctx, fmt.Errorf("%s: %w", op, types.ErrPresenceConflict))
	}
	if err != nil {
		return wrap.Error(ctx, fmt.Errorf("%s: %w", op, err))
	}
	return nil
}

func driverField(driverID int64) string {
	return strconv.FormatInt(driverID, 10)
}

// parseMembers converts hash fields to driver ids, dropping duplicates and
// anything that is not a number.
func parseMembers(fields []string) []int64 {
	ids := make([]int64, 0, len(fields))
	for _, f := range fields {
		id, err := strconv.ParseInt(f, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return slices.Compact(ids)
}
