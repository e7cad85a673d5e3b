package presence

import (
	"context"
	"fmt"

	"github.com/Temutjin2k/grid-dispatch/internal/domain/models"
	"github.com/Temutjin2k/grid-dispatch/internal/domain/types"
	"github.com/Temutjin2k/grid-dispatch/pkg/logger"
	wrap "github.com/Temutjin2k/grid-dispatch/pkg/logger/wrapper"
)

// Manager is the only writer of driver locations and cell membership.
type Manager struct {
	index GeoIndex
	grid  models.Grid
	l     logger.Logger
}

func NewManager(index GeoIndex, grid models.Grid, l logger.Logger) *Manager {
	return &Manager{index: index, grid: grid, l: l}
}

// UpdatePresence applies a heartbeat. An online driver is moved to the reported
// cell; offline and busy drivers are removed from the index. Repeating the same
// update leaves the index unchanged.
func (m *Manager) UpdatePresence(ctx context.Context, u models.PresenceUpdate) error {
	const op = "Manager.UpdatePresence"
	ctx = wrap.WithDriverID(wrap.WithAction(ctx, types.ActionUpdatePresence), u.DriverID)

	if err := m.validate(u); err != nil {
		return wrap.Error(ctx, fmt.Errorf("%s: %w", op, err))
	}

	err := m.index.Relocate(ctx, u.DriverID, func(current *models.Cell) (models.PresencePlan, error) {
		plan := models.PresencePlan{Leave: current}
		if u.Status == types.StatusDriverOnline {
			cell := u.Location
			plan.Join = &cell
			plan.Status = u.Status
		}
		return plan, nil
	})
	if err != nil {
		return wrap.Error(ctx, fmt.Errorf("%s: %w", op, err))
	}

	m.l.Debug(ctx, "presence updated", "status", u.Status, "cell", u.Location.String())
	return nil
}

func (m *Manager) validate(u models.PresenceUpdate) error {
	if u.DriverID <= 0 {
		return types.ErrInvalidDriverID
	}
	if !u.Status.Valid() {
		return fmt.Errorf("%w: %q", types.ErrInvalidDriverStatus, u.Status)
	}
	if u.Status == types.StatusDriverOnline && !m.grid.Contains(u.Location) {
		return fmt.Errorf("%w: %s", types.ErrInvalidCell, u.Location)
	}
	return nil
}
