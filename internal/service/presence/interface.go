package presence

import (
	"context"

	"github.com/Temutjin2k/grid-dispatch/internal/domain/models"
)

type GeoIndex interface {
	Relocate(ctx context.Context, driverID int64, plan func(current *models.Cell) (models.PresencePlan, error)) error
}
