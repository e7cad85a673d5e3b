package dispatch

import (
	"context"

	"github.com/Temutjin2k/grid-dispatch/internal/domain/models"
	"github.com/Temutjin2k/grid-dispatch/internal/domain/types"
	"github.com/Temutjin2k/grid-dispatch/pkg/logger"
)

// LogRecorder writes dispatch outcomes to the log. It stands in for the status
// store when the database is disabled.
type LogRecorder struct {
	l logger.Logger
}

func NewLogRecorder(l logger.Logger) *LogRecorder {
	return &LogRecorder{l: l}
}

func (r *LogRecorder) Record(ctx context.Context, o models.DispatchOutcome) error {
	args := []any{"outcome", o.Type.String(), "attempt", o.Attempt}
	if o.DriverID != nil {
		args = append(args, "driver", *o.DriverID)
	}
	r.l.Info(ctx, "dispatch outcome", args...)
	return nil
}

func (r *LogRecorder) Status(_ context.Context, _ string) (models.DispatchStatus, error) {
	return models.DispatchStatus{}, types.ErrRideNotFound
}
