package ride

import (
	"context"
	"time"

	"github.com/Temutjin2k/grid-dispatch/internal/domain/models"
)

type EventPublisher interface {
	Publish(ctx context.Context, e models.RideEvent) error
}

type Calculator interface {
	Quote(from, to models.Cell) models.Quote
}

// ClaimConfirmer turns a live claim into an accepted hold that keeps the driver
// unclaimable for hold. Confirming the same ride twice succeeds.
type ClaimConfirmer interface {
	Confirm(ctx context.Context, driverID int64, rideID string, hold time.Duration) (bool, error)
}

type PresenceUpdater interface {
	UpdatePresence(ctx context.Context, u models.PresenceUpdate) error
}

type SnapshotStore interface {
	Forget(ctx context.Context, rideID string) error
}

type OutcomeStore interface {
	Record(ctx context.Context, o models.DispatchOutcome) error
	Status(ctx context.Context, rideID string) (models.DispatchStatus, error)
}
