package dispatch

import (
	"context"
	"time"

	"github.com/Temutjin2k/grid-dispatch/internal/domain/models"
)

type GeoReader interface {
	MembersOfCells(ctx context.Context, cells []models.Cell) ([]int64, error)
}

type ClaimStore interface {
	TryClaim(ctx context.Context, driverID int64, rideID string, ttl time.Duration) (bool, error)
	ReleaseIfOwnedBy(ctx context.Context, driverID int64, rideID string) (bool, error)
}

type ProposalStore interface {
	Register(ctx context.Context, p models.Proposal, event models.RideEvent) error
	PopExpired(ctx context.Context, now time.Time, limit int) ([]models.Proposal, error)
	Requeue(ctx context.Context, p models.Proposal) error
	Snapshot(ctx context.Context, rideID string) (models.RideEvent, bool, error)
	Forget(ctx context.Context, rideID string) error

	// Park and PopParked hold retry events the event log refused.
	Park(ctx context.Context, event models.RideEvent) error
	PopParked(ctx context.Context, limit int) ([]models.RideEvent, error)
}

// EventLog is an at-least-once ride event log. A delivery that is read and not
// acknowledged is handed to the same consumer again.
type EventLog interface {
	Ensure(ctx context.Context) error
	Read(ctx context.Context) (models.Delivery, error)
	Ack(ctx context.Context, d models.Delivery) error
	Publisher
}

type Publisher interface {
	Publish(ctx context.Context, e models.RideEvent) error
}

// NotificationSink hands a proposal to whatever delivers it to the driver.
// delivered is false when nobody was listening.
type NotificationSink interface {
	Send(ctx context.Context, driverID int64, msg models.ProposalNotification) (delivered bool, err error)
}

type OutcomeRecorder interface {
	Record(ctx context.Context, o models.DispatchOutcome) error
}
