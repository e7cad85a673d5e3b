package ride

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Temutjin2k/grid-dispatch/internal/domain/models"
	"github.com/Temutjin2k/grid-dispatch/internal/domain/types"
	"github.com/Temutjin2k/grid-dispatch/pkg/logger"
	wrap "github.com/Temutjin2k/grid-dispatch/pkg/logger/wrapper"
)

const presenceAttempts = 3

// RideService is the intake side of dispatch: it creates ride events and settles
// accepted proposals.
type RideService struct {
	events    EventPublisher
	calc      Calculator
	claims    ClaimConfirmer
	presence  PresenceUpdater
	snapshots SnapshotStore
	outcomes  OutcomeStore
	grid      models.Grid
	hold      time.Duration
	logger    logger.Logger

	now   func() time.Time
	newID func() string
}

func NewRideService(
	events EventPublisher,
	calc Calculator,
	claims ClaimConfirmer,
	presence PresenceUpdater,
	snapshots SnapshotStore,
	outcomes OutcomeStore,
	grid models.Grid,
	hold time.Duration,
	logger logger.Logger,
) *RideService {
	return &RideService{
		events:    events,
		calc:      calc,
		claims:    claims,
		presence:  presence,
		snapshots: snapshots,
		outcomes:  outcomes,
		grid:      grid,
		hold:      hold,
		logger:    logger,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Create prices the ride, assigns it an id and publishes OrderCreated.
func (s *RideService) Create(ctx context.Context, start, end models.Cell) (models.RideQuote, error) {
	const op = "RideService.Create"
	ctx = wrap.WithAction(ctx, types.ActionCreateRide)

	if !s.grid.Contains(start) {
		return models.RideQuote{}, wrap.Error(ctx, fmt.Errorf("%s: start %s: %w", op, start, types.ErrInvalidCell))
	}
	if !s.grid.Contains(end) {
		return models.RideQuote{}, wrap.Error(ctx, fmt.Errorf("%s: end %s: %w", op, end, types.ErrInvalidCell))
	}

	rideID := s.newID()
	ctx = wrap.WithRideID(ctx, rideID)

	quote := s.calc.Quote(start, end)
	event := models.RideEvent{
		Event:  types.EventOrderCreated,
		RideID: rideID,
		StartX: start.X,
		StartY: start.Y,
		EndX:   end.X,
		EndY:   end.Y,
		Price:  quote.Price,
	}

	if err := s.events.Publish(ctx, event); err != nil {
		return models.RideQuote{}, wrap.Error(ctx, fmt.Errorf("%s: publish: %w", op, err))
	}

	s.logger.Info(ctx, "ride created", "start", start.String(), "end", end.String(), "price", quote.Price)

	return models.RideQuote{
		RideID: rideID,
		Start:  start,
		End:    end,
		Quote:  quote,
	}, nil
}

// Accept settles the driver's proposal for the ride. It fails with
// ErrProposalNotActive if the claim has expired or belongs to another ride.
//
// The claim is confirmed into an accepted hold before the driver leaves the index,
// so no search can claim the driver in between and the sweeper no longer treats
// the proposal as outstanding. The hold lapses on its own once the driver is busy.
// If marking the driver busy fails the call returns an error and can be repeated.
func (s *RideService) Accept(ctx context.Context, rideID string, driverID int64) error {
	const op = "RideService.Accept"
	ctx = wrap.WithDriverID(wrap.WithRideID(wrap.WithAction(ctx, types.ActionAcceptProposal), rideID), driverID)

	if strings.TrimSpace(rideID) == "" {
		return wrap.Error(ctx, fmt.Errorf("%s: %w", op, types.ErrMissingRideID))
	}
	if driverID <= 0 {
		return wrap.Error(ctx, fmt.Errorf("%s: %w", op, types.ErrInvalidDriverID))
	}

	confirmed, err := s.claims.Confirm(ctx, driverID, rideID, s.hold)
	if err != nil {
		return wrap.Error(ctx, fmt.Errorf("%s: %w", op, err))
	}
	if !confirmed {
		return wrap.Error(ctx, fmt.Errorf("%s: %w", op, types.ErrProposalNotActive))
	}

	busy := models.PresenceUpdate{DriverID: driverID, Status: types.StatusDriverBusy}
	for attempt := 1; ; attempt++ {
		err = s.presence.UpdatePresence(ctx, busy)
		if err == nil || !errors.Is(err, types.ErrPresenceConflict) || attempt == presenceAttempts {
			break
		}
	}
	if err != nil {
		return wrap.Error(ctx, fmt.Errorf("%s: mark driver busy: %w", op, err))
	}

	if err := s.outcomes.Record(ctx, models.DispatchOutcome{
		RideID:   rideID,
		Type:     types.OutcomeDriverAccepted,
		DriverID: &driverID,
		At:       s.now(),
	}); err != nil {
		s.logger.Error(wrap.ErrorCtx(ctx, err), "failed to record acceptance", err)
	}

	if err := s.snapshots.Forget(ctx, rideID); err != nil {
		s.logger.Warn(ctx, "failed to drop ride snapshot", "error", err.Error())
	}

	s.logger.Info(ctx, "proposal accepted")
	return nil
}

// Status returns the latest dispatch outcome of the ride.
func (s *RideService) Status(ctx context.Context, rideID string) (models.DispatchStatus, error) {
	const op = "RideService.Status"

	status, err := s.outcomes.Status(ctx, rideID)
	if err != nil {
		return models.DispatchStatus{}, wrap.Error(ctx, fmt.Errorf("%s: %w", op, err))
	}
	return status, nil
}
