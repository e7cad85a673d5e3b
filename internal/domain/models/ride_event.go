package models

import (
	"fmt"
	"slices"
	"strings"

	"github.com/Temutjin2k/grid-dispatch/internal/domain/types"
)

// RideEvent is an immutable request to find a driver for a ride.
// OrderCreated events come from ride intake, RetrySearch events from the timeout sweeper.
type RideEvent struct {
	Event    types.EventType `json:"event"`
	RideID   string          `json:"ride_id"`
	StartX   int             `json:"start_x"`
	StartY   int             `json:"start_y"`
	EndX     int             `json:"end_x"`
	EndY     int             `json:"end_y"`
	Price    float64         `json:"price"`
	Excluded []int64         `json:"excluded_driver_ids,omitempty"`
	Attempt  int             `json:"attempt"`
}

func (e RideEvent) Start() Cell {
	return Cell{X: e.StartX, Y: e.StartY}
}

func (e RideEvent) End() Cell {
	return Cell{X: e.EndX, Y: e.EndY}
}

// Excludes reports whether driverID must not be proposed this ride.
func (e RideEvent) Excludes(driverID int64) bool {
	return slices.Contains(e.Excluded, driverID)
}

// Retry builds the follow-up event after driverID failed to answer a proposal.
func (e RideEvent) Retry(driverID int64) RideEvent {
	next := e
	next.Event = types.EventRetrySearch
	next.Attempt = e.Attempt + 1
	next.Excluded = slices.Clone(e.Excluded)
	if !slices.Contains(next.Excluded, driverID) {
		next.Excluded = append(next.Excluded, driverID)
	}
	slices.Sort(next.Excluded)
	return next
}

// Validate checks that the event can ever be dispatched on grid g.
func (e RideEvent) Validate(g Grid) error {
	if strings.TrimSpace(e.RideID) == "" {
		return fmt.Errorf("%w: %w", types.ErrInvalidEvent, types.ErrMissingRideID)
	}
	if !g.Contains(e.Start()) {
		return fmt.Errorf("%w: start %s: %w", types.ErrInvalidEvent, e.Start(), types.ErrInvalidCell)
	}
	if !g.Contains(e.End()) {
		return fmt.Errorf("%w: end %s: %w", types.ErrInvalidEvent, e.End(), types.ErrInvalidCell)
	}
	return nil
}
