package models

import (
	"time"

	"github.com/Temutjin2k/grid-dispatch/internal/domain/types"
)

// DispatchOutcome is a fact about a ride's dispatch, written to the ride status store.
type DispatchOutcome struct {
	RideID   string
	Type     types.OutcomeType
	DriverID *int64
	Attempt  int
	Event    *RideEvent
	At       time.Time
}

// DispatchStatus is the latest dispatch outcome of a ride.
type DispatchStatus struct {
	RideID    string            `json:"ride_id"`
	Status    types.OutcomeType `json:"status"`
	DriverID  *int64            `json:"driver_id,omitempty"`
	Attempt   int               `json:"attempt"`
	UpdatedAt time.Time         `json:"updated_at"`
}
