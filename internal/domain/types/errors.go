package types

import "errors"

var (
	ErrInvalidCell         = errors.New("cell is outside of the city grid")
	ErrInvalidDriverID     = errors.New("invalid driver id")
	ErrInvalidDriverStatus = errors.New("invalid driver status")
	ErrPresenceConflict    = errors.New("driver presence changed concurrently, retry with the latest state")

	ErrInvalidEvent      = errors.New("invalid ride event")
	ErrMissingRideID     = errors.New("ride id is missing")
	ErrNoDriverAvailable = errors.New("no driver available")
	ErrProposalNotActive = errors.New("proposal is not active for this driver")
	ErrRideNotFound      = errors.New("ride not found")

	ErrNoGroup = errors.New("consumer group does not exist")
)

// ErrNoEvent is returned by an event log read that timed out without a delivery.
var ErrNoEvent = errors.New("no ride event available")
