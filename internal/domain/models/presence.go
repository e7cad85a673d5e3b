package models

import "github.com/Temutjin2k/grid-dispatch/internal/domain/types"

// PresenceUpdate is a driver heartbeat: new status and current cell.
type PresenceUpdate struct {
	DriverID int64
	Status   types.DriverStatus
	Location Cell
}

// PresencePlan is the set of index writes that moves a driver from its current cell.
// Leave is removed from membership, Join (if set) gains the driver with Status and becomes
// the persisted location; a nil Join clears the location.
type PresencePlan struct {
	Leave  *Cell
	Join   *Cell
	Status types.DriverStatus
}
