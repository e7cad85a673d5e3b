package dto

import (
	"github.com/Temutjin2k/grid-dispatch/internal/domain/models"
	"github.com/Temutjin2k/grid-dispatch/internal/domain/types"
	"github.com/Temutjin2k/grid-dispatch/pkg/validator"
)

type PresenceReq struct {
	Status   types.DriverStatus `json:"status"`
	Location *LocationReq       `json:"location"`
}

type LocationReq struct {
	X *int `json:"x"`
	Y *int `json:"y"`
}

func (r *PresenceReq) Validate(v *validator.Validator) {
	v.Check(r.Status != "", "status", "must be provided")
	v.Check(r.Status == "" || r.Status.Valid(), "status", "must be one of online, offline, busy")

	if r.Status != types.StatusDriverOnline {
		return
	}

	if r.Location == nil {
		v.AddError("location", "must be provided when going online")
		return
	}
	v.Check(r.Location.X != nil, "location.x", "must be provided")
	v.Check(r.Location.Y != nil, "location.y", "must be provided")
}

func (r *PresenceReq) ToModel(driverID int64) models.PresenceUpdate {
	u := models.PresenceUpdate{DriverID: driverID, Status: r.Status}
	if r.Location != nil && r.Location.X != nil && r.Location.Y != nil {
		u.Location = models.Cell{X: *r.Location.X, Y: *r.Location.Y}
	}
	return u
}
