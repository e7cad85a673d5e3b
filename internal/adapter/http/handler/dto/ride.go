package dto

import (
	"github.com/Temutjin2k/grid-dispatch/internal/domain/models"
	"github.com/Temutjin2k/grid-dispatch/pkg/validator"
)

type CreateRideReq struct {
	StartX *int `json:"start_x"`
	StartY *int `json:"start_y"`
	EndX   *int `json:"end_x"`
	EndY   *int `json:"end_y"`
}

func (r *CreateRideReq) Validate(v *validator.Validator) {
	v.Check(r.StartX != nil, "start_x", "must be provided")
	v.Check(r.StartY != nil, "start_y", "must be provided")
	v.Check(r.EndX != nil, "end_x", "must be provided")
	v.Check(r.EndY != nil, "end_y", "must be provided")
}

// Cells must only be called after Validate passed.
func (r *CreateRideReq) Cells() (start, end models.Cell) {
	return models.Cell{X: *r.StartX, Y: *r.StartY}, models.Cell{X: *r.EndX, Y: *r.EndY}
}

type AcceptRideReq struct {
	DriverID int64 `json:"driver_id"`
}

func (r *AcceptRideReq) Validate(v *validator.Validator) {
	v.Check(r.DriverID > 0, "driver_id", "must be a positive integer")
}
