package handler

import (
	"context"
	"net/http"

	"github.com/Temutjin2k/grid-dispatch/internal/adapter/http/handler/dto"
	"github.com/Temutjin2k/grid-dispatch/internal/domain/models"
	"github.com/Temutjin2k/grid-dispatch/pkg/logger"
	wrap "github.com/Temutjin2k/grid-dispatch/pkg/logger/wrapper"
	"github.com/Temutjin2k/grid-dispatch/pkg/validator"
)

type RideService interface {
	Create(ctx context.Context, start, end models.Cell) (models.RideQuote, error)
	Accept(ctx context.Context, rideID string, driverID int64) error
	Status(ctx context.Context, rideID string) (models.DispatchStatus, error)
}

type Ride struct {
	service RideService
	l       logger.Logger
}

func NewRide(service RideService, l logger.Logger) *Ride {
	return &Ride{
		service: service,
		l:       l,
	}
}

// Create handles POST /rides: quotes the trip and hands it to dispatch.
func (h *Ride) Create(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "create_ride")

	var req dto.CreateRideReq
	if err := readJSON(w, r, &req); err != nil {
		h.l.Warn(ctx, "failed to read request JSON data", "error", err.Error())
		badRequestResponse(w, err.Error())
		return
	}

	v := validator.New()
	req.Validate(v)
	if !v.Valid() {
		h.l.Warn(ctx, "invalid request data")
		failedValidationResponse(w, v.Errors)
		return
	}

	start, end := req.Cells()
	quote, err := h.service.Create(ctx, start, end)
	if err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to create ride", err)
		serviceErrorResponse(w, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, quote, nil); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to write response", err)
		return
	}

	h.l.Info(wrap.WithRideID(ctx, quote.RideID), "ride created", "price", quote.Price)
}

// Accept handles POST /rides/{ride_id}/accept.
func (h *Ride) Accept(w http.ResponseWriter, r *http.Request) {
	rideID := r.PathValue("ride_id")
	ctx := wrap.WithRideID(wrap.WithAction(r.Context(), "accept_ride"), rideID)

	var req dto.AcceptRideReq
	if err := readJSON(w, r, &req); err != nil {
		h.l.Warn(ctx, "failed to read request JSON data", "error", err.Error())
		badRequestResponse(w, err.Error())
		return
	}

	v := validator.New()
	req.Validate(v)
	if !v.Valid() {
		h.l.Warn(ctx, "invalid request data")
		failedValidationResponse(w, v.Errors)
		return
	}

	if err := h.service.Accept(ctx, rideID, req.DriverID); err != nil {
		h.l.Warn(ctx, "ride not accepted", "error", err.Error())
		serviceErrorResponse(w, err)
		return
	}

	response := envelope{
		"ride_id":   rideID,
		"driver_id": req.DriverID,
		"status":    "accepted",
	}
	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to write response", err)
	}
}

// Status handles GET /rides/{ride_id}.
func (h *Ride) Status(w http.ResponseWriter, r *http.Request) {
	rideID := r.PathValue("ride_id")
	ctx := wrap.WithRideID(wrap.WithAction(r.Context(), "get_ride_status"), rideID)

	status, err := h.service.Status(ctx, rideID)
	if err != nil {
		if GetCode(err) == http.StatusInternalServerError {
			h.l.Error(wrap.ErrorCtx(ctx, err), "failed to get ride status", err)
		}
		serviceErrorResponse(w, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, status, nil); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to write response", err)
	}
}
