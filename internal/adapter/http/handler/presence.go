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

type PresenceService interface {
	UpdatePresence(ctx context.Context, u models.PresenceUpdate) error
}

type Presence struct {
	service PresenceService
	l       logger.Logger
}

func NewPresence(service PresenceService, l logger.Logger) *Presence {
	return &Presence{
		service: service,
		l:       l,
	}
}

// Heartbeat handles PUT /drivers/{driver_id}/presence.
func (h *Presence) Heartbeat(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "driver_heartbeat")

	driverID, err := parseDriverID(r)
	if err != nil {
		h.l.Warn(ctx, "invalid driver id", "driver_id", r.PathValue("driver_id"))
		badRequestResponse(w, err.Error())
		return
	}
	ctx = wrap.WithDriverID(ctx, driverID)

	var req dto.PresenceReq
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

	if err := h.service.UpdatePresence(ctx, req.ToModel(driverID)); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to update presence", err)
		serviceErrorResponse(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
