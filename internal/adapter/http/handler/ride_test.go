package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Temutjin2k/grid-dispatch/internal/domain/models"
	"github.com/Temutjin2k/grid-dispatch/internal/domain/types"
)

func TestCreateRide(t *testing.T) {
	svc := &fakeRides{quote: models.RideQuote{
		RideID: "ride-1",
		Quote:  models.Quote{Distance: 7, ETASeconds: 70, Price: 85},
	}}
	h := NewRide(svc, testLogger())

	rec := serve(t, "POST /rides", h.Create, http.MethodPost, "/rides",
		`{"start_x":5,"start_y":9,"end_x":8,"end_y":13}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var got models.RideQuote
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "ride-1", got.RideID)
	assert.Equal(t, models.Cell{X: 5, Y: 9}, got.Start)
	assert.Equal(t, models.Cell{X: 8, Y: 13}, got.End)
	assert.Equal(t, 85.0, got.Price)
}

func TestCreateRideRejectsBadInput(t *testing.T) {
	cases := []struct {
		name     string
		body     string
		err      error
		wantCode int
	}{
		{name: "missing coordinate", body: `{"start_x":5,"start_y":9,"end_x":8}`, wantCode: http.StatusUnprocessableEntity},
		{name: "string coordinate", body: `{"start_x":"5","start_y":9,"end_x":8,"end_y":1}`, wantCode: http.StatusBadRequest},
		{name: "empty body", body: ``, wantCode: http.StatusBadRequest},
		{name: "outside grid", body: `{"start_x":-1,"start_y":9,"end_x":8,"end_y":1}`, err: types.ErrInvalidCell, wantCode: http.StatusUnprocessableEntity},
		{name: "publish failure", body: `{"start_x":1,"start_y":9,"end_x":8,"end_y":1}`, err: errors.New("redis down"), wantCode: http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewRide(&fakeRides{createErr: tc.err}, testLogger())
			rec := serve(t, "POST /rides", h.Create, http.MethodPost, "/rides", tc.body)
			assert.Equal(t, tc.wantCode, rec.Code, rec.Body.String())
			assert.NotContains(t, rec.Body.String(), "redis down")
		})
	}
}

func TestAcceptRide(t *testing.T) {
	const pattern = "POST /rides/{ride_id}/accept"

	t.Run("accepted", func(t *testing.T) {
		svc := &fakeRides{}
		h := NewRide(svc, testLogger())

		rec := serve(t, pattern, h.Accept, http.MethodPost, "/rides/ride-1/accept", `{"driver_id":42}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, int64(42), svc.accepted["ride-1"])
	})

	t.Run("claim no longer held", func(t *testing.T) {
		h := NewRide(&fakeRides{acceptErr: types.ErrProposalNotActive}, testLogger())

		rec := serve(t, pattern, h.Accept, http.MethodPost, "/rides/ride-1/accept", `{"driver_id":42}`)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("missing driver", func(t *testing.T) {
		h := NewRide(&fakeRides{}, testLogger())

		rec := serve(t, pattern, h.Accept, http.MethodPost, "/rides/ride-1/accept", `{}`)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})
}

func TestRideStatus(t *testing.T) {
	const pattern = "GET /rides/{ride_id}"
	driverID := int64(3)

	t.Run("known ride", func(t *testing.T) {
		h := NewRide(&fakeRides{status: models.DispatchStatus{
			RideID:    "ride-1",
			Status:    types.OutcomeDriverProposed,
			DriverID:  &driverID,
			UpdatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		}}, testLogger())

		rec := serve(t, pattern, h.Status, http.MethodGet, "/rides/ride-1", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var got models.DispatchStatus
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, types.OutcomeDriverProposed, got.Status)
		require.NotNil(t, got.DriverID)
		assert.Equal(t, driverID, *got.DriverID)
	})

	t.Run("unknown ride", func(t *testing.T) {
		h := NewRide(&fakeRides{statusErr: types.ErrRideNotFound}, testLogger())

		rec := serve(t, pattern, h.Status, http.MethodGet, "/rides/nope", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
