package handler

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Temutjin2k/grid-dispatch/internal/domain/models"
	"github.com/Temutjin2k/grid-dispatch/pkg/logger"
)

func testLogger() logger.Logger {
	return logger.New(io.Discard, "handler-test", logger.LevelError)
}

type fakePresence struct {
	updates []models.PresenceUpdate
	err     error
}

func (f *fakePresence) UpdatePresence(_ context.Context, u models.PresenceUpdate) error {
	f.updates = append(f.updates, u)
	return f.err
}

type fakeRides struct {
	quote     models.RideQuote
	createErr error
	accepted  map[string]int64
	acceptErr error
	status    models.DispatchStatus
	statusErr error
}

func (f *fakeRides) Create(_ context.Context, start, end models.Cell) (models.RideQuote, error) {
	if f.createErr != nil {
		return models.RideQuote{}, f.createErr
	}
	q := f.quote
	q.Start, q.End = start, end
	return q, nil
}

func (f *fakeRides) Accept(_ context.Context, rideID string, driverID int64) error {
	if f.acceptErr != nil {
		return f.acceptErr
	}
	if f.accepted == nil {
		f.accepted = make(map[string]int64)
	}
	f.accepted[rideID] = driverID
	return nil
}

func (f *fakeRides) Status(_ context.Context, _ string) (models.DispatchStatus, error) {
	return f.status, f.statusErr
}

// serve routes a single request through a mux so path values are populated.
func serve(t *testing.T, pattern string, h http.HandlerFunc, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc(pattern, h)

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}
