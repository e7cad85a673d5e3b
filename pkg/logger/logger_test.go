package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	wrap "github.com/Temutjin2k/grid-dispatch/pkg/logger/wrapper"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec), buf.String())
	return rec
}

func TestLoggerInjectsContext(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "dispatch-service", LevelDebug)

	ctx := wrap.WithDriverID(wrap.WithRideID(wrap.WithAction(context.Background(), "dispatch_ride"), "ride-1"), 42)
	l.Info(ctx, "driver claimed", "radius", 2)

	rec := decodeLine(t, &buf)
	assert.Equal(t, "driver claimed", rec["message"])
	assert.Equal(t, "dispatch-service", rec["service"])
	assert.Equal(t, "dispatch_ride", rec["action"])
	assert.Equal(t, "ride-1", rec["ride_id"])
	assert.Equal(t, "42", rec["driver_id"])
	assert.EqualValues(t, 2, rec["radius"])
	assert.Contains(t, rec, "timestamp")
	assert.Contains(t, rec, "hostname")
}

func TestLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "svc", LevelWarn)

	l.Info(context.Background(), "hidden")
	assert.Zero(t, buf.Len())

	l.Warn(context.Background(), "shown")
	assert.NotZero(t, buf.Len())
}

func TestErrorCarriesContextOfFailurePoint(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "svc", LevelDebug)

	inner := wrap.WithRideID(wrap.WithAction(context.Background(), "sweep_proposals"), "ride-9")
	err := wrap.Error(inner, errors.New("redis down"))
	err = fmt.Errorf("outer: %w", err)

	outer := wrap.WithConsumer(context.Background(), "dispatcher-0")
	l.Error(wrap.ErrorCtx(outer, err), "sweep failed", err)

	rec := decodeLine(t, &buf)
	assert.Equal(t, "sweep_proposals", rec["action"])
	assert.Equal(t, "ride-9", rec["ride_id"])
	assert.Equal(t, "dispatcher-0", rec["consumer"])

	errGroup, ok := rec["error"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "outer: redis down", errGroup["msg"])
}

func TestValidateLogLevel(t *testing.T) {
	for _, lvl := range []string{LevelDebug, LevelInfo, LevelWarn, LevelError} {
		assert.True(t, ValidateLogLevel(lvl), lvl)
	}
	assert.False(t, ValidateLogLevel("TRACE"))
}
