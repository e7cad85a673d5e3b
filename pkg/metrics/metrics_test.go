package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordClaim(t *testing.T) {
	before := map[string]float64{
		"won":   testutil.ToFloat64(ClaimsTotal.WithLabelValues("won")),
		"lost":  testutil.ToFloat64(ClaimsTotal.WithLabelValues("lost")),
		"error": testutil.ToFloat64(ClaimsTotal.WithLabelValues("error")),
	}

	RecordClaim(true, nil)
	RecordClaim(false, nil)
	RecordClaim(false, nil)
	RecordClaim(false, errors.New("boom"))

	assert.Equal(t, before["won"]+1, testutil.ToFloat64(ClaimsTotal.WithLabelValues("won")))
	assert.Equal(t, before["lost"]+2, testutil.ToFloat64(ClaimsTotal.WithLabelValues("lost")))
	assert.Equal(t, before["error"]+1, testutil.ToFloat64(ClaimsTotal.WithLabelValues("error")))
}

func TestRecordRideEvent_UnknownType(t *testing.T) {
	before := testutil.ToFloat64(RideEventsConsumed.WithLabelValues("unknown", "dropped"))
	RecordRideEvent("", "dropped")
	assert.Equal(t, before+1, testutil.ToFloat64(RideEventsConsumed.WithLabelValues("unknown", "dropped")))
}

func TestRegisterOnlineDrivers(t *testing.T) {
	reg := prometheus.NewRegistry()
	online := 3.0

	gauge := RegisterOnlineDrivers(reg, func() float64 { return online })
	assert.Equal(t, 3.0, testutil.ToFloat64(gauge))

	online = 5
	assert.Equal(t, 5.0, testutil.ToFloat64(gauge))

	n, err := testutil.GatherAndCount(reg, "drivers_online")
	assert.NoError(t, err)
	assert.Equal(t, 1, n)
}
