package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"service", "method", "path", "status"},
	)

	HttpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "method", "path", "status"},
	)

	HttpRequestsInFlight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Current number of HTTP requests being processed",
		},
		[]string{"service"},
	)

	// Dispatch metrics
	RideEventsConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_ride_events_consumed_total",
			Help: "Ride events read from the event log by type and handling result",
		},
		[]string{"event", "result"},
	)

	ClaimsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_claims_total",
			Help: "Driver claim attempts by result",
		},
		[]string{"result"},
	)

	SearchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_searches_total",
			Help: "Nearest driver searches by outcome",
		},
		[]string{"outcome"},
	)

	ClaimRadius = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dispatch_claim_radius_cells",
			Help:    "Ring radius at which a driver was claimed",
			Buckets: []float64{0, 1, 2, 3, 5, 8, 13, 20},
		},
	)

	ProposalsExpired = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_proposals_expired_total",
			Help: "Expired proposals handled by the sweeper by result",
		},
		[]string{"result"},
	)

	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_notifications_total",
			Help: "Proposal notifications by delivery result",
		},
		[]string{"result"},
	)

	WebSocketConnectionsGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections_total",
			Help: "Current number of active driver WebSocket connections",
		},
	)
)

// RecordHTTPMetrics records HTTP request metrics
func RecordHTTPMetrics(service, method, path string, statusCode int, duration time.Duration) {
	status := strconv.Itoa(statusCode)
	HttpRequestsTotal.WithLabelValues(service, method, path, status).Inc()
	HttpRequestDuration.WithLabelValues(service, method, path, status).Observe(duration.Seconds())
}

// RecordRideEvent counts one handled ride event.
func RecordRideEvent(event, result string) {
	if event == "" {
		event = "unknown"
	}
	RideEventsConsumed.WithLabelValues(event, result).Inc()
}

// RecordClaim counts one TryClaim call.
func RecordClaim(won bool, err error) {
	switch {
	case err != nil:
		ClaimsTotal.WithLabelValues("error").Inc()
	case won:
		ClaimsTotal.WithLabelValues("won").Inc()
	default:
		ClaimsTotal.WithLabelValues("lost").Inc()
	}
}

// RecordSearch counts a finished search; radius is observed only when a driver was claimed.
func RecordSearch(outcome string, radius int) {
	SearchesTotal.WithLabelValues(outcome).Inc()
	if radius >= 0 {
		ClaimRadius.Observe(float64(radius))
	}
}

// RegisterOnlineDrivers exposes the fleet-wide online driver count. count is called
// on every scrape and should read the shared store.
func RegisterOnlineDrivers(reg prometheus.Registerer, count func() float64) prometheus.GaugeFunc {
	return promauto.With(reg).NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "drivers_online",
			Help: "Drivers currently online in the geo index",
		},
		count,
	)
}
