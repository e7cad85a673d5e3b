package server

import (
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Temutjin2k/grid-dispatch/internal/domain/types"
)

// setupRoutes - setups http routes
func (a *API) setupRoutes() {
	a.mux.HandleFunc("GET /health", a.routes.health.HealthCheck)
	a.mux.Handle("GET /metrics", promhttp.Handler())

	switch a.mode {
	case types.APIService:
		a.setupAPIRoutes()
	case types.GatewayService:
		a.setupGatewayRoutes()
	}
}

// setupAPIRoutes setups routes for the api service
func (a *API) setupAPIRoutes() {
	// Driver heartbeat: status and cell
	a.mux.HandleFunc("PUT /drivers/{driver_id}/presence", a.routes.presence.Heartbeat)

	a.mux.HandleFunc("POST /rides", a.routes.ride.Create)
	a.mux.HandleFunc("POST /rides/{ride_id}/accept", a.routes.ride.Accept)
	a.mux.HandleFunc("GET /rides/{ride_id}", a.routes.ride.Status)
}

// setupGatewayRoutes setups routes for the gateway service
func (a *API) setupGatewayRoutes() {
	a.mux.HandleFunc("GET /ws/drivers/{driver_id}", a.routes.gateway.ServeDriverWS)
}
