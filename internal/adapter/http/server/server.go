package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/handlers"

	"github.com/Temutjin2k/grid-dispatch/internal/adapter/http/handler"
	"github.com/Temutjin2k/grid-dispatch/internal/adapter/http/middleware"
	"github.com/Temutjin2k/grid-dispatch/internal/domain/types"
	"github.com/Temutjin2k/grid-dispatch/pkg/logger"
	wrap "github.com/Temutjin2k/grid-dispatch/pkg/logger/wrapper"
)

const serverIPAddress = "%s:%s"

type API struct {
	mode   types.ServiceMode
	mux    *http.ServeMux
	server *http.Server
	routes *routeHandlers
	m      *middleware.Middleware

	addr string
	log  logger.Logger
}

type routeHandlers struct {
	health   *handler.Health
	presence *handler.Presence
	ride     *handler.Ride
	gateway  *handler.DriverGateway
}

// Option attaches the handlers a mode serves.
type Option func(h *routeHandlers)

func WithPresence(svc handler.PresenceService, l logger.Logger) Option {
	return func(h *routeHandlers) { h.presence = handler.NewPresence(svc, l) }
}

func WithRides(svc handler.RideService, l logger.Logger) Option {
	return func(h *routeHandlers) { h.ride = handler.NewRide(svc, l) }
}

func WithGateway(gw *handler.DriverGateway) Option {
	return func(h *routeHandlers) { h.gateway = gw }
}

// New builds the HTTP server of the given mode listening on port.
func New(mode types.ServiceMode, port string, logger logger.Logger, opts ...Option) (*API, error) {
	routes := &routeHandlers{health: handler.NewHealth(mode.String(), logger)}
	for _, opt := range opts {
		opt(routes)
	}

	switch mode {
	case types.APIService:
		if routes.presence == nil || routes.ride == nil {
			return nil, errors.New("api service requires presence and ride handlers")
		}
	case types.GatewayService:
		if routes.gateway == nil {
			return nil, errors.New("gateway service requires the driver gateway")
		}
	case types.DispatchService:
	default:
		return nil, fmt.Errorf("invalid mode: %s", mode)
	}

	api := &API{
		mode:   mode,
		mux:    http.NewServeMux(),
		routes: routes,
		m:      middleware.NewMiddleware(logger),
		addr:   fmt.Sprintf(serverIPAddress, "0.0.0.0", port),
		log:    logger,
	}

	api.setupRoutes()

	api.server = &http.Server{
		Addr:              api.addr,
		Handler:           api.withMiddleware(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	return api, nil
}

// Handler exposes the full middleware chain.
func (a *API) Handler() http.Handler {
	return a.server.Handler
}

func (a *API) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	ctx = wrap.WithAction(ctx, "http_server_stop")

	a.log.Debug(ctx, "shutting down HTTP server...", "address", a.addr)
	if err := a.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("error shutting down server: %w", err)
	}
	a.log.Debug(ctx, "shutting down HTTP server completed")

	return nil
}

func (a *API) Run(ctx context.Context, errCh chan<- error) {
	go func() {
		ctx = wrap.WithAction(ctx, "http_server_start")
		a.log.Info(ctx, "started http server", "address", a.addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("failed to start HTTP server: %w", err)
			return
		}
	}()
}

// withMiddleware applies middlewares to the mux. Metrics sits next to the mux
// so the matched route pattern is visible to it.
func (a *API) withMiddleware() http.Handler {
	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", middleware.RequestIDHeader}),
	)

	return a.m.Recover(a.m.RequestID(cors(a.m.Logging(a.m.Metrics(a.mode.String())(a.mux)))))
}
