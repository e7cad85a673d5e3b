package microservices

import (
	"context"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Temutjin2k/grid-dispatch/config"
	"github.com/Temutjin2k/grid-dispatch/internal/adapter/http/server"
	redisstore "github.com/Temutjin2k/grid-dispatch/internal/adapter/redis"
	"github.com/Temutjin2k/grid-dispatch/internal/domain/types"
	ridecalc "github.com/Temutjin2k/grid-dispatch/internal/service/calculator"
	"github.com/Temutjin2k/grid-dispatch/internal/service/presence"
	"github.com/Temutjin2k/grid-dispatch/internal/service/ride"
	"github.com/Temutjin2k/grid-dispatch/pkg/logger"
	"github.com/Temutjin2k/grid-dispatch/pkg/metrics"
)

// APIService serves driver heartbeats, ride intake and proposal acceptance.
type APIService struct {
	infra      *infra
	httpServer *server.API

	cfg config.Config
	log logger.Logger
}

func NewAPI(ctx context.Context, cfg config.Config, log logger.Logger) (*APIService, error) {
	in, err := newInfra(ctx, cfg, log, true)
	if err != nil {
		return nil, err
	}

	outcomes, err := in.outcomes(ctx)
	if err != nil {
		in.close(ctx)
		return nil, err
	}

	events := in.eventLog(cfg.Mode.String())
	if err := events.Ensure(ctx); err != nil {
		in.close(ctx)
		return nil, err
	}

	grid := cfg.GridModel()
	rdb := in.redis.Rdb

	geo := redisstore.NewGeoIndex(rdb)
	presenceManager := presence.NewManager(geo, grid, log)
	metrics.RegisterOnlineDrivers(prometheus.DefaultRegisterer, func() float64 {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		n, err := geo.OnlineCount(ctx)
		if err != nil {
			log.Warn(ctx, "failed to read online driver count", "error", err.Error())
			return math.NaN()
		}
		return float64(n)
	})
	calc := ridecalc.New(ridecalc.Tariff{
		BaseFare:       cfg.Pricing.BaseFare,
		PerCell:        cfg.Pricing.PerCell,
		SecondsPerCell: cfg.Pricing.SecondsPerCell,
	})
	rideService := ride.NewRideService(
		events,
		calc,
		redisstore.NewClaims(rdb),
		presenceManager,
		redisstore.NewProposals(rdb, cfg.Dispatch.SnapshotTTL),
		outcomes,
		grid,
		cfg.Dispatch.DriverLockTTL,
		log,
	)

	httpServer, err := server.New(types.APIService, cfg.Services.APIService, log,
		server.WithPresence(presenceManager, log),
		server.WithRides(rideService, log),
	)
	if err != nil {
		in.close(ctx)
		return nil, err
	}

	return &APIService{
		infra:      in,
		httpServer: httpServer,
		cfg:        cfg,
		log:        log,
	}, nil
}

func (s *APIService) Start(ctx context.Context) error {
	defer func() {
		s.close(ctx)
		s.log.Info(ctx, "api service closed")
	}()

	errCh := make(chan error, 1)
	s.httpServer.Run(ctx, errCh)

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	s.log.Info(ctx, "api service started")
	select {
	case errRun := <-errCh:
		return errRun
	case sig := <-shutdownCh:
		s.log.Info(ctx, "shutting down application", "signal", sig.String())
		return nil
	}
}

func (s *APIService) close(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if err := s.httpServer.Stop(ctx); err != nil {
		s.log.Error(ctx, "failed to shutdown HTTP server", err)
	}

	s.infra.close(ctx)
}
