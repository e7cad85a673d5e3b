package microservices

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Temutjin2k/grid-dispatch/config"
	"github.com/Temutjin2k/grid-dispatch/internal/adapter/http/server"
	redisstore "github.com/Temutjin2k/grid-dispatch/internal/adapter/redis"
	"github.com/Temutjin2k/grid-dispatch/internal/domain/types"
	"github.com/Temutjin2k/grid-dispatch/internal/service/dispatch"
	"github.com/Temutjin2k/grid-dispatch/pkg/logger"
	wrap "github.com/Temutjin2k/grid-dispatch/pkg/logger/wrapper"
)

// DispatchService runs the ride event consumers and the proposal timeout sweeper.
// Its HTTP server only exposes health and metrics.
type DispatchService struct {
	infra       *infra
	dispatchers []*dispatch.Dispatcher
	consumers   []string
	sweeper     *dispatch.Sweeper
	httpServer  *server.API

	cfg config.Config
	log logger.Logger
}

func NewDispatch(ctx context.Context, cfg config.Config, log logger.Logger) (*DispatchService, error) {
	in, err := newInfra(ctx, cfg, log, true)
	if err != nil {
		return nil, err
	}

	outcomes, err := in.outcomes(ctx)
	if err != nil {
		in.close(ctx)
		return nil, err
	}

	rdb := in.redis.Rdb
	geo := redisstore.NewGeoIndex(rdb)
	claims := redisstore.NewClaims(rdb)
	proposals := redisstore.NewProposals(rdb, cfg.Dispatch.SnapshotTTL)
	notifier := redisstore.NewNotifier(rdb, cfg.Dispatch.NotificationsChannel, log)

	dcfg := dispatch.Config{
		Grid:            cfg.GridModel(),
		MaxSearchRadius: cfg.Dispatch.MaxSearchRadius,
		DriverLockTTL:   cfg.Dispatch.DriverLockTTL,
		ProposalTimeout: cfg.Dispatch.ProposalTimeout,
		ErrorBackoff:    cfg.Dispatch.ErrorBackoff,
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "local"
	}

	s := &DispatchService{infra: in, cfg: cfg, log: log}

	// Consumer names must be stable across restarts so pending entries of a
	// crashed worker are replayed by its successor.
	for i := range cfg.Dispatch.Workers {
		consumer := fmt.Sprintf("%s-%s-%d", cfg.Dispatch.ConsumerPrefix, hostname, i)
		s.consumers = append(s.consumers, consumer)
		s.dispatchers = append(s.dispatchers,
			dispatch.NewDispatcher(in.eventLog(consumer), geo, claims, proposals, notifier, outcomes, dcfg, log))
	}

	retries := in.eventLog(cfg.Dispatch.ConsumerPrefix + "-sweeper")
	if err := retries.Ensure(ctx); err != nil {
		in.close(ctx)
		return nil, err
	}

	s.sweeper = dispatch.NewSweeper(proposals, claims, retries, outcomes,
		dispatch.SweeperConfig{
			IdleInterval: cfg.Sweeper.IdleInterval,
			ErrorBackoff: cfg.Sweeper.ErrorBackoff,
			BatchSize:    cfg.Sweeper.BatchSize,
			MaxRetries:   cfg.Dispatch.MaxRetries,
		}, log)

	s.httpServer, err = server.New(types.DispatchService, cfg.Services.DispatchService, log)
	if err != nil {
		in.close(ctx)
		return nil, err
	}

	return s, nil
}

func (s *DispatchService) Start(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	defer func() {
		s.close(context.WithoutCancel(ctx))
		s.log.Info(ctx, "dispatch service closed")
	}()

	errCh := make(chan error, 1)
	s.httpServer.Run(ctx, errCh)

	g, gctx := errgroup.WithContext(ctx)
	for i, d := range s.dispatchers {
		wctx := wrap.WithConsumer(gctx, s.consumers[i])
		g.Go(func() error { return d.Run(wctx) })
	}
	g.Go(func() error { return s.sweeper.Run(gctx) })
	g.Go(func() error {
		select {
		case err := <-errCh:
			return err
		case <-gctx.Done():
			return nil
		}
	})

	s.log.Info(ctx, "dispatch service started", "workers", len(s.dispatchers), "event_log", s.cfg.Dispatch.EventLog)

	err := g.Wait()
	if ctx.Err() != nil {
		s.log.Info(ctx, "shutting down application")
	}
	return err
}

func (s *DispatchService) close(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if err := s.httpServer.Stop(ctx); err != nil {
		s.log.Error(ctx, "failed to shutdown HTTP server", err)
	}

	s.infra.close(ctx)
}
