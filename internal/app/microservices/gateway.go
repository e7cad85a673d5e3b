package microservices

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Temutjin2k/grid-dispatch/config"
	"github.com/Temutjin2k/grid-dispatch/internal/adapter/http/handler"
	"github.com/Temutjin2k/grid-dispatch/internal/adapter/http/server"
	redisstore "github.com/Temutjin2k/grid-dispatch/internal/adapter/redis"
	"github.com/Temutjin2k/grid-dispatch/internal/domain/types"
	"github.com/Temutjin2k/grid-dispatch/pkg/logger"
	wrap "github.com/Temutjin2k/grid-dispatch/pkg/logger/wrapper"
	ws "github.com/Temutjin2k/grid-dispatch/pkg/wsHub"
)

// GatewayService delivers proposal notifications to drivers connected over WebSocket.
type GatewayService struct {
	infra      *infra
	hub        *ws.ConnectionHub
	notifier   *redisstore.Notifier
	httpServer *server.API

	// gwCtx outlives the HTTP handlers; cancelling it closes driver sockets.
	gwCtx    context.Context
	gwCancel context.CancelFunc

	gateway *handler.DriverGateway

	cfg config.Config
	log logger.Logger
}

func NewGateway(ctx context.Context, cfg config.Config, log logger.Logger) (*GatewayService, error) {
	in, err := newInfra(ctx, cfg, log, false)
	if err != nil {
		return nil, err
	}

	gwCtx, gwCancel := context.WithCancel(context.WithoutCancel(ctx))
	hub := ws.NewConnHub(log)
	gateway := handler.NewDriverGateway(gwCtx, hub, log)

	httpServer, err := server.New(types.GatewayService, cfg.Services.GatewayService, log, server.WithGateway(gateway))
	if err != nil {
		gwCancel()
		in.close(ctx)
		return nil, err
	}

	return &GatewayService{
		infra:      in,
		hub:        hub,
		notifier:   redisstore.NewNotifier(in.redis.Rdb, cfg.Dispatch.NotificationsChannel, log),
		httpServer: httpServer,
		gwCtx:      gwCtx,
		gwCancel:   gwCancel,
		gateway:    gateway,
		cfg:        cfg,
		log:        log,
	}, nil
}

func (s *GatewayService) Start(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	defer func() {
		s.close(context.WithoutCancel(ctx))
		s.log.Info(ctx, "gateway service closed")
	}()

	errCh := make(chan error, 1)
	s.httpServer.Run(ctx, errCh)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.notifier.Subscribe(wrap.WithAction(gctx, types.ActionDeliverProposal), s.gateway.Deliver)
	})
	g.Go(func() error {
		select {
		case err := <-errCh:
			return err
		case <-gctx.Done():
			return nil
		}
	})

	s.log.Info(ctx, "gateway service started")

	err := g.Wait()
	if ctx.Err() != nil {
		s.log.Info(ctx, "shutting down application")
	}
	return err
}

func (s *GatewayService) close(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	s.gwCancel()
	s.hub.Close()

	if err := s.httpServer.Stop(ctx); err != nil {
		s.log.Error(ctx, "failed to shutdown HTTP server", err)
	}

	s.infra.close(ctx)
}
