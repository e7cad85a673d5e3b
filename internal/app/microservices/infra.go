package microservices

import (
	"context"
	"fmt"

	"github.com/Temutjin2k/grid-dispatch/config"
	repo "github.com/Temutjin2k/grid-dispatch/internal/adapter/postgres"
	rabbitlog "github.com/Temutjin2k/grid-dispatch/internal/adapter/rabbit"
	redisstore "github.com/Temutjin2k/grid-dispatch/internal/adapter/redis"
	"github.com/Temutjin2k/grid-dispatch/internal/domain/models"
	"github.com/Temutjin2k/grid-dispatch/internal/domain/types"
	"github.com/Temutjin2k/grid-dispatch/internal/service/dispatch"
	"github.com/Temutjin2k/grid-dispatch/migrations"
	"github.com/Temutjin2k/grid-dispatch/pkg/logger"
	wrap "github.com/Temutjin2k/grid-dispatch/pkg/logger/wrapper"
	"github.com/Temutjin2k/grid-dispatch/pkg/postgres"
	"github.com/Temutjin2k/grid-dispatch/pkg/rabbit"
	redisclient "github.com/Temutjin2k/grid-dispatch/pkg/redis"
	"github.com/Temutjin2k/grid-dispatch/pkg/trm"
)

// outcomeStore records dispatch outcomes and answers ride status queries.
type outcomeStore interface {
	Record(ctx context.Context, o models.DispatchOutcome) error
	Status(ctx context.Context, rideID string) (models.DispatchStatus, error)
}

// eventLog is the ride event log as seen by the dispatcher.
type eventLog = dispatch.EventLog

// infra holds the connections shared by a service. Fields are nil when the
// service does not use the backend.
type infra struct {
	redis  *redisclient.Client
	rabbit *rabbit.RabbitMQ
	db     *postgres.PostgreDB

	cfg config.Config
	log logger.Logger
}

func newInfra(ctx context.Context, cfg config.Config, log logger.Logger, withRabbit bool) (*infra, error) {
	in := &infra{cfg: cfg, log: log}

	rc, err := redisclient.New(ctx, cfg.Redis, log)
	if err != nil {
		return nil, fmt.Errorf("setup redis: %w", err)
	}
	in.redis = rc

	if withRabbit && cfg.Dispatch.EventLog == types.EventLogRabbitMQ {
		mq, err := rabbit.New(ctx, cfg.RabbitMQ.GetDSN(), cfg.RabbitMQ.Prefetch, log)
		if err != nil {
			in.close(ctx)
			return nil, fmt.Errorf("setup rabbitmq: %w", err)
		}
		in.rabbit = mq
	}

	return in, nil
}

// outcomes opens the Postgres outcome store, or falls back to a log-only
// recorder when the database is disabled.
func (in *infra) outcomes(ctx context.Context) (outcomeStore, error) {
	if !in.cfg.Database.Enabled {
		in.log.Info(ctx, "database disabled, dispatch outcomes are only logged")
		return dispatch.NewLogRecorder(in.log), nil
	}

	if in.cfg.Database.AutoMigrate {
		if err := postgres.Migrate(migrations.FS, in.cfg.Database.GetMigrationDSN(), postgres.Up); err != nil {
			return nil, fmt.Errorf("migrate database: %w", err)
		}
		in.log.Info(wrap.WithAction(ctx, types.ActionDatabaseMigrated), "database schema is up to date")
	}

	db, err := postgres.New(ctx, in.cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("setup database: %w", err)
	}
	in.db = db

	return repo.NewOutcomeRepo(db.Pool, trm.New(db.Pool)), nil
}

// eventLog returns the ride event log handle of one consumer.
func (in *infra) eventLog(consumer string) eventLog {
	d := in.cfg.Dispatch
	if d.EventLog == types.EventLogRabbitMQ {
		return rabbitlog.NewQueueLog(in.rabbit, in.cfg.RabbitMQ.Queue, consumer, d.ReadBlock, in.log)
	}
	return redisstore.NewStreamLog(in.redis.Rdb, d.Stream, d.Group, consumer, d.ReadBlock)
}

func (in *infra) close(ctx context.Context) {
	if in.rabbit != nil {
		if err := in.rabbit.Close(ctx); err != nil {
			in.log.Warn(ctx, "failed to close rabbitmq", "error", err.Error())
		}
	}
	if in.db != nil {
		in.db.Close()
	}
	if in.redis != nil {
		if err := in.redis.Close(); err != nil {
			in.log.Warn(ctx, "failed to close redis", "error", err.Error())
		}
	}
}
