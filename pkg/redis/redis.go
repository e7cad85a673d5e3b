package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"github.com/Temutjin2k/grid-dispatch/internal/domain/types"
	"github.com/Temutjin2k/grid-dispatch/pkg/logger"
	wrap "github.com/Temutjin2k/grid-dispatch/pkg/logger/wrapper"
)

type Config interface {
	GetAddr() string
	GetPassword() string
	GetDB() int
}

// Client wraps the go-redis client shared by all store adapters.
type Client struct {
	Rdb *goredis.Client
	log logger.Logger
}

// New connects to Redis and pings it.
func New(ctx context.Context, cfg Config, log logger.Logger) (*Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        cfg.GetAddr(),
		Password:    cfg.GetPassword(),
		DB:          cfg.GetDB(),
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.GetAddr(), err)
	}

	log.Info(wrap.WithAction(ctx, types.ActionRedisConnected), "connected to redis", "addr", cfg.GetAddr())

	return &Client{Rdb: rdb, log: log}, nil
}

// Close closes the underlying connection pool.
func (c *Client) Close() error {
	return c.Rdb.Close()
}
