package redis

import (
	"context"
	"io"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/go-redis/redis/v8"

	"github.com/Temutjin2k/grid-dispatch/pkg/logger"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return mr, rdb
}

func testLogger() logger.Logger {
	return logger.New(io.Discard, "redis-test", logger.LevelError)
}

var ctx = context.Background()

func goredisClient(t *testing.T, addr string) *goredis.Client {
	t.Helper()

	rdb := goredis.NewClient(&goredis.Options{Addr: addr})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}
