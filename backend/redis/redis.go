package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"

	"github.com/cschleiden/go-orchestrations/backend"
	"github.com/cschleiden/go-orchestrations/backend/metrics"
	"github.com/cschleiden/go-orchestrations/internal/metrickeys"
)

var _ backend.Backend = (*redisBackend)(nil)

func NewRedisBackend(client redis.UniversalClient, opts ...RedisBackendOption) (*redisBackend, error) {
	bo := backend.ApplyOptions()

	// Default options
	options := &RedisOptions{
		Options: &bo,
	}

	for _, opt := range opts {
		opt(options)
	}

	rb := &redisBackend{
		rdb:     client,
		options: options,
		keys:    newKeys(options.KeyPrefix + options.TaskHub),
	}

	// Preload scripts here. Usually redis-go attempts to execute them first, and if redis doesn't know
	// them, loads them. Loading eagerly surfaces connection problems on startup.
	ctx := context.Background()
	cmds := map[string]*redis.StringCmd{
		"dequeueCmd":     dequeueCmd.Load(ctx, rb.rdb),
		"extendLeaseCmd": extendLeaseCmd.Load(ctx, rb.rdb),
	}
	for name, cmd := range cmds {
		if cmd.Err() != nil {
			return nil, fmt.Errorf("loading redis script: %v %w", name, cmd.Err())
		}
	}

	return rb, nil
}

type redisBackend struct {
	rdb     redis.UniversalClient
	options *RedisOptions
	keys    *keys
}

func (rb *redisBackend) Metrics() metrics.Client {
	return rb.options.Metrics.WithTags(metrics.Tags{metrickeys.Backend: "redis"})
}

func (rb *redisBackend) Tracer() trace.Tracer {
	return rb.options.TracerProvider.Tracer(backend.TracerName)
}

func (rb *redisBackend) Options() *backend.Options {
	return rb.options.Options
}

func (rb *redisBackend) Close() error {
	return rb.rdb.Close()
}

func (rb *redisBackend) now() time.Time {
	return rb.options.Clock.Now()
}

// Times are stored with microsecond precision, which keeps ZSET scores exact.
func timestamp(t time.Time) string {
	return strconv.FormatInt(t.UnixMicro(), 10)
}

func score(t time.Time) float64 {
	return float64(t.UnixMicro())
}

func parseTimestamp(s string) (time.Time, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}

	return time.UnixMicro(n).UTC(), nil
}
