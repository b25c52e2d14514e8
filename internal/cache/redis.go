// Package cache holds the Redis connection and the mentor capacity cache.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"mentorlink/internal/middleware"
	"mentorlink/internal/observability"

	"github.com/redis/go-redis/v9"
)

const pingTimeout = 5 * time.Second

// ParseOptions accepts either a bare host:port or a redis:// / rediss:// URL.
func ParseOptions(raw string) (*redis.Options, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errors.New("redis address is empty")
	}
	if !strings.Contains(raw, "://") {
		return &redis.Options{Addr: raw}, nil
	}
	opts, err := redis.ParseURL(raw)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return opts, nil
}

// errorCounter feeds failed commands into the redis error metric, labeled by
// command name. redis.Nil is a miss, not a failure.
type errorCounter struct{}

func (errorCounter) DialHook(next redis.DialHook) redis.DialHook { return next }

func (errorCounter) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		err := next(ctx, cmd)
		countFailure(cmd.Name(), err)
		return err
	}
}

func (errorCounter) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		err := next(ctx, cmds)
		countFailure("pipeline", err)
		return err
	}
}

func countFailure(op string, err error) {
	if err != nil && !errors.Is(err, redis.Nil) {
		observability.RedisErrorRate.WithLabelValues(op).Inc()
	}
}

// Connect builds a client for raw and pings it. Callers treat an error as
// "run without Redis": capacity caching, notifications and rate limits then
// degrade to their nil-client behavior.
func Connect(ctx context.Context, raw string) (*redis.Client, error) {
	opts, err := ParseOptions(raw)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	rdb.AddHook(errorCounter{})

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", opts.Addr, err)
	}
	return rdb, nil
}

// ConnectOptional is Connect that logs and returns nil on failure.
func ConnectOptional(ctx context.Context, raw string) *redis.Client {
	rdb, err := Connect(ctx, raw)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "Redis unavailable, continuing without it", slog.String("error", err.Error()))
		return nil
	}
	middleware.Logger.InfoContext(ctx, "Redis connected", slog.String("addr", rdb.Options().Addr))
	return rdb
}
