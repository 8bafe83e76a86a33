package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
)

// MonitorRedis instruments r with tracing, metrics and debug logging of every command.
func MonitorRedis(r redis.UniversalClient) error {
	if err := redisotel.InstrumentTracing(r); err != nil {
		return fmt.Errorf("instrument tracing: %w", err)
	}
	if err := redisotel.InstrumentMetrics(r); err != nil {
		return fmt.Errorf("instrument metrics: %w", err)
	}
	r.AddHook(redisLog{})
	return nil
}

type redisLog struct{}

func (redisLog) DialHook(hook redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := hook(ctx, network, addr)
		if err != nil {
			slog.WarnContext(ctx, "redis: dial failed", "addr", addr, "error", err)
			return nil, err
		}
		slog.DebugContext(ctx, "redis: dialed", "network", network, "addr", addr)
		return conn, nil
	}
}

func (redisLog) ProcessHook(hook redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		start := time.Now()
		err := hook(ctx, cmd)
		slog.DebugContext(ctx, "redis: command processed",
			withError(err, "cmd", cmd.Name(), "duration_ms", time.Since(start).Milliseconds())...,
		)
		return err
	}
}

func (redisLog) ProcessPipelineHook(hook redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		start := time.Now()
		err := hook(ctx, cmds)
		slog.DebugContext(ctx, "redis: pipeline processed",
			withError(err, "size", len(cmds), "duration_ms", time.Since(start).Milliseconds())...,
		)
		return err
	}
}

// withError appends err to args unless it is nil or redis.Nil, which is a cache miss.
func withError(err error, args ...any) []any {
	if err == nil || errors.Is(err, redis.Nil) {
		return args
	}
	return append(args, "error", err)
}
