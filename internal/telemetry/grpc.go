package telemetry

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/logging"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/recovery"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// GRPCServerInterceptor logs every finished call and turns handler panics into Internal errors.
func GRPCServerInterceptor() grpc.ServerOption {
	opts := []logging.Option{
		logging.WithLogOnEvents(logging.FinishCall),
		logging.WithLevels(grpcLevel),
	}

	return grpc.ChainUnaryInterceptor(
		logging.UnaryServerInterceptor(grpcServerLogger(slog.Default()), opts...),
		recovery.UnaryServerInterceptor(recovery.WithRecoveryHandlerContext(grpcPanic)),
	)
}

func grpcServerLogger(l *slog.Logger) logging.Logger {
	return logging.LoggerFunc(func(ctx context.Context, lvl logging.Level, msg string, fields ...any) {
		l.Log(ctx, slog.Level(lvl), msg, fields...)
	})
}

// grpcLevel keeps client mistakes out of the error log.
func grpcLevel(c codes.Code) logging.Level {
	switch c {
	case codes.OK, codes.NotFound, codes.InvalidArgument, codes.FailedPrecondition:
		return logging.LevelInfo
	case codes.Unavailable, codes.DeadlineExceeded, codes.Canceled:
		return logging.LevelWarn
	default:
		return logging.LevelError
	}
}

func grpcPanic(ctx context.Context, p any) error {
	slog.ErrorContext(ctx, "grpc: handler panic", "panic", fmt.Sprint(p))
	return status.Error(codes.Internal, "internal error")
}
