package grpcx

import (
	"context"
	"log/slog"
	"runtime/debug"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/cwrk-planet/session-hub/pkg/logger"
)

const mdRequestID = "x-request-id"

// withCallLogger stores a logger tagged with the method and the caller's
// request id, if it sent one.
func withCallLogger(ctx context.Context, method string) (context.Context, *slog.Logger) {
	l := logger.FromContext(ctx).With(slog.String("method", method))
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if ids := md.Get(mdRequestID); len(ids) > 0 && ids[0] != "" {
			l = l.With(slog.String("req_id", ids[0]))
		}
	}
	return logger.WithContext(ctx, l), l
}

func levelFor(err error) slog.Level {
	switch status.Code(err) {
	case codes.OK, codes.NotFound, codes.Canceled:
		return slog.LevelInfo
	case codes.Internal, codes.Unknown, codes.DataLoss:
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

// UnaryServerInterceptor logs, recovers panics and puts a deadline on calls
// that arrive without one.
func UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (resp any, err error) {
		start := time.Now()
		if _, ok := ctx.Deadline(); !ok {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
		}
		ctx, log := withCallLogger(ctx, info.FullMethod)

		defer func() {
			if r := recover(); r != nil {
				log.Error("grpc unary panic",
					slog.Any("panic", r),
					slog.String("stack", string(debug.Stack())))
				err = status.Error(codes.Internal, "internal server error")
			}
			log.LogAttrs(ctx, levelFor(err), "grpc unary",
				slog.Int64("dur_ms", time.Since(start).Milliseconds()),
				slog.String("code", status.Code(err).String()))
		}()

		return handler(ctx, req)
	}
}

type loggedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *loggedStream) Context() context.Context { return s.ctx }

func StreamServerInterceptor() grpc.StreamServerInterceptor {
	return func(
		srv any,
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) (err error) {
		start := time.Now()
		ctx, log := withCallLogger(ss.Context(), info.FullMethod)

		defer func() {
			if r := recover(); r != nil {
				log.Error("grpc stream panic",
					slog.Any("panic", r),
					slog.String("stack", string(debug.Stack())))
				err = status.Error(codes.Internal, "internal server error")
			}
			log.LogAttrs(ctx, levelFor(err), "grpc stream",
				slog.Int64("dur_ms", time.Since(start).Milliseconds()),
				slog.String("code", status.Code(err).String()))
		}()

		return handler(srv, &loggedStream{ServerStream: ss, ctx: ctx})
	}
}
