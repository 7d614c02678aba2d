package logger

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

// AttrsFromCtx ties a record to the span carried by ctx, local or remote.
// trace_sampled is only added for sampled spans.
func AttrsFromCtx(ctx context.Context) []slog.Attr {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return nil
	}
	attrs := []slog.Attr{
		slog.String("trace_id", sc.TraceID().String()),
		slog.String("span_id", sc.SpanID().String()),
	}
	if sc.IsSampled() {
		attrs = append(attrs, slog.Bool("trace_sampled", true))
	}
	return attrs
}
