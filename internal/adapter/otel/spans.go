package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "agentrelay"

// StartTaskSpan starts a span covering one worker pass.
func StartTaskSpan(ctx context.Context, correlationID, agent string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "task",
		trace.WithAttributes(
			attribute.String("task.correlation_id", correlationID),
			attribute.String("task.agent", agent),
		),
	)
}

// StartExecSpan starts a span for the agent process invocation.
func StartExecSpan(ctx context.Context, correlationID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "exec",
		trace.WithAttributes(
			attribute.String("task.correlation_id", correlationID),
		),
	)
}

// StartDispatchSpan starts a span for result delivery.
func StartDispatchSpan(ctx context.Context, correlationID, kind string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "dispatch",
		trace.WithAttributes(
			attribute.String("task.correlation_id", correlationID),
			attribute.String("dispatch.kind", kind),
		),
	)
}
