package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "voteguard"

// StartValidationSpan starts a span covering one full promise validation.
func StartValidationSpan(ctx context.Context, promiseID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "validation",
		trace.WithAttributes(
			attribute.String("promise.id", promiseID),
		),
	)
}

// StartAttemptSpan starts a span for one generate-evaluate round.
func StartAttemptSpan(ctx context.Context, attempt int) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "attempt",
		trace.WithAttributes(
			attribute.Int("attempt.number", attempt),
		),
	)
}

// StartJudgeSpan starts a span for one judge evaluation call.
func StartJudgeSpan(ctx context.Context, model string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "judge",
		trace.WithAttributes(
			attribute.String("judge.model", model),
		),
	)
}
