package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "tenderd"

// StartFinalizeSpan starts a span for an award finalization.
func StartFinalizeSpan(ctx context.Context, requisitionID, strategy string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "award.finalize",
		trace.WithAttributes(
			attribute.String("requisition.id", requisitionID),
			attribute.String("award.strategy", strategy),
		),
	)
}

// StartCascadeSpan starts a span for a vendor award response.
func StartCascadeSpan(ctx context.Context, quotationID, response string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "award.respond",
		trace.WithAttributes(
			attribute.String("quotation.id", quotationID),
			attribute.String("award.response", response),
		),
	)
}
