package otelx

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// InjectTrace renders the active span as W3C header values so they can be stored
// next to an outbox row. Both are empty when ctx carries no sampled or remote span.
func InjectTrace(ctx context.Context) (parent, state string) {
	if !trace.SpanContextFromContext(ctx).IsValid() {
		return "", ""
	}
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	return carrier.Get("traceparent"), carrier.Get("tracestate")
}

// ExtractTrace restores a span context persisted by InjectTrace. A tracestate without
// a traceparent is ignored.
func ExtractTrace(ctx context.Context, parent, state string) context.Context {
	if parent == "" {
		return ctx
	}
	carrier := propagation.MapCarrier{"traceparent": parent}
	if state != "" {
		carrier.Set("tracestate", state)
	}
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}
