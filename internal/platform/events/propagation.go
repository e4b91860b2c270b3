package events

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// injectTrace writes the active span's traceparent into message attributes.
func injectTrace(ctx context.Context, attrs map[string]string) {
	otel.GetTextMapPropagator().Inject(ctx, propagation.MapCarrier(attrs))
}
