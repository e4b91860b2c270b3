// Package requestctx carries per-request state written by the HTTP middlewares: the scoped
// logger and the active trace identifiers.
package requestctx

import (
	"context"

	"go.uber.org/zap"
)

// Scope is the request state. Values are copied on write so a handler cannot mutate the scope
// seen by an outer middleware.
type Scope struct {
	Logger  *zap.Logger
	TraceID string
	SpanID  string
	Sampled bool
}

type scopeKey struct{}

var nop = zap.NewNop()

// From returns the scope stored in ctx, or the zero scope.
func From(ctx context.Context) Scope {
	if ctx == nil {
		return Scope{}
	}
	scope, _ := ctx.Value(scopeKey{}).(Scope)
	return scope
}

func update(ctx context.Context, fn func(*Scope)) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	scope := From(ctx)
	fn(&scope)
	return context.WithValue(ctx, scopeKey{}, scope)
}

// WithLogger stores the request logger.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return update(ctx, func(s *Scope) { s.Logger = logger })
}

// WithTrace stores the identifiers of the request's server span.
func WithTrace(ctx context.Context, traceID, spanID string, sampled bool) context.Context {
	return update(ctx, func(s *Scope) {
		s.TraceID = traceID
		s.SpanID = spanID
		s.Sampled = sampled
	})
}

// Logger retrieves the request logger or a no-op logger.
func Logger(ctx context.Context) *zap.Logger {
	if logger := From(ctx).Logger; logger != nil {
		return logger
	}
	return nop
}

// HasLogger reports whether a middleware installed a request logger.
func HasLogger(ctx context.Context) bool {
	return From(ctx).Logger != nil
}

// TraceID returns the trace id, empty outside a traced request.
func TraceID(ctx context.Context) string {
	return From(ctx).TraceID
}
