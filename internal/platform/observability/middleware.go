package observability

import (
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"time"
	"unicode"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/hanko-field/order-admin/internal/platform/httpx"
	"github.com/hanko-field/order-admin/internal/platform/requestctx"
)

const unmatchedRoute = "unmatched"

// InjectLoggerMiddleware seeds the request context with logger.
func InjectLoggerMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(requestctx.WithLogger(r.Context(), logger)))
		})
	}
}

// RequestLoggerMiddleware scopes the context logger to the request and writes one completion
// line per request, annotating the active span with the route and status.
func RequestLoggerMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			logger := requestctx.Logger(ctx).With(requestFields(r)...)
			ctx = requestctx.WithLogger(ctx, logger)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r.WithContext(ctx))

			status := statusOf(ww)
			route := routePattern(r)
			span := trace.SpanFromContext(ctx)
			span.SetAttributes(semconv.HTTPResponseStatusCode(status), semconv.HTTPRoute(route))
			if status >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(status))
			}

			fields := []zap.Field{
				zap.String("route", route),
				zap.Int("status", status),
				zap.Duration("latency", time.Since(start)),
				zap.Int("bytes", ww.BytesWritten()),
			}
			if ce := logger.Check(levelFor(status), "request completed"); ce != nil {
				ce.Write(fields...)
			}
		})
	}
}

// RecoveryMiddleware turns a panic into a logged 500. http.ErrAbortHandler is re-raised.
func RecoveryMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				requestctx.Logger(r.Context()).Error("panic recovered",
					zap.Any("panic", rec),
					zap.ByteString("stack", debug.Stack()))
				httpx.WriteError(r.Context(), w, httpx.NewError("internal_error", "internal server error", http.StatusInternalServerError))
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func requestFields(r *http.Request) []zap.Field {
	ctx := r.Context()
	fields := []zap.Field{
		zap.String("request_id", middleware.GetReqID(ctx)),
		zap.String("method", clip(r.Method, 10)),
		zap.String("path", clip(r.URL.Path, 180)),
		zap.String("trace_id", requestctx.TraceID(ctx)),
	}
	if ip := remoteIP(r.RemoteAddr); ip != "" {
		fields = append(fields, zap.String("remote_ip", ip))
	}
	return fields
}

func levelFor(status int) zapcore.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return zapcore.ErrorLevel
	case status >= http.StatusBadRequest:
		return zapcore.WarnLevel
	}
	return zapcore.InfoLevel
}

// statusOf treats a handler that never wrote as 200, matching net/http.
func statusOf(ww middleware.WrapResponseWriter) int {
	if s := ww.Status(); s != 0 {
		return s
	}
	return http.StatusOK
}

// routePattern keeps label cardinality bounded by using the chi pattern, not the raw path.
func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return unmatchedRoute
	}
	if pattern := rctx.RoutePattern(); pattern != "" {
		return clip(pattern, 180)
	}
	return unmatchedRoute
}

func remoteIP(addr string) string {
	addr = strings.TrimSpace(addr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	return clip(addr, 64)
}

// clip drops control characters and keeps at most limit runes.
func clip(value string, limit int) string {
	var b strings.Builder
	n := 0
	for _, r := range value {
		if unicode.IsControl(r) {
			continue
		}
		if n == limit {
			break
		}
		b.WriteRune(r)
		n++
	}
	return b.String()
}
