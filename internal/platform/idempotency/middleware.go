package idempotency

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hanko-field/order-admin/internal/platform/auth"
	"github.com/hanko-field/order-admin/internal/platform/httpx"
)

const (
	replayHeader = "X-Idempotent-Replay"
	maxKeyLength = 255
)

type guard struct {
	store      Store
	header     string
	ttl        time.Duration
	methods    map[string]bool
	requireKey bool
	now        func() time.Time
	logger     *zap.Logger
}

// MiddlewareOption customises Middleware.
type MiddlewareOption func(*guard)

// WithHeader names the request header carrying the key.
func WithHeader(name string) MiddlewareOption {
	return func(g *guard) {
		if name = strings.TrimSpace(name); name != "" {
			g.header = name
		}
	}
}

// WithTTL sets how long completed responses are replayed.
func WithTTL(ttl time.Duration) MiddlewareOption {
	return func(g *guard) {
		if ttl > 0 {
			g.ttl = ttl
		}
	}
}

// WithMethods replaces the guarded methods, POST by default.
func WithMethods(methods ...string) MiddlewareOption {
	return func(g *guard) {
		set := map[string]bool{}
		for _, m := range methods {
			if m = strings.ToUpper(strings.TrimSpace(m)); m != "" {
				set[m] = true
			}
		}
		if len(set) > 0 {
			g.methods = set
		}
	}
}

// WithRequiredKey rejects guarded requests without a key.
func WithRequiredKey() MiddlewareOption {
	return func(g *guard) { g.requireKey = true }
}

// WithLogger sets the logger for store failures.
func WithLogger(logger *zap.Logger) MiddlewareOption {
	return func(g *guard) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithClock overrides time.Now.
func WithClock(clock func() time.Time) MiddlewareOption {
	return func(g *guard) {
		if clock != nil {
			g.now = clock
		}
	}
}

// Middleware makes guarded requests replayable by key. The key is scoped to the caller's UID
// and bound to a fingerprint of the request, so reusing it for a different request is a 409.
// Responses of 5xx are not kept, which lets the client retry with the same key.
func Middleware(store Store, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	if store == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	g := &guard{
		store:   store,
		header:  "Idempotency-Key",
		ttl:     DefaultTTL,
		methods: map[string]bool{http.MethodPost: true},
		now:     time.Now,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			g.serve(w, r, next)
		})
	}
}

func (g *guard) serve(w http.ResponseWriter, r *http.Request, next http.Handler) {
	if !g.methods[r.Method] {
		next.ServeHTTP(w, r)
		return
	}
	ctx := r.Context()
	key := strings.TrimSpace(r.Header.Get(g.header))
	if key == "" && !g.requireKey {
		next.ServeHTTP(w, r)
		return
	}
	if err := validateKey(key); err != nil {
		httpx.WriteError(ctx, w, *err)
		return
	}

	a, err := identify(r, key)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "unable to read request body", http.StatusBadRequest))
		return
	}

	res, err := g.store.Reserve(ctx, a.key, a.fingerprint, g.now(), g.ttl)
	switch {
	case errors.Is(err, ErrFingerprintMismatch):
		httpx.WriteError(ctx, w, httpx.NewError("idempotency_key_conflict", "idempotency key already used for a different request", http.StatusConflict))
		return
	case err != nil:
		g.logger.Error("idempotency reserve failed", zap.Error(err))
		httpx.WriteError(ctx, w, httpx.NewError("idempotency_unavailable", "unable to process idempotency key", http.StatusInternalServerError))
		return
	}
	switch res.State {
	case ReservationStateCompleted:
		replay(w, res.Record)
		return
	case ReservationStatePending:
		httpx.WriteError(ctx, w, httpx.NewError("idempotency_in_progress", "another request is processing this idempotency key", http.StatusConflict))
		return
	}

	rec := newRecorder()
	next.ServeHTTP(rec, r)
	if rec.statusCode() >= http.StatusInternalServerError {
		if err := g.store.Release(ctx, a.key); err != nil {
			g.logger.Warn("idempotency release failed", zap.Error(err))
		}
	} else if err := g.store.Complete(ctx, a.key, a.fingerprint, rec.response(), g.now(), g.ttl); err != nil {
		// Side effects already happened; the pending record expires with its TTL.
		g.logger.Error("idempotency save failed", zap.Error(err))
	}
	rec.copyTo(w)
}

func validateKey(key string) *httpx.Error {
	var e httpx.Error
	switch {
	case key == "":
		e = httpx.NewError("idempotency_key_required", "missing idempotency key header", http.StatusBadRequest)
	case len(key) > maxKeyLength:
		e = httpx.NewError("idempotency_key_invalid", "idempotency key is too long", http.StatusBadRequest)
	default:
		return nil
	}
	return &e
}

// attempt is a key scoped to its caller plus the fingerprint of the request that used it.
type attempt struct {
	key         string
	fingerprint string
}

// identify buffers the body so the downstream handler can still read it.
func identify(r *http.Request, key string) (attempt, error) {
	var body []byte
	if r.Body != nil {
		data, err := io.ReadAll(r.Body)
		if err != nil {
			return attempt{}, err
		}
		_ = r.Body.Close()
		r.Body = io.NopCloser(bytes.NewReader(data))
		body = data
	}

	caller := "anonymous"
	if id, ok := auth.IdentityFromContext(r.Context()); ok && id.UID != "" {
		caller = id.UID
	}
	fp := strings.Join([]string{strings.ToUpper(r.Method), r.URL.Path, r.URL.RawQuery, caller, sha256Hex(body)}, "|")
	return attempt{key: key + "|" + caller, fingerprint: sha256Hex([]byte(fp))}, nil
}

func replay(w http.ResponseWriter, record Record) {
	h := w.Header()
	for name, values := range record.ResponseHeaders {
		h[name] = append([]string(nil), values...)
	}
	h.Set(replayHeader, "true")
	status := record.ResponseStatus
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write(record.ResponseBody)
}
