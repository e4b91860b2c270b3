package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hanko-field/order-admin/internal/platform/httpx"
)

// RouteRegistrar registers a set of routes against the provided router.
type RouteRegistrar func(r chi.Router)

const (
	defaultAPIPrefix = "/api/v1"
	defaultTimeout   = 60 * time.Second
)

// API groups mounted under the base path, in mount order.
const (
	groupOrders    = "orders"
	groupInventory = "inventory"
	groupCustomers = "customers"
	groupReports   = "reports"
)

var apiGroups = []string{groupOrders, groupInventory, groupCustomers, groupReports}

type routerConfig struct {
	basePath    string
	timeout     time.Duration
	middlewares []func(http.Handler) http.Handler
	health      *HealthHandlers
	metrics     http.Handler
	groups      map[string]RouteRegistrar
}

// Option customises the router configuration before construction.
type Option func(*routerConfig)

// NewRouter builds the chi router: request id, real ip and timeout first, then the caller's
// middlewares, probes at the root and every API group under the base path. Groups without a
// registrar answer 501.
func NewRouter(opts ...Option) chi.Router {
	cfg := routerConfig{
		basePath: defaultAPIPrefix,
		timeout:  defaultTimeout,
		groups:   make(map[string]RouteRegistrar, len(apiGroups)),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.health == nil {
		cfg.health = NewHealthHandlers()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Timeout(cfg.timeout))
	for _, mw := range cfg.middlewares {
		if mw != nil {
			r.Use(mw)
		}
	}

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError("route_not_found",
			fmt.Sprintf("no route for %s", req.URL.Path), http.StatusNotFound))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError("method_not_allowed",
			fmt.Sprintf("method %s not allowed on %s", req.Method, req.URL.Path), http.StatusMethodNotAllowed))
	})

	r.Get("/healthz", cfg.health.Healthz)
	r.Get("/readyz", cfg.health.Readyz)
	if cfg.metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.metrics)
	}

	r.Route(cfg.basePath, func(api chi.Router) {
		for _, name := range apiGroups {
			registrar := cfg.groups[name]
			api.Route("/"+name, func(group chi.Router) {
				if registrar == nil {
					registerNotImplemented(group, name)
					return
				}
				registrar(group)
			})
		}
	})
	return r
}

// WithBasePath overrides the API prefix.
func WithBasePath(path string) Option {
	return func(cfg *routerConfig) {
		if path != "" {
			cfg.basePath = path
		}
	}
}

// WithRequestTimeout overrides the per-request timeout.
func WithRequestTimeout(d time.Duration) Option {
	return func(cfg *routerConfig) {
		if d > 0 {
			cfg.timeout = d
		}
	}
}

// WithMiddlewares appends global middleware after the chi defaults.
func WithMiddlewares(mw ...func(http.Handler) http.Handler) Option {
	return func(cfg *routerConfig) {
		cfg.middlewares = append(cfg.middlewares, mw...)
	}
}

// WithHealthHandlers overrides the handlers behind /healthz and /readyz.
func WithHealthHandlers(h *HealthHandlers) Option {
	return func(cfg *routerConfig) { cfg.health = h }
}

// WithMetricsHandler exposes handler on GET /metrics.
func WithMetricsHandler(handler http.Handler) Option {
	return func(cfg *routerConfig) { cfg.metrics = handler }
}

func withGroup(name string, reg RouteRegistrar) Option {
	return func(cfg *routerConfig) { cfg.groups[name] = reg }
}

// WithOrderRoutes mounts reg under /orders.
func WithOrderRoutes(reg RouteRegistrar) Option { return withGroup(groupOrders, reg) }

// WithInventoryRoutes mounts reg under /inventory.
func WithInventoryRoutes(reg RouteRegistrar) Option { return withGroup(groupInventory, reg) }

// WithCustomerRoutes mounts reg under /customers.
func WithCustomerRoutes(reg RouteRegistrar) Option { return withGroup(groupCustomers, reg) }

// WithReportRoutes mounts reg under /reports.
func WithReportRoutes(reg RouteRegistrar) Option { return withGroup(groupReports, reg) }

func registerNotImplemented(r chi.Router, name string) {
	handler := func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError("not_implemented",
			fmt.Sprintf("%s routes not implemented", name), http.StatusNotImplemented))
	}
	r.HandleFunc("/*", handler)
	r.HandleFunc("/", handler)
}
