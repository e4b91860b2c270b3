package di

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hanko-field/order-admin/internal/handlers"
	"github.com/hanko-field/order-admin/internal/platform/auth"
	"github.com/hanko-field/order-admin/internal/platform/config"
	"github.com/hanko-field/order-admin/internal/platform/events"
	pfirestore "github.com/hanko-field/order-admin/internal/platform/firestore"
	"github.com/hanko-field/order-admin/internal/platform/idempotency"
	"github.com/hanko-field/order-admin/internal/platform/observability"
	"github.com/hanko-field/order-admin/internal/repositories"
	firestoreRepo "github.com/hanko-field/order-admin/internal/repositories/firestore"
	"github.com/hanko-field/order-admin/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon.
type Services struct {
	Inventory services.InventoryService
	Orders    services.OrderService
	History   services.PurchaseHistoryService
	Revenue   services.RevenueService
	Customers services.CustomerService
}

// Container wires repositories, services, and HTTP routing for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services
	Router       http.Handler

	logger  *zap.Logger
	closers []func(context.Context) error
}

// Option customises container construction. Tests use them to swap external dependencies.
type Option func(*options)

type options struct {
	registry   repositories.Registry
	verifier   auth.TokenVerifier
	publisher  services.OrderEventPublisher
	idemStore  idempotency.Store
	logger     *zap.Logger
	build      handlers.BuildInfo
	clock      func() time.Time
	middleware []func(http.Handler) http.Handler
}

// WithRegistry supplies a repository registry instead of connecting to Firestore.
func WithRegistry(reg repositories.Registry) Option {
	return func(o *options) { o.registry = reg }
}

// WithTokenVerifier supplies the ID token verifier instead of the Firebase Admin SDK.
func WithTokenVerifier(verifier auth.TokenVerifier) Option {
	return func(o *options) { o.verifier = verifier }
}

// WithEventPublisher overrides the configured events driver.
func WithEventPublisher(publisher services.OrderEventPublisher) Option {
	return func(o *options) { o.publisher = publisher }
}

// WithIdempotencyStore overrides the configured idempotency driver.
func WithIdempotencyStore(store idempotency.Store) Option {
	return func(o *options) { o.idemStore = store }
}

// WithLogger sets the base logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithBuildInfo sets the metadata reported by /healthz.
func WithBuildInfo(info handlers.BuildInfo) Option {
	return func(o *options) { o.build = info }
}

// WithClock overrides the clock used by services.
func WithClock(clock func() time.Time) Option {
	return func(o *options) { o.clock = clock }
}

// WithMiddlewares prepends router middlewares ahead of the observability chain.
func WithMiddlewares(mw ...func(http.Handler) http.Handler) Option {
	return func(o *options) { o.middleware = append(o.middleware, mw...) }
}

// NewContainer constructs the runtime dependencies. Anything not supplied through options is
// built from cfg.
func NewContainer(ctx context.Context, cfg config.Config, opts ...Option) (*Container, error) {
	o := options{clock: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.clock == nil {
		o.clock = time.Now
	}

	c := &Container{Config: cfg, logger: o.logger}
	if err := c.build(ctx, o); err != nil {
		_ = c.Close(context.Background())
		return nil, err
	}
	return c, nil
}

func (c *Container) build(ctx context.Context, o options) error {
	cfg := c.Config

	var (
		provider *pfirestore.Provider
		rdb      *redis.Client
	)
	needFirestore := o.registry == nil || (o.idemStore == nil && cfg.Idempotency.Driver == config.IdempotencyDriverFirestore)
	if needFirestore {
		provider = pfirestore.NewProvider(cfg.Firestore)
		c.closers = append(c.closers, provider.Close)
	}
	if o.idemStore == nil && cfg.Idempotency.Driver == config.IdempotencyDriverRedis {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		c.closers = append(c.closers, func(context.Context) error { return rdb.Close() })
	}

	reg := o.registry
	if reg == nil {
		probes := []repositories.Probe{{Name: "firestore", Check: provider.Ping}}
		if rdb != nil {
			probes = append(probes, repositories.Probe{Name: "redis", Check: func(ctx context.Context) error {
				return rdb.Ping(ctx).Err()
			}})
		}
		health, err := repositories.NewProbeHealthRepository(probes)
		if err != nil {
			return fmt.Errorf("build health repository: %w", err)
		}
		fsReg, err := firestoreRepo.NewRegistry(provider, health)
		if err != nil {
			return fmt.Errorf("build firestore registry: %w", err)
		}
		reg = fsReg
	} else {
		c.closers = append(c.closers, reg.Close)
	}
	c.Repositories = reg

	publisher, err := c.eventPublisher(ctx, o)
	if err != nil {
		return err
	}

	svc, err := buildServices(reg, publisher, o.clock, c.logger)
	if err != nil {
		return err
	}
	c.Services = svc

	idemStore := o.idemStore
	if idemStore == nil {
		switch cfg.Idempotency.Driver {
		case config.IdempotencyDriverRedis:
			idemStore = idempotency.NewRedisStore(rdb)
		case config.IdempotencyDriverFirestore:
			idemStore = idempotency.NewFirestoreStore(provider)
		default:
			idemStore = idempotency.NewMemoryStore()
		}
	}

	verifier := o.verifier
	if verifier == nil {
		firebase, err := auth.NewFirebaseVerifier(ctx, cfg.Firebase)
		if err != nil {
			return fmt.Errorf("build firebase verifier: %w", err)
		}
		verifier = firebase
	}

	c.Router = c.buildRouter(o, verifier, idemStore)
	return nil
}

func (c *Container) eventPublisher(ctx context.Context, o options) (services.OrderEventPublisher, error) {
	if o.publisher != nil {
		return o.publisher, nil
	}
	cfg := c.Config.Events
	switch cfg.Driver {
	case config.EventsDriverPubSub:
		client, err := pubsub.NewClient(ctx, c.Config.Firebase.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("build pubsub client: %w", err)
		}
		c.closers = append(c.closers, func(context.Context) error { return client.Close() })
		publisher, err := events.NewPubSubPublisher(client.Topic(cfg.Topic))
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, func(context.Context) error { return publisher.Close() })
		return publisher, nil
	case config.EventsDriverKafka:
		publisher, err := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.Topic)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, func(context.Context) error { return publisher.Close() })
		return publisher, nil
	}
	return nil, nil
}

func buildServices(reg repositories.Registry, publisher services.OrderEventPublisher, clock func() time.Time, logger *zap.Logger) (Services, error) {
	var svc Services
	eventLogger := observability.EventLogger(logger.Named("services"))

	inventorySvc, err := services.NewInventoryService(services.InventoryServiceDeps{
		Inventory: reg.Inventory(),
		Logger:    eventLogger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build inventory service: %w", err)
	}
	svc.Inventory = inventorySvc

	historySvc, err := services.NewPurchaseHistoryService(services.PurchaseHistoryServiceDeps{
		Customers: reg.Customers(),
		Clock:     clock,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build purchase history service: %w", err)
	}
	svc.History = historySvc

	orderSvc, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:     reg.Orders(),
		Customers:  reg.Customers(),
		Inventory:  inventorySvc,
		History:    historySvc,
		UnitOfWork: reg,
		Events:     publisher,
		Clock:      clock,
		Logger:     eventLogger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build order service: %w", err)
	}
	svc.Orders = orderSvc

	revenueSvc, err := services.NewRevenueService(services.RevenueServiceDeps{
		Orders: reg.Orders(),
		Logger: eventLogger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build revenue service: %w", err)
	}
	svc.Revenue = revenueSvc

	customerSvc, err := services.NewCustomerService(services.CustomerServiceDeps{
		Customers: reg.Customers(),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build customer service: %w", err)
	}
	svc.Customers = customerSvc

	return svc, nil
}

func (c *Container) buildRouter(o options, verifier auth.TokenVerifier, idemStore idempotency.Store) http.Handler {
	authenticator := auth.NewAuthenticator(verifier)
	metrics := observability.NewHTTPMetrics()

	idempotencyMiddleware := idempotency.Middleware(
		idemStore,
		idempotency.WithHeader(c.Config.Idempotency.Header),
		idempotency.WithTTL(c.Config.Idempotency.TTL),
		idempotency.WithLogger(c.logger.Named("idempotency")),
	)

	middlewares := append([]func(http.Handler) http.Handler{}, o.middleware...)
	middlewares = append(middlewares,
		observability.InjectLoggerMiddleware(c.logger.Named("http")),
		observability.TraceMiddleware(),
		observability.RecoveryMiddleware(),
		observability.RequestLoggerMiddleware(),
		metrics.Middleware,
	)

	build := o.build
	if build.Environment == "" {
		build.Environment = c.Config.Security.Environment
	}
	healthHandlers := handlers.NewHealthHandlers(
		handlers.WithHealthBuildInfo(build),
		handlers.WithHealthRepository(c.Repositories.Health()),
	)

	orderHandlers := handlers.NewOrderHandlers(authenticator, c.Services.Orders,
		handlers.WithCreateMiddlewares(idempotencyMiddleware))

	return handlers.NewRouter(
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithMetricsHandler(metrics.Handler()),
		handlers.WithOrderRoutes(orderHandlers.Routes),
		handlers.WithInventoryRoutes(handlers.NewInventoryHandlers(authenticator, c.Services.Inventory).Routes),
		handlers.WithCustomerRoutes(handlers.NewCustomerHandlers(authenticator, c.Services.Customers).Routes),
		handlers.WithReportRoutes(handlers.NewReportHandlers(authenticator, c.Services.Revenue).Routes),
	)
}

// Close releases clients in reverse construction order.
func (c *Container) Close(ctx context.Context) error {
	if c == nil {
		return nil
	}
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}
