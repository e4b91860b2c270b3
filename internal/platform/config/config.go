package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	defaultEnvFile             = ".env"
	defaultPort                = "8080"
	defaultReadTimeout         = 15 * time.Second
	defaultWriteTimeout        = 30 * time.Second
	defaultIdleTimeout         = 120 * time.Second
	defaultSecurityEnvironment = "local"
	defaultEventsTopic         = "order-events"
	defaultIdempotencyHeader   = "Idempotency-Key"
	defaultIdempotencyTTL      = 24 * time.Hour
	defaultOTelServiceName     = "order-admin-api"

	redisPasswordKey = "API_REDIS_PASSWORD"
)

// Event publisher drivers.
const (
	EventsDriverNone   = "none"
	EventsDriverPubSub = "pubsub"
	EventsDriverKafka  = "kafka"
)

// Idempotency store drivers.
const (
	IdempotencyDriverMemory    = "memory"
	IdempotencyDriverFirestore = "firestore"
	IdempotencyDriverRedis     = "redis"
)

// Config is the fully resolved runtime configuration.
type Config struct {
	Server      ServerConfig
	Firebase    FirebaseConfig
	Firestore   FirestoreConfig
	Events      EventsConfig
	Idempotency IdempotencyConfig
	Redis       RedisConfig
	Telemetry   TelemetryConfig
	Security    SecurityConfig
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// FirebaseConfig identifies the Firebase project whose ID tokens are accepted.
type FirebaseConfig struct {
	ProjectID       string
	CredentialsFile string
}

// FirestoreConfig locates the Firestore database. ProjectID defaults to the Firebase project.
type FirestoreConfig struct {
	ProjectID    string
	EmulatorHost string
}

// EventsConfig selects where order notifications are published.
type EventsConfig struct {
	Driver       string
	Topic        string
	KafkaBrokers []string
}

// IdempotencyConfig controls the create-order replay store.
type IdempotencyConfig struct {
	Driver string
	Header string
	TTL    time.Duration
}

// RedisConfig is used when the idempotency driver is redis.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// TelemetryConfig controls trace export. An empty endpoint disables export.
type TelemetryConfig struct {
	ExporterEndpoint string
	ServiceName      string
	Insecure         bool
}

// SecurityConfig names the deployment environment reported by health checks.
type SecurityConfig struct {
	Environment string
}

// SecretResolver turns a secret:// reference into its value.
type SecretResolver interface {
	ResolveSecret(ctx context.Context, ref string) (string, error)
}

// SecretResolverFunc lets a plain function act as a SecretResolver.
type SecretResolverFunc func(context.Context, string) (string, error)

func (f SecretResolverFunc) ResolveSecret(ctx context.Context, ref string) (string, error) {
	return f(ctx, ref)
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// SecretError describes failures while resolving a secret reference.
type SecretError struct {
	Ref string
	Err error
}

// Error implements the error interface.
func (e *SecretError) Error() string {
	return fmt.Sprintf("secret resolution failed for ref %q: %v", e.Ref, e.Err)
}

// Unwrap exposes the underlying error.
func (e *SecretError) Unwrap() error { return e.Err }

var errSecretResolverNotConfigured = errors.New("secret resolver not configured")

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	envMap       map[string]string
	useSystemEnv bool
	secret       SecretResolver
}

func collectOptions(opts []Option) loaderOptions {
	o := loaderOptions{envFile: defaultEnvFile, useSystemEnv: true}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects an explicit key/value map for environment lookups. Values in the map
// take precedence over system environment variables.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading from os.Getenv, relying only on provided maps and .env files.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// WithSecretResolver sets the resolver used for sm:// and secret:// references.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(o *loaderOptions) {
		o.secret = resolver
	}
}

// Load assembles the configuration from defaults, the .env file, the process environment and
// the explicit map, later sources winning. Secret references are resolved last.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	src, err := newSource(collectOptions(opts))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Server: ServerConfig{
			Port:         src.str("API_SERVER_PORT", defaultPort),
			ReadTimeout:  src.duration("API_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout: src.duration("API_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:  src.duration("API_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
		},
		Firebase: FirebaseConfig{
			ProjectID:       src.str("API_FIREBASE_PROJECT_ID", ""),
			CredentialsFile: src.str("API_FIREBASE_CREDENTIALS_FILE", ""),
		},
		Firestore: FirestoreConfig{
			ProjectID:    src.str("API_FIRESTORE_PROJECT_ID", ""),
			EmulatorHost: src.str("API_FIRESTORE_EMULATOR_HOST", ""),
		},
		Events: EventsConfig{
			Driver:       strings.ToLower(src.str("API_EVENTS_DRIVER", EventsDriverNone)),
			Topic:        src.str("API_EVENTS_TOPIC", defaultEventsTopic),
			KafkaBrokers: src.list("API_KAFKA_BROKERS"),
		},
		Idempotency: IdempotencyConfig{
			Driver: strings.ToLower(src.str("API_IDEMPOTENCY_DRIVER", IdempotencyDriverFirestore)),
			Header: src.str("API_IDEMPOTENCY_HEADER", defaultIdempotencyHeader),
			TTL:    src.duration("API_IDEMPOTENCY_TTL", defaultIdempotencyTTL),
		},
		Redis: RedisConfig{
			Addr:     src.str("API_REDIS_ADDR", ""),
			Password: src.str(redisPasswordKey, ""),
			DB:       src.integer("API_REDIS_DB", 0),
		},
		Telemetry: TelemetryConfig{
			ExporterEndpoint: src.str("API_OTEL_EXPORTER_ENDPOINT", ""),
			ServiceName:      src.str("API_OTEL_SERVICE_NAME", defaultOTelServiceName),
			Insecure:         src.boolean("API_OTEL_EXPORTER_INSECURE", false),
		},
		Security: SecurityConfig{
			Environment: strings.ToLower(src.str("API_SECURITY_ENVIRONMENT", defaultSecurityEnvironment)),
		},
	}
	if cfg.Firestore.ProjectID == "" {
		cfg.Firestore.ProjectID = cfg.Firebase.ProjectID
	}

	if cfg.Redis.Password, err = resolveSecret(ctx, cfg.Redis.Password, src.resolver); err != nil {
		return Config{}, err
	}
	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// HasSecretReferences reports whether Load would need a SecretResolver, so callers can skip
// building a Secret Manager client.
func HasSecretReferences(opts ...Option) bool {
	src, err := newSource(collectOptions(opts))
	if err != nil {
		return false
	}
	value, _ := src.lookup(redisPasswordKey)
	return isSecretReference(value)
}

func resolveSecret(ctx context.Context, value string, resolver SecretResolver) (string, error) {
	if value == "" || !isSecretReference(value) {
		return value, nil
	}
	normalized := normalizeSecretReference(value)
	if resolver == nil {
		return "", &SecretError{Ref: normalized, Err: errSecretResolverNotConfigured}
	}
	secret, err := resolver.ResolveSecret(ctx, normalized)
	if err != nil {
		return "", &SecretError{Ref: normalized, Err: err}
	}
	return secret, nil
}

func validateConfig(cfg Config) error {
	var missing []string

	if cfg.Server.Port == "" {
		missing = append(missing, "Server.Port")
	}
	if cfg.Firebase.ProjectID == "" {
		missing = append(missing, "Firebase.ProjectID")
	}
	if cfg.Firestore.ProjectID == "" {
		missing = append(missing, "Firestore.ProjectID")
	}

	switch cfg.Events.Driver {
	case EventsDriverNone, EventsDriverPubSub:
	case EventsDriverKafka:
		if len(cfg.Events.KafkaBrokers) == 0 {
			missing = append(missing, "Events.KafkaBrokers")
		}
	default:
		missing = append(missing, "Events.Driver")
	}
	if cfg.Events.Driver != EventsDriverNone && strings.TrimSpace(cfg.Events.Topic) == "" {
		missing = append(missing, "Events.Topic")
	}

	switch cfg.Idempotency.Driver {
	case IdempotencyDriverMemory, IdempotencyDriverFirestore:
	case IdempotencyDriverRedis:
		if cfg.Redis.Addr == "" {
			missing = append(missing, "Redis.Addr")
		}
	default:
		missing = append(missing, "Idempotency.Driver")
	}
	if strings.TrimSpace(cfg.Idempotency.Header) == "" {
		missing = append(missing, "Idempotency.Header")
	}
	if cfg.Idempotency.TTL <= 0 {
		missing = append(missing, "Idempotency.TTL")
	}

	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}

func isSecretReference(value string) bool {
	trimmed := strings.TrimSpace(value)
	return strings.HasPrefix(trimmed, "secret://") || strings.HasPrefix(trimmed, "sm://")
}

func normalizeSecretReference(value string) string {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "sm://") {
		return "secret://" + strings.TrimPrefix(trimmed, "sm://")
	}
	return trimmed
}
