package secrets

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const meterName = "github.com/hanko-field/order-admin/internal/platform/secrets"

// Resolution sources reported on the latency histogram.
const (
	sourceCache    = "cache"
	sourceRemote   = "remote"
	sourceFallback = "fallback"
	sourceError    = "error"
)

var secretManagerClientFactory = func(ctx context.Context, opts ...option.ClientOption) (*secretmanager.Client, error) {
	return secretmanager.NewClient(ctx, opts...)
}

type secretManagerClient interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
	Close() error
}

// Fetcher resolves secret references against Google Secret Manager and caches values for its
// lifetime. Unreachable or denied lookups use the local fallback file instead.
type Fetcher struct {
	client     secretManagerClient
	ownsClient bool
	project    string
	logger     *zap.Logger
	fallback   *fallbackFile
	cache      sync.Map

	latency   metric.Float64Histogram
	cacheHits metric.Int64Counter
}

type settings struct {
	logger     *zap.Logger
	project    string
	fallback   string
	meter      metric.Meter
	client     secretManagerClient
	clientOpts []option.ClientOption
}

// Option customises Fetcher construction.
type Option func(*settings)

// WithLogger sets the diagnostic logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *settings) { s.logger = logger }
}

// WithDefaultProject sets the project for references without ?project=.
func WithDefaultProject(projectID string) Option {
	return func(s *settings) { s.project = strings.TrimSpace(projectID) }
}

// WithFallbackFile overrides the local fallback file path.
func WithFallbackFile(path string) Option {
	return func(s *settings) { s.fallback = strings.TrimSpace(path) }
}

// WithMeter injects an OpenTelemetry meter.
func WithMeter(m metric.Meter) Option {
	return func(s *settings) { s.meter = m }
}

// WithSecretManagerClient injects a client; the fetcher will not close it.
func WithSecretManagerClient(client secretManagerClient) Option {
	return func(s *settings) { s.client = client }
}

// WithClientOptions forwards options to the Secret Manager client constructor.
func WithClientOptions(opts ...option.ClientOption) Option {
	return func(s *settings) { s.clientOpts = append(s.clientOpts, opts...) }
}

// NewFetcher builds a Fetcher. When no Secret Manager client can be created the fetcher runs in
// fallback-only mode.
func NewFetcher(ctx context.Context, opts ...Option) (*Fetcher, error) {
	s := settings{fallback: defaultFallbackPath}
	for _, opt := range opts {
		if opt != nil {
			opt(&s)
		}
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.meter == nil {
		s.meter = otel.GetMeterProvider().Meter(meterName)
	}

	f := &Fetcher{
		project:  s.project,
		logger:   s.logger,
		fallback: &fallbackFile{path: s.fallback, logger: s.logger},
	}
	f.registerMetrics(s.meter)

	switch {
	case s.client != nil:
		f.client = s.client
	default:
		client, err := secretManagerClientFactory(ctx, s.clientOpts...)
		if err != nil {
			s.logger.Warn("secrets: secret manager client unavailable; using fallback file only", zap.Error(err))
			break
		}
		f.client, f.ownsClient = client, true
	}
	return f, nil
}

func (f *Fetcher) registerMetrics(meter metric.Meter) {
	var err error
	f.latency, err = meter.Float64Histogram("secrets.fetch.latency",
		metric.WithUnit("ms"),
		metric.WithDescription("Latency of secret resolution attempts"))
	if err != nil {
		f.logger.Warn("secrets: latency histogram unavailable", zap.Error(err))
	}
	f.cacheHits, err = meter.Int64Counter("secrets.fetch.cache_hits",
		metric.WithDescription("Secret resolutions served from cache"))
	if err != nil {
		f.logger.Warn("secrets: cache hit counter unavailable", zap.Error(err))
	}
}

// Close releases the Secret Manager client if the fetcher created it.
func (f *Fetcher) Close() error {
	if !f.ownsClient || f.client == nil {
		return nil
	}
	return f.client.Close()
}

// ResolveSecret satisfies config.SecretResolver.
func (f *Fetcher) ResolveSecret(ctx context.Context, ref string) (string, error) {
	return f.Resolve(ctx, ref)
}

// Resolve returns the value behind a secret:// or sm:// reference.
func (f *Fetcher) Resolve(ctx context.Context, raw string) (string, error) {
	started := time.Now()
	ref, err := parseReference(raw)
	if err != nil {
		return "", err
	}

	if cached, ok := f.cache.Load(ref.cacheKey()); ok {
		f.observe(ctx, started, sourceCache)
		if f.cacheHits != nil {
			f.cacheHits.Add(ctx, 1, metric.WithAttributes(attribute.String("secret", ref.masked())))
		}
		return cached.(string), nil
	}

	value, source, err := f.lookup(ctx, ref)
	if err != nil {
		f.observe(ctx, started, sourceError)
		return "", err
	}
	f.cache.Store(ref.cacheKey(), value)
	f.observe(ctx, started, source)
	return value, nil
}

func (f *Fetcher) lookup(ctx context.Context, ref reference) (string, string, error) {
	project := ref.project
	if project == "" {
		project = f.project
	}
	if f.client != nil && project != "" {
		value, err := f.access(ctx, ref.resourceName(project))
		switch {
		case err == nil:
			return value, sourceRemote, nil
		case !retryableLocally(err):
			return "", "", fmt.Errorf("secrets: fetch %s: %w", ref.base, err)
		}
		f.logger.Debug("secrets: secret manager unreachable, trying fallback file",
			zap.String("secret", ref.masked()), zap.Error(err))
	}

	if value, ok := f.fallback.lookup(ref); ok {
		return value, sourceFallback, nil
	}
	return "", "", fmt.Errorf("secrets: no fallback value for %s", ref.base)
}

func (f *Fetcher) access(ctx context.Context, name string) (string, error) {
	resp, err := f.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: name})
	if err != nil {
		return "", err
	}
	payload := resp.GetPayload()
	if payload == nil {
		return "", fmt.Errorf("secrets: empty payload for %s", name)
	}
	return string(payload.GetData()), nil
}

func (f *Fetcher) observe(ctx context.Context, started time.Time, source string) {
	if f.latency == nil {
		return
	}
	ms := float64(time.Since(started).Microseconds()) / 1000
	f.latency.Record(ctx, ms, metric.WithAttributes(attribute.String("source", source)))
}

// retryableLocally reports errors for which the fallback file may be consulted. NotFound and
// other definitive answers from Secret Manager are returned as-is.
func retryableLocally(err error) bool {
	switch status.Code(err) {
	case codes.PermissionDenied, codes.Unauthenticated, codes.Unavailable, codes.DeadlineExceeded:
		return true
	}
	return false
}
