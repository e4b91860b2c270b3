package firestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/hanko-field/order-admin/internal/platform/config"
)

const (
	emulatorHostEnv = "FIRESTORE_EMULATOR_HOST"
	projectIDEnv    = "GOOGLE_CLOUD_PROJECT"
)

// ErrProviderClosed is returned by Client after Close.
var ErrProviderClosed = errors.New("firestore: provider is closed")

// Provider owns the process-wide Firestore client, dialled on first use.
type Provider struct {
	projectID    string
	emulatorHost string
	dialTimeout  time.Duration
	clientOpts   []option.ClientOption

	mu     sync.Mutex
	client *firestore.Client
	closed bool
}

// ProviderOption customises a Provider.
type ProviderOption func(*Provider)

// WithDialTimeout bounds client creation. Non-positive values are ignored.
func WithDialTimeout(d time.Duration) ProviderOption {
	return func(p *Provider) {
		if d > 0 {
			p.dialTimeout = d
		}
	}
}

// WithClientOptions adds Cloud client options.
func WithClientOptions(opts ...option.ClientOption) ProviderOption {
	return func(p *Provider) { p.clientOpts = append(p.clientOpts, opts...) }
}

// NewProvider resolves the project and emulator settings, falling back to GOOGLE_CLOUD_PROJECT
// and FIRESTORE_EMULATOR_HOST.
func NewProvider(cfg config.FirestoreConfig, opts ...ProviderOption) *Provider {
	p := &Provider{
		projectID:    firstNonEmpty(cfg.ProjectID, os.Getenv(projectIDEnv)),
		emulatorHost: firstNonEmpty(cfg.EmulatorHost, os.Getenv(emulatorHostEnv)),
		dialTimeout:  10 * time.Second,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// Client returns the shared client, dialling it under the lock on first call.
func (p *Provider) Client(ctx context.Context) (*firestore.Client, error) {
	if ctx == nil {
		return nil, errors.New("firestore: context is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case p.closed:
		return nil, ErrProviderClosed
	case p.client != nil:
		return p.client, nil
	}
	client, err := p.dial(ctx)
	if err != nil {
		return nil, err
	}
	p.client = client
	return client, nil
}

func (p *Provider) dial(ctx context.Context) (*firestore.Client, error) {
	if p.projectID == "" {
		return nil, errors.New("firestore: project id is required")
	}
	ctx, cancel := context.WithTimeout(ctx, p.dialTimeout)
	defer cancel()

	opts := append([]option.ClientOption(nil), p.clientOpts...)
	if p.emulatorHost != "" {
		// The client library only honours the emulator through the environment variable.
		if os.Getenv(emulatorHostEnv) == "" {
			_ = os.Setenv(emulatorHostEnv, p.emulatorHost)
		}
		opts = append(opts,
			option.WithEndpoint(p.emulatorHost),
			option.WithoutAuthentication(),
			option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		)
	}

	client, err := firestore.NewClient(ctx, p.projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("firestore: create client: %w", err)
	}
	return client, nil
}

// Ping reads a sentinel document for readiness checks; NotFound still proves connectivity.
func (p *Provider) Ping(ctx context.Context) error {
	client, err := p.Client(ctx)
	if err != nil {
		return err
	}
	_, err = client.Collection("_health").Doc("ping").Get(ctx)
	if err = WrapError("ping", err); IsNotFound(err) {
		return nil
	}
	return err
}

// RunTransaction runs fn in a transaction, or inside the one already bound to ctx.
func (p *Provider) RunTransaction(ctx context.Context, fn TxFunc, opts ...TxOption) error {
	if tx, ok := TransactionFromContext(ctx); ok {
		return fn(ctx, tx)
	}
	client, err := p.Client(ctx)
	if err != nil {
		return err
	}
	return RunTransaction(ctx, client, fn, opts...)
}

// Close releases the client, giving up when ctx ends first. Later calls to Client fail with
// ErrProviderClosed.
func (p *Provider) Close(ctx context.Context) error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	client, alreadyClosed := p.client, p.closed
	p.client, p.closed = nil, true
	p.mu.Unlock()
	if alreadyClosed || client == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	done := make(chan error, 1)
	go func() { done <- client.Close() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
