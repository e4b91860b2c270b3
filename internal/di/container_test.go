package di

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	firebaseauth "firebase.google.com/go/v4/auth"

	"github.com/hanko-field/order-admin/internal/domain"
	"github.com/hanko-field/order-admin/internal/platform/config"
	"github.com/hanko-field/order-admin/internal/repositories/memory"
	"github.com/hanko-field/order-admin/internal/services"
)

type staticVerifier struct{}

func (staticVerifier) VerifyIDToken(_ context.Context, _ string) (*firebaseauth.Token, error) {
	return &firebaseauth.Token{UID: "admin_1", Claims: map[string]interface{}{"role": "admin"}}, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []services.OrderEvent
}

func (p *recordingPublisher) PublishOrderEvent(_ context.Context, event services.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func testConfig() config.Config {
	return config.Config{
		Events:      config.EventsConfig{Driver: config.EventsDriverNone},
		Idempotency: config.IdempotencyConfig{Driver: config.IdempotencyDriverMemory, Header: "Idempotency-Key", TTL: time.Hour},
		Security:    config.SecurityConfig{Environment: "test"},
	}
}

func TestContainerServesOrderFlow(t *testing.T) {
	store := memory.NewStore()
	store.PutProduct(domain.Product{ID: "prod_a", Name: "Widget", UnitPrice: 500, Stock: 2})
	store.PutCustomer(domain.Customer{ID: "cus_1", Name: "Ada", Active: true})
	publisher := &recordingPublisher{}

	container, err := NewContainer(context.Background(), testConfig(),
		WithRegistry(store),
		WithTokenVerifier(staticVerifier{}),
		WithEventPublisher(publisher),
	)
	if err != nil {
		t.Fatalf("NewContainer: %v", err)
	}
	t.Cleanup(func() { _ = container.Close(context.Background()) })

	body := `{"customer_id":"cus_1","lines":[{"product_id":"prod_a","quantity":2}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer token")
	rr := httptest.NewRecorder()
	container.Router.ServeHTTP(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}

	product, err := store.Inventory().FindByID(context.Background(), "prod_a")
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if product.Stock != 0 {
		t.Fatalf("expected stock 0, got %d", product.Stock)
	}
	publisher.mu.Lock()
	if len(publisher.events) != 1 || publisher.events[0].Type != services.OrderEventCreated {
		t.Fatalf("expected one created event, got %+v", publisher.events)
	}
	publisher.mu.Unlock()

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		rr := httptest.NewRecorder()
		container.Router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, rr.Code)
		}
	}
}

func TestContainerFailsForKafkaWithoutBrokers(t *testing.T) {
	cfg := testConfig()
	cfg.Events = config.EventsConfig{Driver: config.EventsDriverKafka, Topic: "order-events"}

	_, err := NewContainer(context.Background(), cfg,
		WithRegistry(memory.NewStore()),
		WithTokenVerifier(staticVerifier{}),
	)
	if err == nil {
		t.Fatal("expected kafka without brokers to fail")
	}
}
