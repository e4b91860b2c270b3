package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/hanko-field/order-admin/internal/repositories"
	"github.com/hanko-field/order-admin/internal/repositories/memory"
)

type stubInventoryRepo struct {
	repositories.InventoryRepository
	reserveFn func(ctx context.Context, lines []repositories.StockLine) ([]repositories.StockLevel, error)
}

func (s *stubInventoryRepo) Reserve(ctx context.Context, lines []repositories.StockLine) ([]repositories.StockLevel, error) {
	return s.reserveFn(ctx, lines)
}

func TestInventoryServiceReserveAndRestore(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	remaining, err := h.inventory.Reserve(ctx, "prod_a", 2)
	if err != nil || remaining != 3 {
		t.Fatalf("expected 3 remaining, got %d (%v)", remaining, err)
	}
	remaining, err = h.inventory.Restore(ctx, "prod_a", 1)
	if err != nil || remaining != 4 {
		t.Fatalf("expected 4 after restore, got %d (%v)", remaining, err)
	}
	if _, err := h.inventory.Reserve(ctx, "prod_a", 5); !errors.Is(err, ErrInventoryInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	if got := h.stock(t, "prod_a"); got != 4 {
		t.Fatalf("failed reserve must not write, got %d", got)
	}
}

func TestInventoryServiceAggregatesDuplicateLines(t *testing.T) {
	h := newHarness(t)
	h.store.PutProduct(h.mustProduct(t, "prod_a", 3))

	_, err := h.inventory.ReserveLines(context.Background(), []StockLineInput{
		{ProductID: "prod_a", Quantity: 2},
		{ProductID: "prod_a", Quantity: 2},
	})
	if !errors.Is(err, ErrInventoryInsufficientStock) {
		t.Fatalf("expected duplicate lines to be summed, got %v", err)
	}
	if got := h.stock(t, "prod_a"); got != 3 {
		t.Fatalf("expected stock untouched, got %d", got)
	}
}

func TestInventoryServiceValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if _, err := h.inventory.Reserve(ctx, "prod_a", 0); !errors.Is(err, ErrInventoryInvalidInput) {
		t.Fatalf("expected invalid input for zero quantity, got %v", err)
	}
	if _, err := h.inventory.Restore(ctx, "prod_a", -1); !errors.Is(err, ErrInventoryInvalidInput) {
		t.Fatalf("expected invalid input for negative quantity, got %v", err)
	}
	if _, err := h.inventory.ReserveLines(ctx, nil); !errors.Is(err, ErrInventoryInvalidInput) {
		t.Fatalf("expected invalid input for empty lines, got %v", err)
	}
	if _, err := h.inventory.Reserve(ctx, "prod_missing", 1); !errors.Is(err, ErrInventoryNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := h.inventory.Restore(ctx, "prod_missing", 1); !errors.Is(err, ErrInventoryNotFound) {
		t.Fatalf("expected restore of unknown product to fail, got %v", err)
	}
}

func TestInventoryServiceMapsUnavailableStore(t *testing.T) {
	repo := &stubInventoryRepo{reserveFn: func(context.Context, []repositories.StockLine) ([]repositories.StockLevel, error) {
		return nil, unavailableErr{}
	}}
	svc, err := NewInventoryService(InventoryServiceDeps{Inventory: repo})
	if err != nil {
		t.Fatalf("new inventory service: %v", err)
	}
	if _, err := svc.Reserve(context.Background(), "prod_a", 1); !errors.Is(err, ErrInventoryUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
}

func TestInventoryServiceListStock(t *testing.T) {
	h := newHarness(t)
	products, err := h.inventory.ListStock(context.Background())
	if err != nil {
		t.Fatalf("list stock: %v", err)
	}
	if len(products) != 2 || products[0].ID != "prod_a" || products[1].Stock != 1 {
		t.Fatalf("unexpected stock listing %+v", products)
	}
}

type unavailableErr struct{}

func (unavailableErr) Error() string       { return "store unavailable" }
func (unavailableErr) IsNotFound() bool    { return false }
func (unavailableErr) IsConflict() bool    { return false }
func (unavailableErr) IsUnavailable() bool { return true }

// retryOnce rolls back the first attempt of every unit of work and replays fn.
type retryOnce struct {
	inner repositories.UnitOfWork
}

var errForcedRetry = errors.New("forced retry")

func (u retryOnce) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	first := true
	for {
		err := u.inner.RunInTx(ctx, func(txCtx context.Context) error {
			if err := fn(txCtx); err != nil {
				return err
			}
			if first {
				first = false
				return errForcedRetry
			}
			return nil
		})
		if !errors.Is(err, errForcedRetry) {
			return err
		}
	}
}

func counterTotals(t *testing.T, reader *sdkmetric.ManualReader, name string) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect metrics: %v", err)
	}
	totals := map[string]int64{}
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("%s: unexpected aggregation %T", name, m.Data)
			}
			for _, dp := range sum.DataPoints {
				result, _ := dp.Attributes.Value(attribute.Key("result"))
				totals[result.AsString()] += dp.Value
			}
		}
	}
	return totals
}

func TestInventoryOutcomesCountOnlyCommittedAttempts(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	var logged []string
	var mu sync.Mutex
	logger := func(_ context.Context, event string, _ map[string]any) {
		mu.Lock()
		defer mu.Unlock()
		logged = append(logged, event)
	}

	boom := errors.New("boom")
	h := newHarness(t, func(deps *OrderServiceDeps) {
		store := deps.UnitOfWork.(*memory.Store)
		inventory, err := NewInventoryService(InventoryServiceDeps{
			Inventory: store.Inventory(),
			Meter:     provider.Meter("test"),
			Logger:    logger,
		})
		if err != nil {
			t.Fatalf("new inventory service: %v", err)
		}
		deps.Inventory = inventory
		deps.UnitOfWork = retryOnce{inner: store}
		deps.History = failingUnlink{PurchaseHistoryService: deps.History, err: boom}
	})

	order := h.create(t, OrderLineInput{ProductID: "prod_a", Quantity: 2})
	if got := h.stock(t, "prod_a"); got != 3 {
		t.Fatalf("retried create must reserve once, got stock %d", got)
	}
	if totals := counterTotals(t, reader, "inventory.reservations"); totals["ok"] != 1 || len(totals) != 1 {
		t.Fatalf("expected one committed reservation, got %v", totals)
	}

	if _, err := h.orders.Cancel(context.Background(), CancelOrderCommand{OrderID: order.ID, CustomerID: "cus_1"}); !errors.Is(err, boom) {
		t.Fatalf("expected unlink failure, got %v", err)
	}
	if totals := counterTotals(t, reader, "inventory.restorations"); len(totals) != 0 {
		t.Fatalf("rolled back restore must not be counted, got %v", totals)
	}

	if _, err := h.orders.Create(context.Background(), CreateOrderCommand{
		CustomerID: "cus_1",
		Lines:      []OrderLineInput{{ProductID: "prod_b", Quantity: 5}},
	}); !errors.Is(err, ErrOrderInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	if totals := counterTotals(t, reader, "inventory.reservations"); totals["ok"] != 1 || totals["insufficient_stock"] != 1 {
		t.Fatalf("expected the failed attempt to be counted, got %v", totals)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(logged) != 1 || logged[0] != "inventory.reserve" {
		t.Fatalf("expected a single reserve log, got %v", logged)
	}
}
