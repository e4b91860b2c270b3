package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	domain "github.com/hanko-field/order-admin/internal/domain"
	"github.com/hanko-field/order-admin/internal/repositories/memory"
)

var testNow = time.Date(2024, 3, 12, 10, 30, 0, 0, time.UTC)

type captureOrderEvents struct {
	mu     sync.Mutex
	events []OrderEvent
	err    error
}

func (c *captureOrderEvents) PublishOrderEvent(_ context.Context, event OrderEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return c.err
}

func (c *captureOrderEvents) types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.events))
	for i, e := range c.events {
		out[i] = e.Type
	}
	return out
}

type testHarness struct {
	store     *memory.Store
	orders    OrderService
	inventory InventoryService
	history   PurchaseHistoryService
	revenue   RevenueService
	customers CustomerService
	events    *captureOrderEvents

	logMu  sync.Mutex
	logged []string
}

type harnessOption func(*OrderServiceDeps)

func newHarness(t *testing.T, opts ...harnessOption) *testHarness {
	t.Helper()
	store := memory.NewStore()
	store.PutProduct(domain.Product{ID: "prod_a", Name: "Widget", UnitPrice: 1000, Stock: 5})
	store.PutProduct(domain.Product{ID: "prod_b", Name: "Gadget", UnitPrice: 250, Stock: 1})
	store.PutCustomer(domain.Customer{ID: "cus_1", Name: "Ada", Active: true})
	store.PutCustomer(domain.Customer{ID: "cus_2", Name: "Grace"})

	h := &testHarness{store: store, events: &captureOrderEvents{}}
	logger := func(_ context.Context, event string, _ map[string]any) {
		h.logMu.Lock()
		h.logged = append(h.logged, event)
		h.logMu.Unlock()
	}
	clock := func() time.Time { return testNow }

	inventory, err := NewInventoryService(InventoryServiceDeps{Inventory: store.Inventory(), Logger: logger})
	if err != nil {
		t.Fatalf("new inventory service: %v", err)
	}
	history, err := NewPurchaseHistoryService(PurchaseHistoryServiceDeps{Customers: store.Customers(), Clock: clock})
	if err != nil {
		t.Fatalf("new purchase history service: %v", err)
	}

	var seq int
	var seqMu sync.Mutex
	deps := OrderServiceDeps{
		Orders:     store.Orders(),
		Customers:  store.Customers(),
		Inventory:  inventory,
		History:    history,
		UnitOfWork: store,
		Events:     h.events,
		Clock:      clock,
		IDGenerator: func() string {
			seqMu.Lock()
			defer seqMu.Unlock()
			seq++
			return fmt.Sprintf("ord_%03d", seq)
		},
		Logger: logger,
	}
	for _, opt := range opts {
		opt(&deps)
	}
	orders, err := NewOrderService(deps)
	if err != nil {
		t.Fatalf("new order service: %v", err)
	}
	revenue, err := NewRevenueService(RevenueServiceDeps{Orders: store.Orders()})
	if err != nil {
		t.Fatalf("new revenue service: %v", err)
	}
	customers, err := NewCustomerService(CustomerServiceDeps{Customers: store.Customers()})
	if err != nil {
		t.Fatalf("new customer service: %v", err)
	}

	h.orders = orders
	h.inventory = inventory
	h.history = history
	h.revenue = revenue
	h.customers = customers
	return h
}

func (h *testHarness) stock(t *testing.T, productID string) int {
	t.Helper()
	product, err := h.store.Inventory().FindByID(context.Background(), productID)
	if err != nil {
		t.Fatalf("find product %s: %v", productID, err)
	}
	return product.Stock
}

func (h *testHarness) historyOf(t *testing.T, customerID string) []string {
	t.Helper()
	customer, err := h.store.Customers().FindByID(context.Background(), customerID)
	if err != nil {
		t.Fatalf("find customer %s: %v", customerID, err)
	}
	return customer.PurchaseHistory
}

func (h *testHarness) create(t *testing.T, lines ...OrderLineInput) Order {
	t.Helper()
	order, err := h.orders.Create(context.Background(), CreateOrderCommand{CustomerID: "cus_1", Lines: lines})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	return order
}

func (h *testHarness) mustProduct(t *testing.T, productID string, stock int) domain.Product {
	t.Helper()
	product, err := h.store.Inventory().FindByID(context.Background(), productID)
	if err != nil {
		t.Fatalf("find product %s: %v", productID, err)
	}
	product.Stock = stock
	return product
}
