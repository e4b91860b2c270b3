//go:build integration

package firestore

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/hanko-field/order-admin/internal/domain"
	"github.com/hanko-field/order-admin/internal/services"
)

func newIntegrationOrderService(t *testing.T, registry *Registry) services.OrderService {
	t.Helper()
	inventory, err := services.NewInventoryService(services.InventoryServiceDeps{Inventory: registry.Inventory()})
	if err != nil {
		t.Fatalf("new inventory service: %v", err)
	}
	history, err := services.NewPurchaseHistoryService(services.PurchaseHistoryServiceDeps{Customers: registry.Customers()})
	if err != nil {
		t.Fatalf("new purchase history service: %v", err)
	}
	orders, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:     registry.Orders(),
		Customers:  registry.Customers(),
		Inventory:  inventory,
		History:    history,
		UnitOfWork: registry,
	})
	if err != nil {
		t.Fatalf("new order service: %v", err)
	}
	return orders
}

func TestOrderServiceCreateAndCancelIntegration(t *testing.T) {
	registry := newIntegrationRegistry(t)
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	seedProduct(t, ctx, registry, "prod_a", 1200, 5)
	seedProduct(t, ctx, registry, "prod_b", 300, 1)
	now := time.Now().UTC().Truncate(time.Second)
	if err := registry.Customers().Save(ctx, domain.Customer{ID: "cus_1", Name: "Ada", Active: true, CreatedAt: now, UpdatedAt: now}); err != nil {
		t.Fatalf("save customer: %v", err)
	}
	orders := newIntegrationOrderService(t, registry)

	stockOf := func(id string) int {
		t.Helper()
		product, err := registry.Inventory().FindByID(ctx, id)
		if err != nil {
			t.Fatalf("find %s: %v", id, err)
		}
		return product.Stock
	}

	order, err := orders.Create(ctx, services.CreateOrderCommand{
		CustomerID: "cus_1",
		Lines: []services.OrderLineInput{
			{ProductID: "prod_a", Quantity: 2},
			{ProductID: "prod_b", Quantity: 1},
		},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if order.Total != 2*1200+300 {
		t.Fatalf("unexpected total %d", order.Total)
	}
	if a, b := stockOf("prod_a"), stockOf("prod_b"); a != 3 || b != 0 {
		t.Fatalf("expected stock 3/0 after create, got %d/%d", a, b)
	}

	_, err = orders.Create(ctx, services.CreateOrderCommand{
		CustomerID: "cus_1",
		Lines: []services.OrderLineInput{
			{ProductID: "prod_a", Quantity: 1},
			{ProductID: "prod_b", Quantity: 1},
		},
	})
	if !errors.Is(err, services.ErrOrderInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	if a := stockOf("prod_a"); a != 3 {
		t.Fatalf("rejected order must not reserve prod_a, got %d", a)
	}

	cancelled, err := orders.Cancel(ctx, services.CancelOrderCommand{OrderID: order.ID, CustomerID: "cus_1", Reason: "duplicate"})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != domain.OrderStatusCancelled || cancelled.CancelledAt == nil {
		t.Fatalf("unexpected cancelled order %+v", cancelled)
	}
	if a, b := stockOf("prod_a"), stockOf("prod_b"); a != 5 || b != 1 {
		t.Fatalf("expected stock restored to 5/1, got %d/%d", a, b)
	}
	stored, err := orders.Get(ctx, order.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Status != domain.OrderStatusCancelled || stored.CancelReason != "duplicate" {
		t.Fatalf("unexpected stored order %+v", stored)
	}
	customer, err := registry.Customers().FindByID(ctx, "cus_1")
	if err != nil {
		t.Fatalf("find customer: %v", err)
	}
	if len(customer.PurchaseHistory) != 0 {
		t.Fatalf("cancelled order must leave history, got %v", customer.PurchaseHistory)
	}

	if _, err := orders.Cancel(ctx, services.CancelOrderCommand{OrderID: order.ID, CustomerID: "cus_1"}); !errors.Is(err, services.ErrOrderInvalidTransition) {
		t.Fatalf("second cancel must fail, got %v", err)
	}
	if a := stockOf("prod_a"); a != 5 {
		t.Fatalf("second cancel must not restore again, got %d", a)
	}
}
