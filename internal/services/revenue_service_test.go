package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/hanko-field/order-admin/internal/domain"
)

func TestRevenueServiceMonthlyTotals(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	seed := func(id string, total int64, at time.Time, status domain.OrderStatus) {
		t.Helper()
		order := domain.NewOrderFromLines(id, "cus_1", []domain.OrderLine{{ProductID: "prod_a", Quantity: 1, UnitPrice: total}}, at)
		order.Status = status
		if err := h.store.Orders().Insert(ctx, order); err != nil {
			t.Fatalf("seed %s: %v", id, err)
		}
	}
	seed("ord_first_day", 10, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), domain.OrderStatusPending)
	seed("ord_last_day", 20, time.Date(2024, 3, 31, 23, 59, 59, 0, time.UTC), domain.OrderStatusDelivered)
	seed("ord_cancelled", 30, time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC), domain.OrderStatusCancelled)
	seed("ord_april", 40, time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), domain.OrderStatusPending)
	seed("ord_february", 50, time.Date(2024, 2, 29, 23, 59, 59, 0, time.UTC), domain.OrderStatusShipped)

	report, err := h.revenue.RevenueForMonth(ctx, 3, 2024)
	if err != nil {
		t.Fatalf("revenue: %v", err)
	}
	if report.Total != 30 || report.OrderCount != 2 || report.Month != 3 || report.Year != 2024 {
		t.Fatalf("unexpected report %+v", report)
	}
	if !report.From.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)) || !report.To.Equal(time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected window %s - %s", report.From, report.To)
	}

	if _, err := h.revenue.RevenueForMonth(ctx, 5, 2024); !errors.Is(err, ErrRevenueNoOrders) {
		t.Fatalf("expected no orders for an empty month, got %v", err)
	}
}

func TestRevenueServiceOnlyCancelledIsEmpty(t *testing.T) {
	h := newHarness(t)
	order := h.create(t, OrderLineInput{ProductID: "prod_a", Quantity: 1})
	if _, err := h.orders.Cancel(context.Background(), CancelOrderCommand{OrderID: order.ID, CustomerID: "cus_1"}); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := h.revenue.RevenueForMonth(context.Background(), int(testNow.Month()), testNow.Year()); !errors.Is(err, ErrRevenueNoOrders) {
		t.Fatalf("expected no orders, got %v", err)
	}
}

func TestRevenueServiceValidation(t *testing.T) {
	h := newHarness(t)
	for _, tc := range []struct{ month, year int }{{0, 2024}, {13, 2024}, {6, 0}} {
		if _, err := h.revenue.RevenueForMonth(context.Background(), tc.month, tc.year); !errors.Is(err, ErrRevenueInvalidInput) {
			t.Fatalf("expected invalid input for %d/%d, got %v", tc.month, tc.year, err)
		}
	}
}
