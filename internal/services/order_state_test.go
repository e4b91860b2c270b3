package services

import (
	"errors"
	"testing"

	domain "github.com/hanko-field/order-admin/internal/domain"
)

func TestCanTransition(t *testing.T) {
	statuses := []domain.OrderStatus{
		domain.OrderStatusPending, domain.OrderStatusShipped, domain.OrderStatusDelivered, domain.OrderStatusCancelled,
	}
	allowed := map[[2]domain.OrderStatus]bool{
		{domain.OrderStatusPending, domain.OrderStatusShipped}:   true,
		{domain.OrderStatusShipped, domain.OrderStatusDelivered}: true,
		{domain.OrderStatusPending, domain.OrderStatusCancelled}: true,
	}
	for _, from := range statuses {
		for _, to := range statuses {
			if got := canTransition(from, to); got != allowed[[2]domain.OrderStatus{from, to}] {
				t.Errorf("canTransition(%s, %s) = %v", from, to, got)
			}
		}
	}
}

func TestParseTargetStatus(t *testing.T) {
	for _, value := range []string{"Pending", " Shipped ", "Delivered"} {
		if _, err := parseTargetStatus(value); err != nil {
			t.Errorf("parseTargetStatus(%q): %v", value, err)
		}
	}
	for _, value := range []string{"Cancelled", "Returned", "shipped", ""} {
		if _, err := parseTargetStatus(value); !errors.Is(err, ErrOrderUnknownStep) {
			t.Errorf("parseTargetStatus(%q) = %v, want unknown step", value, err)
		}
	}
}
