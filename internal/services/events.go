package services

import (
	"context"
	"time"

	domain "github.com/hanko-field/order-admin/internal/domain"
)

const (
	// OrderEventCreated is published after an order commits in Pending.
	OrderEventCreated = "order.created"
	// OrderEventStatusChanged is published after Shipped or Delivered commits.
	OrderEventStatusChanged = "order.status_changed"
	// OrderEventCancelled is published after a cancellation commits.
	OrderEventCancelled = "order.cancelled"
)

// OrderEvent is the payload emitted to downstream consumers.
type OrderEvent struct {
	Type           string             `json:"type"`
	OrderID        string             `json:"orderId"`
	CustomerID     string             `json:"customerId"`
	Status         domain.OrderStatus `json:"status"`
	PreviousStatus domain.OrderStatus `json:"previousStatus,omitempty"`
	Total          int64              `json:"total"`
	OccurredAt     time.Time          `json:"occurredAt"`
}

// OrderEventPublisher delivers order events. Publishing happens after commit; failures are
// logged and never undo the committed change.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) error
}

func orderEvent(eventType string, order Order, previous domain.OrderStatus, at time.Time) OrderEvent {
	return OrderEvent{
		Type:           eventType,
		OrderID:        order.ID,
		CustomerID:     order.CustomerID,
		Status:         order.Status,
		PreviousStatus: previous,
		Total:          order.Total,
		OccurredAt:     at,
	}
}
