package domain

import (
	"time"
)

// Pagination defines standard cursor-based paging inputs for list operations.
type Pagination struct {
	PageSize  int
	PageToken string
}

// SortOrder indicates ascending or descending ordering for list queries.
type SortOrder string

const (
	// SortAsc sorts results in ascending order.
	SortAsc SortOrder = "asc"
	// SortDesc sorts results in descending order.
	SortDesc SortOrder = "desc"
)

// RangeQuery represents inclusive range filters for numeric or timestamp fields.
type RangeQuery[T comparable] struct {
	From *T
	To   *T
}

// OrderStatus enumerates valid lifecycle states for orders. The string values are persisted.
type OrderStatus string

const (
	// OrderStatusPending is the initial state of every order; stock is reserved.
	OrderStatusPending OrderStatus = "Pending"
	// OrderStatusShipped indicates the order left the warehouse.
	OrderStatusShipped OrderStatus = "Shipped"
	// OrderStatusDelivered is terminal.
	OrderStatusDelivered OrderStatus = "Delivered"
	// OrderStatusCancelled is terminal; reserved stock has been restored.
	OrderStatusCancelled OrderStatus = "Cancelled"
)

var orderStatuses = map[OrderStatus]struct{}{
	OrderStatusPending:   {},
	OrderStatusShipped:   {},
	OrderStatusDelivered: {},
	OrderStatusCancelled: {},
}

// ParseOrderStatus matches the persisted status value exactly.
func ParseOrderStatus(value string) (OrderStatus, bool) {
	status := OrderStatus(value)
	if _, ok := orderStatuses[status]; !ok {
		return "", false
	}
	return status, true
}

// Valid reports whether the status is one of the defined lifecycle states.
func (s OrderStatus) Valid() bool {
	_, ok := orderStatuses[s]
	return ok
}

// IsTerminal reports whether no further transitions leave the status.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// Product is a catalogue entry together with its stock counter.
type Product struct {
	ID          string
	Name        string
	Description string
	UnitPrice   int64
	Stock       int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// OrderLine is one (product, quantity, snapshotted unit price) triple of an order.
type OrderLine struct {
	ProductID string
	Quantity  int
	UnitPrice int64
}

// Subtotal returns quantity times the snapshotted unit price.
func (l OrderLine) Subtotal() int64 {
	return int64(l.Quantity) * l.UnitPrice
}

// Order stores its lines as three index-aligned sequences, matching the persisted layout.
type Order struct {
	ID           string
	CustomerID   string
	ProductIDs   []string
	Quantities   []int
	UnitPrices   []int64
	Status       OrderStatus
	Total        int64
	CancelReason string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	CancelledAt  *time.Time
}

// NewOrderFromLines builds the parallel sequences and total from lines.
func NewOrderFromLines(id, customerID string, lines []OrderLine, now time.Time) Order {
	order := Order{
		ID:         id,
		CustomerID: customerID,
		ProductIDs: make([]string, 0, len(lines)),
		Quantities: make([]int, 0, len(lines)),
		UnitPrices: make([]int64, 0, len(lines)),
		Status:     OrderStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	for _, line := range lines {
		order.ProductIDs = append(order.ProductIDs, line.ProductID)
		order.Quantities = append(order.Quantities, line.Quantity)
		order.UnitPrices = append(order.UnitPrices, line.UnitPrice)
	}
	order.Total = order.ComputeTotal()
	return order
}

// Lines zips the parallel sequences back into lines. It returns nil when the lengths disagree.
func (o Order) Lines() []OrderLine {
	if !o.Consistent() {
		return nil
	}
	lines := make([]OrderLine, len(o.ProductIDs))
	for i := range o.ProductIDs {
		lines[i] = OrderLine{
			ProductID: o.ProductIDs[i],
			Quantity:  o.Quantities[i],
			UnitPrice: o.UnitPrices[i],
		}
	}
	return lines
}

// Consistent reports whether the three line sequences share the same length.
func (o Order) Consistent() bool {
	return len(o.ProductIDs) == len(o.Quantities) && len(o.ProductIDs) == len(o.UnitPrices)
}

// ComputeTotal sums quantity * unit price across lines.
func (o Order) ComputeTotal() int64 {
	var total int64
	for _, line := range o.Lines() {
		total += line.Subtotal()
	}
	return total
}

// Customer holds contact data and the ids of the customer's active orders.
type Customer struct {
	ID              string
	Name            string
	Address         string
	Email           string
	Phone           string
	PurchaseHistory []string
	Active          bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// HasPurchase reports whether orderID is linked to the customer.
func (c Customer) HasPurchase(orderID string) bool {
	for _, id := range c.PurchaseHistory {
		if id == orderID {
			return true
		}
	}
	return false
}

// CursorPage represents a paginated result set with an optional continuation token.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}

const (
	// HealthStatusOK indicates all dependencies are healthy.
	HealthStatusOK = "ok"
	// HealthStatusDegraded indicates at least one dependency is degraded but service remains running.
	HealthStatusDegraded = "degraded"
	// HealthStatusError indicates the service or a critical dependency is unavailable.
	HealthStatusError = "error"
)

// SystemHealthCheck describes the outcome of an individual dependency probe.
type SystemHealthCheck struct {
	Status    string
	Detail    string
	Latency   time.Duration
	CheckedAt time.Time
}

// SystemHealthReport aggregates dependency status for readiness endpoints.
type SystemHealthReport struct {
	Status      string
	Checks      map[string]SystemHealthCheck
	GeneratedAt time.Time
}
