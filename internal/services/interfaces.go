package services

import (
	"context"
	"time"

	domain "github.com/hanko-field/order-admin/internal/domain"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Order       = domain.Order
	OrderLine   = domain.OrderLine
	OrderStatus = domain.OrderStatus
	Product     = domain.Product
	Customer    = domain.Customer
	Pagination  = domain.Pagination
)

// InventoryService guards stock counters. Reservations never drive stock below zero.
type InventoryService interface {
	Reserve(ctx context.Context, productID string, quantity int) (int, error)
	Restore(ctx context.Context, productID string, quantity int) (int, error)
	ReserveLines(ctx context.Context, lines []StockLineInput) ([]StockSnapshot, error)
	RestoreLines(ctx context.Context, lines []StockLineInput) ([]StockSnapshot, error)
	ListStock(ctx context.Context) ([]Product, error)
}

// OrderService owns order creation, status progression and cancellation.
type OrderService interface {
	Create(ctx context.Context, cmd CreateOrderCommand) (Order, error)
	Advance(ctx context.Context, cmd AdvanceOrderCommand) (Order, error)
	Cancel(ctx context.Context, cmd CancelOrderCommand) (Order, error)
	Get(ctx context.Context, orderID string) (Order, error)
	List(ctx context.Context, filter OrderListFilter) (domain.CursorPage[Order], error)
}

// PurchaseHistoryService keeps a customer's purchase history in sync with order lifecycle.
type PurchaseHistoryService interface {
	Link(ctx context.Context, customerID, orderID string) error
	Unlink(ctx context.Context, customerID, orderID string) error
}

// RevenueService aggregates order totals per calendar month.
type RevenueService interface {
	RevenueForMonth(ctx context.Context, month, year int) (MonthlyRevenue, error)
}

// CustomerService exposes customer listings.
type CustomerService interface {
	ListActive(ctx context.Context) ([]Customer, error)
}

// StockLineInput requests a quantity of one product.
type StockLineInput struct {
	ProductID string
	Quantity  int
}

// StockSnapshot is the post-mutation stock of one product with the price read alongside it.
type StockSnapshot struct {
	ProductID string
	UnitPrice int64
	Stock     int
}

// OrderLineInput is one requested line of a new order.
type OrderLineInput struct {
	ProductID string
	Quantity  int
}

// CreateOrderCommand carries the payload for OrderService.Create.
type CreateOrderCommand struct {
	CustomerID string
	Lines      []OrderLineInput
}

// AdvanceOrderCommand moves an order to TargetStatus. ExpectedStatus, when set, must match the
// stored status at write time.
type AdvanceOrderCommand struct {
	OrderID        string
	TargetStatus   string
	ExpectedStatus *OrderStatus
	ActorID        string
}

// CancelOrderCommand cancels a Pending order on behalf of its owner.
type CancelOrderCommand struct {
	OrderID    string
	CustomerID string
	Reason     string
}

// OrderListFilter narrows OrderService.List.
type OrderListFilter struct {
	Status     []OrderStatus
	CustomerID string
	Pagination Pagination
}

// MonthlyRevenue is the non-cancelled order total for one calendar month.
type MonthlyRevenue struct {
	Month      int
	Year       int
	Total      int64
	OrderCount int
	From       time.Time
	To         time.Time
}
