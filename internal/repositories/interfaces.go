package repositories

import (
	"context"
	"time"

	domain "github.com/hanko-field/order-admin/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Inventory() InventoryRepository
	Orders() OrderRepository
	Customers() CustomerRepository
	Health() HealthRepository
	UnitOfWork
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UnitOfWork groups repository operations in one transaction. Repositories called with the
// context passed to fn join that transaction. fn may be retried and must not have side effects
// outside the store.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// StockLine is a quantity of one product to reserve or restore.
type StockLine struct {
	ProductID string
	Quantity  int
}

// StockLevel reports a product's stock after a mutation together with its current unit price.
type StockLevel struct {
	ProductID string
	UnitPrice int64
	Stock     int
}

// InventoryRepository owns product stock counters. Multi-line calls are all-or-nothing: every
// line is validated against the stored stock before any line is written.
type InventoryRepository interface {
	Reserve(ctx context.Context, lines []StockLine) ([]StockLevel, error)
	Restore(ctx context.Context, lines []StockLine) ([]StockLevel, error)
	FindByID(ctx context.Context, productID string) (domain.Product, error)
	ListStock(ctx context.Context) ([]domain.Product, error)
}

// OrderListFilter narrows order listings. Results are ordered by creation time, newest first.
type OrderListFilter struct {
	Status     []domain.OrderStatus
	CustomerID string
	Pagination domain.Pagination
}

// OrderRepository persists order documents.
type OrderRepository interface {
	// Insert fails with an OrderError of code OrderErrorDuplicate when the id is taken.
	Insert(ctx context.Context, order domain.Order) error
	// Update fails with OrderErrorStatusMismatch when the stored status differs from expected.
	Update(ctx context.Context, order domain.Order, expected domain.OrderStatus) error
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	List(ctx context.Context, filter OrderListFilter) (domain.CursorPage[domain.Order], error)
	// ListCreatedBetween returns orders with from <= createdAt < to.
	ListCreatedBetween(ctx context.Context, from, to time.Time) ([]domain.Order, error)
}

// CustomerRepository persists customers and their purchase history.
type CustomerRepository interface {
	FindByID(ctx context.Context, customerID string) (domain.Customer, error)
	Save(ctx context.Context, customer domain.Customer) error
	// LinkOrder appends orderID to the purchase history unless already present.
	LinkOrder(ctx context.Context, customerID, orderID string, now time.Time) error
	// UnlinkOrder removes the first occurrence of orderID; absent ids are ignored.
	UnlinkOrder(ctx context.Context, customerID, orderID string, now time.Time) error
	ListActive(ctx context.Context) ([]domain.Customer, error)
}

// HealthRepository reports dependency health for readiness probes.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}
