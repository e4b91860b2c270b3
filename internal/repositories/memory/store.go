// Package memory provides a process-local repository implementation used for local runs and tests.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	domain "github.com/hanko-field/order-admin/internal/domain"
	"github.com/hanko-field/order-admin/internal/repositories"
)

// Store holds every collection behind one mutex. RunInTx holds the mutex for the whole unit of
// work and rolls the collections back when fn fails.
type Store struct {
	mu        sync.Mutex
	products  map[string]domain.Product
	orders    map[string]domain.Order
	customers map[string]domain.Customer
	health    repositories.HealthRepository

	inventory *inventoryRepository
	orderRepo *orderRepository
	custRepo  *customerRepository
}

var _ repositories.Registry = (*Store)(nil)

// NewStore returns an empty store whose health report always reads ok.
func NewStore() *Store {
	s := &Store{
		products:  make(map[string]domain.Product),
		orders:    make(map[string]domain.Order),
		customers: make(map[string]domain.Customer),
	}
	s.inventory = &inventoryRepository{store: s}
	s.orderRepo = &orderRepository{store: s}
	s.custRepo = &customerRepository{store: s}
	health, _ := repositories.NewProbeHealthRepository([]repositories.Probe{
		{Name: "memory", Check: func(context.Context) error { return nil }},
	})
	s.health = health
	return s
}

func (s *Store) Inventory() repositories.InventoryRepository { return s.inventory }

func (s *Store) Orders() repositories.OrderRepository { return s.orderRepo }

func (s *Store) Customers() repositories.CustomerRepository { return s.custRepo }

func (s *Store) Health() repositories.HealthRepository { return s.health }

func (s *Store) Close(context.Context) error { return nil }

// PutProduct seeds or replaces a product.
func (s *Store) PutProduct(product domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[product.ID] = product
}

// PutCustomer seeds or replaces a customer.
func (s *Store) PutCustomer(customer domain.Customer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	customer.PurchaseHistory = append([]string(nil), customer.PurchaseHistory...)
	s.customers[customer.ID] = customer
}

type txKey struct{ store *Store }

// RunInTx serialises fn against every other store operation. Nested calls join the outer unit.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if fn == nil {
		return errors.New("memory: fn is nil")
	}
	if s.inTx(ctx) {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	if err := fn(context.WithValue(ctx, txKey{store: s}, true)); err != nil {
		s.products, s.orders, s.customers = snap.products, snap.orders, snap.customers
		return err
	}
	return nil
}

func (s *Store) inTx(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	active, _ := ctx.Value(txKey{store: s}).(bool)
	return active
}

// lock acquires the store mutex unless ctx already runs inside RunInTx.
func (s *Store) lock(ctx context.Context) func() {
	if s.inTx(ctx) {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

type snapshot struct {
	products  map[string]domain.Product
	orders    map[string]domain.Order
	customers map[string]domain.Customer
}

func (s *Store) snapshot() snapshot {
	snap := snapshot{
		products:  make(map[string]domain.Product, len(s.products)),
		orders:    make(map[string]domain.Order, len(s.orders)),
		customers: make(map[string]domain.Customer, len(s.customers)),
	}
	for id, p := range s.products {
		snap.products[id] = p
	}
	for id, o := range s.orders {
		snap.orders[id] = cloneOrder(o)
	}
	for id, c := range s.customers {
		c.PurchaseHistory = append([]string(nil), c.PurchaseHistory...)
		snap.customers[id] = c
	}
	return snap
}

func cloneOrder(o domain.Order) domain.Order {
	o.ProductIDs = append([]string(nil), o.ProductIDs...)
	o.Quantities = append([]int(nil), o.Quantities...)
	o.UnitPrices = append([]int64(nil), o.UnitPrices...)
	if o.CancelledAt != nil {
		at := *o.CancelledAt
		o.CancelledAt = &at
	}
	return o
}

// notFoundError satisfies repositories.RepositoryError.
type notFoundError struct {
	collection string
	id         string
}

func (e *notFoundError) Error() string {
	return fmt.Sprintf("memory.%s: %s not found", e.collection, e.id)
}

func (e *notFoundError) IsNotFound() bool    { return true }
func (e *notFoundError) IsConflict() bool    { return false }
func (e *notFoundError) IsUnavailable() bool { return false }
