package memory

import (
	"context"
	"sort"
	"time"

	domain "github.com/hanko-field/order-admin/internal/domain"
)

type customerRepository struct {
	store *Store
}

func (r *customerRepository) FindByID(ctx context.Context, customerID string) (domain.Customer, error) {
	defer r.store.lock(ctx)()
	customer, ok := r.store.customers[customerID]
	if !ok {
		return domain.Customer{}, &notFoundError{collection: "customers", id: customerID}
	}
	customer.PurchaseHistory = append([]string(nil), customer.PurchaseHistory...)
	return customer, nil
}

func (r *customerRepository) Save(ctx context.Context, customer domain.Customer) error {
	defer r.store.lock(ctx)()
	customer.PurchaseHistory = append([]string(nil), customer.PurchaseHistory...)
	r.store.customers[customer.ID] = customer
	return nil
}

func (r *customerRepository) LinkOrder(ctx context.Context, customerID, orderID string, now time.Time) error {
	defer r.store.lock(ctx)()
	customer, ok := r.store.customers[customerID]
	if !ok {
		return &notFoundError{collection: "customers", id: customerID}
	}
	if customer.HasPurchase(orderID) {
		return nil
	}
	customer.PurchaseHistory = append(append([]string(nil), customer.PurchaseHistory...), orderID)
	customer.UpdatedAt = now
	r.store.customers[customerID] = customer
	return nil
}

func (r *customerRepository) UnlinkOrder(ctx context.Context, customerID, orderID string, now time.Time) error {
	defer r.store.lock(ctx)()
	customer, ok := r.store.customers[customerID]
	if !ok {
		return &notFoundError{collection: "customers", id: customerID}
	}
	for i, id := range customer.PurchaseHistory {
		if id != orderID {
			continue
		}
		history := make([]string, 0, len(customer.PurchaseHistory)-1)
		history = append(history, customer.PurchaseHistory[:i]...)
		customer.PurchaseHistory = append(history, customer.PurchaseHistory[i+1:]...)
		customer.UpdatedAt = now
		r.store.customers[customerID] = customer
		return nil
	}
	return nil
}

func (r *customerRepository) ListActive(ctx context.Context) ([]domain.Customer, error) {
	defer r.store.lock(ctx)()
	var active []domain.Customer
	for _, c := range r.store.customers {
		if !c.Active {
			continue
		}
		c.PurchaseHistory = append([]string(nil), c.PurchaseHistory...)
		active = append(active, c)
	}
	sort.Slice(active, func(i, j int) bool { return active[i].ID < active[j].ID })
	return active, nil
}
