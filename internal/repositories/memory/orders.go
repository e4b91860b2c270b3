package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	domain "github.com/hanko-field/order-admin/internal/domain"
	"github.com/hanko-field/order-admin/internal/platform/pagination"
	"github.com/hanko-field/order-admin/internal/repositories"
)

type orderRepository struct {
	store *Store
}

func (r *orderRepository) Insert(ctx context.Context, order domain.Order) error {
	defer r.store.lock(ctx)()
	if _, exists := r.store.orders[order.ID]; exists {
		return repositories.NewOrderError(repositories.OrderErrorDuplicate, order.ID,
			fmt.Sprintf("order %s already exists", order.ID), nil)
	}
	r.store.orders[order.ID] = cloneOrder(order)
	return nil
}

func (r *orderRepository) Update(ctx context.Context, order domain.Order, expected domain.OrderStatus) error {
	defer r.store.lock(ctx)()
	stored, ok := r.store.orders[order.ID]
	if !ok {
		return &notFoundError{collection: "orders", id: order.ID}
	}
	if stored.Status != expected {
		return repositories.NewOrderError(repositories.OrderErrorStatusMismatch, order.ID,
			fmt.Sprintf("order %s is %s, expected %s", order.ID, stored.Status, expected), nil)
	}
	r.store.orders[order.ID] = cloneOrder(order)
	return nil
}

func (r *orderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	defer r.store.lock(ctx)()
	order, ok := r.store.orders[orderID]
	if !ok {
		return domain.Order{}, &notFoundError{collection: "orders", id: orderID}
	}
	return cloneOrder(order), nil
}

func (r *orderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	pageSize := filter.Pagination.PageSize
	if pageSize <= 0 {
		pageSize = pagination.DefaultPageSize
	}
	var cursor pagination.Cursor
	if token := strings.TrimSpace(filter.Pagination.PageToken); token != "" {
		decoded, err := pagination.DecodeToken(token)
		if err != nil {
			return domain.CursorPage[domain.Order]{}, err
		}
		cursor = decoded
	}

	statuses := make(map[domain.OrderStatus]struct{}, len(filter.Status))
	for _, s := range filter.Status {
		statuses[s] = struct{}{}
	}
	customerID := strings.TrimSpace(filter.CustomerID)

	unlock := r.store.lock(ctx)
	matched := make([]domain.Order, 0, len(r.store.orders))
	for _, order := range r.store.orders {
		if len(statuses) > 0 {
			if _, ok := statuses[order.Status]; !ok {
				continue
			}
		}
		if customerID != "" && order.CustomerID != customerID {
			continue
		}
		matched = append(matched, cloneOrder(order))
	}
	unlock()

	sort.Slice(matched, func(i, j int) bool { return newerThan(matched[i], matched[j].CreatedAt, matched[j].ID) })

	start := 0
	if cursor.ID != "" {
		start = len(matched)
		for i, order := range matched {
			if !newerThan(order, cursor.CreatedAt, cursor.ID) {
				start = i
				break
			}
		}
		// skip the cursor row itself
		if start < len(matched) && matched[start].ID == cursor.ID && matched[start].CreatedAt.Equal(cursor.CreatedAt) {
			start++
		}
	}

	page := domain.CursorPage[domain.Order]{}
	end := min(start+pageSize, len(matched))
	page.Items = matched[start:end]
	if end < len(matched) {
		last := page.Items[len(page.Items)-1]
		page.NextPageToken = pagination.EncodeToken(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return page, nil
}

// newerThan orders by createdAt then id, both descending.
func newerThan(o domain.Order, createdAt time.Time, id string) bool {
	if !o.CreatedAt.Equal(createdAt) {
		return o.CreatedAt.After(createdAt)
	}
	return o.ID > id
}

func (r *orderRepository) ListCreatedBetween(ctx context.Context, from, to time.Time) ([]domain.Order, error) {
	defer r.store.lock(ctx)()
	var orders []domain.Order
	for _, order := range r.store.orders {
		if order.CreatedAt.Before(from) || !order.CreatedAt.Before(to) {
			continue
		}
		orders = append(orders, cloneOrder(order))
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].CreatedAt.Before(orders[j].CreatedAt) })
	return orders, nil
}
