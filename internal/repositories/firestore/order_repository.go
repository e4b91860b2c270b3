package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/hanko-field/order-admin/internal/domain"
	pfirestore "github.com/hanko-field/order-admin/internal/platform/firestore"
	"github.com/hanko-field/order-admin/internal/platform/pagination"
	"github.com/hanko-field/order-admin/internal/repositories"
)

const ordersCollection = "orders"

// OrderRepository persists orders in the "orders" collection.
type OrderRepository struct {
	provider *pfirestore.Provider
	orders   *pfirestore.BaseRepository[orderDocument]
}

// NewOrderRepository constructs the Firestore order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	return &OrderRepository{
		provider: provider,
		orders:   pfirestore.NewBaseRepository[orderDocument](provider, ordersCollection),
	}, nil
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)

// Insert creates the order document.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	if err := r.orders.Create(ctx, order.ID, newOrderDocument(order)); err != nil {
		if pfirestore.IsAlreadyExists(err) {
			return repositories.NewOrderError(repositories.OrderErrorDuplicate, order.ID,
				fmt.Sprintf("order %s already exists", order.ID), err)
		}
		return err
	}
	return nil
}

// Update overwrites the order when its stored status still equals expected.
func (r *OrderRepository) Update(ctx context.Context, order domain.Order, expected domain.OrderStatus) error {
	if _, ok := pfirestore.TransactionFromContext(ctx); ok {
		return r.updateInTx(ctx, order, expected)
	}
	return r.provider.RunTransaction(ctx, func(txCtx context.Context, _ *firestore.Transaction) error {
		return r.updateInTx(txCtx, order, expected)
	})
}

func (r *OrderRepository) updateInTx(ctx context.Context, order domain.Order, expected domain.OrderStatus) error {
	current, ok := readSetFrom(ctx).orderStatus(order.ID)
	if !ok {
		stored, err := r.FindByID(ctx, order.ID)
		if err != nil {
			return err
		}
		current = stored.Status
	}
	if current != expected {
		return repositories.NewOrderError(repositories.OrderErrorStatusMismatch, order.ID,
			fmt.Sprintf("order %s is %s, expected %s", order.ID, current, expected), nil)
	}
	return r.orders.Set(ctx, order.ID, newOrderDocument(order))
}

// FindByID loads an order. Inside a unit of work the read status is remembered for Update.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	doc, err := r.orders.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	order := doc.Data.toDomain(doc.ID)
	readSetFrom(ctx).recordOrder(order.ID, order.Status)
	return order, nil
}

// List pages through orders newest first. The page token encodes the last (createdAt, id) pair.
func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
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

	docs, err := r.orders.Query(ctx, func(q firestore.Query) firestore.Query {
		switch len(filter.Status) {
		case 0:
		case 1:
			q = q.Where("status", "==", string(filter.Status[0]))
		default:
			values := make([]string, len(filter.Status))
			for i, s := range filter.Status {
				values[i] = string(s)
			}
			q = q.Where("status", "in", values)
		}
		if id := strings.TrimSpace(filter.CustomerID); id != "" {
			q = q.Where("customerId", "==", id)
		}
		q = q.OrderBy("createdAt", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Desc)
		if cursor.ID != "" {
			q = q.StartAfter(cursor.CreatedAt, cursor.ID)
		}
		return q.Limit(pageSize + 1)
	})
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}

	page := domain.CursorPage[domain.Order]{Items: make([]domain.Order, 0, min(len(docs), pageSize))}
	for i, doc := range docs {
		if i == pageSize {
			last := page.Items[len(page.Items)-1]
			page.NextPageToken = pagination.EncodeToken(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
			break
		}
		page.Items = append(page.Items, doc.Data.toDomain(doc.ID))
	}
	return page, nil
}

// ListCreatedBetween returns orders with from <= createdAt < to.
func (r *OrderRepository) ListCreatedBetween(ctx context.Context, from, to time.Time) ([]domain.Order, error) {
	docs, err := r.orders.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("createdAt", ">=", from.UTC()).
			Where("createdAt", "<", to.UTC()).
			OrderBy("createdAt", firestore.Asc)
	})
	if err != nil {
		return nil, err
	}
	orders := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		orders = append(orders, doc.Data.toDomain(doc.ID))
	}
	return orders, nil
}

type orderDocument struct {
	CustomerID   string     `firestore:"customerId"`
	ProductIDs   []string   `firestore:"productIds"`
	Quantities   []int      `firestore:"quantities"`
	UnitPrices   []int64    `firestore:"unitPrices"`
	Status       string     `firestore:"status"`
	Total        int64      `firestore:"total"`
	CancelReason string     `firestore:"cancelReason,omitempty"`
	CreatedAt    time.Time  `firestore:"createdAt"`
	UpdatedAt    time.Time  `firestore:"updatedAt"`
	CancelledAt  *time.Time `firestore:"cancelledAt,omitempty"`
}

func newOrderDocument(o domain.Order) orderDocument {
	doc := orderDocument{
		CustomerID:   o.CustomerID,
		ProductIDs:   append([]string(nil), o.ProductIDs...),
		Quantities:   append([]int(nil), o.Quantities...),
		UnitPrices:   append([]int64(nil), o.UnitPrices...),
		Status:       string(o.Status),
		Total:        o.Total,
		CancelReason: o.CancelReason,
		CreatedAt:    o.CreatedAt.UTC(),
		UpdatedAt:    o.UpdatedAt.UTC(),
	}
	if o.CancelledAt != nil {
		at := o.CancelledAt.UTC()
		doc.CancelledAt = &at
	}
	return doc
}

func (d orderDocument) toDomain(id string) domain.Order {
	order := domain.Order{
		ID:           id,
		CustomerID:   d.CustomerID,
		ProductIDs:   d.ProductIDs,
		Quantities:   d.Quantities,
		UnitPrices:   d.UnitPrices,
		Status:       domain.OrderStatus(d.Status),
		Total:        d.Total,
		CancelReason: d.CancelReason,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
	if d.CancelledAt != nil {
		at := *d.CancelledAt
		order.CancelledAt = &at
	}
	return order
}
