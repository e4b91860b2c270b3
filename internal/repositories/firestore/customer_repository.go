package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/hanko-field/order-admin/internal/domain"
	pfirestore "github.com/hanko-field/order-admin/internal/platform/firestore"
	"github.com/hanko-field/order-admin/internal/repositories"
)

const customersCollection = "customers"

// CustomerRepository persists customers in the "customers" collection.
type CustomerRepository struct {
	customers *pfirestore.BaseRepository[customerDocument]
}

// NewCustomerRepository constructs the Firestore customer repository.
func NewCustomerRepository(provider *pfirestore.Provider) (*CustomerRepository, error) {
	if provider == nil {
		return nil, errors.New("customer repository requires firestore provider")
	}
	return &CustomerRepository{
		customers: pfirestore.NewBaseRepository[customerDocument](provider, customersCollection),
	}, nil
}

var _ repositories.CustomerRepository = (*CustomerRepository)(nil)

func (r *CustomerRepository) FindByID(ctx context.Context, customerID string) (domain.Customer, error) {
	doc, err := r.customers.Get(ctx, customerID)
	if err != nil {
		return domain.Customer{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

func (r *CustomerRepository) Save(ctx context.Context, customer domain.Customer) error {
	return r.customers.Set(ctx, customer.ID, newCustomerDocument(customer))
}

// LinkOrder uses a set-union transform so the write needs no prior read.
func (r *CustomerRepository) LinkOrder(ctx context.Context, customerID, orderID string, now time.Time) error {
	return r.customers.Update(ctx, customerID, []firestore.Update{
		{Path: "purchaseHistory", Value: firestore.ArrayUnion(orderID)},
		{Path: "updatedAt", Value: now.UTC()},
	})
}

// UnlinkOrder removes orderID from the purchase history. Order ids are unique, so removing
// every occurrence equals removing the first one.
func (r *CustomerRepository) UnlinkOrder(ctx context.Context, customerID, orderID string, now time.Time) error {
	return r.customers.Update(ctx, customerID, []firestore.Update{
		{Path: "purchaseHistory", Value: firestore.ArrayRemove(orderID)},
		{Path: "updatedAt", Value: now.UTC()},
	})
}

func (r *CustomerRepository) ListActive(ctx context.Context) ([]domain.Customer, error) {
	docs, err := r.customers.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("active", "==", true).OrderBy(firestore.DocumentID, firestore.Asc)
	})
	if err != nil {
		return nil, err
	}
	customers := make([]domain.Customer, 0, len(docs))
	for _, doc := range docs {
		customers = append(customers, doc.Data.toDomain(doc.ID))
	}
	return customers, nil
}

type customerDocument struct {
	Name            string    `firestore:"name"`
	Address         string    `firestore:"address"`
	Email           string    `firestore:"email"`
	Phone           string    `firestore:"phone"`
	PurchaseHistory []string  `firestore:"purchaseHistory"`
	Active          bool      `firestore:"active"`
	CreatedAt       time.Time `firestore:"createdAt"`
	UpdatedAt       time.Time `firestore:"updatedAt"`
}

func newCustomerDocument(c domain.Customer) customerDocument {
	history := c.PurchaseHistory
	if history == nil {
		history = []string{}
	}
	return customerDocument{
		Name:            strings.TrimSpace(c.Name),
		Address:         strings.TrimSpace(c.Address),
		Email:           strings.TrimSpace(c.Email),
		Phone:           strings.TrimSpace(c.Phone),
		PurchaseHistory: append([]string(nil), history...),
		Active:          c.Active,
		CreatedAt:       c.CreatedAt.UTC(),
		UpdatedAt:       c.UpdatedAt.UTC(),
	}
}

func (d customerDocument) toDomain(id string) domain.Customer {
	return domain.Customer{
		ID:              id,
		Name:            d.Name,
		Address:         d.Address,
		Email:           d.Email,
		Phone:           d.Phone,
		PurchaseHistory: d.PurchaseHistory,
		Active:          d.Active,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
}
