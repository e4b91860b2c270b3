package firestore

import (
	"context"
	"errors"

	pfirestore "github.com/hanko-field/order-admin/internal/platform/firestore"
	"github.com/hanko-field/order-admin/internal/repositories"
)

// Registry bundles the Firestore repositories behind repositories.Registry.
type Registry struct {
	*UnitOfWork

	provider  *pfirestore.Provider
	products  *ProductRepository
	orders    *OrderRepository
	customers *CustomerRepository
	health    repositories.HealthRepository
}

var _ repositories.Registry = (*Registry)(nil)

// NewRegistry wires every repository against provider. A nil health repository defaults to a
// single Firestore ping probe.
func NewRegistry(provider *pfirestore.Provider, health repositories.HealthRepository) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("firestore registry requires provider")
	}
	products, err := NewProductRepository(provider)
	if err != nil {
		return nil, err
	}
	orders, err := NewOrderRepository(provider)
	if err != nil {
		return nil, err
	}
	customers, err := NewCustomerRepository(provider)
	if err != nil {
		return nil, err
	}
	uow, err := NewUnitOfWork(provider)
	if err != nil {
		return nil, err
	}
	if health == nil {
		health, err = repositories.NewProbeHealthRepository([]repositories.Probe{
			{Name: "firestore", Check: provider.Ping},
		})
		if err != nil {
			return nil, err
		}
	}
	return &Registry{
		UnitOfWork: uow,
		provider:   provider,
		products:   products,
		orders:     orders,
		customers:  customers,
		health:     health,
	}, nil
}

func (r *Registry) Inventory() repositories.InventoryRepository { return r.products }

func (r *Registry) Orders() repositories.OrderRepository { return r.orders }

func (r *Registry) Customers() repositories.CustomerRepository { return r.customers }

func (r *Registry) Health() repositories.HealthRepository { return r.health }

// Products exposes the concrete product repository for seeding.
func (r *Registry) Products() *ProductRepository { return r.products }

// Close releases the Firestore client.
func (r *Registry) Close(ctx context.Context) error {
	return r.provider.Close(ctx)
}
