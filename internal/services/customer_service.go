package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/hanko-field/order-admin/internal/repositories"
)

var (
	// ErrCustomerInvalidInput signals malformed customer identifiers.
	ErrCustomerInvalidInput = errors.New("customer: invalid input")
	// ErrCustomerNotFound indicates the customer does not exist.
	ErrCustomerNotFound = errors.New("customer: not found")
	// ErrCustomerNoneActive indicates no customer is flagged active.
	ErrCustomerNoneActive = errors.New("customer: no active customers")
	// ErrCustomerUnavailable indicates the customer store could not be reached.
	ErrCustomerUnavailable = errors.New("customer: unavailable")
)

// CustomerServiceDeps bundles collaborators for the customer service.
type CustomerServiceDeps struct {
	Customers repositories.CustomerRepository
}

type customerService struct {
	customers repositories.CustomerRepository
}

// NewCustomerService constructs the customer listing service.
func NewCustomerService(deps CustomerServiceDeps) (CustomerService, error) {
	if deps.Customers == nil {
		return nil, errors.New("customer service: customer repository is required")
	}
	return &customerService{customers: deps.Customers}, nil
}

func (s *customerService) ListActive(ctx context.Context) ([]Customer, error) {
	customers, err := s.customers.ListActive(ctx)
	if err != nil {
		return nil, mapCustomerError(err)
	}
	if len(customers) == 0 {
		return nil, ErrCustomerNoneActive
	}
	return customers, nil
}

func mapCustomerError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case isRepoNotFound(err):
		return fmt.Errorf("%w: %v", ErrCustomerNotFound, err)
	case isRepoUnavailable(err):
		return fmt.Errorf("%w: %v", ErrCustomerUnavailable, err)
	default:
		return err
	}
}
