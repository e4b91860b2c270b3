package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hanko-field/order-admin/internal/repositories"
)

// PurchaseHistoryServiceDeps bundles collaborators for the purchase history linker.
type PurchaseHistoryServiceDeps struct {
	Customers repositories.CustomerRepository
	Clock     func() time.Time
}

type purchaseHistoryService struct {
	customers repositories.CustomerRepository
	clock     func() time.Time
}

// NewPurchaseHistoryService constructs the linker. Link and Unlink join the caller's unit of work.
func NewPurchaseHistoryService(deps PurchaseHistoryServiceDeps) (PurchaseHistoryService, error) {
	if deps.Customers == nil {
		return nil, errors.New("purchase history service: customer repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &purchaseHistoryService{
		customers: deps.Customers,
		clock:     func() time.Time { return clock().UTC() },
	}, nil
}

// Link appends orderID unless the history already holds it.
func (s *purchaseHistoryService) Link(ctx context.Context, customerID, orderID string) error {
	customerID, orderID, err := historyIDs(customerID, orderID)
	if err != nil {
		return err
	}
	return mapCustomerError(s.customers.LinkOrder(ctx, customerID, orderID, s.clock()))
}

// Unlink drops the first occurrence of orderID. An id missing from the history is not an error.
func (s *purchaseHistoryService) Unlink(ctx context.Context, customerID, orderID string) error {
	customerID, orderID, err := historyIDs(customerID, orderID)
	if err != nil {
		return err
	}
	return mapCustomerError(s.customers.UnlinkOrder(ctx, customerID, orderID, s.clock()))
}

func historyIDs(customerID, orderID string) (string, string, error) {
	customerID = strings.TrimSpace(customerID)
	orderID = strings.TrimSpace(orderID)
	if customerID == "" || orderID == "" {
		return "", "", fmt.Errorf("%w: customer id and order id are required", ErrCustomerInvalidInput)
	}
	return customerID, orderID, nil
}
