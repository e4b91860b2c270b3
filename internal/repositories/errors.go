package repositories

import (
	"errors"
	"fmt"
)

// InventoryErrorCode enumerates why a stock mutation was refused.
type InventoryErrorCode string

const (
	InventoryErrorUnknown           InventoryErrorCode = "inventory_unknown"
	InventoryErrorInsufficientStock InventoryErrorCode = "inventory_insufficient_stock"
	InventoryErrorProductNotFound   InventoryErrorCode = "inventory_product_not_found"
	InventoryErrorInvalidQuantity   InventoryErrorCode = "inventory_invalid_quantity"
)

// OrderErrorCode enumerates failure reasons for order persistence.
type OrderErrorCode string

const (
	// OrderErrorDuplicate indicates an order with the same id already exists.
	OrderErrorDuplicate OrderErrorCode = "order_duplicate"
	// OrderErrorStatusMismatch indicates the stored status changed since it was read.
	OrderErrorStatusMismatch OrderErrorCode = "order_status_mismatch"
)

// InventoryError reports a refused stock mutation. ProductID names the first offending line.
type InventoryError struct {
	Op        string
	Code      InventoryErrorCode
	ProductID string
	Message   string
	Err       error
}

// NewInventoryError builds an InventoryError; an empty message defaults to the code.
func NewInventoryError(code InventoryErrorCode, productID, message string, err error) *InventoryError {
	return &InventoryError{Code: code, ProductID: productID, Message: orCode(message, string(code)), Err: err}
}

func (e *InventoryError) Error() string { return describe(e.Op, e.Message) }

func (e *InventoryError) Unwrap() error { return e.Err }

// IsNotFound reports a missing product.
func (e *InventoryError) IsNotFound() bool { return e.Code == InventoryErrorProductNotFound }

// IsConflict is false: stock shortfalls are a business outcome, not a write conflict.
func (e *InventoryError) IsConflict() bool { return false }

// IsUnavailable reports whether the wrapped store error is a transient outage.
func (e *InventoryError) IsUnavailable() bool { return wrappedUnavailable(e.Err) }

// OrderError reports a refused order write.
type OrderError struct {
	Op      string
	Code    OrderErrorCode
	OrderID string
	Message string
	Err     error
}

// NewOrderError builds an OrderError; an empty message defaults to the code.
func NewOrderError(code OrderErrorCode, orderID, message string, err error) *OrderError {
	return &OrderError{Code: code, OrderID: orderID, Message: orCode(message, string(code)), Err: err}
}

func (e *OrderError) Error() string { return describe(e.Op, e.Message) }

func (e *OrderError) Unwrap() error { return e.Err }

func (e *OrderError) IsNotFound() bool { return false }

// IsConflict reports both duplicates and status races.
func (e *OrderError) IsConflict() bool { return true }

func (e *OrderError) IsUnavailable() bool { return wrappedUnavailable(e.Err) }

var (
	_ RepositoryError = (*InventoryError)(nil)
	_ RepositoryError = (*OrderError)(nil)
)

func describe(op, message string) string {
	if op == "" {
		return message
	}
	return fmt.Sprintf("%s: %s", op, message)
}

func orCode(message, code string) string {
	if message == "" {
		return code
	}
	return message
}

func wrappedUnavailable(err error) bool {
	var repoErr RepositoryError
	return err != nil && errors.As(err, &repoErr) && repoErr.IsUnavailable()
}
