package services

import (
	"fmt"
	"strings"

	domain "github.com/hanko-field/order-admin/internal/domain"
)

var orderTransitions = map[domain.OrderStatus]map[domain.OrderStatus]struct{}{
	domain.OrderStatusPending: {
		domain.OrderStatusShipped:   {},
		domain.OrderStatusCancelled: {},
	},
	domain.OrderStatusShipped: {
		domain.OrderStatusDelivered: {},
	},
}

// advanceSteps are the statuses an advance may name. Cancelled is reached only through Cancel.
var advanceSteps = map[domain.OrderStatus]struct{}{
	domain.OrderStatusPending:   {},
	domain.OrderStatusShipped:   {},
	domain.OrderStatusDelivered: {},
}

// parseTargetStatus resolves a caller supplied status. Anything outside advanceSteps is an
// unknown step rather than an invalid transition.
func parseTargetStatus(value string) (domain.OrderStatus, error) {
	status, ok := domain.ParseOrderStatus(strings.TrimSpace(value))
	if _, step := advanceSteps[status]; !ok || !step {
		return "", fmt.Errorf("%w: %q", ErrOrderUnknownStep, value)
	}
	return status, nil
}

// canTransition reports whether current may move to target.
func canTransition(current, target domain.OrderStatus) bool {
	next, ok := orderTransitions[current]
	if !ok {
		return false
	}
	_, ok = next[target]
	return ok
}

func validateTransition(current, target domain.OrderStatus) error {
	if !canTransition(current, target) {
		return fmt.Errorf("%w: %s -> %s", ErrOrderInvalidTransition, current, target)
	}
	return nil
}
