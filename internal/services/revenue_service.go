package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/hanko-field/order-admin/internal/domain"
	"github.com/hanko-field/order-admin/internal/repositories"
)

var (
	// ErrRevenueInvalidInput signals an out-of-range month or year.
	ErrRevenueInvalidInput = errors.New("revenue: invalid input")
	// ErrRevenueNoOrders indicates no non-cancelled order was created in the month.
	ErrRevenueNoOrders = errors.New("revenue: no orders in period")
	// ErrRevenueUnavailable indicates the order store could not be reached.
	ErrRevenueUnavailable = errors.New("revenue: unavailable")
)

// RevenueServiceDeps bundles collaborators for the revenue aggregator.
type RevenueServiceDeps struct {
	Orders repositories.OrderRepository
	Logger func(ctx context.Context, event string, fields map[string]any)
}

type revenueService struct {
	orders repositories.OrderRepository
	logger func(context.Context, string, map[string]any)
}

// NewRevenueService constructs the monthly revenue aggregator.
func NewRevenueService(deps RevenueServiceDeps) (RevenueService, error) {
	if deps.Orders == nil {
		return nil, errors.New("revenue service: order repository is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &revenueService{orders: deps.Orders, logger: logger}, nil
}

// RevenueForMonth sums totals of non-cancelled orders created in [first of month, first of next
// month) UTC.
func (s *revenueService) RevenueForMonth(ctx context.Context, month, year int) (MonthlyRevenue, error) {
	if month < 1 || month > 12 {
		return MonthlyRevenue{}, fmt.Errorf("%w: month %d", ErrRevenueInvalidInput, month)
	}
	if year < 1 {
		return MonthlyRevenue{}, fmt.Errorf("%w: year %d", ErrRevenueInvalidInput, year)
	}

	from := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	orders, err := s.orders.ListCreatedBetween(ctx, from, to)
	if err != nil {
		if isRepoUnavailable(err) {
			return MonthlyRevenue{}, fmt.Errorf("%w: %v", ErrRevenueUnavailable, err)
		}
		return MonthlyRevenue{}, err
	}

	report := MonthlyRevenue{Month: month, Year: year, From: from, To: to}
	for _, order := range orders {
		if order.Status == domain.OrderStatusCancelled {
			continue
		}
		report.Total += order.Total
		report.OrderCount++
	}
	if report.OrderCount == 0 {
		return MonthlyRevenue{}, fmt.Errorf("%w: %04d-%02d", ErrRevenueNoOrders, year, month)
	}

	s.logger(ctx, "revenue.computed", map[string]any{
		"month":  month,
		"year":   year,
		"orders": report.OrderCount,
		"total":  report.Total,
	})
	return report, nil
}
