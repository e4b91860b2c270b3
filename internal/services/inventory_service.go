package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/hanko-field/order-admin/internal/repositories"
)

const instrumentationName = "github.com/hanko-field/order-admin/internal/services"

var (
	// ErrInventoryInvalidInput signals the caller provided invalid arguments.
	ErrInventoryInvalidInput = errors.New("inventory: invalid input")
	// ErrInventoryNotFound indicates a referenced product does not exist.
	ErrInventoryNotFound = errors.New("inventory: product not found")
	// ErrInventoryInsufficientStock indicates the requested quantity exceeds availability.
	ErrInventoryInsufficientStock = errors.New("inventory: insufficient stock")
	// ErrInventoryUnavailable indicates the stock store could not be reached.
	ErrInventoryUnavailable = errors.New("inventory: unavailable")
)

// InventoryServiceDeps bundles the collaborators required to construct an inventory service.
type InventoryServiceDeps struct {
	Inventory repositories.InventoryRepository
	Meter     metric.Meter
	Logger    func(ctx context.Context, event string, fields map[string]any)
}

type inventoryService struct {
	repo         repositories.InventoryRepository
	logger       func(context.Context, string, map[string]any)
	reservations metric.Int64Counter
	restorations metric.Int64Counter
}

// NewInventoryService wires dependencies into a concrete InventoryService implementation.
func NewInventoryService(deps InventoryServiceDeps) (InventoryService, error) {
	if deps.Inventory == nil {
		return nil, errors.New("inventory service: inventory repository is required")
	}

	meter := deps.Meter
	if meter == nil {
		meter = otel.GetMeterProvider().Meter(instrumentationName)
	}
	reservations, err := meter.Int64Counter("inventory.reservations",
		metric.WithDescription("Committed stock reservations and failed reservation attempts by result"))
	if err != nil {
		return nil, fmt.Errorf("inventory service: reservations counter: %w", err)
	}
	restorations, err := meter.Int64Counter("inventory.restorations",
		metric.WithDescription("Committed stock restorations and failed restoration attempts by result"))
	if err != nil {
		return nil, fmt.Errorf("inventory service: restorations counter: %w", err)
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &inventoryService{
		repo:         deps.Inventory,
		logger:       logger,
		reservations: reservations,
		restorations: restorations,
	}, nil
}

func (s *inventoryService) Reserve(ctx context.Context, productID string, quantity int) (int, error) {
	levels, err := s.ReserveLines(ctx, []StockLineInput{{ProductID: productID, Quantity: quantity}})
	if err != nil {
		return 0, err
	}
	return levels[0].Stock, nil
}

func (s *inventoryService) Restore(ctx context.Context, productID string, quantity int) (int, error) {
	levels, err := s.RestoreLines(ctx, []StockLineInput{{ProductID: productID, Quantity: quantity}})
	if err != nil {
		return 0, err
	}
	return levels[0].Stock, nil
}

func (s *inventoryService) ReserveLines(ctx context.Context, lines []StockLineInput) ([]StockSnapshot, error) {
	stockLines, err := aggregateStockLines(lines)
	if err != nil {
		return nil, err
	}
	levels, err := s.repo.Reserve(ctx, stockLines)
	if err != nil {
		s.record(ctx, s.reservations, err)
		return nil, mapInventoryError(err)
	}
	afterCommit(ctx, func(ctx context.Context) {
		s.record(ctx, s.reservations, nil)
		s.logger(ctx, "inventory.reserve", map[string]any{"lines": len(stockLines)})
	})
	return toSnapshots(levels), nil
}

func (s *inventoryService) RestoreLines(ctx context.Context, lines []StockLineInput) ([]StockSnapshot, error) {
	stockLines, err := aggregateStockLines(lines)
	if err != nil {
		return nil, err
	}
	levels, err := s.repo.Restore(ctx, stockLines)
	if err != nil {
		s.record(ctx, s.restorations, err)
		return nil, mapInventoryError(err)
	}
	afterCommit(ctx, func(ctx context.Context) {
		s.record(ctx, s.restorations, nil)
		s.logger(ctx, "inventory.restore", map[string]any{"lines": len(stockLines)})
	})
	return toSnapshots(levels), nil
}

func (s *inventoryService) ListStock(ctx context.Context) ([]Product, error) {
	products, err := s.repo.ListStock(ctx)
	if err != nil {
		return nil, mapInventoryError(err)
	}
	return products, nil
}

// record counts one outcome. Successes inside a unit of work are counted once it commits.
func (s *inventoryService) record(ctx context.Context, counter metric.Int64Counter, err error) {
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(mapInventoryError(err), ErrInventoryInsufficientStock):
		result = "insufficient_stock"
	case errors.Is(mapInventoryError(err), ErrInventoryNotFound):
		result = "not_found"
	default:
		result = "error"
	}
	counter.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

// aggregateStockLines validates lines and sums quantities per product, keeping first-seen order.
func aggregateStockLines(lines []StockLineInput) ([]repositories.StockLine, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: at least one line is required", ErrInventoryInvalidInput)
	}
	index := make(map[string]int, len(lines))
	out := make([]repositories.StockLine, 0, len(lines))
	for i, line := range lines {
		id := strings.TrimSpace(line.ProductID)
		if id == "" {
			return nil, fmt.Errorf("%w: line %d product id is required", ErrInventoryInvalidInput, i)
		}
		if line.Quantity <= 0 {
			return nil, fmt.Errorf("%w: line %d quantity must be > 0", ErrInventoryInvalidInput, i)
		}
		if pos, ok := index[id]; ok {
			out[pos].Quantity += line.Quantity
			continue
		}
		index[id] = len(out)
		out = append(out, repositories.StockLine{ProductID: id, Quantity: line.Quantity})
	}
	return out, nil
}

func toSnapshots(levels []repositories.StockLevel) []StockSnapshot {
	out := make([]StockSnapshot, len(levels))
	for i, level := range levels {
		out[i] = StockSnapshot{ProductID: level.ProductID, UnitPrice: level.UnitPrice, Stock: level.Stock}
	}
	return out
}

func mapInventoryError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var invErr *repositories.InventoryError
	if errors.As(err, &invErr) {
		switch invErr.Code {
		case repositories.InventoryErrorInsufficientStock:
			return fmt.Errorf("%w: %s", ErrInventoryInsufficientStock, invErr.Message)
		case repositories.InventoryErrorProductNotFound:
			return fmt.Errorf("%w: %s", ErrInventoryNotFound, invErr.Message)
		case repositories.InventoryErrorInvalidQuantity:
			return fmt.Errorf("%w: %s", ErrInventoryInvalidInput, invErr.Message)
		}
	}
	if isRepoUnavailable(err) {
		return fmt.Errorf("%w: %v", ErrInventoryUnavailable, err)
	}
	return err
}
