package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	domain "github.com/hanko-field/order-admin/internal/domain"
	"github.com/hanko-field/order-admin/internal/repositories"
)

type inventoryRepository struct {
	store *Store
}

func (r *inventoryRepository) Reserve(ctx context.Context, lines []repositories.StockLine) ([]repositories.StockLevel, error) {
	return r.adjust(ctx, "inventory.reserve", lines, -1)
}

func (r *inventoryRepository) Restore(ctx context.Context, lines []repositories.StockLine) ([]repositories.StockLevel, error) {
	return r.adjust(ctx, "inventory.restore", lines, 1)
}

func (r *inventoryRepository) adjust(ctx context.Context, op string, lines []repositories.StockLine, sign int) ([]repositories.StockLevel, error) {
	if len(lines) == 0 {
		return nil, withOp(op, repositories.NewInventoryError(repositories.InventoryErrorInvalidQuantity, "", "at least one line is required", nil))
	}
	defer r.store.lock(ctx)()

	order := make([]string, 0, len(lines))
	totals := make(map[string]int, len(lines))
	for _, line := range lines {
		id := strings.TrimSpace(line.ProductID)
		if line.Quantity <= 0 {
			return nil, withOp(op, repositories.NewInventoryError(repositories.InventoryErrorInvalidQuantity, id,
				fmt.Sprintf("quantity for %s must be > 0", id), nil))
		}
		if _, seen := totals[id]; !seen {
			order = append(order, id)
		}
		totals[id] += line.Quantity
	}

	levels := make([]repositories.StockLevel, 0, len(order))
	for _, id := range order {
		product, ok := r.store.products[id]
		if !ok {
			return nil, withOp(op, repositories.NewInventoryError(repositories.InventoryErrorProductNotFound, id,
				fmt.Sprintf("product %s not found", id), nil))
		}
		next := product.Stock + sign*totals[id]
		if next < 0 {
			return nil, withOp(op, repositories.NewInventoryError(repositories.InventoryErrorInsufficientStock, id,
				fmt.Sprintf("insufficient stock for %s: have %d, need %d", id, product.Stock, totals[id]), nil))
		}
		levels = append(levels, repositories.StockLevel{ProductID: id, UnitPrice: product.UnitPrice, Stock: next})
	}

	now := time.Now().UTC()
	for _, level := range levels {
		product := r.store.products[level.ProductID]
		product.Stock = level.Stock
		product.UpdatedAt = now
		r.store.products[level.ProductID] = product
	}
	return levels, nil
}

func (r *inventoryRepository) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	defer r.store.lock(ctx)()
	product, ok := r.store.products[productID]
	if !ok {
		return domain.Product{}, withOp("inventory.find", repositories.NewInventoryError(repositories.InventoryErrorProductNotFound,
			productID, fmt.Sprintf("product %s not found", productID), nil))
	}
	return product, nil
}

func (r *inventoryRepository) ListStock(ctx context.Context) ([]domain.Product, error) {
	defer r.store.lock(ctx)()
	products := make([]domain.Product, 0, len(r.store.products))
	for _, p := range r.store.products {
		products = append(products, p)
	}
	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })
	return products, nil
}

func withOp(op string, err *repositories.InventoryError) *repositories.InventoryError {
	err.Op = op
	return err
}
