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
	"github.com/hanko-field/order-admin/internal/repositories"
)

const productsCollection = "products"

// ProductRepository keeps stock counters on the product documents themselves.
type ProductRepository struct {
	provider *pfirestore.Provider
	products *pfirestore.BaseRepository[productDocument]
}

// NewProductRepository constructs the Firestore inventory ledger.
func NewProductRepository(provider *pfirestore.Provider) (*ProductRepository, error) {
	if provider == nil {
		return nil, errors.New("product repository requires firestore provider")
	}
	return &ProductRepository{
		provider: provider,
		products: pfirestore.NewBaseRepository[productDocument](provider, productsCollection),
	}, nil
}

var _ repositories.InventoryRepository = (*ProductRepository)(nil)

// Reserve decrements stock for every line or for none.
func (r *ProductRepository) Reserve(ctx context.Context, lines []repositories.StockLine) ([]repositories.StockLevel, error) {
	return r.adjust(ctx, "inventory.reserve", lines, -1)
}

// Restore increments stock for every line or for none.
func (r *ProductRepository) Restore(ctx context.Context, lines []repositories.StockLine) ([]repositories.StockLevel, error) {
	return r.adjust(ctx, "inventory.restore", lines, 1)
}

// adjust reads every product before the first write, as Firestore transactions require.
func (r *ProductRepository) adjust(ctx context.Context, op string, lines []repositories.StockLine, sign int) ([]repositories.StockLevel, error) {
	merged, err := mergeLines(lines)
	if err != nil {
		return nil, wrapInventoryError(op, err)
	}
	ids := make([]string, len(merged))
	for i, line := range merged {
		ids[i] = line.ProductID
	}

	var levels []repositories.StockLevel
	err = r.provider.RunTransaction(ctx, func(txCtx context.Context, _ *firestore.Transaction) error {
		docs, err := r.products.GetAll(txCtx, ids)
		if err != nil {
			var missing *pfirestore.MissingDocumentError
			if errors.As(err, &missing) {
				return repositories.NewInventoryError(repositories.InventoryErrorProductNotFound, missing.ID,
					fmt.Sprintf("product %s not found", missing.ID), err)
			}
			return err
		}

		levels = make([]repositories.StockLevel, len(merged))
		for i, line := range merged {
			next := docs[i].Data.Stock + sign*line.Quantity
			if next < 0 {
				return repositories.NewInventoryError(repositories.InventoryErrorInsufficientStock, line.ProductID,
					fmt.Sprintf("insufficient stock for %s: have %d, need %d", line.ProductID, docs[i].Data.Stock, line.Quantity), nil)
			}
			levels[i] = repositories.StockLevel{ProductID: line.ProductID, UnitPrice: docs[i].Data.UnitPrice, Stock: next}
		}

		for _, level := range levels {
			if err := r.products.Update(txCtx, level.ProductID, []firestore.Update{
				{Path: "stock", Value: level.Stock},
				{Path: "updatedAt", Value: firestore.ServerTimestamp},
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, wrapInventoryError(op, err)
	}
	return levels, nil
}

// FindByID loads a single product.
func (r *ProductRepository) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	doc, err := r.products.Get(ctx, productID)
	if err != nil {
		if pfirestore.IsNotFound(err) {
			return domain.Product{}, repositories.NewInventoryError(repositories.InventoryErrorProductNotFound, productID,
				fmt.Sprintf("product %s not found", productID), err)
		}
		return domain.Product{}, wrapInventoryError("inventory.find", err)
	}
	return doc.Data.toDomain(doc.ID), nil
}

// ListStock returns every product ordered by id.
func (r *ProductRepository) ListStock(ctx context.Context) ([]domain.Product, error) {
	docs, err := r.products.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.OrderBy(firestore.DocumentID, firestore.Asc)
	})
	if err != nil {
		return nil, wrapInventoryError("inventory.list", err)
	}
	products := make([]domain.Product, 0, len(docs))
	for _, doc := range docs {
		products = append(products, doc.Data.toDomain(doc.ID))
	}
	return products, nil
}

// Save upserts a product. Seed and admin tooling only; stock changes go through Reserve/Restore.
func (r *ProductRepository) Save(ctx context.Context, product domain.Product) error {
	return wrapInventoryError("inventory.save", r.products.Set(ctx, product.ID, newProductDocument(product)))
}

// mergeLines sums quantities per product, keeping first-seen order.
func mergeLines(lines []repositories.StockLine) ([]repositories.StockLine, error) {
	if len(lines) == 0 {
		return nil, repositories.NewInventoryError(repositories.InventoryErrorInvalidQuantity, "", "at least one line is required", nil)
	}
	index := make(map[string]int, len(lines))
	merged := make([]repositories.StockLine, 0, len(lines))
	for _, line := range lines {
		id := strings.TrimSpace(line.ProductID)
		if id == "" {
			return nil, repositories.NewInventoryError(repositories.InventoryErrorProductNotFound, "", "product id is required", nil)
		}
		if line.Quantity <= 0 {
			return nil, repositories.NewInventoryError(repositories.InventoryErrorInvalidQuantity, id,
				fmt.Sprintf("quantity for %s must be > 0", id), nil)
		}
		if i, ok := index[id]; ok {
			merged[i].Quantity += line.Quantity
			continue
		}
		index[id] = len(merged)
		merged = append(merged, repositories.StockLine{ProductID: id, Quantity: line.Quantity})
	}
	return merged, nil
}

type productDocument struct {
	Name        string    `firestore:"name"`
	Description string    `firestore:"description"`
	UnitPrice   int64     `firestore:"unitPrice"`
	Stock       int       `firestore:"stock"`
	CreatedAt   time.Time `firestore:"createdAt"`
	UpdatedAt   time.Time `firestore:"updatedAt"`
}

func newProductDocument(p domain.Product) productDocument {
	return productDocument{
		Name:        strings.TrimSpace(p.Name),
		Description: strings.TrimSpace(p.Description),
		UnitPrice:   p.UnitPrice,
		Stock:       p.Stock,
		CreatedAt:   p.CreatedAt.UTC(),
		UpdatedAt:   p.UpdatedAt.UTC(),
	}
}

func (d productDocument) toDomain(id string) domain.Product {
	return domain.Product{
		ID:          id,
		Name:        d.Name,
		Description: d.Description,
		UnitPrice:   d.UnitPrice,
		Stock:       d.Stock,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

func wrapInventoryError(op string, err error) error {
	if err == nil {
		return nil
	}
	var invErr *repositories.InventoryError
	if errors.As(err, &invErr) {
		if invErr.Op == "" {
			invErr.Op = op
		}
		return invErr
	}
	return pfirestore.WrapError(op, err)
}
