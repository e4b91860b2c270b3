package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hanko-field/order-admin/internal/platform/auth"
	"github.com/hanko-field/order-admin/internal/platform/httpx"
	"github.com/hanko-field/order-admin/internal/services"
)

type productStockPayload struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	UnitPrice   int64  `json:"unit_price"`
	Stock       int    `json:"stock"`
}

type stockListResponse struct {
	Message string                `json:"message"`
	Items   []productStockPayload `json:"items"`
}

// InventoryHandlers serves the stock dashboard.
type InventoryHandlers struct {
	authn     *auth.Authenticator
	inventory services.InventoryService
}

// NewInventoryHandlers constructs InventoryHandlers.
func NewInventoryHandlers(authn *auth.Authenticator, inventory services.InventoryService) *InventoryHandlers {
	return &InventoryHandlers{authn: authn, inventory: inventory}
}

// Routes registers the /inventory endpoints.
func (h *InventoryHandlers) Routes(r chi.Router) {
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Get("/stock", h.listStock)
}

func (h *InventoryHandlers) listStock(w http.ResponseWriter, r *http.Request) {
	if h.inventory == nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("inventory_service_unavailable", localize(r, msgUnavailable), http.StatusServiceUnavailable))
		return
	}
	products, err := h.inventory.ListStock(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	resp := stockListResponse{Message: localize(r, msgStockListed), Items: make([]productStockPayload, 0, len(products))}
	for _, p := range products {
		resp.Items = append(resp.Items, productStockPayload{
			ID:          p.ID,
			Name:        p.Name,
			Description: p.Description,
			UnitPrice:   p.UnitPrice,
			Stock:       p.Stock,
		})
	}
	writeJSONResponse(w, http.StatusOK, resp)
}
