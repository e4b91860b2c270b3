package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hanko-field/order-admin/internal/platform/auth"
	"github.com/hanko-field/order-admin/internal/platform/httpx"
	"github.com/hanko-field/order-admin/internal/services"
)

type customerPayload struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Address         string   `json:"address,omitempty"`
	Email           string   `json:"email,omitempty"`
	Phone           string   `json:"phone,omitempty"`
	PurchaseHistory []string `json:"purchase_history"`
	Active          bool     `json:"active"`
}

type customerListResponse struct {
	Message string            `json:"message"`
	Items   []customerPayload `json:"items"`
}

// CustomerHandlers serves customer listings.
type CustomerHandlers struct {
	authn     *auth.Authenticator
	customers services.CustomerService
}

// NewCustomerHandlers constructs CustomerHandlers.
func NewCustomerHandlers(authn *auth.Authenticator, customers services.CustomerService) *CustomerHandlers {
	return &CustomerHandlers{authn: authn, customers: customers}
}

// Routes registers the /customers endpoints.
func (h *CustomerHandlers) Routes(r chi.Router) {
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Get("/active", h.listActive)
}

func (h *CustomerHandlers) listActive(w http.ResponseWriter, r *http.Request) {
	if h.customers == nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("customer_service_unavailable", localize(r, msgUnavailable), http.StatusServiceUnavailable))
		return
	}
	customers, err := h.customers.ListActive(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	resp := customerListResponse{Message: localize(r, msgCustomersListed), Items: make([]customerPayload, 0, len(customers))}
	for _, c := range customers {
		history := c.PurchaseHistory
		if history == nil {
			history = []string{}
		}
		resp.Items = append(resp.Items, customerPayload{
			ID:              c.ID,
			Name:            c.Name,
			Address:         c.Address,
			Email:           c.Email,
			Phone:           c.Phone,
			PurchaseHistory: history,
			Active:          c.Active,
		})
	}
	writeJSONResponse(w, http.StatusOK, resp)
}
