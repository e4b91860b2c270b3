package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/hanko-field/order-admin/internal/domain"
	"github.com/hanko-field/order-admin/internal/platform/auth"
	"github.com/hanko-field/order-admin/internal/platform/httpx"
	"github.com/hanko-field/order-admin/internal/platform/pagination"
	"github.com/hanko-field/order-admin/internal/services"
)

type createOrderRequest struct {
	CustomerID string `json:"customer_id"`
	Lines      []struct {
		ProductID string `json:"product_id"`
		Quantity  int    `json:"quantity"`
	} `json:"lines"`
}

type advanceOrderRequest struct {
	TargetStatus   string `json:"target_status"`
	ExpectedStatus string `json:"expected_status"`
}

type cancelOrderRequest struct {
	CustomerID string `json:"customer_id"`
	Reason     string `json:"reason"`
}

type orderListResponse struct {
	Message       string         `json:"message"`
	Items         []orderPayload `json:"items"`
	NextPageToken string         `json:"next_page_token,omitempty"`
}

// OrderHandlers exposes the /orders endpoints.
type OrderHandlers struct {
	authn    *auth.Authenticator
	orders   services.OrderService
	createMW []func(http.Handler) http.Handler
}

// OrderHandlersOption customises OrderHandlers.
type OrderHandlersOption func(*OrderHandlers)

// WithCreateMiddlewares wraps POST /orders only, e.g. with the idempotency middleware.
func WithCreateMiddlewares(mw ...func(http.Handler) http.Handler) OrderHandlersOption {
	return func(h *OrderHandlers) {
		for _, m := range mw {
			if m != nil {
				h.createMW = append(h.createMW, m)
			}
		}
	}
}

// NewOrderHandlers constructs a new OrderHandlers instance.
func NewOrderHandlers(authn *auth.Authenticator, orders services.OrderService, opts ...OrderHandlersOption) *OrderHandlers {
	h := &OrderHandlers{authn: authn, orders: orders}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes registers the /orders endpoints.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Get("/", h.listOrders)
	r.With(h.createMW...).Post("/", h.createOrder)
	r.Get("/{orderID}", h.getOrder)
	r.With(auth.RequireRole(auth.RoleAdmin)).Post("/{orderID}:advance", h.advanceOrder)
	r.Post("/{orderID}:cancel", h.cancelOrder)
}

func (h *OrderHandlers) createOrder(w http.ResponseWriter, r *http.Request) {
	if !h.available(w, r) {
		return
	}
	var req createOrderRequest
	if !decodeJSONBody(w, r, &req, false) {
		return
	}

	cmd := services.CreateOrderCommand{
		CustomerID: strings.TrimSpace(req.CustomerID),
		Lines:      make([]services.OrderLineInput, 0, len(req.Lines)),
	}
	for _, line := range req.Lines {
		cmd.Lines = append(cmd.Lines, services.OrderLineInput{ProductID: line.ProductID, Quantity: line.Quantity})
	}

	order, err := h.orders.Create(r.Context(), cmd)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, orderEnvelope{
		Message: localize(r, msgOrderCreated),
		Order:   buildOrderPayload(order),
	})
}

func (h *OrderHandlers) advanceOrder(w http.ResponseWriter, r *http.Request) {
	if !h.available(w, r) {
		return
	}
	var req advanceOrderRequest
	if !decodeJSONBody(w, r, &req, false) {
		return
	}
	if strings.TrimSpace(req.TargetStatus) == "" {
		writeInvalidRequest(w, r, "target_status is required")
		return
	}

	cmd := services.AdvanceOrderCommand{
		OrderID:      chi.URLParam(r, "orderID"),
		TargetStatus: req.TargetStatus,
	}
	if raw := strings.TrimSpace(req.ExpectedStatus); raw != "" {
		expected, ok := domain.ParseOrderStatus(raw)
		if !ok {
			writeInvalidRequest(w, r, "expected_status must be a valid order status")
			return
		}
		cmd.ExpectedStatus = &expected
	}
	if identity, ok := auth.IdentityFromContext(r.Context()); ok {
		cmd.ActorID = identity.UID
	}

	order, err := h.orders.Advance(r.Context(), cmd)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderEnvelope{
		Message: localize(r, msgOrderAdvanced),
		Order:   buildOrderPayload(order),
	})
}

func (h *OrderHandlers) cancelOrder(w http.ResponseWriter, r *http.Request) {
	if !h.available(w, r) {
		return
	}
	var req cancelOrderRequest
	if !decodeJSONBody(w, r, &req, false) {
		return
	}

	order, err := h.orders.Cancel(r.Context(), services.CancelOrderCommand{
		OrderID:    chi.URLParam(r, "orderID"),
		CustomerID: req.CustomerID,
		Reason:     req.Reason,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderEnvelope{
		Message: localize(r, msgOrderCancelled),
		Order:   buildOrderPayload(order),
	})
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	if !h.available(w, r) {
		return
	}
	order, err := h.orders.Get(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderEnvelope{
		Message: localize(r, msgOrderFound),
		Order:   buildOrderPayload(order),
	})
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	if !h.available(w, r) {
		return
	}
	query := r.URL.Query()
	params, err := pagination.Parse(query, pagination.Options{})
	if err != nil {
		writeInvalidRequest(w, r, err.Error())
		return
	}

	filter := services.OrderListFilter{
		CustomerID: strings.TrimSpace(query.Get("customer_id")),
		Pagination: services.Pagination{PageSize: params.PageSize, PageToken: params.PageToken},
	}
	for _, raw := range parseFilterValues(query["status"]) {
		status, ok := domain.ParseOrderStatus(raw)
		if !ok {
			writeInvalidRequest(w, r, "status must be one of Pending, Shipped, Delivered, Cancelled")
			return
		}
		filter.Status = append(filter.Status, status)
	}

	page, err := h.orders.List(r.Context(), filter)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	resp := orderListResponse{
		Message:       localize(r, msgOrdersListed),
		Items:         make([]orderPayload, 0, len(page.Items)),
		NextPageToken: page.NextPageToken,
	}
	for _, order := range page.Items {
		resp.Items = append(resp.Items, buildOrderPayload(order))
	}
	writeJSONResponse(w, http.StatusOK, resp)
}

func (h *OrderHandlers) available(w http.ResponseWriter, r *http.Request) bool {
	if h.orders != nil {
		return true
	}
	httpx.WriteError(r.Context(), w, httpx.NewError("order_service_unavailable", localize(r, msgUnavailable), http.StatusServiceUnavailable))
	return false
}

// parseFilterValues accepts repeated and comma separated query values.
func parseFilterValues(values []string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if _, ok := seen[part]; ok {
				continue
			}
			seen[part] = struct{}{}
			out = append(out, part)
		}
	}
	return out
}
