package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hanko-field/order-admin/internal/platform/httpx"
	"github.com/hanko-field/order-admin/internal/platform/observability"
	"github.com/hanko-field/order-admin/internal/services"
)

const maxJSONBodySize = 64 * 1024

var (
	errEmptyBody    = errors.New("request body is required")
	errBodyTooLarge = errors.New("request body too large")
)

func readLimitedBody(r *http.Request, limit int64) ([]byte, error) {
	if r == nil || r.Body == nil {
		return nil, errEmptyBody
	}
	if limit <= 0 {
		limit = maxJSONBodySize
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errEmptyBody
	}
	if int64(len(data)) > limit {
		return nil, errBodyTooLarge
	}
	return data, nil
}

// decodeJSONBody reads and decodes the body. An empty body is an error unless optional is set.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any, optional bool) bool {
	body, err := readLimitedBody(r, maxJSONBodySize)
	switch {
	case errors.Is(err, errEmptyBody) && optional:
		return true
	case errors.Is(err, errBodyTooLarge):
		httpx.WriteError(r.Context(), w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
		return false
	case err != nil:
		writeInvalidRequest(w, r, err.Error())
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		writeInvalidRequest(w, r, "invalid JSON body")
		return false
	}
	return true
}

func writeInvalidRequest(w http.ResponseWriter, r *http.Request, reason string) {
	httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", localize(r, msgInvalidRequest), http.StatusBadRequest).
		WithDetails(map[string]any{"reason": reason}))
}

func writeJSONResponse(w http.ResponseWriter, status int, payload any) {
	httpx.WriteJSON(w, status, payload)
}

// serviceErrorMapping turns a sentinel into an HTTP error. A fixed reason replaces err.Error()
// for sentinels that can carry store text.
type serviceErrorMapping struct {
	target error
	code   string
	key    string
	status int
	reason string
}

func (m serviceErrorMapping) detail(err error) string {
	if m.reason != "" {
		return m.reason
	}
	return err.Error()
}

// serviceErrors is evaluated in order; order sentinels wrap inventory and customer ones, so they
// come first.
var serviceErrors = []serviceErrorMapping{
	{services.ErrOrderInvalidInput, "invalid_request", msgInvalidRequest, http.StatusBadRequest, ""},
	{services.ErrOrderInsufficientStock, "insufficient_stock", msgInsufficientStock, http.StatusBadRequest, ""},
	{services.ErrOrderInvalidTransition, "invalid_transition", msgInvalidTransition, http.StatusBadRequest, ""},
	{services.ErrOrderDuplicate, "duplicate_order", msgDuplicateOrder, http.StatusBadRequest, "order already exists"},
	{services.ErrOrderUnknownStep, "unknown_step", msgUnknownStep, http.StatusForbidden, ""},
	{services.ErrOrderNotFound, "order_not_found", msgOrderNotFound, http.StatusNotFound, "order or referenced record does not exist"},
	{services.ErrOrderConflict, "order_conflict", msgOrderConflict, http.StatusConflict, "order was modified concurrently"},
	{services.ErrInventoryInvalidInput, "invalid_request", msgInvalidRequest, http.StatusBadRequest, ""},
	{services.ErrInventoryInsufficientStock, "insufficient_stock", msgInsufficientStock, http.StatusBadRequest, ""},
	{services.ErrInventoryNotFound, "product_not_found", msgOrderNotFound, http.StatusNotFound, "product does not exist"},
	{services.ErrCustomerInvalidInput, "invalid_request", msgInvalidRequest, http.StatusBadRequest, ""},
	{services.ErrCustomerNotFound, "customer_not_found", msgOrderNotFound, http.StatusNotFound, "customer does not exist"},
	{services.ErrCustomerNoneActive, "no_active_customers", msgNoActiveCustomers, http.StatusNotFound, ""},
	{services.ErrRevenueInvalidInput, "invalid_request", msgInvalidRequest, http.StatusBadRequest, ""},
	{services.ErrRevenueNoOrders, "no_orders_found", msgNoRevenue, http.StatusNotFound, ""},
}

var unavailableErrors = []error{
	services.ErrOrderUnavailable,
	services.ErrInventoryUnavailable,
	services.ErrCustomerUnavailable,
	services.ErrRevenueUnavailable,
}

// writeServiceError maps service sentinels to HTTP errors. Anything unmapped is logged and
// answered with a generic 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}
	ctx := r.Context()
	for _, mapping := range serviceErrors {
		if errors.Is(err, mapping.target) {
			httpx.WriteError(ctx, w, httpx.NewError(mapping.code, localize(r, mapping.key), mapping.status).
				WithDetails(map[string]any{"reason": mapping.detail(err)}))
			return
		}
	}

	logger := observability.FromContext(ctx)
	for _, target := range unavailableErrors {
		if errors.Is(err, target) {
			logger.Warn("dependency unavailable", zap.Error(err))
			httpx.WriteError(ctx, w, httpx.NewError("internal_error", localize(r, msgUnavailable), http.StatusInternalServerError))
			return
		}
	}
	logger.Error("unhandled service error", zap.Error(err))
	httpx.WriteError(ctx, w, httpx.NewError("internal_error", localize(r, msgInternal), http.StatusInternalServerError))
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

type orderLinePayload struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
	Subtotal  int64  `json:"subtotal"`
}

type orderPayload struct {
	ID           string             `json:"id"`
	CustomerID   string             `json:"customer_id"`
	Status       string             `json:"status"`
	Total        int64              `json:"total"`
	Lines        []orderLinePayload `json:"lines"`
	CancelReason string             `json:"cancel_reason,omitempty"`
	CreatedAt    string             `json:"created_at"`
	UpdatedAt    string             `json:"updated_at,omitempty"`
	CancelledAt  string             `json:"cancelled_at,omitempty"`
}

type orderEnvelope struct {
	Message string       `json:"message"`
	Order   orderPayload `json:"order"`
}

func buildOrderPayload(order services.Order) orderPayload {
	payload := orderPayload{
		ID:           order.ID,
		CustomerID:   order.CustomerID,
		Status:       string(order.Status),
		Total:        order.Total,
		Lines:        make([]orderLinePayload, 0, len(order.ProductIDs)),
		CancelReason: order.CancelReason,
		CreatedAt:    formatTime(order.CreatedAt),
		UpdatedAt:    formatTime(order.UpdatedAt),
	}
	for _, line := range order.Lines() {
		payload.Lines = append(payload.Lines, orderLinePayload{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			Subtotal:  line.Subtotal(),
		})
	}
	if order.CancelledAt != nil {
		payload.CancelledAt = formatTime(*order.CancelledAt)
	}
	return payload
}
