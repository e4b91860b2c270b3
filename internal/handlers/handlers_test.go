package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	firebaseauth "firebase.google.com/go/v4/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/hanko-field/order-admin/internal/domain"
	"github.com/hanko-field/order-admin/internal/platform/auth"
	"github.com/hanko-field/order-admin/internal/platform/idempotency"
	"github.com/hanko-field/order-admin/internal/repositories/memory"
	"github.com/hanko-field/order-admin/internal/services"
)

type tokenTable map[string]*firebaseauth.Token

func (t tokenTable) VerifyIDToken(_ context.Context, idToken string) (*firebaseauth.Token, error) {
	if token, ok := t[idToken]; ok {
		return token, nil
	}
	return nil, auth.ErrTokenInvalid
}

var testTokens = tokenTable{
	"admin-token": {UID: "admin_1", Claims: map[string]interface{}{"role": "admin"}},
	"user-token":  {UID: "user_1", Claims: map[string]interface{}{"role": "user", "locale": "en"}},
}

type apiFixture struct {
	store  *memory.Store
	router http.Handler
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	store := memory.NewStore()
	store.PutProduct(domain.Product{ID: "prod_a", Name: "Widget", UnitPrice: 1000, Stock: 5})
	store.PutProduct(domain.Product{ID: "prod_b", Name: "Gadget", UnitPrice: 250, Stock: 1})
	store.PutCustomer(domain.Customer{ID: "cus_1", Name: "Ada", Active: true})

	clock := func() time.Time { return time.Date(2024, 3, 12, 10, 0, 0, 0, time.UTC) }
	inventory, err := services.NewInventoryService(services.InventoryServiceDeps{Inventory: store.Inventory()})
	require.NoError(t, err)
	history, err := services.NewPurchaseHistoryService(services.PurchaseHistoryServiceDeps{Customers: store.Customers(), Clock: clock})
	require.NoError(t, err)
	orders, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:     store.Orders(),
		Customers:  store.Customers(),
		Inventory:  inventory,
		History:    history,
		UnitOfWork: store,
		Clock:      clock,
	})
	require.NoError(t, err)
	revenue, err := services.NewRevenueService(services.RevenueServiceDeps{Orders: store.Orders()})
	require.NoError(t, err)
	customers, err := services.NewCustomerService(services.CustomerServiceDeps{Customers: store.Customers()})
	require.NoError(t, err)

	authn := auth.NewAuthenticator(testTokens)
	router := NewRouter(
		WithHealthHandlers(NewHealthHandlers(WithHealthRepository(store.Health()))),
		WithOrderRoutes(NewOrderHandlers(authn, orders,
			WithCreateMiddlewares(idempotency.Middleware(idempotency.NewMemoryStore())),
		).Routes),
		WithInventoryRoutes(NewInventoryHandlers(authn, inventory).Routes),
		WithCustomerRoutes(NewCustomerHandlers(authn, customers).Routes),
		WithReportRoutes(NewReportHandlers(authn, revenue).Routes),
	)
	return &apiFixture{store: store, router: router}
}

func (f *apiFixture) do(t *testing.T, method, path, token string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body), rr.Body.String())
	return body
}

func (f *apiFixture) createOrder(t *testing.T, quantity int) string {
	t.Helper()
	rr := f.do(t, http.MethodPost, "/api/v1/orders", "admin-token", map[string]any{
		"customer_id": "cus_1",
		"lines":       []map[string]any{{"product_id": "prod_a", "quantity": quantity}},
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	order := decodeBody(t, rr)["order"].(map[string]any)
	return order["id"].(string)
}

func TestCreateOrderEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	rr := f.do(t, http.MethodPost, "/api/v1/orders", "user-token", map[string]any{
		"customer_id": "cus_1",
		"lines": []map[string]any{
			{"product_id": "prod_a", "quantity": 2},
			{"product_id": "prod_b", "quantity": 1},
		},
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	body := decodeBody(t, rr)
	assert.Equal(t, "Order created successfully", body["message"])
	order := body["order"].(map[string]any)
	assert.Equal(t, "Pending", order["status"])
	assert.EqualValues(t, 2250, order["total"])
	assert.Len(t, order["lines"], 2)
}

func TestCreateOrderEndpointErrors(t *testing.T) {
	f := newAPIFixture(t)

	cases := []struct {
		name   string
		body   map[string]any
		status int
		code   string
	}{
		{"insufficient stock", map[string]any{"customer_id": "cus_1", "lines": []map[string]any{{"product_id": "prod_b", "quantity": 2}}}, http.StatusBadRequest, "insufficient_stock"},
		{"unknown customer", map[string]any{"customer_id": "ghost", "lines": []map[string]any{{"product_id": "prod_a", "quantity": 1}}}, http.StatusNotFound, "order_not_found"},
		{"unknown product", map[string]any{"customer_id": "cus_1", "lines": []map[string]any{{"product_id": "nope", "quantity": 1}}}, http.StatusNotFound, "order_not_found"},
		{"no lines", map[string]any{"customer_id": "cus_1"}, http.StatusBadRequest, "invalid_request"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := f.do(t, http.MethodPost, "/api/v1/orders", "admin-token", tc.body)
			require.Equal(t, tc.status, rr.Code, rr.Body.String())
			assert.Equal(t, tc.code, decodeBody(t, rr)["error"])
		})
	}

	rr := f.do(t, http.MethodPost, "/api/v1/orders", "", map[string]any{"customer_id": "cus_1"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestCreateOrderEndpointIdempotencyKeyReplays(t *testing.T) {
	f := newAPIFixture(t)
	body := map[string]any{"customer_id": "cus_1", "lines": []map[string]any{{"product_id": "prod_a", "quantity": 1}}}

	first := f.do(t, http.MethodPost, "/api/v1/orders", "admin-token", body, "Idempotency-Key", "key-1")
	require.Equal(t, http.StatusCreated, first.Code)
	second := f.do(t, http.MethodPost, "/api/v1/orders", "admin-token", body, "Idempotency-Key", "key-1")
	require.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, "true", second.Header().Get("X-Idempotent-Replay"))
	assert.JSONEq(t, first.Body.String(), second.Body.String())

	product, err := f.store.Inventory().FindByID(context.Background(), "prod_a")
	require.NoError(t, err)
	assert.Equal(t, 4, product.Stock)
}

func TestAdvanceOrderEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	id := f.createOrder(t, 1)

	rr := f.do(t, http.MethodPost, "/api/v1/orders/"+id+":advance", "user-token", map[string]any{"target_status": "Shipped"})
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, "insufficient_role", decodeBody(t, rr)["error"])

	rr = f.do(t, http.MethodPost, "/api/v1/orders/"+id+":advance", "admin-token", map[string]any{"target_status": "Returned"})
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, "unknown_step", decodeBody(t, rr)["error"])

	rr = f.do(t, http.MethodPost, "/api/v1/orders/"+id+":advance", "admin-token", map[string]any{"target_status": "Cancelled"})
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, "unknown_step", decodeBody(t, rr)["error"])
	product, err := f.store.Inventory().FindByID(context.Background(), "prod_a")
	require.NoError(t, err)
	assert.Equal(t, 4, product.Stock)

	rr = f.do(t, http.MethodPost, "/api/v1/orders/"+id+":advance", "admin-token", map[string]any{"target_status": "Delivered"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "invalid_transition", decodeBody(t, rr)["error"])

	rr = f.do(t, http.MethodPost, "/api/v1/orders/"+id+":advance", "admin-token", map[string]any{"target_status": "Shipped"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	body := decodeBody(t, rr)
	assert.Equal(t, "Statut de la commande mis à jour", body["message"])
	assert.Equal(t, "Shipped", body["order"].(map[string]any)["status"])

	rr = f.do(t, http.MethodPost, "/api/v1/orders/"+id+":advance", "admin-token", map[string]any{"target_status": "Delivered", "expected_status": "Pending"})
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = f.do(t, http.MethodPost, "/api/v1/orders/ord_missing:advance", "admin-token", map[string]any{"target_status": "Shipped"})
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCancelOrderEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	id := f.createOrder(t, 3)

	rr := f.do(t, http.MethodPost, "/api/v1/orders/"+id+":cancel", "user-token", map[string]any{"customer_id": "someone_else"})
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = f.do(t, http.MethodPost, "/api/v1/orders/"+id+":cancel", "user-token", map[string]any{"customer_id": "cus_1", "reason": "<i>oops</i>"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	order := decodeBody(t, rr)["order"].(map[string]any)
	assert.Equal(t, "Cancelled", order["status"])
	assert.Equal(t, "oops", order["cancel_reason"])
	assert.NotEmpty(t, order["cancelled_at"])

	product, err := f.store.Inventory().FindByID(context.Background(), "prod_a")
	require.NoError(t, err)
	assert.Equal(t, 5, product.Stock)

	rr = f.do(t, http.MethodPost, "/api/v1/orders/"+id+":cancel", "user-token", map[string]any{"customer_id": "cus_1"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "invalid_transition", decodeBody(t, rr)["error"])
}

func TestGetAndListOrdersEndpoints(t *testing.T) {
	f := newAPIFixture(t)
	first := f.createOrder(t, 1)
	f.createOrder(t, 1)

	rr := f.do(t, http.MethodGet, "/api/v1/orders/"+first, "user-token", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, first, decodeBody(t, rr)["order"].(map[string]any)["id"])

	rr = f.do(t, http.MethodGet, "/api/v1/orders/ord_missing", "user-token", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = f.do(t, http.MethodGet, "/api/v1/orders?page_size=1&status=Pending", "user-token", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	body := decodeBody(t, rr)
	assert.Len(t, body["items"], 1)
	assert.NotEmpty(t, body["next_page_token"])

	rr = f.do(t, http.MethodGet, "/api/v1/orders?status=Returned", "user-token", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	rr = f.do(t, http.MethodGet, "/api/v1/orders?page_token=***", "user-token", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRevenueEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	f.createOrder(t, 2)

	rr := f.do(t, http.MethodGet, "/api/v1/reports/revenue?month=3&year=2024", "user-token", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	body := decodeBody(t, rr)
	assert.EqualValues(t, 2000, body["total"])
	assert.EqualValues(t, 1, body["order_count"])

	rr = f.do(t, http.MethodGet, "/api/v1/reports/revenue?month=4&year=2024", "user-token", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	rr = f.do(t, http.MethodGet, "/api/v1/reports/revenue?month=13&year=2024", "user-token", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	rr = f.do(t, http.MethodGet, "/api/v1/reports/revenue?month=march&year=2024", "user-token", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestStockAndCustomerEndpoints(t *testing.T) {
	f := newAPIFixture(t)

	rr := f.do(t, http.MethodGet, "/api/v1/inventory/stock", "user-token", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decodeBody(t, rr)["items"], 2)

	rr = f.do(t, http.MethodGet, "/api/v1/customers/active", "user-token", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decodeBody(t, rr)["items"], 1)

	f.store.PutCustomer(domain.Customer{ID: "cus_1"})
	rr = f.do(t, http.MethodGet, "/api/v1/customers/active", "user-token", nil, "Accept-Language", "fr-CA")
	require.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "Aucun client actif", decodeBody(t, rr)["message"])
}

func TestHealthEndpoints(t *testing.T) {
	f := newAPIFixture(t)

	rr := f.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = f.do(t, http.MethodGet, "/readyz", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, domain.HealthStatusOK, decodeBody(t, rr)["status"])
}

type failingHealth struct{}

func (failingHealth) Collect(context.Context) (domain.SystemHealthReport, error) {
	return domain.SystemHealthReport{
		Status: domain.HealthStatusDegraded,
		Checks: map[string]domain.SystemHealthCheck{"redis": {Status: domain.HealthStatusDegraded, Detail: "connection refused"}},
	}, nil
}

func TestReadyzReportsDegradedDependency(t *testing.T) {
	handlers := NewHealthHandlers(WithHealthRepository(failingHealth{}))
	rr := httptest.NewRecorder()
	handlers.Readyz(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	body := decodeBody(t, rr)
	assert.Equal(t, []any{"redis: connection refused"}, body["details"])
}

func TestUnknownErrorsAnswerGeneric500(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Language", "en-US")
	writeServiceError(rr, req, errors.New("firestore exploded"))

	require.Equal(t, http.StatusInternalServerError, rr.Code)
	body := decodeBody(t, rr)
	assert.Equal(t, "internal_error", body["error"])
	assert.Equal(t, "Internal server error", body["message"])
	assert.NotContains(t, rr.Body.String(), "exploded")
}

func TestMappedErrorsKeepStoreTextOutOfDetails(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	writeServiceError(rr, req, fmt.Errorf("%w: %v", services.ErrOrderConflict, errors.New("firestore orders.update: aborted")))

	require.Equal(t, http.StatusConflict, rr.Code)
	details := decodeBody(t, rr)["details"].(map[string]any)
	assert.Equal(t, "order was modified concurrently", details["reason"])
	assert.NotContains(t, rr.Body.String(), "orders.update")

	f := newAPIFixture(t)
	rr = f.do(t, http.MethodGet, "/api/v1/orders/ord_missing", "user-token", nil)
	require.Equal(t, http.StatusNotFound, rr.Code)
	assert.NotContains(t, rr.Body.String(), "memory.orders")

	rr = f.do(t, http.MethodPost, "/api/v1/orders", "admin-token", map[string]any{
		"customer_id": "cus_1",
		"lines":       []map[string]any{{"product_id": "prod_b", "quantity": 2}},
	})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, decodeBody(t, rr)["details"].(map[string]any)["reason"], "insufficient stock")
}

func TestHandlersWithoutServicesAnswer503(t *testing.T) {
	router := NewRouter(
		WithOrderRoutes(NewOrderHandlers(nil, nil).Routes),
		WithInventoryRoutes(NewInventoryHandlers(nil, nil).Routes),
		WithCustomerRoutes(NewCustomerHandlers(nil, nil).Routes),
		WithReportRoutes(NewReportHandlers(nil, nil).Routes),
	)
	cases := []struct {
		method string
		path   string
		code   string
	}{
		{http.MethodPost, "/api/v1/orders/ord_1:cancel", "order_service_unavailable"},
		{http.MethodGet, "/api/v1/inventory/stock", "inventory_service_unavailable"},
		{http.MethodGet, "/api/v1/customers/active", "customer_service_unavailable"},
		{http.MethodGet, "/api/v1/reports/revenue?month=3&year=2024", "report_service_unavailable"},
	}
	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, httptest.NewRequest(tc.method, tc.path, bytes.NewReader([]byte(`{}`))))
			require.Equal(t, http.StatusServiceUnavailable, rr.Code, rr.Body.String())
			assert.Equal(t, tc.code, decodeBody(t, rr)["error"])
		})
	}
}

func TestRequestLocaleFallsBackToTokenLocale(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, "fr", requestLocale(req).String())

	req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: "u", Locale: "en-GB"}))
	assert.Equal(t, "en", requestLocale(req).String())

	req.Header.Set("Accept-Language", "fr;q=0.9, de;q=0.8")
	assert.Equal(t, "fr", requestLocale(req).String())
}
