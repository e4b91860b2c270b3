package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
)

func TestHTTPMetricsUsesRoutePattern(t *testing.T) {
	metrics := NewHTTPMetrics()
	r := chi.NewRouter()
	r.Use(metrics.Middleware)
	r.Get("/orders/{orderID}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	for _, id := range []string{"ord_1", "ord_2"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/orders/"+id, nil))
	}

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rr.Body.String()

	want := `http_requests_total{method="GET",route="/orders/{orderID}",status="404"} 2`
	if !strings.Contains(body, want) {
		t.Fatalf("expected %q in metrics output:\n%s", want, body)
	}
}

func TestRecoveryMiddlewareAnswers500(t *testing.T) {
	handler := RecoveryMiddleware()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"internal_error"`) {
		t.Fatalf("unexpected body %s", rr.Body.String())
	}
}
