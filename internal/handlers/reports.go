package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hanko-field/order-admin/internal/platform/auth"
	"github.com/hanko-field/order-admin/internal/platform/httpx"
	"github.com/hanko-field/order-admin/internal/services"
)

type revenueResponse struct {
	Message    string `json:"message"`
	Month      int    `json:"month"`
	Year       int    `json:"year"`
	Total      int64  `json:"total"`
	OrderCount int    `json:"order_count"`
}

// ReportHandlers serves revenue reports.
type ReportHandlers struct {
	authn   *auth.Authenticator
	revenue services.RevenueService
}

// NewReportHandlers constructs ReportHandlers. A nil revenue service answers every route with 503.
func NewReportHandlers(authn *auth.Authenticator, revenue services.RevenueService) *ReportHandlers {
	return &ReportHandlers{authn: authn, revenue: revenue}
}

// Routes registers the /reports endpoints.
func (h *ReportHandlers) Routes(r chi.Router) {
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Get("/revenue", h.revenueForMonth)
}

func (h *ReportHandlers) revenueForMonth(w http.ResponseWriter, r *http.Request) {
	if h.revenue == nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("report_service_unavailable", localize(r, msgUnavailable), http.StatusServiceUnavailable))
		return
	}
	query := r.URL.Query()
	month, err := strconv.Atoi(strings.TrimSpace(query.Get("month")))
	if err != nil {
		writeInvalidRequest(w, r, "month must be an integer between 1 and 12")
		return
	}
	year, err := strconv.Atoi(strings.TrimSpace(query.Get("year")))
	if err != nil {
		writeInvalidRequest(w, r, "year must be an integer")
		return
	}

	report, err := h.revenue.RevenueForMonth(r.Context(), month, year)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, revenueResponse{
		Message:    localize(r, msgRevenueComputed),
		Month:      report.Month,
		Year:       report.Year,
		Total:      report.Total,
		OrderCount: report.OrderCount,
	})
}
