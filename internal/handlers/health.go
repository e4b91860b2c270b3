package handlers

import (
	"fmt"
	"net/http"
	"sort"
	"time"

	"go.uber.org/zap"

	domain "github.com/hanko-field/order-admin/internal/domain"
	"github.com/hanko-field/order-admin/internal/platform/observability"
	"github.com/hanko-field/order-admin/internal/repositories"
)

// BuildInfo describes the running binary.
type BuildInfo struct {
	Version     string
	CommitSHA   string
	Environment string
	StartedAt   time.Time
}

// HealthHandlers serves liveness and readiness probes.
type HealthHandlers struct {
	build  BuildInfo
	health repositories.HealthRepository
	clock  func() time.Time
}

// HealthOption customises HealthHandlers.
type HealthOption func(*HealthHandlers)

func WithHealthBuildInfo(info BuildInfo) HealthOption {
	return func(h *HealthHandlers) { h.build = info }
}

func WithHealthRepository(repo repositories.HealthRepository) HealthOption {
	return func(h *HealthHandlers) { h.health = repo }
}

func WithHealthClock(clock func() time.Time) HealthOption {
	return func(h *HealthHandlers) {
		if clock != nil {
			h.clock = clock
		}
	}
}

func NewHealthHandlers(opts ...HealthOption) *HealthHandlers {
	h := &HealthHandlers{clock: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	if h.build.StartedAt.IsZero() {
		h.build.StartedAt = h.clock()
	}
	return h
}

// Healthz reports liveness without touching dependencies.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, _ *http.Request) {
	now := h.clock()
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"status":      domain.HealthStatusOK,
		"version":     h.build.Version,
		"commitSha":   h.build.CommitSHA,
		"environment": h.build.Environment,
		"uptime":      now.Sub(h.build.StartedAt).Round(time.Second).String(),
		"timestamp":   now.UTC().Format(time.RFC3339),
	})
}

type readinessCheck struct {
	Status    string `json:"status"`
	Detail    string `json:"detail,omitempty"`
	LatencyMS int64  `json:"latencyMs"`
}

// Readyz probes every dependency and answers 503 unless all are ok.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	if h.health == nil {
		writeJSONResponse(w, http.StatusOK, map[string]any{"status": domain.HealthStatusOK, "checks": map[string]readinessCheck{}})
		return
	}
	report, err := h.health.Collect(r.Context())
	if err != nil {
		observability.FromContext(r.Context()).Error("readiness collection failed", zap.Error(err))
		writeJSONResponse(w, http.StatusServiceUnavailable, map[string]any{
			"status":  domain.HealthStatusError,
			"details": []string{err.Error()},
		})
		return
	}

	checks := make(map[string]readinessCheck, len(report.Checks))
	details := []string{}
	for name, check := range report.Checks {
		checks[name] = readinessCheck{Status: check.Status, Detail: check.Detail, LatencyMS: check.Latency.Milliseconds()}
		if check.Status != domain.HealthStatusOK {
			details = append(details, fmt.Sprintf("%s: %s", name, check.Detail))
		}
	}
	sort.Strings(details)

	status := http.StatusOK
	if report.Status != domain.HealthStatusOK {
		status = http.StatusServiceUnavailable
	}
	writeJSONResponse(w, status, map[string]any{
		"status":      report.Status,
		"checks":      checks,
		"details":     details,
		"generatedAt": formatTime(report.GeneratedAt),
	})
}
