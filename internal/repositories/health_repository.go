package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	domain "github.com/hanko-field/order-admin/internal/domain"
)

const defaultProbeTimeout = 1500 * time.Millisecond

// Probe is a named readiness check against one dependency (store, cache, broker).
type Probe struct {
	Name    string
	Timeout time.Duration
	Check   func(context.Context) error
}

// ProbeHealthOption customises NewProbeHealthRepository.
type ProbeHealthOption func(*probeHealthRepository)

// WithProbeTimeout overrides the timeout applied to probes that omit their own.
func WithProbeTimeout(timeout time.Duration) ProbeHealthOption {
	return func(repo *probeHealthRepository) {
		if timeout > 0 {
			repo.timeout = timeout
		}
	}
}

// WithProbeClock injects a custom clock primarily for tests.
func WithProbeClock(clock func() time.Time) ProbeHealthOption {
	return func(repo *probeHealthRepository) {
		if clock != nil {
			repo.now = clock
		}
	}
}

type probeHealthRepository struct {
	probes  []Probe
	timeout time.Duration
	now     func() time.Time
}

var _ HealthRepository = (*probeHealthRepository)(nil)

// NewProbeHealthRepository builds a HealthRepository running every probe concurrently.
func NewProbeHealthRepository(probes []Probe, opts ...ProbeHealthOption) (HealthRepository, error) {
	if len(probes) == 0 {
		return nil, errors.New("health repository: at least one probe is required")
	}
	for _, probe := range probes {
		if strings.TrimSpace(probe.Name) == "" {
			return nil, errors.New("health repository: probe name is required")
		}
		if probe.Check == nil {
			return nil, fmt.Errorf("health repository: probe %s missing check function", probe.Name)
		}
	}

	repo := &probeHealthRepository{
		probes:  append([]Probe(nil), probes...),
		timeout: defaultProbeTimeout,
		now:     time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(repo)
		}
	}
	return repo, nil
}

func (r *probeHealthRepository) Collect(ctx context.Context) (domain.SystemHealthReport, error) {
	if ctx == nil {
		return domain.SystemHealthReport{}, errors.New("health repository: context is required")
	}

	results := make([]domain.SystemHealthCheck, len(r.probes))
	var wg sync.WaitGroup
	for i, probe := range r.probes {
		wg.Add(1)
		go func(i int, probe Probe) {
			defer wg.Done()
			results[i] = r.run(ctx, probe)
		}(i, probe)
	}
	wg.Wait()

	report := domain.SystemHealthReport{
		Status:      domain.HealthStatusOK,
		Checks:      make(map[string]domain.SystemHealthCheck, len(results)),
		GeneratedAt: r.now(),
	}
	for i, result := range results {
		report.Checks[r.probes[i].Name] = result
		switch result.Status {
		case domain.HealthStatusError:
			report.Status = domain.HealthStatusError
		case domain.HealthStatusDegraded:
			if report.Status == domain.HealthStatusOK {
				report.Status = domain.HealthStatusDegraded
			}
		}
	}
	return report, nil
}

func (r *probeHealthRepository) run(ctx context.Context, probe Probe) domain.SystemHealthCheck {
	timeout := probe.Timeout
	if timeout <= 0 {
		timeout = r.timeout
	}
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := r.now()
	err := probe.Check(probeCtx)
	end := r.now()

	check := domain.SystemHealthCheck{
		Status:    domain.HealthStatusOK,
		Detail:    "ok",
		Latency:   end.Sub(start),
		CheckedAt: end,
	}
	if err == nil && probeCtx.Err() != nil {
		err = probeCtx.Err()
	}
	switch {
	case err == nil:
	case errors.Is(err, context.DeadlineExceeded):
		check.Status = domain.HealthStatusError
		check.Detail = "timeout"
	case errors.Is(err, context.Canceled):
		check.Status = domain.HealthStatusError
		check.Detail = "cancelled"
	default:
		check.Status = domain.HealthStatusDegraded
		check.Detail = err.Error()
	}
	return check
}
