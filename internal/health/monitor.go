package health

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/vietddude/toolgate/internal/core/failure"
	"github.com/vietddude/toolgate/internal/infra/storage"
	"github.com/vietddude/toolgate/internal/infra/vendor"
	"github.com/vietddude/toolgate/internal/metrics"
)

// DefaultCacheTTL bounds how often dependencies are actually checked.
const DefaultCacheTTL = 10 * time.Second

// DefaultCheckTimeout bounds one run of all dependency checks.
const DefaultCheckTimeout = 30 * time.Second

// Check reports on one dependency.
type Check func(ctx context.Context) ComponentHealth

type namedCheck struct {
	name  string
	check Check
}

// Monitor aggregates health status from the gateway's dependencies.
type Monitor struct {
	checks      []namedCheck
	deadLetters storage.DeadLetterRepository
	failures    storage.FailureLogRepository
	ttl         time.Duration
	timeout     time.Duration
	group       singleflight.Group
	lastCheck   time.Time
	lastReport  *HealthReport
	mu          sync.Mutex
}

// NewMonitor creates a new health monitor. A non-positive ttl uses DefaultCacheTTL.
func NewMonitor(ttl time.Duration, deadLetters storage.DeadLetterRepository, failures storage.FailureLogRepository) *Monitor {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Monitor{
		deadLetters: deadLetters,
		failures:    failures,
		ttl:         ttl,
		timeout:     DefaultCheckTimeout,
	}
}

// Register adds a dependency check. It is not safe to call once checks are running.
func (m *Monitor) Register(name string, check Check) {
	m.checks = append(m.checks, namedCheck{name: name, check: check})
}

// CheckHealth returns the cached report while it is younger than the cache
// TTL and runs every registered check otherwise. Concurrent callers
// share one run, which is detached from ctx: a caller that goes away gets
// the previous report (or an empty one) and the run still fills the cache.
func (m *Monitor) CheckHealth(ctx context.Context) HealthReport {
	if report, ok := m.cached(true); ok {
		return report
	}

	ch := m.group.DoChan("health", func() (any, error) {
		return m.runChecks(), nil
	})
	select {
	case res := <-ch:
		return res.Val.(HealthReport)
	case <-ctx.Done():
		if report, ok := m.cached(false); ok {
			return report
		}
		return HealthReport{SystemStatus: StatusDegraded, CheckedAt: time.Now()}
	}
}

func (m *Monitor) cached(fresh bool) (HealthReport, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lastReport == nil || (fresh && time.Since(m.lastCheck) >= m.ttl) {
		return HealthReport{}, false
	}
	return *m.lastReport, true
}

func (m *Monitor) runChecks() HealthReport {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	report := HealthReport{
		SystemStatus: StatusHealthy,
		Components:   make(map[string]ComponentHealth, len(m.checks)),
		CheckedAt:    time.Now(),
	}

	var (
		g  errgroup.Group
		mu sync.Mutex
	)
	for _, c := range m.checks {
		g.Go(func() error {
			start := time.Now()
			h := c.check(ctx)
			h.Name = c.name
			if h.Latency == 0 {
				h.Latency = time.Since(start)
			}
			if h.Status == "" {
				h.Status = StatusHealthy
			}
			metrics.ComponentHealthy.WithLabelValues(c.name).Set(gaugeValue(h.Status))

			mu.Lock()
			defer mu.Unlock()
			report.Components[c.name] = h
			report.SystemStatus = worst(report.SystemStatus, h.Status)
			return nil
		})
	}
	_ = g.Wait()

	if m.deadLetters != nil {
		n, err := m.deadLetters.Count(ctx)
		if err != nil {
			slog.Warn("Failed to count dead letters", "error", err)
		} else {
			report.DeadLetters = n
		}
	}
	if m.failures != nil {
		counts, err := m.failures.CountByKind(ctx)
		if err != nil {
			slog.Warn("Failed to count failures by kind", "error", err)
		} else {
			report.FailuresByKind = counts
		}
	}

	m.mu.Lock()
	m.lastCheck = time.Now()
	m.lastReport = &report
	m.mu.Unlock()
	return report
}

func gaugeValue(s SystemStatus) float64 {
	switch s {
	case StatusHealthy:
		return 1
	case StatusDegraded:
		return 0.5
	default:
		return 0
	}
}

// PingCheck wraps a ping function. A failing ping reports failStatus along
// with the classified kind of the error.
func PingCheck(ping func(ctx context.Context) error, failStatus SystemStatus) Check {
	return func(ctx context.Context) ComponentHealth {
		err := ping(ctx)
		if err == nil {
			return ComponentHealth{Status: StatusHealthy}
		}
		h := ComponentHealth{Status: failStatus, Error: err.Error()}
		if d := failure.ClassifyError(err); d != nil {
			h.Kind = d.Kind
		}
		return h
	}
}

// VendorCheck reports the vendor state observed by the client's monitor.
// It makes no outbound call.
func VendorCheck(mon *vendor.Monitor) Check {
	return func(ctx context.Context) ComponentHealth {
		stats := mon.GetStats()
		h := ComponentHealth{
			Status:  StatusHealthy,
			Latency: stats.AverageLatency,
			Details: map[string]any{
				"state":            stats.Status.String(),
				"throttle_count":   stats.ThrottleCount,
				"forbidden_count":  stats.ForbiddenCount,
				"failure_count":    stats.FailureCount,
				"requests_last_1h": stats.RequestsLast1Hour,
				"retry_after_ms":   stats.RetryAfter.Milliseconds(),
			},
		}
		switch stats.Status {
		case vendor.StatusDegraded:
			h.Status = StatusDegraded
			h.Kind = failure.KindServerError
		case vendor.StatusThrottled:
			h.Status = StatusDegraded
			h.Kind = failure.KindRateLimit
		}
		return h
	}
}
