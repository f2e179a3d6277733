// Package health provides gateway health monitoring and status reporting.
package health

import (
	"time"

	"github.com/vietddude/toolgate/internal/core/failure"
)

// SystemStatus represents the overall health state of the system or a component.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// ComponentHealth is the result of checking one dependency.
type ComponentHealth struct {
	Name    string         `json:"name"`
	Status  SystemStatus   `json:"status"`
	Error   string         `json:"error,omitempty"`
	Kind    failure.Kind   `json:"kind,omitempty"`
	Latency time.Duration  `json:"latency_ns"`
	Details map[string]any `json:"details,omitempty"`
}

// HealthReport contains the full system health report.
type HealthReport struct {
	SystemStatus   SystemStatus               `json:"system_status"`
	Components     map[string]ComponentHealth `json:"components"`
	DeadLetters    int                        `json:"dead_letters"`
	FailuresByKind map[failure.Kind]int       `json:"failures_by_kind,omitempty"`
	CheckedAt      time.Time                  `json:"checked_at"`
}

// worst returns the more severe of two statuses.
func worst(a, b SystemStatus) SystemStatus {
	rank := map[SystemStatus]int{StatusHealthy: 0, StatusDegraded: 1, StatusCritical: 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}
