// Package health reports fault and degradation status over HTTP and gRPC.
package health

import (
	"time"

	"github.com/vietddude/faultline/internal/classify"
	"github.com/vietddude/faultline/internal/core/domain"
)

// SystemStatus represents the overall health state of the system or a component.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// rank orders statuses so the worst one wins.
func (s SystemStatus) rank() int {
	switch s {
	case StatusCritical:
		return 2
	case StatusDegraded:
		return 1
	}
	return 0
}

// ComponentHealth is the status of one part of the fault pipeline.
type ComponentHealth struct {
	Name   string       `json:"name"`
	Status SystemStatus `json:"status"`
	Detail string       `json:"detail,omitempty"`
}

// HealthReport contains the full system health report.
type HealthReport struct {
	SystemStatus   SystemStatus               `json:"system_status"`
	Components     map[string]ComponentHealth `json:"components"`
	Fallback       domain.FallbackState       `json:"fallback_state"`
	Stats          domain.ErrorStats          `json:"stats"`
	RecentFaults   int                        `json:"recent_faults"`
	RecentCritical int                        `json:"recent_critical"`
	Classifier     classify.Stats             `json:"classifier"`
	CheckedAt      time.Time                  `json:"checked_at"`
}
