package health

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vietddude/faultline/internal/classify"
	"github.com/vietddude/faultline/internal/core/domain"
	"github.com/vietddude/faultline/internal/faultlog"
	"github.com/vietddude/faultline/internal/recovery"
)

const (
	defaultWindow      = time.Minute
	defaultCacheTTL    = 2 * time.Second
	recentSample       = 100
	criticalBurstLimit = 5
)

// Source is the view of the fault manager the monitor and the HTTP server
// need.
type Source interface {
	Handle(ctx context.Context, raw any) *domain.ErrorRecord
	ClassifierStats() classify.Stats
	FallbackState() domain.FallbackState
	Stats() domain.ErrorStats
	Recent(n int) []*domain.ErrorRecord
	RecoveryStates() map[domain.Context]recovery.State
	DetermineSeverity(name, message string, ctx domain.Context) domain.Severity
	Export(opts faultlog.ExportOptions) ([]byte, error)
}

// Monitor derives a health report from the fault manager.
type Monitor struct {
	source     Source
	window     time.Duration
	cacheTTL   time.Duration
	now        func() time.Time
	lastCheck  time.Time
	lastReport HealthReport
	mu         sync.Mutex
}

// NewMonitor creates a new health monitor. Faults older than window do not
// count towards the fault component.
func NewMonitor(source Source, window time.Duration) *Monitor {
	if window <= 0 {
		window = defaultWindow
	}
	return &Monitor{
		source:   source,
		window:   window,
		cacheTTL: defaultCacheTTL,
		now:      time.Now,
	}
}

// CheckHealth builds the report. Results are cached briefly so a busy probe
// endpoint does not copy the log on every request.
func (m *Monitor) CheckHealth() HealthReport {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if !m.lastCheck.IsZero() && now.Sub(m.lastCheck) < m.cacheTTL {
		return m.lastReport
	}

	fallback := m.source.FallbackState()
	report := HealthReport{
		Components: make(map[string]ComponentHealth, 2),
		Fallback:   fallback,
		Stats:      m.source.Stats(),
		Classifier: m.source.ClassifierStats(),
		CheckedAt:  now,
	}

	// 1. Recovery engine
	rec := ComponentHealth{Name: "recovery", Status: StatusHealthy}
	var exhausted []string
	for c, state := range m.source.RecoveryStates() {
		if state == recovery.StateExhausted {
			exhausted = append(exhausted, string(c))
		}
	}
	sort.Strings(exhausted)
	switch {
	case fallback.SafeMode:
		rec.Status = StatusCritical
		rec.Detail = "safe mode"
	case fallback.Degraded() || len(exhausted) > 0:
		rec.Status = StatusDegraded
		rec.Detail = degradedDetail(fallback, exhausted)
	}
	report.Components[rec.Name] = rec

	// 2. Recent faults
	faults := ComponentHealth{Name: "faults", Status: StatusHealthy}
	since := now.Add(-m.window)
	for _, r := range m.source.Recent(recentSample) {
		if r.Timestamp.Before(since) {
			continue
		}
		report.RecentFaults++
		if m.source.DetermineSeverity(r.Name, r.Message, r.Context) == domain.SeverityCritical {
			report.RecentCritical++
		}
	}
	switch {
	case report.RecentCritical >= criticalBurstLimit:
		faults.Status = StatusCritical
	case report.RecentCritical > 0:
		faults.Status = StatusDegraded
	}
	if report.RecentFaults > 0 {
		faults.Detail = fmt.Sprintf("%d faults (%d critical) in the last %s", report.RecentFaults, report.RecentCritical, m.window)
	}
	report.Components[faults.Name] = faults

	// Aggregate status (worst case wins)
	report.SystemStatus = StatusHealthy
	for _, c := range report.Components {
		if c.Status.rank() > report.SystemStatus.rank() {
			report.SystemStatus = c.Status
		}
	}

	m.lastCheck = now
	m.lastReport = report
	return report
}

func degradedDetail(f domain.FallbackState, exhausted []string) string {
	var parts []string
	if f.AudioDisabled {
		parts = append(parts, "audio disabled")
	}
	if f.CanvasDisabled {
		parts = append(parts, "canvas disabled")
	}
	if f.StorageDisabled {
		parts = append(parts, "storage disabled")
	}
	if f.ReducedEffects {
		parts = append(parts, "reduced effects")
	}
	if len(exhausted) > 0 {
		parts = append(parts, "exhausted: "+strings.Join(exhausted, ","))
	}
	return strings.Join(parts, "; ")
}
