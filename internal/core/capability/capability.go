// Package capability declares the optional collaborators the fault core calls
// out to. Every collaborator may be absent; callers nil-check before use.
package capability

import "github.com/vietddude/faultline/internal/core/domain"

// Notifier surfaces faults to the user.
type Notifier interface {
	// ShowDegradedModeUI is invoked once rendering recovery is exhausted.
	ShowDegradedModeUI()
	// Notify forwards a fault that passed the should-notify heuristic.
	Notify(rec *domain.ErrorRecord, severity domain.Severity)
}

// StatsSink records successful recoveries. MarkRecovered owns the write
// to rec.Recovered.
type StatsSink interface {
	MarkRecovered(rec *domain.ErrorRecord)
	Recovered() int
}

// Toggler is a subsystem that can be switched off and on.
type Toggler interface {
	Disable()
	Enable()
}

// PerformanceTuner adjusts rendering load.
type PerformanceTuner interface {
	SetQualityLevel(level string)
	SetTargetFPS(fps int)
	SetRenderQuality(quality float64)
}

// Renderer owns the drawing surface.
type Renderer interface {
	RecreateSurface() error
	FallbackTo2D() error
}

// OfflineCapable is a network-backed subsystem that can run disconnected.
type OfflineCapable interface {
	Disable()
	EnableOfflineMode()
}

// Subsystems bundles the optional collaborators. Any field may be nil.
type Subsystems struct {
	Audio       Toggler
	Particles   Toggler
	Effects     Toggler
	Performance PerformanceTuner
	Renderer    Renderer
	Network     OfflineCapable
	Leaderboard OfflineCapable
}
