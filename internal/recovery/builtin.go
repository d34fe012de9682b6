package recovery

import (
	"context"
	"log/slog"
	"runtime"

	"github.com/vietddude/faultline/internal/core/domain"
)

func (e *Engine) registerBuiltins() {
	builtins := map[domain.Context]RecoveryStrategy{
		domain.ContextCanvas:      &canvasStrategy{e},
		domain.ContextAudio:       &audioStrategy{e},
		domain.ContextStorage:     &storageStrategy{e},
		domain.ContextMemory:      &loadStrategy{e: e, targetFPS: 0, quality: "low"},
		domain.ContextPerformance: &loadStrategy{e: e, targetFPS: 30, quality: "medium"},
		domain.ContextNetwork:     &networkStrategy{e},
		domain.ContextWebGL:       &webglStrategy{e},
	}
	for c, s := range builtins {
		// Built-ins are never nil, so registration cannot fail.
		_ = e.RegisterStrategy(c, s)
	}
}

// canvasStrategy recreates the drawing surface and shows the degraded UI once
// that keeps failing.
type canvasStrategy struct{ e *Engine }

func (s *canvasStrategy) MaxAttempts() int { return 2 }

func (s *canvasStrategy) Attempt(_ context.Context, _ *domain.ErrorRecord) Result {
	r := s.e.subsystems.Renderer
	if r == nil {
		return Result{Message: "no renderer available"}
	}
	if err := r.RecreateSurface(); err != nil {
		return Result{Message: "surface recreation failed: " + err.Error()}
	}
	return Result{Success: true, Message: "rendering surface recreated"}
}

func (s *canvasStrategy) Fallback(_ context.Context) {
	s.e.setFlags(func(f *domain.FallbackState) { f.CanvasDisabled = true })
	s.e.showDegradedUI()
}

// audioStrategy gives up on audio right away.
type audioStrategy struct{ e *Engine }

func (s *audioStrategy) MaxAttempts() int { return 1 }

func (s *audioStrategy) Attempt(ctx context.Context, _ *domain.ErrorRecord) Result {
	s.Fallback(ctx)
	return Result{Success: true, Message: "audio disabled"}
}

func (s *audioStrategy) Fallback(_ context.Context) {
	s.e.setFlags(func(f *domain.FallbackState) { f.AudioDisabled = true })
	disable(s.e.subsystems.Audio)
}

// storageStrategy moves persistence to the in-memory store.
type storageStrategy struct{ e *Engine }

func (s *storageStrategy) MaxAttempts() int { return 1 }

func (s *storageStrategy) Attempt(_ context.Context, _ *domain.ErrorRecord) Result {
	s.e.kv.Activate()
	return Result{Success: true, Message: "switched to in-memory storage"}
}

func (s *storageStrategy) Fallback(_ context.Context) {
	s.e.setFlags(func(f *domain.FallbackState) { f.StorageDisabled = true })
}

// loadStrategy sheds rendering load for memory and performance warnings and
// escalates to safe mode when warnings keep coming.
type loadStrategy struct {
	e         *Engine
	targetFPS int
	quality   string
}

func (s *loadStrategy) MaxAttempts() int { return 2 }

func (s *loadStrategy) Attempt(_ context.Context, _ *domain.ErrorRecord) Result {
	s.e.setFlags(func(f *domain.FallbackState) { f.ReducedEffects = true })

	if p := s.e.subsystems.Performance; p != nil {
		p.SetQualityLevel(s.quality)
		p.SetRenderQuality(0.5)
		if s.targetFPS > 0 {
			p.SetTargetFPS(s.targetFPS)
		}
	}
	disable(s.e.subsystems.Particles)
	runtime.GC()

	return Result{Success: true, Message: "effects reduced to " + s.quality}
}

func (s *loadStrategy) Fallback(ctx context.Context) {
	s.e.EnableSafeMode(ctx)
}

// networkStrategy probes connectivity and switches network-backed subsystems
// offline once the budget is spent.
type networkStrategy struct{ e *Engine }

func (s *networkStrategy) MaxAttempts() int { return 2 }

func (s *networkStrategy) Attempt(ctx context.Context, _ *domain.ErrorRecord) Result {
	if err := s.e.prober.Probe(ctx); err != nil {
		return Result{Message: err.Error()}
	}
	return Result{Success: true, Message: "connectivity restored"}
}

func (s *networkStrategy) Fallback(_ context.Context) {
	for _, sub := range []interface{ EnableOfflineMode() }{s.e.subsystems.Network, s.e.subsystems.Leaderboard} {
		if sub != nil {
			sub.EnableOfflineMode()
		}
	}
}

// webglStrategy drops to the non-accelerated rendering path.
type webglStrategy struct{ e *Engine }

func (s *webglStrategy) MaxAttempts() int { return 1 }

func (s *webglStrategy) Attempt(_ context.Context, _ *domain.ErrorRecord) Result {
	r := s.e.subsystems.Renderer
	if r == nil {
		return Result{Message: "no renderer available"}
	}
	if err := r.FallbackTo2D(); err != nil {
		return Result{Message: "2D fallback failed: " + err.Error()}
	}
	return Result{Success: true, Message: "switched to 2D rendering"}
}

func (s *webglStrategy) Fallback(_ context.Context) {
	s.e.setFlags(func(f *domain.FallbackState) { f.CanvasDisabled = true })
	s.e.showDegradedUI()
}

func (e *Engine) showDegradedUI() {
	if e.notifier == nil {
		slog.Warn("Rendering degraded, no notifier to inform the user")
		return
	}
	e.notifier.ShowDegradedModeUI()
}
