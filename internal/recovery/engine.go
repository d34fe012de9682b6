package recovery

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/vietddude/faultline/internal/core/capability"
	"github.com/vietddude/faultline/internal/core/domain"
	"github.com/vietddude/faultline/internal/metrics"
)

// State is the recovery state of one context.
type State string

const (
	StateIdle       State = "idle"
	StateAttempting State = "attempting"
	StateRecovered  State = "recovered"
	StateExhausted  State = "exhausted"
)

type slot struct {
	strategy    RecoveryStrategy
	max         int
	attempts    int
	inFlight    int
	lastSuccess bool
	lastFailure time.Time
}

func (s *slot) state() State {
	switch {
	case s.inFlight > 0:
		return StateAttempting
	case s.attempts >= s.max:
		return StateExhausted
	case s.lastSuccess:
		return StateRecovered
	}
	return StateIdle
}

// Options configures an Engine. All collaborators are optional.
type Options struct {
	Subsystems capability.Subsystems
	Notifier   capability.Notifier
	Sink       capability.StatsSink
	// Cooldown, when set, defers a new attempt until the backoff after the
	// previous failed attempt has elapsed.
	Cooldown Cooldown
	Probe    ProbeConfig
	// DefaultMaxAttempts applies to RegisterFunc calls passing 0.
	DefaultMaxAttempts int
	HistorySize        int
}

// Stats summarizes the engine.
type Stats struct {
	Strategies        int                      `json:"strategies"`
	TotalAttempts     int                      `json:"totalAttempts"`
	Recovered         int                      `json:"recovered"`
	Fallback          domain.FallbackState     `json:"fallbackState"`
	RemainingAttempts map[domain.Context]int   `json:"remainingAttempts"`
	States            map[domain.Context]State `json:"states"`
}

// Engine dispatches faults to the strategy registered for their context.
type Engine struct {
	mu         sync.Mutex
	slots      map[domain.Context]*slot
	fallback   domain.FallbackState
	defaultMax int
	recovered  int
	subsystems capability.Subsystems
	notifier   capability.Notifier
	sink       capability.StatsSink
	cooldown   Cooldown
	prober     *Prober
	kv         *MemoryKV
	history    *history
	now        func() time.Time
}

// NewEngine creates an engine with the built-in strategies registered.
func NewEngine(opts Options) *Engine {
	defaultMax := DefaultAttempts
	if opts.DefaultMaxAttempts > 0 {
		defaultMax = clampAttempts(opts.DefaultMaxAttempts)
	}
	e := &Engine{
		slots:      make(map[domain.Context]*slot),
		defaultMax: defaultMax,
		subsystems: opts.Subsystems,
		notifier:   opts.Notifier,
		sink:       opts.Sink,
		cooldown:   opts.Cooldown,
		prober:     NewProber(opts.Probe),
		kv:         NewMemoryKV(),
		history:    newHistory(opts.HistorySize),
		now:        time.Now,
	}
	e.registerBuiltins()
	return e
}

// RegisterStrategy binds s to ctx, replacing any previous strategy and
// resetting the attempt counter. MaxAttempts is clamped to [1, 10].
func (e *Engine) RegisterStrategy(ctx domain.Context, s RecoveryStrategy) error {
	if s == nil {
		return fmt.Errorf("%w: nil strategy for %s", ErrInvalidStrategy, ctx)
	}
	if ctx == "" {
		return fmt.Errorf("%w: empty context", ErrInvalidStrategy)
	}

	e.mu.Lock()
	e.slots[ctx] = &slot{strategy: s, max: clampAttempts(s.MaxAttempts())}
	e.mu.Unlock()

	slog.Debug("Recovery strategy registered", "context", ctx, "maxAttempts", clampAttempts(s.MaxAttempts()))
	return nil
}

// RegisterFunc registers a strategy built from callables. maxAttempts <= 0
// uses the engine default.
func (e *Engine) RegisterFunc(ctx domain.Context, attempt AttemptFunc, fallback FallbackFunc, maxAttempts int) error {
	if attempt == nil || fallback == nil {
		return fmt.Errorf("%w: attempt and fallback are required for %s", ErrInvalidStrategy, ctx)
	}
	if maxAttempts <= 0 {
		e.mu.Lock()
		maxAttempts = e.defaultMax
		e.mu.Unlock()
	}
	return e.RegisterStrategy(ctx, &funcStrategy{
		attempt:     attempt,
		fallback:    fallback,
		maxAttempts: maxAttempts,
	})
}

// RemoveStrategy unbinds ctx. It reports whether a strategy was registered.
func (e *Engine) RemoveStrategy(ctx domain.Context) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.slots[ctx]
	delete(e.slots, ctx)
	return ok
}

// SetDefaultMaxAttempts changes the cap used by RegisterFunc callers that
// pass 0. It returns the clamped value.
func (e *Engine) SetDefaultMaxAttempts(n int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.defaultMax = clampAttempts(n)
	return e.defaultMax
}

// AttemptRecovery runs the strategy for rec.Context. Once the strategy's
// budget is spent it invokes the fallback instead and reports failure.
// Panics raised by a strategy are treated as a failed attempt.
func (e *Engine) AttemptRecovery(ctx context.Context, rec *domain.ErrorRecord) bool {
	e.mu.Lock()
	sl, ok := e.slots[rec.Context]
	if !ok {
		e.mu.Unlock()
		slog.Warn("No recovery strategy registered", "context", rec.Context, "id", rec.ID)
		return false
	}
	strategy := sl.strategy

	if sl.attempts >= sl.max {
		e.mu.Unlock()
		slog.Debug("Recovery attempts exhausted", "context", rec.Context, "max", sl.max)
		e.runFallback(ctx, rec.Context, strategy)
		return false
	}

	if e.cooldown != nil && !sl.lastFailure.IsZero() {
		readyAt := sl.lastFailure.Add(e.cooldown.GetDelay(sl.attempts - 1))
		if e.now().Before(readyAt) {
			e.mu.Unlock()
			slog.Debug("Recovery deferred by cooldown", "context", rec.Context, "readyAt", readyAt)
			return false
		}
	}

	sl.attempts++
	sl.inFlight++
	attempt := sl.attempts
	e.mu.Unlock()

	start := e.now()
	res := e.runAttempt(ctx, strategy, rec)
	elapsed := e.now().Sub(start)

	metrics.RecoveryDuration.WithLabelValues(string(rec.Context)).Observe(elapsed.Seconds())
	e.history.add(AttemptRecord{
		Context:  rec.Context,
		RecordID: rec.ID,
		Attempt:  attempt,
		Success:  res.Success,
		Message:  res.Message,
		Duration: elapsed,
		At:       start,
	})

	e.mu.Lock()
	sl.inFlight--
	sl.lastSuccess = res.Success
	if res.Success {
		sl.lastFailure = time.Time{}
		e.recovered++
	} else {
		sl.lastFailure = e.now()
	}
	capped := sl.attempts >= sl.max
	e.mu.Unlock()

	if res.Success {
		if e.sink != nil {
			e.sink.MarkRecovered(rec)
		} else {
			rec.Recovered = true
		}
		metrics.RecoveryAttempts.WithLabelValues(string(rec.Context), "success").Inc()
		slog.Info("Recovery succeeded", "context", rec.Context, "id", rec.ID, "attempt", attempt, "message", res.Message)
		return true
	}

	metrics.RecoveryAttempts.WithLabelValues(string(rec.Context), "failure").Inc()
	slog.Warn("Recovery attempt failed", "context", rec.Context, "id", rec.ID, "attempt", attempt, "message", res.Message)
	if capped {
		e.runFallback(ctx, rec.Context, strategy)
	}
	return false
}

func (e *Engine) runAttempt(ctx context.Context, s RecoveryStrategy, rec *domain.ErrorRecord) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Recovery strategy panicked", "context", rec.Context, "panic", r)
			res = Result{Message: fmt.Sprintf("attempt panicked: %v", r)}
		}
	}()
	return s.Attempt(ctx, rec)
}

func (e *Engine) runFallback(ctx context.Context, c domain.Context, s RecoveryStrategy) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Fallback panicked", "context", c, "panic", r)
		}
	}()
	metrics.FallbacksTotal.WithLabelValues(string(c)).Inc()
	s.Fallback(ctx)
}

// EnableSafeMode sets SafeMode and ReducedEffects and switches off the
// effect, particle and audio subsystems when present. Nothing leaves safe
// mode.
func (e *Engine) EnableSafeMode(ctx context.Context) {
	e.mu.Lock()
	already := e.fallback.SafeMode
	e.fallback.SafeMode = true
	e.fallback.ReducedEffects = true
	e.mu.Unlock()

	disable(e.subsystems.Effects)
	disable(e.subsystems.Particles)
	disable(e.subsystems.Audio)

	metrics.SafeMode.Set(1)
	if !already {
		slog.Warn("Safe mode enabled")
	}
}

func disable(t capability.Toggler) {
	if t != nil {
		t.Disable()
	}
}

// ResetAttempts returns ctx to idle.
func (e *Engine) ResetAttempts(ctx domain.Context) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	sl, ok := e.slots[ctx]
	if !ok {
		return false
	}
	sl.attempts = 0
	sl.lastSuccess = false
	sl.lastFailure = time.Time{}
	return true
}

// ResetAll returns every context to idle.
func (e *Engine) ResetAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, sl := range e.slots {
		sl.attempts = 0
		sl.lastSuccess = false
		sl.lastFailure = time.Time{}
	}
}

// Attempts returns the attempt counter for ctx.
func (e *Engine) Attempts(ctx domain.Context) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if sl, ok := e.slots[ctx]; ok {
		return sl.attempts
	}
	return 0
}

// State returns the recovery state of ctx; unregistered contexts are idle.
func (e *Engine) State(ctx domain.Context) State {
	e.mu.Lock()
	defer e.mu.Unlock()
	if sl, ok := e.slots[ctx]; ok {
		return sl.state()
	}
	return StateIdle
}

// Contexts returns the registered contexts sorted by name.
func (e *Engine) Contexts() []domain.Context {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]domain.Context, 0, len(e.slots))
	for c := range e.slots {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// FallbackState returns a snapshot of the degradation flags.
func (e *Engine) FallbackState() domain.FallbackState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fallback
}

// IsSafeMode reports whether safe mode has been entered.
func (e *Engine) IsSafeMode() bool {
	return e.FallbackState().SafeMode
}

// History returns the recent attempts, oldest first.
func (e *Engine) History() []AttemptRecord {
	return e.history.snapshot()
}

// Storage returns the in-memory store used after a storage fault.
func (e *Engine) Storage() *MemoryKV {
	return e.kv
}

// Stats summarizes strategies, attempts and fallback flags.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := Stats{
		Strategies:        len(e.slots),
		Recovered:         e.recovered,
		Fallback:          e.fallback,
		RemainingAttempts: make(map[domain.Context]int, len(e.slots)),
		States:            make(map[domain.Context]State, len(e.slots)),
	}
	for c, sl := range e.slots {
		st.TotalAttempts += sl.attempts
		st.RemainingAttempts[c] = max(sl.max-sl.attempts, 0)
		st.States[c] = sl.state()
	}
	if e.sink != nil {
		st.Recovered = e.sink.Recovered()
	}
	return st
}

func (e *Engine) setFlags(update func(*domain.FallbackState)) {
	e.mu.Lock()
	update(&e.fallback)
	e.mu.Unlock()
}
