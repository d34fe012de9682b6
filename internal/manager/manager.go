// Package manager wires the classifier, the fault log and the recovery
// engine together and exposes the boundary API used by the rest of the
// application.
package manager

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sync"
	"time"

	"github.com/vietddude/faultline/internal/classify"
	"github.com/vietddude/faultline/internal/core/capability"
	"github.com/vietddude/faultline/internal/core/domain"
	"github.com/vietddude/faultline/internal/faultlog"
	"github.com/vietddude/faultline/internal/metrics"
	"github.com/vietddude/faultline/internal/recovery"
)

// Options configures a FaultManager. Every collaborator is optional.
type Options struct {
	Environment capability.EnvironmentDescriptor
	Subsystems  capability.Subsystems
	Notifier    capability.Notifier
	// Logger receives formatted fault lines. Defaults to slog.Default().
	Logger    *slog.Logger
	Formatter faultlog.LogFormatter
	Probe     recovery.ProbeConfig
	Cooldown  recovery.Cooldown
	Config    Config
}

// Config is the runtime-tunable part of the manager. Zero values keep the
// current setting.
type Config struct {
	MaxLogSize          int
	MaxRecoveryAttempts int
	SeverityRules       map[string]string
	ContextPatterns     map[string]string
}

// RecoveryStats is the engine summary plus the recent attempt history.
type RecoveryStats struct {
	recovery.Stats
	History []recovery.AttemptRecord `json:"history"`
}

// FaultManager owns one Classifier, one Store and one Engine.
type FaultManager struct {
	classifier *classify.Classifier
	store      *faultlog.Store
	engine     *recovery.Engine
	notifier   capability.Notifier
	logger     *slog.Logger
	formatter  faultlog.LogFormatter

	mu          sync.RWMutex
	maxAttempts int
}

// New builds a manager and applies opts.Config.
func New(opts Options) (*FaultManager, error) {
	classifier := classify.New(opts.Environment)
	store := faultlog.NewStore(opts.Config.MaxLogSize, classifier.Severity)

	maxAttempts := recovery.DefaultAttempts
	if opts.Config.MaxRecoveryAttempts != 0 {
		maxAttempts = min(max(opts.Config.MaxRecoveryAttempts, recovery.MinAttempts), recovery.MaxAttemptsCap)
	}

	engine := recovery.NewEngine(recovery.Options{
		Subsystems:         opts.Subsystems,
		Notifier:           opts.Notifier,
		Sink:               store,
		Cooldown:           opts.Cooldown,
		Probe:              opts.Probe,
		DefaultMaxAttempts: maxAttempts,
	})

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	formatter := opts.Formatter
	if formatter == nil {
		formatter = faultlog.FormatterFor(opts.Environment.Kind)
	}

	m := &FaultManager{
		classifier:  classifier,
		store:       store,
		engine:      engine,
		notifier:    opts.Notifier,
		logger:      logger,
		formatter:   formatter,
		maxAttempts: maxAttempts,
	}

	if err := classifier.Configure(classify.Options{
		SeverityRules:   opts.Config.SeverityRules,
		ContextPatterns: opts.Config.ContextPatterns,
	}); err != nil {
		return nil, fmt.Errorf("failed to configure classifier: %w", err)
	}
	metrics.LogSize.Set(0)
	return m, nil
}

// Handle runs the full pipeline for one raw failure: normalize, record,
// log, notify and attempt recovery. It never panics and always returns a
// copy of the stored record.
func (m *FaultManager) Handle(ctx context.Context, raw any) *domain.ErrorRecord {
	rec := m.classifier.Normalize(raw)
	sev := m.classifier.Severity(rec)

	m.store.Append(rec)
	m.store.UpdateStats(rec)

	faultlog.Emit(ctx, m.logger, m.formatter, rec, sev)
	metrics.FaultsTotal.WithLabelValues(string(rec.Context), sev.String()).Inc()
	metrics.LogSize.Set(float64(m.store.Len()))

	if m.notifier != nil && shouldNotify(rec) {
		m.notifier.Notify(rec, sev)
	}

	m.engine.AttemptRecovery(ctx, rec)
	return m.store.Snapshot(rec)
}

var (
	unsupportedPattern = regexp.MustCompile(`(?i)not supported|unsupported`)
	fetchPattern       = regexp.MustCompile(`(?i)failed to fetch`)
	thresholdPattern   = regexp.MustCompile(`(?i)threshold|exceeded|limit`)
)

// shouldNotify decides whether a fault is surfaced to the user. Everything
// else is only logged.
func shouldNotify(rec *domain.ErrorRecord) bool {
	switch {
	case rec.Context == domain.ContextCanvas:
		return true
	case unsupportedPattern.MatchString(rec.Message):
		return true
	case rec.Context == domain.ContextNetwork, fetchPattern.MatchString(rec.Message):
		return true
	case rec.Context == domain.ContextMemory || rec.Context == domain.ContextPerformance:
		return thresholdPattern.MatchString(rec.Message)
	}
	return false
}

// Normalize converts raw into a record without storing it.
func (m *FaultManager) Normalize(raw any) *domain.ErrorRecord {
	return m.classifier.Normalize(raw)
}

func (m *FaultManager) ClassifyContext(name, message, stack string) domain.Context {
	return m.classifier.ClassifyContext(name, message, stack)
}

func (m *FaultManager) DetermineSeverity(name, message string, ctx domain.Context) domain.Severity {
	return m.classifier.DetermineSeverity(name, message, ctx)
}

// AttemptRecovery runs recovery for a record that is already in the log.
func (m *FaultManager) AttemptRecovery(ctx context.Context, rec *domain.ErrorRecord) bool {
	return m.engine.AttemptRecovery(ctx, rec)
}

// RegisterStrategy binds s to c. Strategies asking for more attempts than
// the configured maximum are capped.
func (m *FaultManager) RegisterStrategy(c domain.Context, s recovery.RecoveryStrategy) error {
	if s == nil {
		return fmt.Errorf("%w: nil strategy for %s", recovery.ErrInvalidStrategy, c)
	}
	m.mu.RLock()
	limit := m.maxAttempts
	m.mu.RUnlock()

	if s.MaxAttempts() > limit {
		s = cappedStrategy{RecoveryStrategy: s, max: limit}
	}
	return m.engine.RegisterStrategy(c, s)
}

// RegisterFunc registers a strategy from callables. maxAttempts <= 0 uses
// the configured maximum.
func (m *FaultManager) RegisterFunc(c domain.Context, attempt recovery.AttemptFunc, fallback recovery.FallbackFunc, maxAttempts int) error {
	m.mu.RLock()
	limit := m.maxAttempts
	m.mu.RUnlock()
	return m.engine.RegisterFunc(c, attempt, fallback, min(maxAttempts, limit))
}

func (m *FaultManager) RemoveStrategy(c domain.Context) error {
	if !m.engine.RemoveStrategy(c) {
		return fmt.Errorf("%w: %s", recovery.ErrNoStrategy, c)
	}
	return nil
}

func (m *FaultManager) ResetAttempts(c domain.Context) error {
	if !m.engine.ResetAttempts(c) {
		return fmt.Errorf("%w: %s", recovery.ErrNoStrategy, c)
	}
	return nil
}

// Append stores a record produced elsewhere and counts it.
func (m *FaultManager) Append(rec *domain.ErrorRecord) {
	m.store.Append(rec)
	m.store.UpdateStats(rec)
	metrics.LogSize.Set(float64(m.store.Len()))
}

func (m *FaultManager) Log() []*domain.ErrorRecord { return m.store.Log() }

func (m *FaultManager) Recent(n int) []*domain.ErrorRecord { return m.store.Recent(n) }

func (m *FaultManager) BySeverity(sev domain.Severity) []*domain.ErrorRecord {
	return m.store.BySeverity(sev)
}

func (m *FaultManager) ByContext(c domain.Context) []*domain.ErrorRecord {
	return m.store.ByContext(c)
}

func (m *FaultManager) ByTimeRange(from, to time.Time) []*domain.ErrorRecord {
	return m.store.ByTimeRange(from, to)
}

func (m *FaultManager) Export(opts faultlog.ExportOptions) ([]byte, error) {
	return m.store.Export(opts)
}

// Rotate snapshots and clears the log and its counters.
func (m *FaultManager) Rotate() faultlog.Archive {
	a := m.store.Rotate()
	metrics.RotationsTotal.Inc()
	metrics.LogSize.Set(0)
	return a
}

// Configure applies the non-zero fields of cfg. Limits are clamped; an
// invalid pattern or severity leaves the previous rules in place.
func (m *FaultManager) Configure(cfg Config) error {
	if err := m.classifier.Configure(classify.Options{
		SeverityRules:   cfg.SeverityRules,
		ContextPatterns: cfg.ContextPatterns,
	}); err != nil {
		return fmt.Errorf("failed to configure classifier: %w", err)
	}

	if cfg.MaxLogSize != 0 {
		size := m.store.Configure(cfg.MaxLogSize)
		metrics.LogSize.Set(float64(m.store.Len()))
		slog.Debug("Fault log resized", "maxLogSize", size)
	}
	if cfg.MaxRecoveryAttempts != 0 {
		n := m.engine.SetDefaultMaxAttempts(cfg.MaxRecoveryAttempts)
		m.mu.Lock()
		m.maxAttempts = n
		m.mu.Unlock()
		slog.Debug("Recovery attempt limit changed", "maxRecoveryAttempts", n)
	}
	return nil
}

// MaxRecoveryAttempts returns the configured cap for custom strategies.
func (m *FaultManager) MaxRecoveryAttempts() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.maxAttempts
}

func (m *FaultManager) MaxLogSize() int { return m.store.MaxSize() }

func (m *FaultManager) Stats() domain.ErrorStats { return m.store.Stats() }

func (m *FaultManager) RecoveryStats() RecoveryStats {
	return RecoveryStats{Stats: m.engine.Stats(), History: m.engine.History()}
}

// RecoveryStates returns the recovery state of every registered context.
func (m *FaultManager) RecoveryStates() map[domain.Context]recovery.State {
	return m.engine.Stats().States
}

// ClassifierStats reports the configured rule and pattern counts.
func (m *FaultManager) ClassifierStats() classify.Stats { return m.classifier.Stats() }

func (m *FaultManager) FallbackState() domain.FallbackState { return m.engine.FallbackState() }

func (m *FaultManager) IsSafeMode() bool { return m.engine.IsSafeMode() }

// EnableSafeMode forces safe mode.
func (m *FaultManager) EnableSafeMode(ctx context.Context) { m.engine.EnableSafeMode(ctx) }

// Analyze runs pattern analysis over the current log.
func (m *FaultManager) Analyze() classify.PatternAnalysis {
	return m.classifier.AnalyzePatterns(m.store.Log())
}

// Report builds an analysis report for rec against the current log.
func (m *FaultManager) Report(rec *domain.ErrorRecord) classify.AnalysisReport {
	return m.classifier.GenerateAnalysisReport(rec, m.store.Log())
}

// FindSimilar returns logged records similar to rec.
func (m *FaultManager) FindSimilar(rec *domain.ErrorRecord) []*domain.ErrorRecord {
	return m.classifier.FindSimilar(rec, m.store.Log())
}

type cappedStrategy struct {
	recovery.RecoveryStrategy
	max int
}

func (s cappedStrategy) MaxAttempts() int { return s.max }
