// Package recovery runs bounded-retry remediation per fault context and owns
// the process-wide fallback state.
package recovery

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/vietddude/faultline/internal/core/domain"
)

var (
	// ErrInvalidStrategy is returned when a strategy or one of its callables
	// is missing.
	ErrInvalidStrategy = errors.New("invalid recovery strategy")
	// ErrNoStrategy is returned when no strategy is registered for a context.
	ErrNoStrategy = errors.New("no recovery strategy registered")
)

const (
	MinAttempts     = 1
	MaxAttemptsCap  = 10
	DefaultAttempts = 2
)

// Result is the outcome of one recovery attempt.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// RecoveryStrategy remediates faults of one context. Attempt may block; it
// should return when ctx is done. Fallback must be idempotent.
type RecoveryStrategy interface {
	Attempt(ctx context.Context, rec *domain.ErrorRecord) Result
	Fallback(ctx context.Context)
	MaxAttempts() int
}

// AttemptFunc is the callable form of RecoveryStrategy.Attempt.
type AttemptFunc func(ctx context.Context, rec *domain.ErrorRecord) Result

// FallbackFunc is the callable form of RecoveryStrategy.Fallback.
type FallbackFunc func(ctx context.Context)

type funcStrategy struct {
	attempt     AttemptFunc
	fallback    FallbackFunc
	maxAttempts int
}

func (s *funcStrategy) Attempt(ctx context.Context, rec *domain.ErrorRecord) Result {
	return s.attempt(ctx, rec)
}

func (s *funcStrategy) Fallback(ctx context.Context) { s.fallback(ctx) }

func (s *funcStrategy) MaxAttempts() int { return s.maxAttempts }

func clampAttempts(n int) int {
	return min(max(n, MinAttempts), MaxAttemptsCap)
}

// Cooldown spaces out attempts for a context after a failure.
type Cooldown interface {
	// GetDelay returns the wait after the given failed attempt (0-indexed).
	GetDelay(attempt int) time.Duration
}

// ExponentialBackoff waits InitialDelay * 2^attempt, capped at MaxDelay.
type ExponentialBackoff struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// DefaultBackoff returns 2s, 4s, 8s ... capped at 60s.
func DefaultBackoff() *ExponentialBackoff {
	return &ExponentialBackoff{
		InitialDelay: 2 * time.Second,
		MaxDelay:     60 * time.Second,
	}
}

// GetDelay calculates delay: InitialDelay * 2^attempt
func (b *ExponentialBackoff) GetDelay(attempt int) time.Duration {
	delay := float64(b.InitialDelay) * math.Pow(2, float64(attempt))
	if delay > float64(b.MaxDelay) {
		return b.MaxDelay
	}
	return time.Duration(delay)
}
