package recovery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ProbeTimeout is the fixed deadline of a connectivity probe.
const ProbeTimeout = 5 * time.Second

var (
	ErrProbeTimeout = errors.New("connectivity probe timed out")
	ErrNoProbeURL   = errors.New("no probe URL configured")
)

// ProbeConfig configures the network connectivity probe.
type ProbeConfig struct {
	URL    string
	Client *http.Client
}

// Prober races a fetch against a fixed timer. Whichever settles first decides
// the outcome; the loser is cancelled.
type Prober struct {
	timeout time.Duration
	fetch   func(ctx context.Context) error
	// newTimer is swapped in tests.
	newTimer func(d time.Duration) (<-chan time.Time, func() bool)
}

// NewProber builds a prober that issues a GET against cfg.URL.
func NewProber(cfg ProbeConfig) *Prober {
	client := cfg.Client
	if client == nil {
		client = http.DefaultClient
	}
	url := cfg.URL

	return &Prober{
		timeout: ProbeTimeout,
		fetch: func(ctx context.Context) error {
			if url == "" {
				return ErrNoProbeURL
			}
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return fmt.Errorf("failed to build probe request: %w", err)
			}
			req.Header.Set("Cache-Control", "no-cache")
			resp, err := client.Do(req)
			if err != nil {
				return fmt.Errorf("probe request failed: %w", err)
			}
			_ = resp.Body.Close()
			return nil
		},
		newTimer: func(d time.Duration) (<-chan time.Time, func() bool) {
			t := time.NewTimer(d)
			return t.C, t.Stop
		},
	}
}

// Probe reports nil once the fetch completes, ErrProbeTimeout if the timer
// fires first, or the fetch error.
func (p *Prober) Probe(ctx context.Context) error {
	fetchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- p.fetch(fetchCtx)
	}()

	timeout, stop := p.newTimer(p.timeout)
	defer stop()

	select {
	case err := <-done:
		return err
	case <-timeout:
		cancel()
		return ErrProbeTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}
