package manager

import (
	"context"
	"log/slog"
	"time"

	"github.com/vietddude/faultline/internal/archive"
	"github.com/vietddude/faultline/internal/faultlog"
	"github.com/vietddude/faultline/internal/metrics"
)

// Rotator periodically rotates the fault log and ships each snapshot to an
// archive sink.
type Rotator struct {
	manager  *FaultManager
	sink     archive.Sink
	interval time.Duration
}

// NewRotator creates a rotator. sink may be nil, in which case snapshots are
// only logged.
func NewRotator(m *FaultManager, sink archive.Sink, interval time.Duration) *Rotator {
	return &Rotator{
		manager:  m,
		sink:     sink,
		interval: interval,
	}
}

// Start runs the rotate loop until ctx is done.
func (r *Rotator) Start(ctx context.Context) {
	if r.interval <= 0 {
		return // Rotation disabled
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Ship what is left so a shutdown does not drop the tail.
			r.rotate(context.WithoutCancel(ctx))
			return
		case <-ticker.C:
			r.rotate(ctx)
		}
	}
}

// RotateNow rotates once and returns the snapshot.
func (r *Rotator) RotateNow(ctx context.Context) faultlog.Archive {
	return r.rotate(ctx)
}

func (r *Rotator) rotate(ctx context.Context) faultlog.Archive {
	a := r.manager.Rotate()
	if a.ErrorCount == 0 {
		return a
	}

	if r.sink == nil {
		slog.Info("[Rotator] fault log rotated", "errors", a.ErrorCount)
		return a
	}

	if err := r.sink.Ship(ctx, a); err != nil {
		metrics.ArchiveErrors.WithLabelValues(r.sink.Name()).Inc()
		slog.Error("[Rotator] failed to ship archive", "sink", r.sink.Name(), "errors", a.ErrorCount, "error", err)
		return a
	}
	slog.Info("[Rotator] archive shipped", "sink", r.sink.Name(), "errors", a.ErrorCount)
	return a
}
