package faultlog

import (
	"time"

	"github.com/vietddude/faultline/internal/core/domain"
)

// Log returns copies of the records, oldest first.
func (s *Store) Log() []*domain.ErrorRecord {
	return s.filter(func(*domain.ErrorRecord) bool { return true })
}

// Recent returns up to n of the newest records, oldest first.
func (s *Store) Recent(n int) []*domain.ErrorRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n <= 0 {
		return []*domain.ErrorRecord{}
	}
	start := max(len(s.records)-n, 0)
	return cloneAll(s.records[start:])
}

// BySeverity returns the records whose severity equals sev.
func (s *Store) BySeverity(sev domain.Severity) []*domain.ErrorRecord {
	return s.filter(func(rec *domain.ErrorRecord) bool { return s.severity(rec) == sev })
}

// ByContext returns the records tagged ctx.
func (s *Store) ByContext(ctx domain.Context) []*domain.ErrorRecord {
	return s.filter(func(rec *domain.ErrorRecord) bool { return rec.Context == ctx })
}

// ByTimeRange returns the records with from <= timestamp <= to. A zero bound
// is open.
func (s *Store) ByTimeRange(from, to time.Time) []*domain.ErrorRecord {
	return s.filter(func(rec *domain.ErrorRecord) bool { return inRange(rec.Timestamp, from, to) })
}

func inRange(ts, from, to time.Time) bool {
	if !from.IsZero() && ts.Before(from) {
		return false
	}
	if !to.IsZero() && ts.After(to) {
		return false
	}
	return true
}

func (s *Store) filter(keep func(*domain.ErrorRecord) bool) []*domain.ErrorRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.ErrorRecord, 0, len(s.records))
	for _, rec := range s.records {
		if keep(rec) {
			out = append(out, rec.Clone())
		}
	}
	return out
}
