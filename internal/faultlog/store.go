// Package faultlog keeps the bounded fault log and its aggregate counters.
package faultlog

import (
	"sync"
	"time"

	"github.com/vietddude/faultline/internal/core/domain"
)

const (
	DefaultMaxSize = 100
	MinSize        = 10
	MaxSize        = 1000
)

// SeverityFunc resolves the severity of a record.
type SeverityFunc func(rec *domain.ErrorRecord) domain.Severity

// Archive is the snapshot returned by Rotate.
type Archive struct {
	ArchivedAt time.Time             `json:"archivedAt"`
	Statistics domain.ErrorStats     `json:"statistics"`
	Errors     []*domain.ErrorRecord `json:"errors"`
	ErrorCount int                   `json:"errorCount"`
}

// Store is a fixed-capacity FIFO of records plus counters. It is safe for
// concurrent use. Logged records are only mutated under mu; every query
// returns copies.
type Store struct {
	mu       sync.RWMutex
	records  []*domain.ErrorRecord
	stats    domain.ErrorStats
	maxSize  int
	severity SeverityFunc
	now      func() time.Time
}

// NewStore creates a store. severity may be nil, in which case every record
// is treated as LOW for severity queries.
func NewStore(maxSize int, severity SeverityFunc) *Store {
	if severity == nil {
		severity = func(*domain.ErrorRecord) domain.Severity { return domain.SeverityLow }
	}
	return &Store{
		records:  make([]*domain.ErrorRecord, 0, clampSize(maxSize)),
		stats:    domain.NewErrorStats(),
		maxSize:  clampSize(maxSize),
		severity: severity,
		now:      time.Now,
	}
}

func clampSize(n int) int {
	if n == 0 {
		return DefaultMaxSize
	}
	return min(max(n, MinSize), MaxSize)
}

// Append pushes rec, evicting the oldest record on overflow.
func (s *Store) Append(rec *domain.ErrorRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, rec)
	if over := len(s.records) - s.maxSize; over > 0 {
		clear(s.records[:over])
		s.records = s.records[over:]
	}
}

// UpdateStats counts rec by type and context.
func (s *Store) UpdateStats(rec *domain.ErrorRecord) {
	sev := s.severity(rec)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.stats.Total++
	s.stats.ByType[rec.Name]++
	s.stats.ByContext[rec.Context]++
	if sev == domain.SeverityCritical {
		s.stats.Critical++
	}
}

// MarkRecovered flags rec, and the logged record with the same ID, as
// recovered and increments the recovered counter.
func (s *Store) MarkRecovered(rec *domain.ErrorRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stats.Recovered++
	if rec == nil {
		return
	}
	rec.Recovered = true
	for i := len(s.records) - 1; i >= 0; i-- {
		if s.records[i].ID == rec.ID {
			s.records[i].Recovered = true
			break
		}
	}
}

// Snapshot returns a copy of rec read under the store lock.
func (s *Store) Snapshot(rec *domain.ErrorRecord) *domain.ErrorRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return rec.Clone()
}

// Recovered returns the recovered counter.
func (s *Store) Recovered() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats.Recovered
}

// Stats returns a copy of the counters.
func (s *Store) Stats() domain.ErrorStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats.Clone()
}

// ResetStats zeroes the counters without touching the log.
func (s *Store) ResetStats() {
	s.mu.Lock()
	s.stats = domain.NewErrorStats()
	s.mu.Unlock()
}

// Configure changes the capacity, clamped to [MinSize, MaxSize]. Shrinking
// drops the oldest records. It returns the effective size.
func (s *Store) Configure(maxSize int) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.maxSize = min(max(maxSize, MinSize), MaxSize)
	if over := len(s.records) - s.maxSize; over > 0 {
		s.records = append([]*domain.ErrorRecord(nil), s.records[over:]...)
	}
	return s.maxSize
}

// MaxSize returns the current capacity.
func (s *Store) MaxSize() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.maxSize
}

// Len returns the number of records held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Rotate snapshots the counters and records, then clears both.
func (s *Store) Rotate() Archive {
	s.mu.Lock()
	defer s.mu.Unlock()

	archive := Archive{
		ArchivedAt: s.now(),
		Statistics: s.stats,
		Errors:     cloneAll(s.records),
		ErrorCount: len(s.records),
	}
	s.records = make([]*domain.ErrorRecord, 0, s.maxSize)
	s.stats = domain.NewErrorStats()
	return archive
}

func cloneAll(records []*domain.ErrorRecord) []*domain.ErrorRecord {
	out := make([]*domain.ErrorRecord, len(records))
	for i, rec := range records {
		out[i] = rec.Clone()
	}
	return out
}
