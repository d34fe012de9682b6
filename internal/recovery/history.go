package recovery

import (
	"sync"
	"time"

	"github.com/vietddude/faultline/internal/core/domain"
)

const defaultHistorySize = 100

// AttemptRecord is one entry of the attempt history.
type AttemptRecord struct {
	Context  domain.Context `json:"context"`
	RecordID string         `json:"recordId"`
	Attempt  int            `json:"attempt"`
	Success  bool           `json:"success"`
	Message  string         `json:"message"`
	Duration time.Duration  `json:"duration"`
	At       time.Time      `json:"at"`
}

type history struct {
	mu      sync.Mutex
	entries []AttemptRecord
	size    int
}

func newHistory(size int) *history {
	if size <= 0 {
		size = defaultHistorySize
	}
	return &history{size: size}
}

func (h *history) add(r AttemptRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, r)
	if over := len(h.entries) - h.size; over > 0 {
		h.entries = append([]AttemptRecord(nil), h.entries[over:]...)
	}
}

func (h *history) snapshot() []AttemptRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]AttemptRecord, len(h.entries))
	copy(out, h.entries)
	return out
}
