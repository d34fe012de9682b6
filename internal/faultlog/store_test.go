package faultlog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vietddude/faultline/internal/core/capability"
	"github.com/vietddude/faultline/internal/core/domain"
)

var base = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func record(i int, ctx domain.Context) *domain.ErrorRecord {
	return &domain.ErrorRecord{
		ID:        fmt.Sprintf("id-%d", i),
		Name:      "TypeError",
		Message:   fmt.Sprintf("fault %d", i),
		Timestamp: base.Add(time.Duration(i) * time.Minute),
		Context:   ctx,
		Metadata:  map[string]any{},
	}
}

// criticalForCanvas marks canvas records CRITICAL and everything else LOW.
func criticalForCanvas(rec *domain.ErrorRecord) domain.Severity {
	if rec.Context == domain.ContextCanvas {
		return domain.SeverityCritical
	}
	return domain.SeverityLow
}

func TestStore_FIFOEviction(t *testing.T) {
	s := NewStore(10, nil)
	for i := 0; i < 25; i++ {
		s.Append(record(i, domain.ContextGeneral))
		assert.LessOrEqual(t, s.Len(), 10)
	}

	log := s.Log()
	require.Len(t, log, 10)
	for i, rec := range log {
		assert.Equal(t, fmt.Sprintf("id-%d", 15+i), rec.ID)
	}
}

func TestStore_ConfigureClamps(t *testing.T) {
	s := NewStore(0, nil)
	assert.Equal(t, DefaultMaxSize, s.MaxSize())

	assert.Equal(t, 1000, s.Configure(5000))
	assert.Equal(t, 10, s.Configure(1))

	s.Configure(50)
	for i := 0; i < 30; i++ {
		s.Append(record(i, domain.ContextGeneral))
	}
	s.Configure(10)
	log := s.Log()
	require.Len(t, log, 10)
	assert.Equal(t, "id-20", log[0].ID)
	assert.Equal(t, "id-29", log[9].ID)
}

func TestStore_Stats(t *testing.T) {
	s := NewStore(10, criticalForCanvas)
	for i, ctx := range []domain.Context{domain.ContextCanvas, domain.ContextCanvas, domain.ContextAudio} {
		rec := record(i, ctx)
		s.Append(rec)
		s.UpdateStats(rec)
	}
	s.MarkRecovered(&domain.ErrorRecord{ID: "id-1"})

	stats := s.Stats()
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 3, stats.ByType["TypeError"])
	assert.Equal(t, 2, stats.ByContext[domain.ContextCanvas])
	assert.Equal(t, 2, stats.Critical)
	assert.Equal(t, 1, stats.Recovered)
	assert.Equal(t, 1, s.Recovered())

	// The returned copy is detached from the live counters.
	stats.ByType["TypeError"] = 99
	assert.Equal(t, 3, s.Stats().ByType["TypeError"])

	s.ResetStats()
	assert.Zero(t, s.Stats().Total)
	assert.Equal(t, 3, s.Len())
}

func TestStore_Queries(t *testing.T) {
	s := NewStore(10, criticalForCanvas)
	for i, ctx := range []domain.Context{domain.ContextCanvas, domain.ContextAudio, domain.ContextCanvas, domain.ContextNetwork} {
		s.Append(record(i, ctx))
	}

	recent := s.Recent(2)
	require.Len(t, recent, 2)
	assert.Equal(t, "id-2", recent[0].ID)
	assert.Equal(t, "id-3", recent[1].ID)
	assert.Len(t, s.Recent(100), 4)
	assert.Empty(t, s.Recent(0))

	assert.Len(t, s.BySeverity(domain.SeverityCritical), 2)
	assert.Len(t, s.ByContext(domain.ContextAudio), 1)

	inRange := s.ByTimeRange(base.Add(time.Minute), base.Add(2*time.Minute))
	require.Len(t, inRange, 2)
	assert.Equal(t, "id-1", inRange[0].ID)
	assert.Len(t, s.ByTimeRange(time.Time{}, time.Time{}), 4)
}

func TestStore_Rotate(t *testing.T) {
	s := NewStore(10, nil)
	for i := 0; i < 7; i++ {
		rec := record(i, domain.ContextGeneral)
		s.Append(rec)
		s.UpdateStats(rec)
	}
	before := s.Len()

	archive := s.Rotate()
	assert.Equal(t, before, archive.ErrorCount)
	assert.Len(t, archive.Errors, before)
	assert.Equal(t, 7, archive.Statistics.Total)
	assert.Zero(t, s.Len())
	assert.Zero(t, s.Stats().Total)

	// New appends do not leak into the archive.
	s.Append(record(100, domain.ContextGeneral))
	assert.Len(t, archive.Errors, 7)
}

func TestExport_JSON(t *testing.T) {
	s := NewStore(10, criticalForCanvas)
	for i, ctx := range []domain.Context{domain.ContextCanvas, domain.ContextAudio, domain.ContextCanvas} {
		rec := record(i, ctx)
		s.Append(rec)
		s.UpdateStats(rec)
	}

	critical := domain.SeverityCritical
	data, err := s.Export(ExportOptions{Format: FormatJSON, Severity: &critical})
	require.NoError(t, err)

	var doc struct {
		ExportedAt time.Time         `json:"exportedAt"`
		ErrorCount int               `json:"errorCount"`
		Statistics domain.ErrorStats `json:"statistics"`
		Errors     []map[string]any  `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, 2, doc.ErrorCount)
	assert.Len(t, doc.Errors, 2)
	assert.Equal(t, 3, doc.Statistics.Total)
	assert.False(t, doc.ExportedAt.IsZero())
}

func TestExport_CSV(t *testing.T) {
	s := NewStore(10, nil)
	quoted := record(0, domain.ContextAudio)
	quoted.Message = `he said "stop"`
	s.Append(quoted)
	s.Append(record(1, domain.ContextCanvas))
	s.Append(record(2, domain.ContextAudio))

	data, err := s.Export(ExportOptions{Format: FormatCSV, Context: domain.ContextAudio})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "id,name,message,stack,timestamp,context,recovered", lines[0])
	assert.NotContains(t, lines[0], "metadata")
	assert.Contains(t, lines[1], `"he said ""stop"""`)
	assert.Contains(t, lines[1], `,"",`)
	assert.True(t, strings.HasSuffix(lines[1], `"AUDIO_ERROR","false"`))

	data, err = s.Export(ExportOptions{Format: FormatCSV, Since: base.Add(time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, "id,name,message,stack,timestamp,context,recovered\n", string(data))

	_, err = s.Export(ExportOptions{Format: "xml"})
	assert.Error(t, err)
}

func TestFormatterFor(t *testing.T) {
	rec := record(1, domain.ContextCanvas)
	rec.Stack = "at draw()"

	assert.IsType(t, ConsoleFormatter{}, FormatterFor(capability.EnvironmentDOM))
	assert.IsType(t, StructuredFormatter{}, FormatterFor(capability.EnvironmentProcess))
	assert.IsType(t, PlainFormatter{}, FormatterFor(capability.EnvironmentNone))

	level, msg, _ := ConsoleFormatter{}.Format(rec, domain.SeverityCritical)
	assert.Equal(t, slog.LevelError, level)
	assert.Equal(t, "[CANVAS_ERROR] TypeError: fault 1", msg)

	level, _, _ = PlainFormatter{}.Format(rec, domain.SeverityMedium)
	assert.Equal(t, slog.LevelWarn, level)

	var buf bytes.Buffer
	logger := slog.New(NewHandler(capability.EnvironmentProcess, &buf, slog.LevelDebug))
	Emit(t.Context(), logger, StructuredFormatter{}, rec, domain.SeverityLow)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "Fault recorded", entry["msg"])
	assert.Equal(t, "CANVAS_ERROR", entry["context"])
	assert.Equal(t, "at draw()", entry["stack"])
	assert.Equal(t, "INFO", entry["level"])
}

func TestStore_QueriesReturnCopies(t *testing.T) {
	s := NewStore(10, nil)
	s.Append(record(1, domain.ContextAudio))

	got := s.Log()
	require.Len(t, got, 1)
	got[0].Message = "changed"
	got[0].Metadata["k"] = "v"

	live := s.Recent(1)
	require.Len(t, live, 1)
	assert.Equal(t, "fault 1", live[0].Message)
	assert.NotContains(t, live[0].Metadata, "k")
}

func TestStore_MarkRecoveredUpdatesLoggedRecord(t *testing.T) {
	s := NewStore(10, nil)
	s.Append(record(1, domain.ContextAudio))
	s.Append(record(2, domain.ContextAudio))

	// A copy obtained from a query still marks the logged record.
	cp := s.ByContext(domain.ContextAudio)[1]
	s.MarkRecovered(cp)

	assert.True(t, cp.Recovered)
	log := s.Log()
	assert.False(t, log[0].Recovered)
	assert.True(t, log[1].Recovered)
	assert.Equal(t, 1, s.Recovered())
}

func TestStore_MarkRecoveredConcurrentWithExport(t *testing.T) {
	s := NewStore(100, nil)
	recs := make([]*domain.ErrorRecord, 50)
	for i := range recs {
		recs[i] = record(i, domain.ContextNetwork)
		s.Append(recs[i])
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, rec := range recs {
			s.MarkRecovered(rec)
		}
	}()
	for i := 0; i < 20; i++ {
		_, err := s.Export(ExportOptions{Format: FormatCSV})
		require.NoError(t, err)
		_ = s.Recent(10)
	}
	<-done

	archive := s.Rotate()
	require.Len(t, archive.Errors, 50)
	for _, rec := range archive.Errors {
		assert.True(t, rec.Recovered, rec.ID)
	}
	assert.Equal(t, 50, archive.Statistics.Recovered)
}
