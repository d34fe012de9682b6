package faultlog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/vietddude/faultline/internal/core/domain"
)

// Format selects the export encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// csvColumns are the record fields exported as CSV. Metadata is left out.
var csvColumns = []string{"id", "name", "message", "stack", "timestamp", "context", "recovered"}

// ExportOptions filters and encodes an export. Zero values disable a filter.
type ExportOptions struct {
	Format   Format
	Since    time.Time
	Until    time.Time
	Severity *domain.Severity
	Context  domain.Context
}

// Export is the JSON export document.
type Export struct {
	ExportedAt time.Time             `json:"exportedAt"`
	ErrorCount int                   `json:"errorCount"`
	Statistics domain.ErrorStats     `json:"statistics"`
	Errors     []*domain.ErrorRecord `json:"errors"`
}

// Export serializes the records matching opts.
func (s *Store) Export(opts ExportOptions) ([]byte, error) {
	records := s.filter(func(rec *domain.ErrorRecord) bool {
		if !inRange(rec.Timestamp, opts.Since, opts.Until) {
			return false
		}
		if opts.Context != "" && rec.Context != opts.Context {
			return false
		}
		if opts.Severity != nil && s.severity(rec) != *opts.Severity {
			return false
		}
		return true
	})

	switch opts.Format {
	case FormatCSV:
		return encodeCSV(records), nil
	case FormatJSON, "":
		doc := Export{
			ExportedAt: s.now(),
			ErrorCount: len(records),
			Statistics: s.Stats(),
			Errors:     records,
		}
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to encode export: %w", err)
		}
		return data, nil
	}
	return nil, fmt.Errorf("unsupported export format %q", opts.Format)
}

func encodeCSV(records []*domain.ErrorRecord) []byte {
	var buf bytes.Buffer
	buf.WriteString(strings.Join(csvColumns, ","))
	buf.WriteByte('\n')

	for _, rec := range records {
		ts := ""
		if !rec.Timestamp.IsZero() {
			ts = rec.Timestamp.UTC().Format(time.RFC3339Nano)
		}
		row := []string{
			rec.ID,
			rec.Name,
			rec.Message,
			rec.Stack,
			ts,
			string(rec.Context),
			strconv.FormatBool(rec.Recovered),
		}
		for i, v := range row {
			if i > 0 {
				buf.WriteByte(',')
			}
			buf.WriteString(quote(v))
		}
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

func quote(v string) string {
	return `"` + strings.ReplaceAll(v, `"`, `""`) + `"`
}
