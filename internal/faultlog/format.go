package faultlog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/lmittmann/tint"
	"github.com/vietddude/faultline/internal/core/capability"
	"github.com/vietddude/faultline/internal/core/domain"
)

// LogFormatter turns a record into a log entry.
type LogFormatter interface {
	Format(rec *domain.ErrorRecord, sev domain.Severity) (slog.Level, string, []any)
}

// ConsoleFormatter writes a compact human-readable line.
type ConsoleFormatter struct{}

func (ConsoleFormatter) Format(rec *domain.ErrorRecord, sev domain.Severity) (slog.Level, string, []any) {
	msg := fmt.Sprintf("[%s] %s: %s", rec.Context, rec.Name, rec.Message)
	return levelFor(sev), msg, []any{"severity", sev.String(), "id", rec.ID}
}

// StructuredFormatter emits every record field as an attribute.
type StructuredFormatter struct{}

func (StructuredFormatter) Format(rec *domain.ErrorRecord, sev domain.Severity) (slog.Level, string, []any) {
	args := []any{
		"id", rec.ID,
		"name", rec.Name,
		"message", rec.Message,
		"context", string(rec.Context),
		"severity", sev.String(),
		"timestamp", rec.Timestamp,
	}
	if rec.Stack != "" {
		args = append(args, "stack", rec.Stack)
	}
	if len(rec.Metadata) > 0 {
		args = append(args, "metadata", rec.Metadata)
	}
	return levelFor(sev), "Fault recorded", args
}

// PlainFormatter writes only severity, name and message.
type PlainFormatter struct{}

func (PlainFormatter) Format(rec *domain.ErrorRecord, sev domain.Severity) (slog.Level, string, []any) {
	return levelFor(sev), fmt.Sprintf("%s %s: %s", sev, rec.Name, rec.Message), nil
}

// FormatterFor picks the formatter for an environment.
func FormatterFor(kind capability.EnvironmentKind) LogFormatter {
	switch kind {
	case capability.EnvironmentDOM:
		return ConsoleFormatter{}
	case capability.EnvironmentProcess:
		return StructuredFormatter{}
	default:
		return PlainFormatter{}
	}
}

// NewHandler builds the slog handler matching the environment: colored tint
// output for console hosts, JSON for processes and plain text otherwise.
func NewHandler(kind capability.EnvironmentKind, w io.Writer, level slog.Leveler) slog.Handler {
	switch kind {
	case capability.EnvironmentDOM:
		return tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		})
	case capability.EnvironmentProcess:
		return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	default:
		return slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	}
}

// NewLogger wraps NewHandler in a logger.
func NewLogger(kind capability.EnvironmentKind, w io.Writer, level slog.Leveler) *slog.Logger {
	return slog.New(NewHandler(kind, w, level))
}

// Emit writes rec through formatter to logger.
func Emit(ctx context.Context, logger *slog.Logger, formatter LogFormatter, rec *domain.ErrorRecord, sev domain.Severity) {
	level, msg, args := formatter.Format(rec, sev)
	logger.Log(ctx, level, msg, args...)
}

func levelFor(sev domain.Severity) slog.Level {
	switch sev {
	case domain.SeverityCritical, domain.SeverityHigh:
		return slog.LevelError
	case domain.SeverityMedium:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}
