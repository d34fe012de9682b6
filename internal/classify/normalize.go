package classify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"reflect"

	"github.com/vietddude/faultline/internal/core/domain"
)

const (
	unknownName    = "UnknownError"
	unknownMessage = "An unknown error occurred"
)

// Normalize converts any raw failure into an ErrorRecord. It accepts errors,
// domain.RawError values, maps with name/message/stack keys and plain
// strings; anything else becomes an UnknownError. It never panics.
func (c *Classifier) Normalize(raw any) (rec *domain.ErrorRecord) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("Normalize recovered from panic", "panic", r)
			rec = c.unknown(raw)
		}
	}()

	switch v := raw.(type) {
	case nil:
		return c.unknown(nil)
	case *domain.RawError:
		if v == nil {
			return c.unknown(nil)
		}
		return c.build(v.Name, v.Message, v.Stack, raw)
	case domain.RawError:
		return c.build(v.Name, v.Message, v.Stack, raw)
	case error:
		return c.build(errorName(v), v.Error(), errorStack(v), raw)
	case map[string]any:
		name, _ := v["name"].(string)
		if name == "" {
			name = unknownName
		}
		message, _ := v["message"].(string)
		if message == "" {
			message = "Unknown error occurred"
		}
		stack, _ := v["stack"].(string)
		return c.build(name, message, stack, raw)
	case string:
		rec := c.build("StringError", v, "", raw)
		rec.Context = c.ClassifyContext("", v, "")
		return rec
	}
	return c.unknown(raw)
}

func (c *Classifier) build(name, message, stack string, raw any) *domain.ErrorRecord {
	return &domain.ErrorRecord{
		ID:        c.newID(),
		Name:      name,
		Message:   message,
		Stack:     stack,
		Timestamp: c.now(),
		Context:   c.ClassifyContext(name, message, stack),
		Metadata:  c.ExtractMetadata(raw),
	}
}

func (c *Classifier) unknown(raw any) *domain.ErrorRecord {
	metadata := map[string]any{}
	if raw != nil {
		metadata["originalError"] = fmt.Sprintf("%v", raw)
	}
	return &domain.ErrorRecord{
		ID:        c.newID(),
		Name:      unknownName,
		Message:   unknownMessage,
		Timestamp: c.now(),
		Context:   domain.ContextGeneral,
		Metadata:  metadata,
	}
}

type namedError interface {
	Name() string
}

type stackError interface {
	Stack() string
}

// errorName derives a kind name for a Go error. Well-known conditions map onto
// the names the severity table understands.
func errorName(err error) string {
	var named namedError
	if errors.As(err, &named) && named.Name() != "" {
		return named.Name()
	}
	var rawErr *domain.RawError
	if errors.As(err, &rawErr) && rawErr.Name != "" {
		return rawErr.Name
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "TimeoutError"
	case errors.Is(err, context.Canceled):
		return "AbortError"
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return "TimeoutError"
		}
		return "NetworkError"
	}

	t := reflect.TypeOf(err)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch name := t.Name(); name {
	case "", "errorString", "wrapError", "wrapErrors", "joinError":
		return "Error"
	default:
		return name
	}
}

func errorStack(err error) string {
	var s stackError
	if errors.As(err, &s) {
		return s.Stack()
	}
	return ""
}
