// Package archive ships rotated fault-log snapshots to external storage.
// Archived snapshots are never loaded back into the live log.
package archive

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/vietddude/faultline/internal/core/domain"
	"github.com/vietddude/faultline/internal/faultlog"
)

// Sink receives rotated snapshots.
type Sink interface {
	// Name labels the sink in logs and metrics.
	Name() string
	Ship(ctx context.Context, a faultlog.Archive) error
	Close() error
}

// Open builds the sink for kind. "none" and "" return a nil sink.
func Open(ctx context.Context, kind string, rc RedisConfig, pc PostgresConfig) (Sink, error) {
	switch strings.ToLower(kind) {
	case "", "none":
		return nil, nil
	case "redis":
		return NewRedisSink(ctx, rc)
	case "postgres":
		return NewPostgresSink(ctx, pc)
	}
	return nil, fmt.Errorf("unknown archive kind %q", kind)
}

// contextsOf returns the distinct contexts in a, sorted.
func contextsOf(a faultlog.Archive) []string {
	seen := make(map[domain.Context]struct{})
	for _, rec := range a.Errors {
		seen[rec.Context] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, string(c))
	}
	sort.Strings(out)
	return out
}
