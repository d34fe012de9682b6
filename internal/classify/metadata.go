package classify

import (
	"errors"
	"os"
	"runtime"
	"time"

	"github.com/vietddude/faultline/internal/core/capability"
	"github.com/vietddude/faultline/internal/core/domain"
)

var reservedKeys = map[string]struct{}{
	"name":    {},
	"message": {},
	"stack":   {},
}

// ExtractMetadata gathers environment facts for the configured environment
// and copies every extra property of raw through verbatim.
func (c *Classifier) ExtractMetadata(raw any) map[string]any {
	metadata := make(map[string]any)

	switch c.env.Kind {
	case capability.EnvironmentDOM:
		metadata["userAgent"] = c.env.UserAgent
		metadata["url"] = c.env.URL
		if c.env.Viewport != nil {
			metadata["viewport"] = c.env.Viewport()
		}
		metadata["performanceNow"] = float64(time.Since(c.started).Microseconds()) / 1000
		if c.env.Heap != nil {
			if heap, ok := c.env.Heap(); ok {
				metadata["memory"] = heap
			}
		}
	case capability.EnvironmentProcess:
		var ms runtime.MemStats
		runtime.ReadMemStats(&ms)
		metadata["goVersion"] = runtime.Version()
		metadata["platform"] = runtime.GOOS
		metadata["arch"] = runtime.GOARCH
		metadata["pid"] = os.Getpid()
		metadata["memory"] = map[string]uint64{
			"heapAlloc": ms.HeapAlloc,
			"heapInuse": ms.HeapInuse,
			"heapSys":   ms.HeapSys,
			"sys":       ms.Sys,
		}
	}

	for k, v := range passThrough(raw) {
		if _, reserved := reservedKeys[k]; reserved || v == nil {
			continue
		}
		metadata[k] = v
	}
	return metadata
}

func passThrough(raw any) map[string]any {
	switch v := raw.(type) {
	case map[string]any:
		return v
	case *domain.RawError:
		if v != nil {
			return v.Props
		}
	case domain.RawError:
		return v.Props
	case error:
		var rawErr *domain.RawError
		if errors.As(v, &rawErr) {
			return rawErr.Props
		}
	}
	return nil
}
