package capability

// EnvironmentKind selects the metadata enrichment and log formatting path.
type EnvironmentKind string

const (
	// EnvironmentDOM is an embedding host with a viewport and user agent.
	EnvironmentDOM EnvironmentKind = "dom"
	// EnvironmentProcess is a plain OS process.
	EnvironmentProcess EnvironmentKind = "process"
	// EnvironmentNone enriches nothing beyond pass-through properties.
	EnvironmentNone EnvironmentKind = "none"
)

// Viewport is the host's visible area in CSS pixels.
type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// HeapUsage is a heap sample exposed by a DOM-like host.
type HeapUsage struct {
	Used  uint64 `json:"used"`
	Total uint64 `json:"total"`
	Limit uint64 `json:"limit"`
}

// EnvironmentDescriptor tells the classifier and log formatter which
// environment facts are available. The func fields are optional.
type EnvironmentDescriptor struct {
	Kind      EnvironmentKind
	UserAgent string
	URL       string
	Viewport  func() Viewport
	Heap      func() (HeapUsage, bool)
}

// ParseEnvironmentKind maps a config string to a kind, defaulting to process.
func ParseEnvironmentKind(s string) EnvironmentKind {
	switch EnvironmentKind(s) {
	case EnvironmentDOM, EnvironmentNone:
		return EnvironmentKind(s)
	}
	return EnvironmentProcess
}
