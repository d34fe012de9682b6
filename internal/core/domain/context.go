package domain

// Context identifies the subsystem a fault originated from.
type Context string

const (
	ContextCanvas               Context = "CANVAS_ERROR"
	ContextAudio                Context = "AUDIO_ERROR"
	ContextStorage              Context = "STORAGE_ERROR"
	ContextMemory               Context = "MEMORY_WARNING"
	ContextPerformance          Context = "PERFORMANCE_WARNING"
	ContextNetwork              Context = "NETWORK_ERROR"
	ContextBrowserCompatibility Context = "BROWSER_COMPATIBILITY"
	ContextWebGL                Context = "WEBGL_ERROR"
	ContextSecurity             Context = "SECURITY_ERROR"
	ContextModule               Context = "MODULE_ERROR"
	ContextGeneral              Context = "GENERAL"
)

// builtinContexts is in classification rule order. Reordering changes the
// outcome for ambiguous faults.
var builtinContexts = []Context{
	ContextCanvas,
	ContextAudio,
	ContextStorage,
	ContextMemory,
	ContextPerformance,
	ContextNetwork,
	ContextBrowserCompatibility,
	ContextWebGL,
	ContextSecurity,
	ContextModule,
	ContextGeneral,
}

// Contexts returns the fixed context tags in rule order.
func Contexts() []Context {
	out := make([]Context, len(builtinContexts))
	copy(out, builtinContexts)
	return out
}

// IsBuiltin reports whether c is one of the fixed context tags.
func (c Context) IsBuiltin() bool {
	for _, b := range builtinContexts {
		if b == c {
			return true
		}
	}
	return false
}

func (c Context) String() string {
	return string(c)
}
