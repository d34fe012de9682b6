package domain

// FallbackState holds the process-wide degradation flags. Built-in fallbacks
// only ever set flags; nothing clears them.
type FallbackState struct {
	AudioDisabled   bool `json:"audioDisabled"`
	CanvasDisabled  bool `json:"canvasDisabled"`
	StorageDisabled bool `json:"storageDisabled"`
	ReducedEffects  bool `json:"reducedEffects"`
	SafeMode        bool `json:"safeMode"`
}

// Degraded reports whether any flag is set.
func (s FallbackState) Degraded() bool {
	return s.AudioDisabled || s.CanvasDisabled || s.StorageDisabled || s.ReducedEffects || s.SafeMode
}
