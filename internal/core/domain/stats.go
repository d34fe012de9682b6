package domain

// ErrorStats are the aggregate fault counters.
type ErrorStats struct {
	Total     int             `json:"total"`
	ByType    map[string]int  `json:"byType"`
	ByContext map[Context]int `json:"byContext"`
	Critical  int             `json:"critical"`
	Recovered int             `json:"recovered"`
}

// NewErrorStats returns zeroed stats with initialized maps.
func NewErrorStats() ErrorStats {
	return ErrorStats{
		ByType:    make(map[string]int),
		ByContext: make(map[Context]int),
	}
}

// Clone returns a deep copy.
func (s ErrorStats) Clone() ErrorStats {
	out := s
	out.ByType = make(map[string]int, len(s.ByType))
	for k, v := range s.ByType {
		out.ByType[k] = v
	}
	out.ByContext = make(map[Context]int, len(s.ByContext))
	for k, v := range s.ByContext {
		out.ByContext[k] = v
	}
	return out
}
