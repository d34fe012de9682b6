package classify

import (
	"strings"
	"time"

	"github.com/vietddude/faultline/internal/core/domain"
)

// Risk levels reported by GenerateAnalysisReport.
const (
	RiskLow    = "LOW"
	RiskMedium = "MEDIUM"
	RiskHigh   = "HIGH"
)

// ImpactAssessment is a qualitative guess at what a fault affects.
type ImpactAssessment struct {
	UserExperience  string `json:"userExperience"`  // minimal, moderate, severe
	SystemStability string `json:"systemStability"` // stable, unstable
	DataIntegrity   string `json:"dataIntegrity"`   // secure, at_risk, compromised
}

// Classification groups a fault for reporting.
type Classification struct {
	Category    string `json:"category"`
	Type        string `json:"type"`
	Source      string `json:"source"`
	Recoverable bool   `json:"recoverable"`
}

// Analysis is the advisory part of a report.
type Analysis struct {
	IsRecurring        bool             `json:"isRecurring"`
	SimilarCount       int              `json:"similarCount"`
	RiskLevel          string           `json:"riskLevel"`
	ImpactAssessment   ImpactAssessment `json:"impactAssessment"`
	RecommendedActions []string         `json:"recommendedActions"`
}

// Technical carries the classification and cause guesses.
type Technical struct {
	Classification  Classification `json:"classification"`
	RootCause       string         `json:"rootCause"`
	AffectedSystems []string       `json:"affectedSystems"`
}

// AnalysisReport is diagnostic output only. Nothing in the recovery path
// reads it.
type AnalysisReport struct {
	ErrorID   string          `json:"errorId"`
	Severity  domain.Severity `json:"severity"`
	Context   domain.Context  `json:"context"`
	Analysis  Analysis        `json:"analysis"`
	Technical Technical       `json:"technical"`
	Timestamp time.Time       `json:"timestamp"`
}

// GenerateAnalysisReport builds a report for rec against the records in log.
func (c *Classifier) GenerateAnalysisReport(rec *domain.ErrorRecord, log []*domain.ErrorRecord) AnalysisReport {
	sev := c.Severity(rec)
	similar := len(c.FindSimilar(rec, log))

	return AnalysisReport{
		ErrorID:  rec.ID,
		Severity: sev,
		Context:  rec.Context,
		Analysis: Analysis{
			IsRecurring:        similar > 0,
			SimilarCount:       similar,
			RiskLevel:          riskLevel(rec, sev, similar),
			ImpactAssessment:   assessImpact(rec.Context),
			RecommendedActions: recommendations(rec.Context, sev, similar),
		},
		Technical: Technical{
			Classification: Classification{
				Category:    category(rec.Context),
				Type:        rec.Name,
				Source:      errorSource(rec.Stack),
				Recoverable: recoverable(rec),
			},
			RootCause:       rootCause(rec.Message),
			AffectedSystems: affectedSystems(rec),
		},
		Timestamp: c.now(),
	}
}

func riskLevel(rec *domain.ErrorRecord, sev domain.Severity, similar int) string {
	factors := 0
	if sev == domain.SeverityCritical {
		factors++
	}
	if rec.Context == domain.ContextCanvas || rec.Context == domain.ContextSecurity {
		factors++
	}
	if similar > 5 {
		factors++
	}

	switch {
	case factors >= 3:
		return RiskHigh
	case factors >= 2:
		return RiskMedium
	default:
		return RiskLow
	}
}

func assessImpact(ctx domain.Context) ImpactAssessment {
	impact := ImpactAssessment{
		UserExperience:  "minimal",
		SystemStability: "stable",
		DataIntegrity:   "secure",
	}
	switch ctx {
	case domain.ContextCanvas, domain.ContextWebGL:
		impact.UserExperience = "severe"
		impact.SystemStability = "unstable"
	case domain.ContextAudio:
		impact.UserExperience = "moderate"
	case domain.ContextStorage:
		impact.DataIntegrity = "at_risk"
		impact.UserExperience = "moderate"
	case domain.ContextSecurity:
		impact.DataIntegrity = "compromised"
		impact.SystemStability = "unstable"
	}
	return impact
}

func recommendations(ctx domain.Context, sev domain.Severity, similar int) []string {
	var out []string
	if sev == domain.SeverityCritical {
		out = append(out, "immediate_attention_required", "consider_emergency_fallback")
	}

	switch ctx {
	case domain.ContextCanvas:
		out = append(out, "check_browser_compatibility", "implement_canvas_fallback")
	case domain.ContextAudio:
		out = append(out, "graceful_audio_degradation")
	case domain.ContextStorage:
		out = append(out, "implement_memory_storage_fallback")
	case domain.ContextMemory:
		out = append(out, "optimize_memory_usage", "enable_garbage_collection")
	case domain.ContextPerformance:
		out = append(out, "reduce_quality_settings", "optimize_rendering")
	}

	if similar > 3 {
		out = append(out, "investigate_root_cause", "implement_preventive_measures")
	}
	return out
}

var categories = map[domain.Context]string{
	domain.ContextCanvas:               "rendering",
	domain.ContextWebGL:                "rendering",
	domain.ContextAudio:                "media",
	domain.ContextStorage:              "data",
	domain.ContextMemory:               "system",
	domain.ContextPerformance:          "system",
	domain.ContextNetwork:              "network",
	domain.ContextSecurity:             "security",
	domain.ContextBrowserCompatibility: "compatibility",
}

func category(ctx domain.Context) string {
	if cat, ok := categories[ctx]; ok {
		return cat
	}
	return "general"
}

var sourceKeywords = []struct{ keyword, source string }{
	{"gameengine", "game_engine"},
	{"particlemanager", "particle_system"},
	{"audiomanager", "audio_system"},
	{"effectmanager", "effect_system"},
	{"performanceoptimizer", "performance_system"},
}

func errorSource(stack string) string {
	lower := strings.ToLower(stack)
	for _, k := range sourceKeywords {
		if strings.Contains(lower, k.keyword) {
			return k.source
		}
	}
	return "unknown"
}

func recoverable(rec *domain.ErrorRecord) bool {
	switch rec.Context {
	case domain.ContextSecurity:
		return false
	case domain.ContextAudio, domain.ContextNetwork, domain.ContextPerformance:
		return true
	}
	return rec.Name != "SyntaxError" && rec.Name != "SecurityError"
}

func rootCause(message string) string {
	m := strings.ToLower(message)
	switch {
	case strings.Contains(m, "undefined") || strings.Contains(m, "null"):
		return "uninitialized_variable"
	case strings.Contains(m, "quota") || strings.Contains(m, "storage"):
		return "storage_limitation"
	case strings.Contains(m, "network") || strings.Contains(m, "fetch"):
		return "connectivity_issue"
	case strings.Contains(m, "memory") || strings.Contains(m, "allocation"):
		return "memory_constraint"
	case strings.Contains(m, "not supported") || strings.Contains(m, "unavailable"):
		return "browser_limitation"
	}
	return "unknown"
}

func affectedSystems(rec *domain.ErrorRecord) []string {
	m := strings.ToLower(rec.Message)
	systems := []string{}
	if rec.Context == domain.ContextCanvas || strings.Contains(m, "canvas") {
		systems = append(systems, "rendering_system")
	}
	if rec.Context == domain.ContextAudio || strings.Contains(m, "audio") {
		systems = append(systems, "audio_system")
	}
	if rec.Context == domain.ContextStorage || strings.Contains(m, "storage") {
		systems = append(systems, "data_persistence")
	}
	if rec.Context == domain.ContextPerformance || strings.Contains(m, "fps") {
		systems = append(systems, "performance_system")
	}
	if rec.Context == domain.ContextNetwork || strings.Contains(m, "network") {
		systems = append(systems, "network_communication")
	}
	return systems
}
