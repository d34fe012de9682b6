package classify

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vietddude/faultline/internal/core/domain"
)

func rec(id, name, message string, ctx domain.Context) *domain.ErrorRecord {
	return &domain.ErrorRecord{
		ID:        id,
		Name:      name,
		Message:   message,
		Context:   ctx,
		Timestamp: time.Unix(1700000000, 0),
		Metadata:  map[string]any{},
	}
}

func TestSimilarity_Symmetric(t *testing.T) {
	messages := []string{
		"",
		"a",
		"a b c",
		"A b d",
		"failed to load texture atlas",
		"Failed   to load\tsound atlas",
		"the the the",
	}
	for _, a := range messages {
		for _, b := range messages {
			assert.Equal(t, Similarity(a, b), Similarity(b, a), "%q vs %q", a, b)
		}
	}

	assert.InDelta(t, 0.5, Similarity("a b c", "a b d"), 1e-9)
	assert.InDelta(t, 1.0, Similarity("Same Words", "same words"), 1e-9)
	assert.InDelta(t, 1.0, Similarity("", ""), 1e-9)
	assert.InDelta(t, 0.0, Similarity("a", ""), 1e-9)
}

func TestFindSimilar(t *testing.T) {
	c := newTestClassifier()
	target := rec("1", "TypeError", "alpha beta gamma delta", domain.ContextGeneral)
	log := []*domain.ErrorRecord{
		target,
		rec("2", "TypeError", "unrelated", domain.ContextAudio),
		rec("3", "Error", "other", domain.ContextGeneral),
		rec("4", "Error", "alpha beta gamma delta", domain.ContextAudio),
		rec("5", "Error", "nothing in common", domain.ContextAudio),
	}

	similar := c.FindSimilar(target, log)
	ids := make([]string, 0, len(similar))
	for _, s := range similar {
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []string{"2", "3", "4"}, ids)
}

func TestAnalyzePatterns(t *testing.T) {
	c := newTestClassifier()
	records := []*domain.ErrorRecord{
		rec("1", "TypeError", "x", domain.ContextGeneral),
		rec("2", "TypeError", "y", domain.ContextGeneral),
		rec("3", "Error", "z", domain.ContextAudio),
	}

	out := c.AnalyzePatterns(records)
	assert.Equal(t, 2, out.Recurring["TypeError:GENERAL"])
	assert.Equal(t, 1, out.Recurring["Error:AUDIO_ERROR"])
	assert.Equal(t, 2, out.ByContext[domain.ContextGeneral])
	assert.Equal(t, 2, out.BySeverity[domain.SeverityHigh])
	assert.Len(t, out.Timeline, 3)
	require.Len(t, out.Correlations, 1)
	assert.Equal(t, "context_clustering", out.Correlations[0].Type)
	assert.ElementsMatch(t, []domain.Context{domain.ContextGeneral, domain.ContextAudio}, out.Correlations[0].Contexts)
}

func TestAnalyzePatterns_NoClustering(t *testing.T) {
	c := newTestClassifier()

	out := c.AnalyzePatterns([]*domain.ErrorRecord{
		rec("1", "Error", "x", domain.ContextGeneral),
		rec("2", "Error", "y", domain.ContextAudio),
	})
	assert.Empty(t, out.Correlations)

	// Only the last ten records count towards clustering.
	var records []*domain.ErrorRecord
	records = append(records, rec("dup", "Error", "x", domain.ContextAudio))
	for i, ctx := range domain.Contexts()[:10] {
		records = append(records, rec(fmt.Sprint(i), "Error", "x", ctx))
	}
	out = c.AnalyzePatterns(records)
	assert.Empty(t, out.Correlations)
}

func TestGenerateAnalysisReport(t *testing.T) {
	c := newTestClassifier()
	target := rec("t", "Error", "canvas context lost", domain.ContextCanvas)

	log := []*domain.ErrorRecord{target}
	for i := 0; i < 6; i++ {
		log = append(log, rec(fmt.Sprint(i), "Error", "other", domain.ContextCanvas))
	}

	report := c.GenerateAnalysisReport(target, log)
	assert.Equal(t, "t", report.ErrorID)
	assert.Equal(t, domain.SeverityCritical, report.Severity)
	assert.True(t, report.Analysis.IsRecurring)
	assert.Equal(t, 6, report.Analysis.SimilarCount)
	assert.Equal(t, RiskHigh, report.Analysis.RiskLevel)
	assert.Equal(t, "severe", report.Analysis.ImpactAssessment.UserExperience)
	assert.Contains(t, report.Analysis.RecommendedActions, "immediate_attention_required")
	assert.Contains(t, report.Analysis.RecommendedActions, "implement_canvas_fallback")
	assert.Contains(t, report.Analysis.RecommendedActions, "investigate_root_cause")
	assert.Equal(t, "rendering", report.Technical.Classification.Category)
	assert.Contains(t, report.Technical.AffectedSystems, "rendering_system")

	lone := rec("q", "QuotaExceededError", "storage quota exceeded", domain.ContextStorage)
	report = c.GenerateAnalysisReport(lone, []*domain.ErrorRecord{lone})
	assert.Equal(t, RiskLow, report.Analysis.RiskLevel)
	assert.False(t, report.Analysis.IsRecurring)
	assert.Equal(t, "storage_limitation", report.Technical.RootCause)
	assert.Equal(t, "at_risk", report.Analysis.ImpactAssessment.DataIntegrity)
}
