package classify

import (
	"strings"
	"time"

	"github.com/vietddude/faultline/internal/core/domain"
)

const (
	correlationWindow   = 10
	similarityThreshold = 0.7
)

// TimelineEntry is one point of the fault timeline.
type TimelineEntry struct {
	Timestamp time.Time       `json:"timestamp"`
	Context   domain.Context  `json:"context"`
	Severity  domain.Severity `json:"severity"`
}

// Correlation describes a detected relationship between recent faults.
type Correlation struct {
	Type        string           `json:"type"`
	Description string           `json:"description"`
	Contexts    []domain.Context `json:"contexts"`
}

// PatternAnalysis summarizes a set of records.
type PatternAnalysis struct {
	Recurring    map[string]int          `json:"recurring"`
	ByContext    map[domain.Context]int  `json:"byContext"`
	BySeverity   map[domain.Severity]int `json:"bySeverity"`
	Timeline     []TimelineEntry         `json:"timeline"`
	Correlations []Correlation           `json:"correlations"`
}

// AnalyzePatterns counts recurring name:context pairs, severities and
// contexts, and flags context clustering among the most recent records.
func (c *Classifier) AnalyzePatterns(records []*domain.ErrorRecord) PatternAnalysis {
	out := PatternAnalysis{
		Recurring:    make(map[string]int),
		ByContext:    make(map[domain.Context]int),
		BySeverity:   make(map[domain.Severity]int),
		Timeline:     make([]TimelineEntry, 0, len(records)),
		Correlations: []Correlation{},
	}

	for _, rec := range records {
		sev := c.Severity(rec)
		out.Recurring[rec.Name+":"+string(rec.Context)]++
		out.BySeverity[sev]++
		out.ByContext[rec.Context]++
		out.Timeline = append(out.Timeline, TimelineEntry{
			Timestamp: rec.Timestamp,
			Context:   rec.Context,
			Severity:  sev,
		})
	}

	recent := records
	if len(recent) > correlationWindow {
		recent = recent[len(recent)-correlationWindow:]
	}
	if len(recent) > 1 {
		seen := make(map[domain.Context]struct{})
		unique := make([]domain.Context, 0, len(recent))
		for _, rec := range recent {
			if _, ok := seen[rec.Context]; ok {
				continue
			}
			seen[rec.Context] = struct{}{}
			unique = append(unique, rec.Context)
		}
		if len(unique) < len(recent) {
			out.Correlations = append(out.Correlations, Correlation{
				Type:        "context_clustering",
				Description: "Multiple errors in same context within short timeframe",
				Contexts:    unique,
			})
		}
	}
	return out
}

// FindSimilar returns the records in log, other than rec itself, that share
// its name or context or whose message is more than 70% similar.
func (c *Classifier) FindSimilar(rec *domain.ErrorRecord, log []*domain.ErrorRecord) []*domain.ErrorRecord {
	var similar []*domain.ErrorRecord
	for _, other := range log {
		if other.ID == rec.ID {
			continue
		}
		if other.Name == rec.Name ||
			other.Context == rec.Context ||
			Similarity(other.Message, rec.Message) > similarityThreshold {
			similar = append(similar, other)
		}
	}
	return similar
}

// Similarity is the Jaccard overlap of the lowercased, whitespace-separated
// word sets of a and b. Two empty messages are identical.
func Similarity(a, b string) float64 {
	wordsA := wordSet(a)
	wordsB := wordSet(b)
	if len(wordsA) == 0 && len(wordsB) == 0 {
		return 1
	}

	intersection := 0
	for w := range wordsA {
		if _, ok := wordsB[w]; ok {
			intersection++
		}
	}
	union := len(wordsA) + len(wordsB) - intersection
	return float64(intersection) / float64(union)
}

func wordSet(s string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(s))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}
