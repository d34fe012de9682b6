// Package classify normalizes raw failures into error records and decides
// their context tag and severity.
package classify

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vietddude/faultline/internal/core/capability"
	"github.com/vietddude/faultline/internal/core/domain"
)

// ErrInvalidPattern is returned when a context pattern does not compile.
var ErrInvalidPattern = errors.New("invalid context pattern")

type contextRule struct {
	context domain.Context
	pattern *regexp.Regexp
}

// Classifier holds the ordered context rules and the severity tables.
// Zero value is not usable; use New.
type Classifier struct {
	mu            sync.RWMutex
	contextRules  []contextRule
	severityRules map[string]domain.Severity
	critical      []*regexp.Regexp
	high          []*regexp.Regexp

	env     capability.EnvironmentDescriptor
	started time.Time
	now     func() time.Time
	newID   func() string
}

// Options configures custom rules. Context patterns are regex sources,
// compiled case-insensitive.
type Options struct {
	SeverityRules   map[string]string
	ContextPatterns map[string]string
}

// Stats reports rule table sizes.
type Stats struct {
	SeverityRules    int `json:"severityRulesCount"`
	ContextPatterns  int `json:"contextPatternsCount"`
	CriticalPatterns int `json:"criticalPatternsCount"`
	HighPatterns     int `json:"highSeverityPatternsCount"`
}

// New creates a classifier with the built-in rule set.
func New(env capability.EnvironmentDescriptor) *Classifier {
	c := &Classifier{
		contextRules: []contextRule{
			{domain.ContextCanvas, mustCompile(`canvas|webgl|2d|3d|context|rendering`)},
			{domain.ContextAudio, mustCompile(`audio|sound|webaudio|media`)},
			{domain.ContextStorage, mustCompile(`storage|localstorage|sessionstorage|indexeddb|quota`)},
			{domain.ContextMemory, mustCompile(`memory|heap|allocation|out of memory`)},
			{domain.ContextPerformance, mustCompile(`fps|frame|performance|slow|lag`)},
			{domain.ContextNetwork, mustCompile(`network|fetch|xhr|ajax|connection|timeout`)},
			{domain.ContextBrowserCompatibility, mustCompile(`not supported|unavailable|unsupported`)},
			{domain.ContextWebGL, mustCompile(`webgl|shader|buffer|texture`)},
			{domain.ContextSecurity, mustCompile(`security|cors|csp|mixed content`)},
			{domain.ContextModule, mustCompile(`module|import|export|require`)},
		},
		severityRules: map[string]domain.Severity{
			"TypeError":          domain.SeverityHigh,
			"ReferenceError":     domain.SeverityHigh,
			"SyntaxError":        domain.SeverityCritical,
			"SecurityError":      domain.SeverityCritical,
			"QuotaExceededError": domain.SeverityMedium,
			"NetworkError":       domain.SeverityMedium,
			"AbortError":         domain.SeverityLow,
			"TimeoutError":       domain.SeverityMedium,
		},
		critical: []*regexp.Regexp{
			mustCompile(`cannot read propert(y|ies)|cannot access before initialization`),
			mustCompile(`out of memory|memory allocation failed`),
			mustCompile(`script error|cross-origin|blocked by cors`),
			mustCompile(`webgl.*lost|canvas.*corrupted`),
		},
		high: []*regexp.Regexp{
			mustCompile(`undefined is not a function|cannot read properties of undefined`),
			mustCompile(`failed to fetch|network error`),
			mustCompile(`audio.*failed|sound.*error`),
			mustCompile(`canvas.*error|rendering.*failed`),
		},
		env:     env,
		started: time.Now(),
		now:     time.Now,
		newID:   uuid.NewString,
	}
	return c
}

func mustCompile(src string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)` + src)
}

// ClassifyContext returns the tag of the first rule matching
// name+message+stack, falling back to substring checks on name.
func (c *Classifier) ClassifyContext(name, message, stack string) domain.Context {
	combined := name + " " + message + " " + stack

	c.mu.RLock()
	for _, rule := range c.contextRules {
		if rule.pattern.MatchString(combined) {
			c.mu.RUnlock()
			return rule.context
		}
	}
	c.mu.RUnlock()

	switch {
	case containsAny(name, "Canvas", "WebGL"):
		return domain.ContextCanvas
	case containsAny(name, "Audio", "Media"):
		return domain.ContextAudio
	case containsAny(name, "Storage", "Quota"):
		return domain.ContextStorage
	case containsAny(name, "Network", "Fetch"):
		return domain.ContextNetwork
	}
	return domain.ContextGeneral
}

// DetermineSeverity applies the severity cascade: critical message patterns,
// then the name table, then high message patterns, then the context default.
func (c *Classifier) DetermineSeverity(name, message string, ctx domain.Context) domain.Severity {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, re := range c.critical {
		if re.MatchString(message) {
			return domain.SeverityCritical
		}
	}
	if sev, ok := c.severityRules[name]; ok {
		return sev
	}
	for _, re := range c.high {
		if re.MatchString(message) {
			return domain.SeverityHigh
		}
	}

	switch ctx {
	case domain.ContextCanvas, domain.ContextWebGL, domain.ContextSecurity:
		return domain.SeverityCritical
	case domain.ContextAudio, domain.ContextStorage, domain.ContextNetwork:
		return domain.SeverityHigh
	case domain.ContextMemory, domain.ContextPerformance, domain.ContextBrowserCompatibility:
		return domain.SeverityMedium
	}
	return domain.SeverityLow
}

// Severity is DetermineSeverity applied to a record.
func (c *Classifier) Severity(rec *domain.ErrorRecord) domain.Severity {
	return c.DetermineSeverity(rec.Name, rec.Message, rec.Context)
}

// Configure merges severity rules and appends context patterns. Patterns are
// applied in sorted tag order so the resulting rule list is deterministic.
func (c *Classifier) Configure(opts Options) error {
	rules := make(map[string]domain.Severity, len(opts.SeverityRules))
	for name, raw := range opts.SeverityRules {
		sev, err := domain.ParseSeverity(raw)
		if err != nil {
			return fmt.Errorf("severity rule %s: %w", name, err)
		}
		rules[name] = sev
	}

	tags := make([]string, 0, len(opts.ContextPatterns))
	for tag := range opts.ContextPatterns {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	compiled := make([]contextRule, 0, len(tags))
	for _, tag := range tags {
		re, err := regexp.Compile(`(?i)` + opts.ContextPatterns[tag])
		if err != nil {
			return fmt.Errorf("%w %s: %v", ErrInvalidPattern, tag, err)
		}
		compiled = append(compiled, contextRule{domain.Context(tag), re})
	}

	c.mu.Lock()
	for name, sev := range rules {
		c.severityRules[name] = sev
	}
	for _, rule := range compiled {
		c.setRuleLocked(rule)
	}
	c.mu.Unlock()

	slog.Debug("Classifier configuration updated",
		"severityRules", len(rules),
		"contextPatterns", len(compiled),
	)
	return nil
}

// AddSeverityRule maps an error name to a fixed severity.
func (c *Classifier) AddSeverityRule(name string, sev domain.Severity) {
	c.mu.Lock()
	c.severityRules[name] = sev
	c.mu.Unlock()
}

// AddContextPattern registers a case-insensitive pattern for tag. An existing
// rule for the same tag is replaced in place, keeping its position.
func (c *Classifier) AddContextPattern(tag domain.Context, pattern string) error {
	re, err := regexp.Compile(`(?i)` + pattern)
	if err != nil {
		return fmt.Errorf("%w %s: %v", ErrInvalidPattern, tag, err)
	}
	c.mu.Lock()
	c.setRuleLocked(contextRule{tag, re})
	c.mu.Unlock()
	return nil
}

func (c *Classifier) setRuleLocked(rule contextRule) {
	for i := range c.contextRules {
		if c.contextRules[i].context == rule.context {
			c.contextRules[i] = rule
			return
		}
	}
	c.contextRules = append(c.contextRules, rule)
}

// Stats returns the sizes of the rule tables.
func (c *Classifier) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{
		SeverityRules:    len(c.severityRules),
		ContextPatterns:  len(c.contextRules),
		CriticalPatterns: len(c.critical),
		HighPatterns:     len(c.high),
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
