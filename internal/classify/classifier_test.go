package classify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vietddude/faultline/internal/core/capability"
	"github.com/vietddude/faultline/internal/core/domain"
)

func newTestClassifier() *Classifier {
	return New(capability.EnvironmentDescriptor{Kind: capability.EnvironmentNone})
}

func TestNormalize_AllShapes(t *testing.T) {
	c := newTestClassifier()

	inputs := []any{
		errors.New("boom"),
		&domain.RawError{Name: "TypeError", Message: "x is undefined"},
		domain.RawError{Name: "AbortError", Message: "aborted"},
		map[string]any{"name": "QuotaExceededError", "message": "quota hit"},
		map[string]any{},
		"failed to fetch resource",
		42,
		nil,
		struct{ A int }{A: 1},
		(*domain.RawError)(nil),
	}

	for _, in := range inputs {
		rec := c.Normalize(in)
		require.NotNil(t, rec, "input %#v", in)
		assert.NotEmpty(t, rec.ID, "input %#v", in)
		assert.False(t, rec.Timestamp.IsZero(), "input %#v", in)
		assert.True(t, rec.Context.IsBuiltin(), "input %#v got %s", in, rec.Context)
		assert.False(t, rec.Recovered)
		assert.NotNil(t, rec.Metadata)
	}
}

func TestNormalize_Names(t *testing.T) {
	c := newTestClassifier()

	assert.Equal(t, "Error", c.Normalize(errors.New("boom")).Name)
	assert.Equal(t, "Error", c.Normalize(errors.Join(errors.New("a"), errors.New("b"))).Name)
	assert.Equal(t, "TimeoutError", c.Normalize(context.DeadlineExceeded).Name)
	assert.Equal(t, "AbortError", c.Normalize(context.Canceled).Name)
	assert.Equal(t, "StringError", c.Normalize("something odd").Name)
	assert.Equal(t, "UnknownError", c.Normalize(3.14).Name)
	assert.Equal(t, "UnknownError", c.Normalize(map[string]any{"message": "m"}).Name)
	assert.Equal(t, "Unknown error occurred", c.Normalize(map[string]any{}).Message)

	wrapped := errorsWrap(&domain.RawError{Name: "NetworkError", Message: "down"})
	assert.Equal(t, "NetworkError", c.Normalize(wrapped).Name)
}

func errorsWrap(err error) error {
	return errors.Join(err)
}

func TestNormalize_PassThroughMetadata(t *testing.T) {
	c := newTestClassifier()

	rec := c.Normalize(map[string]any{
		"name":    "QuotaExceededError",
		"message": "quota hit",
		"stack":   "at save()",
		"key":     "settings",
		"nilKey":  nil,
	})
	assert.Equal(t, domain.ContextStorage, rec.Context)
	assert.Equal(t, "settings", rec.Metadata["key"])
	assert.NotContains(t, rec.Metadata, "name")
	assert.NotContains(t, rec.Metadata, "stack")
	assert.NotContains(t, rec.Metadata, "nilKey")

	rec = c.Normalize(&domain.RawError{Name: "X", Message: "y", Props: map[string]any{"scene": "menu"}})
	assert.Equal(t, "menu", rec.Metadata["scene"])

	rec = c.Normalize(42)
	assert.Equal(t, "42", rec.Metadata["originalError"])
	assert.Equal(t, unknownMessage, rec.Message)
	assert.Equal(t, domain.ContextGeneral, rec.Context)
}

func TestExtractMetadata_Environments(t *testing.T) {
	proc := New(capability.EnvironmentDescriptor{Kind: capability.EnvironmentProcess})
	md := proc.ExtractMetadata("x")
	assert.Contains(t, md, "pid")
	assert.Contains(t, md, "goVersion")
	assert.Contains(t, md, "memory")

	dom := New(capability.EnvironmentDescriptor{
		Kind:      capability.EnvironmentDOM,
		UserAgent: "test-agent",
		URL:       "https://example.test/game",
		Viewport:  func() capability.Viewport { return capability.Viewport{Width: 800, Height: 600} },
		Heap:      func() (capability.HeapUsage, bool) { return capability.HeapUsage{}, false },
	})
	md = dom.ExtractMetadata(nil)
	assert.Equal(t, "test-agent", md["userAgent"])
	assert.Equal(t, capability.Viewport{Width: 800, Height: 600}, md["viewport"])
	assert.Contains(t, md, "performanceNow")
	assert.NotContains(t, md, "memory")
	assert.NotContains(t, md, "pid")

	none := newTestClassifier()
	assert.Empty(t, none.ExtractMetadata("x"))
}

func TestClassifyContext_RuleOrder(t *testing.T) {
	c := newTestClassifier()

	tests := []struct {
		name, message string
		want          domain.Context
	}{
		{"Error", "webgl shader failed", domain.ContextCanvas},
		{"Error", "shader compile failed", domain.ContextWebGL},
		{"Error", "sound device busy", domain.ContextAudio},
		{"Error", "indexeddb is full", domain.ContextStorage},
		{"Error", "heap exhausted", domain.ContextMemory},
		{"Error", "fps dropped", domain.ContextPerformance},
		{"Error", "xhr refused", domain.ContextNetwork},
		{"Error", "feature unsupported here", domain.ContextBrowserCompatibility},
		{"Error", "blocked by csp", domain.ContextSecurity},
		{"Error", "dynamic import rejected", domain.ContextModule},
		{"Error", "nothing to see", domain.ContextGeneral},
		{"TypeError", "cannot read properties of undefined (reading 'x')", domain.ContextGeneral},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, c.ClassifyContext(tt.name, tt.message, ""), tt.message)
	}
}

func TestDetermineSeverity_Cascade(t *testing.T) {
	c := newTestClassifier()

	tests := []struct {
		name, message string
		ctx           domain.Context
		want          domain.Severity
	}{
		{"TypeError", "cannot read properties of undefined (reading 'x')", domain.ContextGeneral, domain.SeverityCritical},
		{"AbortError", "out of memory", domain.ContextGeneral, domain.SeverityCritical},
		{"TypeError", "x is not iterable", domain.ContextGeneral, domain.SeverityHigh},
		{"SyntaxError", "unexpected token", domain.ContextGeneral, domain.SeverityCritical},
		{"AbortError", "failed to fetch", domain.ContextNetwork, domain.SeverityLow},
		{"Error", "failed to fetch", domain.ContextGeneral, domain.SeverityHigh},
		{"Error", "x", domain.ContextCanvas, domain.SeverityCritical},
		{"Error", "x", domain.ContextAudio, domain.SeverityHigh},
		{"Error", "x", domain.ContextMemory, domain.SeverityMedium},
		{"Error", "x", domain.ContextModule, domain.SeverityLow},
		{"Error", "x", domain.ContextGeneral, domain.SeverityLow},
	}
	for _, tt := range tests {
		got := c.DetermineSeverity(tt.name, tt.message, tt.ctx)
		assert.Equal(t, tt.want, got, "%s/%s/%s", tt.name, tt.message, tt.ctx)
		assert.Equal(t, got, c.DetermineSeverity(tt.name, tt.message, tt.ctx), "not pure")
	}
}

func TestConfigure_CustomRules(t *testing.T) {
	c := newTestClassifier()
	before := c.Stats()

	err := c.Configure(Options{
		SeverityRules:   map[string]string{"PaymentError": "critical"},
		ContextPatterns: map[string]string{"PAYMENT_ERROR": "payment|checkout"},
	})
	require.NoError(t, err)

	assert.Equal(t, domain.Context("PAYMENT_ERROR"), c.ClassifyContext("Error", "payment declined", ""))
	assert.Equal(t, domain.SeverityCritical, c.DetermineSeverity("PaymentError", "declined", "PAYMENT_ERROR"))

	after := c.Stats()
	assert.Equal(t, before.SeverityRules+1, after.SeverityRules)
	assert.Equal(t, before.ContextPatterns+1, after.ContextPatterns)

	// Replacing an existing tag keeps its position and the count.
	require.NoError(t, c.AddContextPattern(domain.ContextCanvas, "surface"))
	assert.Equal(t, after.ContextPatterns, c.Stats().ContextPatterns)
	assert.Equal(t, domain.ContextCanvas, c.ClassifyContext("Error", "surface lost", ""))
}

func TestConfigure_Invalid(t *testing.T) {
	c := newTestClassifier()

	err := c.Configure(Options{ContextPatterns: map[string]string{"BAD": "("}})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidPattern)

	err = c.AddContextPattern("BAD", "[")
	assert.ErrorIs(t, err, ErrInvalidPattern)

	err = c.Configure(Options{SeverityRules: map[string]string{"X": "urgent"}})
	assert.Error(t, err)
}
