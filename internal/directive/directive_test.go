package directive

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/joescharf/rv/internal/models"
)

func TestCompose_SectionOrder(t *testing.T) {
	cfg := &models.ReviewConfig{
		EnabledGuidelines:  []string{"eslint"},
		EnabledDimensions:  []string{"security"},
		CustomInstructions: "Focus on the payment flow",
	}
	known := []*models.Issue{
		{Line: 10, RuleID: "SQL-INJECTION", Severity: models.SeverityError, Title: "injection"},
	}

	d := Compose("src/app.ts", cfg, known)

	idxLang := strings.Index(d, "Language context: TypeScript")
	idxGuide := strings.Index(d, "## Guideline: ESLint Rules")
	idxDim := strings.Index(d, "## Focus: Security")
	idxCustom := strings.Index(d, "Focus on the payment flow")
	idxKnown := strings.Index(d, "## Known Issues")
	idxFormat := strings.Index(d, "## Output Format")

	for name, idx := range map[string]int{
		"language": idxLang, "guideline": idxGuide, "dimension": idxDim,
		"custom": idxCustom, "known": idxKnown, "format": idxFormat,
	} {
		assert.GreaterOrEqual(t, idx, 0, "missing section: %s", name)
	}

	assert.Less(t, idxLang, idxGuide)
	assert.Less(t, idxGuide, idxDim)
	assert.Less(t, idxDim, idxCustom)
	assert.Less(t, idxCustom, idxKnown)
	assert.Less(t, idxKnown, idxFormat)

	assert.Contains(t, d, "Do NOT report")
	assert.Contains(t, d, "line 10 [SQL-INJECTION]")
}

func TestCompose_UnknownIDsIgnored(t *testing.T) {
	cfg := &models.ReviewConfig{
		EnabledGuidelines: []string{"bogus", "eslint"},
		EnabledDimensions: []string{"also-bogus"},
	}

	d := Compose("main.go", cfg, nil)

	assert.Contains(t, d, "## Guideline: ESLint Rules")
	assert.NotContains(t, d, "bogus")
	assert.NotContains(t, d, "## Focus:")
}

func TestCompose_EmptyKnownIssuesOmitsSection(t *testing.T) {
	cfg := &models.ReviewConfig{}

	d := Compose("main.go", cfg, nil)
	assert.NotContains(t, d, "## Known Issues")

	d = Compose("main.go", cfg, []*models.Issue{})
	assert.NotContains(t, d, "## Known Issues")
}

func TestCompose_UnknownExtension(t *testing.T) {
	d := Compose("data.xyz", &models.ReviewConfig{}, nil)
	assert.Contains(t, d, "Language context: Unknown")
}

func TestCompose_Deterministic(t *testing.T) {
	cfg := &models.ReviewConfig{
		EnabledGuidelines:  []string{"owasp", "go-style"},
		EnabledDimensions:  []string{"security", "performance"},
		CustomInstructions: "strict",
	}
	known := []*models.Issue{
		{Line: 3, RuleID: "A", Severity: models.SeverityWarning, Title: "a"},
		{Line: 9, RuleID: "B", Severity: models.SeverityInfo, Title: "b"},
	}

	first := Compose("pkg/db.go", cfg, known)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Compose("pkg/db.go", cfg, known))
	}
}

func TestCompose_CustomInstructionsOmittedWhenBlank(t *testing.T) {
	d := Compose("main.go", &models.ReviewConfig{CustomInstructions: "  \n "}, nil)
	assert.NotContains(t, d, "## Project Instructions")
}
