package analysis

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/rv/internal/models"
)

func TestParseCandidates(t *testing.T) {
	text := `[
		{"line": 10, "column": 4, "severity": "error", "category": "security",
		 "ruleId": "SQL-INJECTION", "title": "Injection", "description": "bad",
		 "suggestion": "parameterize", "snippet": "query(input)", "fixedCode": ""}
	]`

	candidates, err := parseCandidates(text)
	require.NoError(t, err)
	require.Len(t, candidates, 1)

	c := candidates[0]
	assert.Equal(t, 10, c.Line)
	assert.Equal(t, models.SeverityError, c.Severity)
	assert.Equal(t, models.CategorySecurity, c.Category)
	assert.Equal(t, "SQL-INJECTION", c.RuleID)
}

func TestParseCandidates_StripsFencing(t *testing.T) {
	text := "```json\n[{\"line\": 1, \"severity\": \"warning\", \"category\": \"linting\", \"ruleId\": \"X\", \"title\": \"t\"}]\n```"

	candidates, err := parseCandidates(text)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "X", candidates[0].RuleID)
}

func TestParseCandidates_EmptyArray(t *testing.T) {
	candidates, err := parseCandidates("[]")
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestParseCandidates_Malformed(t *testing.T) {
	_, err := parseCandidates("I found no issues, great code!")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformed))
}

func TestParseCandidates_NormalizesUnknownValues(t *testing.T) {
	text := `[{"line": 5, "severity": "catastrophic", "category": "vibes", "ruleId": "", "title": "t"}]`

	candidates, err := parseCandidates(text)
	require.NoError(t, err)
	require.Len(t, candidates, 1)

	c := candidates[0]
	assert.Equal(t, models.SeverityInfo, c.Severity)
	assert.Equal(t, models.CategoryLinting, c.Category)
	assert.Equal(t, "GENERAL", c.RuleID)
}
