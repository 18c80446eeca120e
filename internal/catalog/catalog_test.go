package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGuidelineLookup(t *testing.T) {
	e, ok := Guideline("eslint")
	assert.True(t, ok)
	assert.Equal(t, "ESLint Rules", e.Title)
	assert.NotEmpty(t, e.Text)

	_, ok = Guideline("nonexistent")
	assert.False(t, ok)
}

func TestDimensionLookup(t *testing.T) {
	e, ok := Dimension("security")
	assert.True(t, ok)
	assert.Equal(t, "Security", e.Title)
	assert.NotEmpty(t, e.Text)

	_, ok = Dimension("nonexistent")
	assert.False(t, ok)
}

func TestCatalogIDs(t *testing.T) {
	gids := GuidelineIDs()
	assert.Contains(t, gids, "eslint")
	assert.Contains(t, gids, "owasp")
	assert.IsIncreasing(t, gids)

	dids := DimensionIDs()
	assert.Len(t, dids, 6)
	assert.Contains(t, dids, "security")
	assert.Contains(t, dids, "performance")
	assert.IsIncreasing(t, dids)
}

func TestLanguageForFile(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"main.go", "Go"},
		{"src/app.ts", "TypeScript"},
		{"src/App.TSX", "TypeScript (React)"},
		{"script.py", "Python"},
		{"weird.xyz", "Unknown"},
		{"noextension", "Unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, LanguageForFile(tt.path), tt.path)
	}
}
