// Package detect infers a project's primary language from marker files.
package detect

import (
	"os"
	"path/filepath"

	"github.com/joescharf/rv/internal/catalog"
)

// markers maps build/manifest files to the language they indicate, in
// priority order.
var markers = []struct {
	file     string
	language string
}{
	{"go.mod", "Go"},
	{"Cargo.toml", "Rust"},
	{"pyproject.toml", "Python"},
	{"requirements.txt", "Python"},
	{"tsconfig.json", "TypeScript"},
	{"package.json", "JavaScript"},
	{"Gemfile", "Ruby"},
	{"pom.xml", "Java"},
	{"build.gradle", "Java"},
}

// Language detects the primary language of the project at path. Marker
// files win; otherwise the most common source extension in the project
// root decides. Returns "" when nothing is recognizable.
func Language(path string) string {
	for _, m := range markers {
		if _, err := os.Stat(filepath.Join(path, m.file)); err == nil {
			return m.language
		}
	}
	return dominantExtension(path)
}

// dominantExtension counts recognizable source files in the project root
// (non-recursive) and returns the most common language.
func dominantExtension(path string) string {
	entries, err := os.ReadDir(path)
	if err != nil {
		return ""
	}

	counts := make(map[string]int)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		lang := catalog.LanguageForFile(e.Name())
		if lang == "Unknown" {
			continue
		}
		counts[lang]++
	}

	best, bestCount := "", 0
	for lang, n := range counts {
		if n > bestCount || (n == bestCount && lang < best) {
			best, bestCount = lang, n
		}
	}
	return best
}
