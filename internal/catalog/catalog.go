// Package catalog holds the static guideline and analysis-dimension text
// blocks that review configurations select from. The catalogs are embedded
// YAML parsed once at startup and never mutated afterward.
package catalog

import (
	"embed"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed guidelines.yaml dimensions.yaml
var catalogFS embed.FS

// Entry is one selectable catalog block.
type Entry struct {
	Title string `yaml:"title"`
	Text  string `yaml:"text"`
}

var (
	guidelines = mustLoad("guidelines.yaml")
	dimensions = mustLoad("dimensions.yaml")
)

func mustLoad(name string) map[string]Entry {
	data, err := catalogFS.ReadFile(name)
	if err != nil {
		panic(fmt.Sprintf("catalog: read %s: %v", name, err))
	}
	var entries map[string]Entry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		panic(fmt.Sprintf("catalog: parse %s: %v", name, err))
	}
	return entries
}

// Guideline looks up a guideline module by id. Unknown ids return ok=false
// and are simply omitted from composed directives.
func Guideline(id string) (Entry, bool) {
	e, ok := guidelines[id]
	return e, ok
}

// Dimension looks up an analysis dimension by id.
func Dimension(id string) (Entry, bool) {
	e, ok := dimensions[id]
	return e, ok
}

// GuidelineIDs returns all known guideline ids, sorted.
func GuidelineIDs() []string {
	return sortedKeys(guidelines)
}

// DimensionIDs returns all known dimension ids, sorted.
func DimensionIDs() []string {
	return sortedKeys(dimensions)
}

func sortedKeys(m map[string]Entry) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// languages maps file extensions to language names for directive context.
var languages = map[string]string{
	".go":    "Go",
	".js":    "JavaScript",
	".jsx":   "JavaScript (React)",
	".ts":    "TypeScript",
	".tsx":   "TypeScript (React)",
	".py":    "Python",
	".rb":    "Ruby",
	".rs":    "Rust",
	".java":  "Java",
	".kt":    "Kotlin",
	".c":     "C",
	".h":     "C",
	".cpp":   "C++",
	".cs":    "C#",
	".php":   "PHP",
	".swift": "Swift",
	".sql":   "SQL",
	".sh":    "Shell",
	".css":   "CSS",
	".html":  "HTML",
	".vue":   "Vue",
	".yaml":  "YAML",
	".yml":   "YAML",
	".json":  "JSON",
	".md":    "Markdown",
}

// LanguageForFile returns the language name for a file path based on its
// extension, or "Unknown" when the extension is not recognized.
func LanguageForFile(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if lang, ok := languages[ext]; ok {
		return lang
	}
	return "Unknown"
}
