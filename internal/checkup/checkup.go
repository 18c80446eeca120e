// Package checkup evaluates whether a project path is ready to be reviewed.
package checkup

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joescharf/rv/internal/catalog"
)

// Check represents a single readiness check.
type Check struct {
	Name   string
	Passed bool
	Detail string
}

// Checker evaluates project review readiness.
type Checker struct{}

// NewChecker returns a new Checker.
func NewChecker() *Checker {
	return &Checker{}
}

// Run evaluates all readiness checks for a project at the given path.
func (c *Checker) Run(path string) []Check {
	checks := []Check{checkPath(path)}
	if !checks[0].Passed {
		return checks
	}

	checks = append(checks, checkDir(path, ".git", "Git repository"))
	checks = append(checks, checkSourceFiles(path))
	return checks
}

func checkPath(path string) Check {
	info, err := os.Stat(path)
	if err != nil {
		return Check{Name: "Project path", Passed: false, Detail: path + " not found"}
	}
	if !info.IsDir() {
		return Check{Name: "Project path", Passed: false, Detail: path + " is not a directory"}
	}
	return Check{Name: "Project path", Passed: true, Detail: path + " found"}
}

func checkDir(base, name, label string) Check {
	info, err := os.Stat(filepath.Join(base, name))
	if err == nil && info.IsDir() {
		return Check{Name: label, Passed: true, Detail: name + "/ found"}
	}
	return Check{Name: label, Passed: false, Detail: name + "/ missing"}
}

func checkSourceFiles(path string) Check {
	// Look for any file with a recognizable source extension.
	found := false
	_ = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if d.Name() == ".git" || d.Name() == "node_modules" {
				return filepath.SkipDir
			}
			return nil
		}
		if catalog.LanguageForFile(p) != "Unknown" {
			found = true
			return filepath.SkipAll
		}
		return nil
	})

	if found {
		return Check{Name: "Source files", Passed: true, Detail: "reviewable files found"}
	}
	return Check{Name: "Source files", Passed: false, Detail: "no reviewable files found"}
}
