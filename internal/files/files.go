// Package files supplies the set of changed files a review run operates on.
package files

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// FileChange is one changed file with its current working-tree content.
type FileChange struct {
	Path    string
	Content string
}

// Source lists the modified files for a project. Implementations own the
// filtering: only files with a modified status and non-empty, readable text
// content are returned.
type Source interface {
	ListModifiedFiles(ctx context.Context, projectPath string) ([]FileChange, error)
}

// GitSource implements Source using git status against the working tree.
// All methods take a path parameter since rv operates on multiple repos.
type GitSource struct{}

// NewGitSource returns a new GitSource.
func NewGitSource() *GitSource {
	return &GitSource{}
}

func gitCmd(ctx context.Context, path string, args ...string) (string, error) {
	fullArgs := append([]string{"-C", path}, args...)
	out, err := exec.CommandContext(ctx, "git", fullArgs...).Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return "", fmt.Errorf("git %s: %s", strings.Join(args, " "), strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
	}
	return strings.TrimSpace(string(out)), nil
}

// ListModifiedFiles returns the modified and staged-new files in the repo at
// projectPath, with their current content. Untracked, deleted, empty, and
// non-text files are skipped.
func (g *GitSource) ListModifiedFiles(ctx context.Context, projectPath string) ([]FileChange, error) {
	out, err := gitCmd(ctx, projectPath, "status", "--porcelain")
	if err != nil {
		return nil, err
	}

	paths := parsePorcelain(out)

	var changes []FileChange
	for _, p := range paths {
		data, err := os.ReadFile(filepath.Join(projectPath, p))
		if err != nil {
			// Deleted or unreadable since status ran
			continue
		}
		if len(data) == 0 || !utf8.Valid(data) {
			continue
		}
		changes = append(changes, FileChange{Path: p, Content: string(data)})
	}
	return changes, nil
}

// parsePorcelain extracts reviewable paths from `git status --porcelain`
// output. Each line is "XY path" (or "XY old -> new" for renames); a file
// qualifies when either status column marks it modified or added.
func parsePorcelain(out string) []string {
	if out == "" {
		return nil
	}

	var paths []string
	for _, line := range strings.Split(out, "\n") {
		if len(line) < 4 {
			continue
		}
		x, y := line[0], line[1]
		if !isChanged(x) && !isChanged(y) {
			continue
		}

		p := line[3:]
		if idx := strings.Index(p, " -> "); idx >= 0 {
			p = p[idx+4:]
		}
		p = strings.Trim(p, `"`)
		paths = append(paths, p)
	}
	return paths
}

func isChanged(status byte) bool {
	switch status {
	case 'M', 'A', 'R', 'C':
		return true
	}
	return false
}
