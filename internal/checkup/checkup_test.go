package checkup

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChecker_MissingPath(t *testing.T) {
	c := NewChecker()
	checks := c.Run(filepath.Join(t.TempDir(), "nope"))

	require.Len(t, checks, 1)
	assert.False(t, checks[0].Passed)
}

func TestChecker_EmptyProject(t *testing.T) {
	dir := t.TempDir()
	c := NewChecker()
	checks := c.Run(dir)

	require.Len(t, checks, 3)
	assert.True(t, checks[0].Passed, "path exists")
	assert.False(t, checks[1].Passed, "no git repo")
	assert.False(t, checks[2].Passed, "no source files")
}

func TestChecker_ReadyProject(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".git"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main"), 0o644))

	c := NewChecker()
	for _, check := range c.Run(dir) {
		assert.True(t, check.Passed, "check %s should pass: %s", check.Name, check.Detail)
	}
}

func TestChecker_SkipsNodeModules(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".git"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "node_modules"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "node_modules", "index.js"), []byte(""), 0o644))

	c := NewChecker()
	checks := c.Run(dir)
	require.Len(t, checks, 3)
	assert.False(t, checks[2].Passed, "vendored files do not count as reviewable")
}
