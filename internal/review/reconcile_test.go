package review

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/rv/internal/analysis"
	"github.com/joescharf/rv/internal/models"
	"github.com/joescharf/rv/internal/store"
)

func setupTestStore(t *testing.T) store.Store {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")
	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func setupProject(t *testing.T, s store.Store) *models.Project {
	t.Helper()
	p := &models.Project{Name: "proj", Path: t.TempDir()}
	require.NoError(t, s.CreateProject(context.Background(), p))
	return p
}

func TestReconcile_FreshIssue(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	p := setupProject(t, s)
	r := NewReconciler(s)

	candidate := analysis.CandidateIssue{
		Line: 10, Column: 2,
		Severity: models.SeverityError, Category: models.CategorySecurity,
		RuleID: "SQL-INJECTION", Title: "Injection",
		Description: "user input reaches query", Suggestion: "parameterize",
	}

	issue, err := r.Reconcile(ctx, candidate, p.ID, "a.ts")
	require.NoError(t, err)
	assert.NotEmpty(t, issue.ID)
	assert.Equal(t, models.IssueStatusActive, issue.Status)
	assert.False(t, issue.IsManual)
	assert.False(t, issue.WasResolvedBefore)
	assert.Zero(t, issue.ResolutionCount)
	assert.Equal(t, "a.ts", issue.FilePath)
	assert.Equal(t, 10, issue.Line)
	assert.Equal(t, "SQL-INJECTION", issue.RuleID)

	// Persisted
	got, err := s.GetIssue(ctx, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, issue.RuleID, got.RuleID)
}

func TestReconcile_Reappearance(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	p := setupProject(t, s)
	r := NewReconciler(s)

	candidate := analysis.CandidateIssue{
		Line: 10, Severity: models.SeverityError,
		Category: models.CategorySecurity, RuleID: "SQL-INJECTION", Title: "Injection",
	}

	first, err := r.Reconcile(ctx, candidate, p.ID, "a.ts")
	require.NoError(t, err)
	require.NoError(t, s.ResolveIssue(ctx, first.ID, "alice"))

	second, err := r.Reconcile(ctx, candidate, p.ID, "a.ts")
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID, "reappearance is a new row")
	assert.True(t, second.WasResolvedBefore)
	assert.Equal(t, 1, second.ResolutionCount)
	assert.Equal(t, models.IssueStatusActive, second.Status)

	// The resolved row stays behind untouched
	old, err := s.GetIssue(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, models.IssueStatusResolved, old.Status)
}

func TestReconcile_ResolutionCountMonotonic(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	p := setupProject(t, s)
	r := NewReconciler(s)

	candidate := analysis.CandidateIssue{
		Line: 7, Severity: models.SeverityWarning,
		Category: models.CategoryLinting, RuleID: "UNUSED-VAR", Title: "unused",
	}

	// N resolve/reappear cycles: the Nth reappearance carries count N
	for n := 1; n <= 4; n++ {
		issue, err := r.Reconcile(ctx, candidate, p.ID, "b.go")
		require.NoError(t, err)
		if n == 1 {
			assert.False(t, issue.WasResolvedBefore)
			assert.Equal(t, 0, issue.ResolutionCount)
		}
		require.NoError(t, s.ResolveIssue(ctx, issue.ID, ""))

		next, err := r.Reconcile(ctx, candidate, p.ID, "b.go")
		require.NoError(t, err)
		assert.True(t, next.WasResolvedBefore)
		assert.Equal(t, n, next.ResolutionCount)
		if n < 4 {
			require.NoError(t, s.ResolveIssue(ctx, next.ID, ""))
		}
	}
}

func TestReconcile_KeyIsExact(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	p := setupProject(t, s)
	r := NewReconciler(s)

	candidate := analysis.CandidateIssue{
		Line: 10, Severity: models.SeverityError,
		Category: models.CategorySecurity, RuleID: "SQL-INJECTION", Title: "Injection",
	}
	first, err := r.Reconcile(ctx, candidate, p.ID, "a.ts")
	require.NoError(t, err)
	require.NoError(t, s.ResolveIssue(ctx, first.ID, ""))

	// Different line: not a reappearance
	moved := candidate
	moved.Line = 11
	issue, err := r.Reconcile(ctx, moved, p.ID, "a.ts")
	require.NoError(t, err)
	assert.False(t, issue.WasResolvedBefore)

	// Different file: not a reappearance
	issue, err = r.Reconcile(ctx, candidate, p.ID, "other.ts")
	require.NoError(t, err)
	assert.False(t, issue.WasResolvedBefore)

	// Different rule: not a reappearance
	otherRule := candidate
	otherRule.RuleID = "XSS"
	issue, err = r.Reconcile(ctx, otherRule, p.ID, "a.ts")
	require.NoError(t, err)
	assert.False(t, issue.WasResolvedBefore)
}

func TestReconcile_DismissedIsNotReappearance(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	p := setupProject(t, s)
	r := NewReconciler(s)

	candidate := analysis.CandidateIssue{
		Line: 3, Severity: models.SeverityInfo,
		Category: models.CategoryLinting, RuleID: "MAGIC-NUMBER", Title: "magic",
	}
	first, err := r.Reconcile(ctx, candidate, p.ID, "c.go")
	require.NoError(t, err)
	require.NoError(t, s.DismissIssue(ctx, first.ID))

	// Only resolved rows count as prior resolutions
	second, err := r.Reconcile(ctx, candidate, p.ID, "c.go")
	require.NoError(t, err)
	assert.False(t, second.WasResolvedBefore)
	assert.Zero(t, second.ResolutionCount)
}
