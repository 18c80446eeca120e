package review

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/rv/internal/analysis"
	"github.com/joescharf/rv/internal/files"
	"github.com/joescharf/rv/internal/models"
	"github.com/joescharf/rv/internal/store"
)

// fakeAnalyzer returns canned candidates (or errors) per file path and
// records the directives it was given.
type fakeAnalyzer struct {
	mu         sync.Mutex
	candidates map[string][]analysis.CandidateIssue
	errs       map[string]error
	directives map[string]string
	calls      []string
}

func newFakeAnalyzer() *fakeAnalyzer {
	return &fakeAnalyzer{
		candidates: map[string][]analysis.CandidateIssue{},
		errs:       map[string]error{},
		directives: map[string]string{},
	}
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, filePath, content, directive string) ([]analysis.CandidateIssue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, filePath)
	f.directives[filePath] = directive
	if err := f.errs[filePath]; err != nil {
		return nil, err
	}
	return f.candidates[filePath], nil
}

func (f *fakeAnalyzer) CheckAvailability(ctx context.Context) bool                   { return true }
func (f *fakeAnalyzer) CheckModelAvailability(ctx context.Context, model string) bool { return true }

// fakeSource returns a fixed change set.
type fakeSource struct {
	changes []files.FileChange
	err     error
}

func (f *fakeSource) ListModifiedFiles(ctx context.Context, projectPath string) ([]files.FileChange, error) {
	return f.changes, f.err
}

func testConfig() *models.ReviewConfig {
	return &models.ReviewConfig{
		EnabledGuidelines: []string{"eslint"},
		EnabledDimensions: []string{"security"},
		Model:             "claude-haiku-4-5-20251001",
	}
}

func TestRun_SingleCandidate(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	p := setupProject(t, s)

	fa := newFakeAnalyzer()
	fa.candidates["a.ts"] = []analysis.CandidateIssue{{
		Line: 10, Severity: models.SeverityError,
		Category: models.CategorySecurity, RuleID: "SQL-INJECTION", Title: "Injection",
	}}
	src := &fakeSource{changes: []files.FileChange{{Path: "a.ts", Content: "let x = 1\n"}}}

	o := NewOrchestrator(s, fa, src, nil, Options{})
	result := o.Run(ctx, p.ID, "alice", testConfig())

	require.True(t, result.Success, "error: %s", result.Error)
	assert.Equal(t, 1, result.Metadata.TotalIssues)
	assert.Equal(t, 1, result.Metadata.NewIssues)
	assert.Equal(t, 0, result.Metadata.ReappearedIssues)
	assert.Equal(t, []string{"a.ts"}, result.Metadata.FilesReviewed)
	assert.Equal(t, 1, result.Metadata.FilesCount)
	require.Len(t, result.Issues, 1)
	assert.False(t, result.Issues[0].WasResolvedBefore)

	// Config was persisted
	cfg, err := s.GetReviewConfig(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, []string{"eslint"}, cfg.EnabledGuidelines)

	// History was recorded
	entries, err := s.ListReviewHistory(ctx, p.ID, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 1, entries[0].TotalIssues)
	assert.Equal(t, 1, entries[0].NewIssues)
	assert.Equal(t, "alice", entries[0].TriggeredBy)
	assert.Equal(t, "claude-haiku-4-5-20251001", entries[0].Model)
}

func TestRun_EmptyInputShortCircuit(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	p := setupProject(t, s)

	o := NewOrchestrator(s, newFakeAnalyzer(), &fakeSource{}, nil, Options{})
	result := o.Run(ctx, p.ID, "alice", testConfig())

	require.True(t, result.Success)
	assert.Empty(t, result.Issues)
	assert.Zero(t, result.Metadata.TotalIssues)
	assert.Zero(t, result.Metadata.FilesCount)
	assert.Empty(t, result.Metadata.FilesReviewed)

	// Neither config save nor history recording happened
	cfg, err := s.GetReviewConfig(ctx, p.ID)
	require.NoError(t, err)
	assert.Nil(t, cfg)

	entries, err := s.ListReviewHistory(ctx, p.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRun_PartialFailureIsolation(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	p := setupProject(t, s)

	fa := newFakeAnalyzer()
	fa.candidates["file1.go"] = []analysis.CandidateIssue{{
		Line: 1, Severity: models.SeverityWarning, Category: models.CategoryLinting,
		RuleID: "A", Title: "a"}}
	fa.errs["file2.go"] = analysis.ErrRequestFailed
	fa.candidates["file3.go"] = []analysis.CandidateIssue{{
		Line: 2, Severity: models.SeverityInfo, Category: models.CategoryTesting,
		RuleID: "B", Title: "b"}}
	src := &fakeSource{changes: []files.FileChange{
		{Path: "file2.go", Content: "x"},
		{Path: "file1.go", Content: "x"},
		{Path: "file3.go", Content: "x"},
	}}

	o := NewOrchestrator(s, fa, src, nil, Options{})
	result := o.Run(ctx, p.ID, "alice", testConfig())

	require.True(t, result.Success, "one failed file must not fail the run")
	assert.Equal(t, []string{"file1.go", "file3.go"}, result.Metadata.FilesReviewed,
		"only successfully analyzed files are listed")
	assert.Equal(t, 2, result.Metadata.TotalIssues)
	assert.Len(t, result.Issues, 2)
}

func TestRun_CandidatePersistFailureIsolation(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	p := setupProject(t, s)

	fa := newFakeAnalyzer()
	fa.candidates["a.ts"] = []analysis.CandidateIssue{
		{Line: 5, Severity: models.SeverityError, Category: models.CategorySecurity,
			RuleID: "SQL-INJECTION", Title: "Injection"},
		{Line: 9, Severity: models.SeverityWarning, Category: models.CategoryLinting,
			RuleID: "UNUSED-VAR", Title: "unused"},
	}
	src := &fakeSource{changes: []files.FileChange{{Path: "a.ts", Content: "x"}}}

	wrapped := &createFailStore{Store: s, failRule: "SQL-INJECTION"}
	o := NewOrchestrator(wrapped, fa, src, nil, Options{})
	result := o.Run(ctx, p.ID, "alice", testConfig())

	require.True(t, result.Success, "one failed candidate must not fail the run")
	assert.Equal(t, []string{"a.ts"}, result.Metadata.FilesReviewed)
	assert.Equal(t, 1, result.Metadata.TotalIssues)
	require.Len(t, result.Issues, 1)
	assert.Equal(t, "UNUSED-VAR", result.Issues[0].RuleID, "the sibling candidate still lands")

	stored, err := s.FindActiveIssues(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "UNUSED-VAR", stored[0].RuleID)

	entries, err := s.ListReviewHistory(ctx, p.ID, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 1, entries[0].TotalIssues)
}

func TestRun_TimeoutKeepsCompletedWork(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	p := setupProject(t, s)

	fa := newFakeAnalyzer()
	fa.candidates["a.go"] = []analysis.CandidateIssue{{
		Line: 1, Severity: models.SeverityWarning, Category: models.CategoryLinting,
		RuleID: "A", Title: "a"}}
	src := &fakeSource{changes: []files.FileChange{
		{Path: "a.go", Content: "x"},
		{Path: "z.go", Content: "x"},
	}}

	// z.go stalls until the run budget expires; a.go finishes well inside it.
	o := NewOrchestrator(s, stallAnalyzer{inner: fa, stallOn: "z.go"}, src, nil,
		Options{Concurrency: 1, Timeout: 200 * time.Millisecond})
	result := o.Run(ctx, p.ID, "alice", testConfig())

	require.True(t, result.Success, "error: %s", result.Error)
	assert.Equal(t, []string{"a.go"}, result.Metadata.FilesReviewed,
		"work finished before expiry stays committed")
	assert.Equal(t, 1, result.Metadata.TotalIssues)

	stored, err := s.FindActiveIssues(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, stored, 1)

	// The expired budget must not take the audit trail down with it.
	entries, err := s.ListReviewHistory(ctx, p.ID, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, []string{"a.go"}, entries[0].FilesReviewed)
	assert.Equal(t, 1, entries[0].TotalIssues)
}

func TestRun_FilesProcessedInLexicographicOrder(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	p := setupProject(t, s)

	fa := newFakeAnalyzer()
	src := &fakeSource{changes: []files.FileChange{
		{Path: "zeta.go", Content: "x"},
		{Path: "alpha.go", Content: "x"},
		{Path: "mid.go", Content: "x"},
	}}

	o := NewOrchestrator(s, fa, src, nil, Options{Concurrency: 1})
	result := o.Run(ctx, p.ID, "u", testConfig())

	require.True(t, result.Success)
	assert.Equal(t, []string{"alpha.go", "mid.go", "zeta.go"}, fa.calls)
	assert.Equal(t, []string{"alpha.go", "mid.go", "zeta.go"}, result.Metadata.FilesReviewed)
}

func TestRun_ConcurrentFilesReduceDeterministically(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	p := setupProject(t, s)

	fa := newFakeAnalyzer()
	var changes []files.FileChange
	want := []string{"a.go", "b.go", "c.go", "d.go", "e.go"}
	for _, path := range want {
		changes = append(changes, files.FileChange{Path: path, Content: "x"})
		fa.candidates[path] = []analysis.CandidateIssue{{
			Line: 1, Severity: models.SeverityInfo, Category: models.CategoryLinting,
			RuleID: "R-" + path, Title: path}}
	}
	src := &fakeSource{changes: changes}

	o := NewOrchestrator(s, fa, src, nil, Options{Concurrency: 4})
	result := o.Run(ctx, p.ID, "u", testConfig())

	require.True(t, result.Success)
	assert.Equal(t, want, result.Metadata.FilesReviewed, "reduction follows file order regardless of completion order")
	assert.Equal(t, 5, result.Metadata.TotalIssues)

	// Issues are reduced in file order too
	var got []string
	for _, issue := range result.Issues {
		got = append(got, issue.FilePath)
	}
	assert.True(t, sort.StringsAreSorted(got))
}

func TestRun_ReappearanceCounts(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	p := setupProject(t, s)

	fa := newFakeAnalyzer()
	fa.candidates["a.ts"] = []analysis.CandidateIssue{
		{Line: 10, Severity: models.SeverityError, Category: models.CategorySecurity,
			RuleID: "SQL-INJECTION", Title: "Injection"},
		{Line: 20, Severity: models.SeverityWarning, Category: models.CategoryLinting,
			RuleID: "UNUSED-VAR", Title: "unused"},
	}
	src := &fakeSource{changes: []files.FileChange{{Path: "a.ts", Content: "x"}}}

	o := NewOrchestrator(s, fa, src, nil, Options{})
	first := o.Run(ctx, p.ID, "u", testConfig())
	require.True(t, first.Success)
	require.Len(t, first.Issues, 2)

	// Resolve only the injection issue, then run again
	for _, issue := range first.Issues {
		if issue.RuleID == "SQL-INJECTION" {
			require.NoError(t, s.ResolveIssue(ctx, issue.ID, "alice"))
		}
	}
	// A well-behaved capability does not re-report still-active issues, so
	// the second run only returns the resolved one.
	fa.candidates["a.ts"] = fa.candidates["a.ts"][:1]

	second := o.Run(ctx, p.ID, "u", testConfig())
	require.True(t, second.Success)
	assert.Equal(t, 1, second.Metadata.TotalIssues)
	assert.Equal(t, 1, second.Metadata.ReappearedIssues)
	assert.Equal(t, 0, second.Metadata.NewIssues)
	require.Len(t, second.Issues, 1)
	assert.True(t, second.Issues[0].WasResolvedBefore)
	assert.Equal(t, 1, second.Issues[0].ResolutionCount)
}

func TestRun_KnownIssuesFlowIntoDirective(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	p := setupProject(t, s)

	require.NoError(t, s.CreateIssue(ctx, &models.Issue{
		ProjectID: p.ID, FilePath: "a.ts", Line: 33,
		Severity: models.SeverityWarning, Category: models.CategoryLinting,
		RuleID: "SHADOWED-VAR", Title: "shadowed variable",
	}))

	fa := newFakeAnalyzer()
	src := &fakeSource{changes: []files.FileChange{
		{Path: "a.ts", Content: "x"},
		{Path: "b.ts", Content: "x"},
	}}

	o := NewOrchestrator(s, fa, src, nil, Options{})
	result := o.Run(ctx, p.ID, "u", testConfig())
	require.True(t, result.Success)

	assert.Contains(t, fa.directives["a.ts"], "SHADOWED-VAR")
	assert.Contains(t, fa.directives["a.ts"], "Do NOT report")
	assert.NotContains(t, fa.directives["b.ts"], "SHADOWED-VAR",
		"known issues are scoped per file")
}

func TestRun_FileListingFailure(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	p := setupProject(t, s)

	src := &fakeSource{err: errors.New("not a git repository")}
	o := NewOrchestrator(s, newFakeAnalyzer(), src, nil, Options{})
	result := o.Run(ctx, p.ID, "u", testConfig())

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "not a git repository")
	assert.Zero(t, result.Metadata.TotalIssues)
	assert.Empty(t, result.Issues)
}

func TestRun_UnknownProject(t *testing.T) {
	s := setupTestStore(t)

	o := NewOrchestrator(s, newFakeAnalyzer(), &fakeSource{}, nil, Options{})
	result := o.Run(context.Background(), "nope", "u", testConfig())

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "load project")
}

func TestRun_AnalyzerPanicIsIsolated(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	p := setupProject(t, s)

	fa := newFakeAnalyzer()
	fa.candidates["ok.go"] = []analysis.CandidateIssue{{
		Line: 1, Severity: models.SeverityInfo, Category: models.CategoryLinting,
		RuleID: "R", Title: "r"}}
	src := &fakeSource{changes: []files.FileChange{
		{Path: "boom.go", Content: "x"},
		{Path: "ok.go", Content: "x"},
	}}

	o := NewOrchestrator(s, panicAnalyzer{inner: fa, panicOn: "boom.go"}, src, nil, Options{})
	result := o.Run(ctx, p.ID, "u", testConfig())

	require.True(t, result.Success)
	assert.Equal(t, []string{"ok.go"}, result.Metadata.FilesReviewed)
	assert.Equal(t, 1, result.Metadata.TotalIssues)
}

// panicAnalyzer panics for one path and delegates otherwise.
type panicAnalyzer struct {
	inner   *fakeAnalyzer
	panicOn string
}

func (p panicAnalyzer) Analyze(ctx context.Context, filePath, content, directive string) ([]analysis.CandidateIssue, error) {
	if filePath == p.panicOn {
		panic("analyzer blew up")
	}
	return p.inner.Analyze(ctx, filePath, content, directive)
}

func (p panicAnalyzer) CheckAvailability(ctx context.Context) bool                    { return true }
func (p panicAnalyzer) CheckModelAvailability(ctx context.Context, model string) bool { return true }

// stallAnalyzer blocks on one path until the context expires and delegates
// otherwise.
type stallAnalyzer struct {
	inner   *fakeAnalyzer
	stallOn string
}

func (s stallAnalyzer) Analyze(ctx context.Context, filePath, content, directive string) ([]analysis.CandidateIssue, error) {
	if filePath == s.stallOn {
		<-ctx.Done()
		return nil, fmt.Errorf("analyze %s: %w", filePath, ctx.Err())
	}
	return s.inner.Analyze(ctx, filePath, content, directive)
}

func (s stallAnalyzer) CheckAvailability(ctx context.Context) bool                    { return true }
func (s stallAnalyzer) CheckModelAvailability(ctx context.Context, model string) bool { return true }

// createFailStore fails CreateIssue for one rule id and delegates everything
// else to the wrapped store.
type createFailStore struct {
	store.Store
	failRule string
}

func (s *createFailStore) CreateIssue(ctx context.Context, issue *models.Issue) error {
	if issue.RuleID == s.failRule {
		return errors.New("simulated write failure")
	}
	return s.Store.CreateIssue(ctx, issue)
}
