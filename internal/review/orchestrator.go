// Package review drives automated review runs: it composes a directive per
// changed file, hands each file to the analysis capability, reconciles the
// candidates against the issue ledger, and records a history entry.
package review

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joescharf/rv/internal/analysis"
	"github.com/joescharf/rv/internal/directive"
	"github.com/joescharf/rv/internal/files"
	"github.com/joescharf/rv/internal/models"
	"github.com/joescharf/rv/internal/store"
)

// Options tunes a review run.
type Options struct {
	// Concurrency bounds how many files are analyzed at once. Values < 1
	// mean sequential.
	Concurrency int
	// Timeout is the budget for the whole run. Zero means no limit. Files
	// already reconciled when the budget expires stay committed.
	Timeout time.Duration
}

// Metadata summarizes an orchestrated run.
type Metadata struct {
	FilesReviewed    []string      `json:"files_reviewed"`
	FilesCount       int           `json:"files_count"`
	TotalIssues      int           `json:"total_issues"`
	NewIssues        int           `json:"new_issues"`
	ReappearedIssues int           `json:"reappeared_issues"`
	Duration         time.Duration `json:"duration"`
	Model            string        `json:"model"`
}

// Result is what the caller always gets back: orchestration never lets a
// failure escape as a panic or error past this boundary.
type Result struct {
	Success  bool            `json:"success"`
	Issues   []*models.Issue `json:"issues"`
	Metadata Metadata        `json:"metadata"`
	Error    string          `json:"error,omitempty"`
}

// Orchestrator runs end-to-end reviews. All collaborators are injected; it
// holds no hidden global state.
type Orchestrator struct {
	store      store.Store
	analyzer   analysis.Analyzer
	files      files.Source
	reconciler *Reconciler
	log        *slog.Logger
	opts       Options
}

// NewOrchestrator creates an orchestrator. A nil logger falls back to
// slog.Default().
func NewOrchestrator(s store.Store, a analysis.Analyzer, fs files.Source, log *slog.Logger, opts Options) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{
		store:      s,
		analyzer:   a,
		files:      fs,
		reconciler: NewReconciler(s),
		log:        log,
		opts:       opts,
	}
}

// fileResult holds the outcome of one file's analyze-and-reconcile task.
type fileResult struct {
	path       string
	issues     []*models.Issue
	reappeared int
	err        error
}

// Run reviews all modified files of a project.
//
// Files are processed in lexicographic path order; a failure inside one
// file's task is logged and skipped without affecting the others.
// FilesReviewed in the result and history lists only files whose analysis
// succeeded. Run-level failures (file listing, config save, history write)
// return Success=false with zero counts; issues already reconciled are not
// rolled back.
func (o *Orchestrator) Run(ctx context.Context, projectID, userID string, cfg *models.ReviewConfig) *Result {
	start := time.Now()

	if o.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.opts.Timeout)
		defer cancel()
	}

	project, err := o.store.GetProject(ctx, projectID)
	if err != nil {
		return failure(start, cfg.Model, fmt.Errorf("load project: %w", err))
	}

	changes, err := o.files.ListModifiedFiles(ctx, project.Path)
	if err != nil {
		return failure(start, cfg.Model, fmt.Errorf("list modified files: %w", err))
	}

	// Nothing to review: short-circuit without touching config or history.
	if len(changes) == 0 {
		return &Result{
			Success: true,
			Metadata: Metadata{
				FilesReviewed: []string{},
				Duration:      time.Since(start),
				Model:         cfg.Model,
			},
		}
	}

	active, err := o.store.FindActiveIssues(ctx, projectID)
	if err != nil {
		return failure(start, cfg.Model, fmt.Errorf("load active issues: %w", err))
	}
	activeByFile := make(map[string][]*models.Issue)
	for _, issue := range active {
		activeByFile[issue.FilePath] = append(activeByFile[issue.FilePath], issue)
	}

	cfg.ProjectID = projectID
	if err := o.store.SaveReviewConfig(ctx, cfg); err != nil {
		return failure(start, cfg.Model, fmt.Errorf("save review config: %w", err))
	}

	sort.Slice(changes, func(i, j int) bool { return changes[i].Path < changes[j].Path })

	results := make([]fileResult, len(changes))
	var g errgroup.Group
	limit := o.opts.Concurrency
	if limit < 1 {
		limit = 1
	}
	g.SetLimit(limit)

	for i, change := range changes {
		g.Go(func() error {
			results[i] = o.reviewFile(ctx, projectID, userID, cfg, change, activeByFile[change.Path])
			return nil
		})
	}
	_ = g.Wait()

	// Reduce per-file results in file order.
	var (
		reviewed   []string
		issues     []*models.Issue
		reappeared int
	)
	for _, fr := range results {
		if fr.err != nil {
			o.log.Warn("file review failed", "project", projectID, "file", fr.path, "error", fr.err)
			continue
		}
		reviewed = append(reviewed, fr.path)
		issues = append(issues, fr.issues...)
		reappeared += fr.reappeared
	}
	if reviewed == nil {
		reviewed = []string{}
	}

	meta := Metadata{
		FilesReviewed:    reviewed,
		FilesCount:       len(reviewed),
		TotalIssues:      len(issues),
		NewIssues:        len(issues) - reappeared,
		ReappearedIssues: reappeared,
		Duration:         time.Since(start),
		Model:            cfg.Model,
	}

	// Record history even when the run timed out partway: the entry reflects
	// whatever completed. WithoutCancel keeps an expired budget from also
	// killing the audit trail.
	hctx, hcancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer hcancel()
	entry := &models.ReviewHistoryEntry{
		ProjectID:        projectID,
		FilesReviewed:    reviewed,
		FilesCount:       meta.FilesCount,
		TotalIssues:      meta.TotalIssues,
		NewIssues:        meta.NewIssues,
		ReappearedIssues: meta.ReappearedIssues,
		Duration:         meta.Duration,
		Model:            cfg.Model,
		TriggeredBy:      userID,
	}
	if err := o.store.CreateReviewHistory(hctx, entry); err != nil {
		return failure(start, cfg.Model, fmt.Errorf("record review history: %w", err))
	}

	return &Result{Success: true, Issues: issues, Metadata: meta}
}

// reviewFile composes the directive for one file, analyzes it, and
// reconciles each candidate in the order the capability returned them.
// Candidate-level persistence failures are logged and skipped so sibling
// candidates still land.
func (o *Orchestrator) reviewFile(ctx context.Context, projectID, userID string, cfg *models.ReviewConfig, change files.FileChange, known []*models.Issue) (fr fileResult) {
	fr.path = change.Path

	defer func() {
		if r := recover(); r != nil {
			fr.err = fmt.Errorf("panic reviewing %s: %v", change.Path, r)
			fr.issues = nil
			fr.reappeared = 0
		}
	}()

	dir := directive.Compose(change.Path, cfg, known)

	candidates, err := o.analyzer.Analyze(ctx, change.Path, change.Content, dir)
	if err != nil {
		fr.err = err
		return fr
	}

	for _, candidate := range candidates {
		issue, err := o.reconciler.Reconcile(ctx, candidate, projectID, change.Path)
		if err != nil {
			o.log.Warn("reconcile candidate failed",
				"project", projectID, "file", change.Path,
				"line", candidate.Line, "rule", candidate.RuleID,
				"user", userID, "error", err)
			continue
		}
		fr.issues = append(fr.issues, issue)
		if issue.WasResolvedBefore {
			fr.reappeared++
		}
	}
	return fr
}

// failure builds a run-level failure result: zero counts, error attached.
func failure(start time.Time, model string, err error) *Result {
	return &Result{
		Success: false,
		Error:   err.Error(),
		Metadata: Metadata{
			FilesReviewed: []string{},
			Duration:      time.Since(start),
			Model:         model,
		},
	}
}
