package review

import (
	"context"
	"fmt"

	"github.com/joescharf/rv/internal/analysis"
	"github.com/joescharf/rv/internal/models"
	"github.com/joescharf/rv/internal/store"
)

// Reconciler turns candidate issues into ledger rows. Its one algorithmic
// job is reappearance detection: a candidate matching a previously resolved
// issue at the same (project, file, line, rule) key becomes a new active row
// with the resolution count carried forward. De-duplication against
// currently active issues happens upstream, in the composed directive, and
// is advisory; reappearance detection here is authoritative.
type Reconciler struct {
	store store.Store
}

// NewReconciler creates a reconciler backed by the given store.
func NewReconciler(s store.Store) *Reconciler {
	return &Reconciler{store: s}
}

// Reconcile persists one candidate as a new active issue and returns the row.
// It never drops a candidate silently: any failure is returned to the caller.
func (r *Reconciler) Reconcile(ctx context.Context, candidate analysis.CandidateIssue, projectID, filePath string) (*models.Issue, error) {
	previous, err := r.store.FindResolvedIssue(ctx, projectID, filePath, candidate.Line, candidate.RuleID)
	if err != nil {
		return nil, fmt.Errorf("find resolved issue: %w", err)
	}

	issue := &models.Issue{
		ProjectID:   projectID,
		FilePath:    filePath,
		Line:        candidate.Line,
		Column:      candidate.Column,
		EndLine:     candidate.EndLine,
		EndColumn:   candidate.EndColumn,
		Severity:    candidate.Severity,
		Category:    candidate.Category,
		RuleID:      candidate.RuleID,
		Title:       candidate.Title,
		Description: candidate.Description,
		Suggestion:  candidate.Suggestion,
		Snippet:     candidate.Snippet,
		FixedCode:   candidate.FixedCode,
		Status:      models.IssueStatusActive,
		IsManual:    false,
	}
	if previous != nil {
		issue.WasResolvedBefore = true
		issue.ResolutionCount = previous.ResolutionCount + 1
	}

	if err := r.store.CreateIssue(ctx, issue); err != nil {
		return nil, fmt.Errorf("persist issue: %w", err)
	}
	return issue, nil
}
