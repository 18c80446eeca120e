// Package analysis defines the external code-analysis capability used by
// review runs, plus the Anthropic-backed implementation.
package analysis

import (
	"context"
	"errors"

	"github.com/joescharf/rv/internal/models"
)

// Error kinds for analysis failures. Callers distinguish them with errors.Is.
var (
	// ErrUnavailable means the analysis service could not be reached at all.
	ErrUnavailable = errors.New("analysis service unavailable")
	// ErrMalformed means the service responded but the result could not be
	// parsed into candidate issues.
	ErrMalformed = errors.New("analysis response malformed")
	// ErrRequestFailed covers any other non-success outcome.
	ErrRequestFailed = errors.New("analysis request failed")
)

// CandidateIssue is a single unpersisted issue proposal returned by the
// analysis capability for one file. The reconciler decides what becomes of it.
type CandidateIssue struct {
	Line        int             `json:"line"`
	Column      int             `json:"column"`
	EndLine     int             `json:"endLine"`
	EndColumn   int             `json:"endColumn"`
	Severity    models.Severity `json:"severity"`
	Category    models.Category `json:"category"`
	RuleID      string          `json:"ruleId"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Suggestion  string          `json:"suggestion"`
	Snippet     string          `json:"snippet"`
	FixedCode   string          `json:"fixedCode"`
}

// Analyzer is the capability interface for reviewing one file. Retry policy
// is the caller's concern; implementations make exactly one attempt.
type Analyzer interface {
	// Analyze reviews one file under the given directive and returns
	// candidate issues in the order the capability produced them.
	Analyze(ctx context.Context, filePath, content, directive string) ([]CandidateIssue, error)
	// CheckAvailability reports whether the service is reachable. It fails
	// closed: any error means false, never a panic or returned error.
	CheckAvailability(ctx context.Context) bool
	// CheckModelAvailability reports whether the given model can be used.
	// Fails closed like CheckAvailability.
	CheckModelAvailability(ctx context.Context, model string) bool
}
