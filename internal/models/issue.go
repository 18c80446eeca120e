package models

import "time"

// IssueStatus represents the lifecycle state of a review issue.
type IssueStatus string

const (
	IssueStatusActive    IssueStatus = "active"
	IssueStatusResolved  IssueStatus = "resolved"
	IssueStatusDismissed IssueStatus = "dismissed"
)

// Severity represents how serious a review issue is.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Category classifies what aspect of the code an issue concerns.
type Category string

const (
	CategorySecurity      Category = "security"
	CategoryArchitecture  Category = "architecture"
	CategoryLinting       Category = "linting"
	CategoryTesting       Category = "testing"
	CategoryPerformance   Category = "performance"
	CategoryDocumentation Category = "documentation"
)

// Issue is a durable review finding for one location in one file.
//
// The matching key for an issue is (project, file path, line, rule ID).
// At most one issue per key is active at a time; a resolved issue that is
// detected again becomes a new active row with WasResolvedBefore set, while
// the resolved row stays behind as history.
type Issue struct {
	ID          string
	ProjectID   string
	FilePath    string
	Line        int
	Column      int
	EndLine     int
	EndColumn   int
	Severity    Severity
	Category    Category
	RuleID      string
	Title       string
	Description string
	Suggestion  string
	Snippet     string
	FixedCode   string
	Status      IssueStatus
	IsManual    bool

	// Reappearance tracking. ResolutionCount is how many times an issue at
	// this key has been resolved before this row was created.
	WasResolvedBefore bool
	ResolutionCount   int

	FirstDetectedAt time.Time
	LastSeenAt      time.Time
	ResolvedAt      *time.Time
	ResolvedBy      string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
