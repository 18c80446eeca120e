package store

import (
	"context"

	"github.com/joescharf/rv/internal/models"
)

// IssueListFilter specifies filters for listing issues.
type IssueListFilter struct {
	ProjectID string
	FilePath  string
	Status    models.IssueStatus
	Severity  models.Severity
	Category  models.Category
}

// Store defines the persistence interface for rv: the issue ledger, review
// configuration, and review history.
type Store interface {
	// Projects
	CreateProject(ctx context.Context, p *models.Project) error
	GetProject(ctx context.Context, id string) (*models.Project, error)
	GetProjectByName(ctx context.Context, name string) (*models.Project, error)
	ListProjects(ctx context.Context) ([]*models.Project, error)
	DeleteProject(ctx context.Context, id string) error

	// Issues
	CreateIssue(ctx context.Context, issue *models.Issue) error
	GetIssue(ctx context.Context, id string) (*models.Issue, error)
	ListIssues(ctx context.Context, filter IssueListFilter) ([]*models.Issue, error)
	// FindActiveIssues returns all active issues for a project.
	FindActiveIssues(ctx context.Context, projectID string) ([]*models.Issue, error)
	// FindResolvedIssue returns the most recently resolved issue matching the
	// (project, filePath, line, ruleID) key, or nil if there is none.
	FindResolvedIssue(ctx context.Context, projectID, filePath string, line int, ruleID string) (*models.Issue, error)
	ResolveIssue(ctx context.Context, id, resolvedBy string) error
	DismissIssue(ctx context.Context, id string) error

	// Review configuration (one row per project, last write wins)
	SaveReviewConfig(ctx context.Context, cfg *models.ReviewConfig) error
	// GetReviewConfig returns nil (no error) when the project has no config.
	GetReviewConfig(ctx context.Context, projectID string) (*models.ReviewConfig, error)

	// Review history (append-only)
	CreateReviewHistory(ctx context.Context, entry *models.ReviewHistoryEntry) error
	ListReviewHistory(ctx context.Context, projectID string, limit int) ([]*models.ReviewHistoryEntry, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
