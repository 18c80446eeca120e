package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/joescharf/rv/internal/models"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements Store using modernc.org/sqlite (pure Go, no CGO).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Ensure parent directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite only supports one concurrent writer. Limiting to a single
	// connection serializes all DB access through Go's connection pool, so
	// concurrent reconciliations never hit "database is locked".
	db.SetMaxOpenConns(1)

	// Enable WAL mode for concurrent reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	// Set busy timeout so concurrent writes wait instead of failing immediately
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// boolToInt converts a bool to 0 or 1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// newULID generates a new ULID string.
func newULID() string {
	entropy := rand.New(rand.NewSource(time.Now().UnixNano()))
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulid.Monotonic(entropy, 0)).String()
}

// Migrate runs all embedded SQL migration files in order.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	// Create migrations tracking table
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	// Sort by filename
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()

		// Check if already applied
		var count int
		err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE filename = ?", name).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}

		data, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}

		if _, err := s.db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}

		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (filename) VALUES (?)", name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Projects ---

func (s *SQLiteStore) CreateProject(ctx context.Context, p *models.Project) error {
	if p.ID == "" {
		p.ID = newULID()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO projects (id, name, path, description, language, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Path, p.Description, p.Language, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create project: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetProject(ctx context.Context, id string) (*models.Project, error) {
	p := &models.Project{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, path, description, language, created_at, updated_at
		FROM projects WHERE id = ?`, id,
	).Scan(&p.ID, &p.Name, &p.Path, &p.Description, &p.Language, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("project not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	return p, nil
}

func (s *SQLiteStore) GetProjectByName(ctx context.Context, name string) (*models.Project, error) {
	p := &models.Project{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, path, description, language, created_at, updated_at
		FROM projects WHERE name = ?`, name,
	).Scan(&p.ID, &p.Name, &p.Path, &p.Description, &p.Language, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("project not found: %s", name)
	}
	if err != nil {
		return nil, fmt.Errorf("get project by name: %w", err)
	}
	return p, nil
}

func (s *SQLiteStore) ListProjects(ctx context.Context) ([]*models.Project, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, path, description, language, created_at, updated_at
		FROM projects ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var projects []*models.Project
	for rows.Next() {
		p := &models.Project{}
		if err := rows.Scan(&p.ID, &p.Name, &p.Path, &p.Description, &p.Language, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func (s *SQLiteStore) DeleteProject(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM projects WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("project not found: %s", id)
	}
	return nil
}

// --- Issues ---

const issueColumns = `id, project_id, file_path, line, col, end_line, end_col, severity, category, rule_id, title, description, suggestion, snippet, fixed_code, status, is_manual, was_resolved_before, resolution_count, first_detected_at, last_seen_at, resolved_at, resolved_by, created_at, updated_at`

func (s *SQLiteStore) CreateIssue(ctx context.Context, issue *models.Issue) error {
	if issue.ID == "" {
		issue.ID = newULID()
	}
	now := time.Now().UTC()
	issue.CreatedAt = now
	issue.UpdatedAt = now
	if issue.FirstDetectedAt.IsZero() {
		issue.FirstDetectedAt = now
	}
	if issue.LastSeenAt.IsZero() {
		issue.LastSeenAt = now
	}
	if issue.Status == "" {
		issue.Status = models.IssueStatusActive
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO issues (`+issueColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		issue.ID, issue.ProjectID, issue.FilePath, issue.Line, issue.Column,
		issue.EndLine, issue.EndColumn, string(issue.Severity), string(issue.Category),
		issue.RuleID, issue.Title, issue.Description, issue.Suggestion,
		issue.Snippet, issue.FixedCode, string(issue.Status),
		boolToInt(issue.IsManual), boolToInt(issue.WasResolvedBefore), issue.ResolutionCount,
		issue.FirstDetectedAt, issue.LastSeenAt, issue.ResolvedAt, issue.ResolvedBy,
		issue.CreatedAt, issue.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create issue: %w", err)
	}
	return nil
}

// scanIssue scans a single issue row from either *sql.Row or *sql.Rows.
func scanIssue(scan func(dest ...any) error) (*models.Issue, error) {
	issue := &models.Issue{}
	var severity, category, status string
	var resolvedAt sql.NullTime

	err := scan(&issue.ID, &issue.ProjectID, &issue.FilePath, &issue.Line, &issue.Column,
		&issue.EndLine, &issue.EndColumn, &severity, &category,
		&issue.RuleID, &issue.Title, &issue.Description, &issue.Suggestion,
		&issue.Snippet, &issue.FixedCode, &status,
		&issue.IsManual, &issue.WasResolvedBefore, &issue.ResolutionCount,
		&issue.FirstDetectedAt, &issue.LastSeenAt, &resolvedAt, &issue.ResolvedBy,
		&issue.CreatedAt, &issue.UpdatedAt)
	if err != nil {
		return nil, err
	}

	issue.Severity = models.Severity(severity)
	issue.Category = models.Category(category)
	issue.Status = models.IssueStatus(status)
	if resolvedAt.Valid {
		issue.ResolvedAt = &resolvedAt.Time
	}
	return issue, nil
}

func (s *SQLiteStore) GetIssue(ctx context.Context, id string) (*models.Issue, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+issueColumns+` FROM issues WHERE id = ?`, id)

	issue, err := scanIssue(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("issue not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get issue: %w", err)
	}
	return issue, nil
}

func (s *SQLiteStore) ListIssues(ctx context.Context, filter IssueListFilter) ([]*models.Issue, error) {
	query := `SELECT ` + issueColumns + ` FROM issues`
	var conditions []string
	var args []any

	if filter.ProjectID != "" {
		conditions = append(conditions, "project_id = ?")
		args = append(args, filter.ProjectID)
	}
	if filter.FilePath != "" {
		conditions = append(conditions, "file_path = ?")
		args = append(args, filter.FilePath)
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.Severity != "" {
		conditions = append(conditions, "severity = ?")
		args = append(args, string(filter.Severity))
	}
	if filter.Category != "" {
		conditions = append(conditions, "category = ?")
		args = append(args, string(filter.Category))
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY
		CASE status WHEN 'active' THEN 0 WHEN 'resolved' THEN 1 WHEN 'dismissed' THEN 2 ELSE 3 END,
		CASE severity WHEN 'error' THEN 0 WHEN 'warning' THEN 1 WHEN 'info' THEN 2 ELSE 3 END,
		file_path, line`

	return s.queryIssues(ctx, query, args...)
}

func (s *SQLiteStore) FindActiveIssues(ctx context.Context, projectID string) ([]*models.Issue, error) {
	return s.queryIssues(ctx,
		`SELECT `+issueColumns+` FROM issues
		WHERE project_id = ? AND status = 'active'
		ORDER BY file_path, line`, projectID)
}

func (s *SQLiteStore) FindResolvedIssue(ctx context.Context, projectID, filePath string, line int, ruleID string) (*models.Issue, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+issueColumns+` FROM issues
		WHERE project_id = ? AND file_path = ? AND line = ? AND rule_id = ? AND status = 'resolved'
		ORDER BY resolved_at DESC, created_at DESC LIMIT 1`,
		projectID, filePath, line, ruleID)

	issue, err := scanIssue(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find resolved issue: %w", err)
	}
	return issue, nil
}

func (s *SQLiteStore) ResolveIssue(ctx context.Context, id, resolvedBy string) error {
	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		`UPDATE issues SET status='resolved', resolved_at=?, resolved_by=?, updated_at=?
		WHERE id=? AND status='active'`,
		now, resolvedBy, now, id,
	)
	if err != nil {
		return fmt.Errorf("resolve issue: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("no active issue to resolve: %s", id)
	}
	return nil
}

func (s *SQLiteStore) DismissIssue(ctx context.Context, id string) error {
	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		`UPDATE issues SET status='dismissed', updated_at=? WHERE id=? AND status='active'`,
		now, id,
	)
	if err != nil {
		return fmt.Errorf("dismiss issue: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("no active issue to dismiss: %s", id)
	}
	return nil
}

// queryIssues is a shared helper for scanning issue rows.
func (s *SQLiteStore) queryIssues(ctx context.Context, query string, args ...any) ([]*models.Issue, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list issues: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var issues []*models.Issue
	for rows.Next() {
		issue, err := scanIssue(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan issue: %w", err)
		}
		issues = append(issues, issue)
	}
	return issues, rows.Err()
}

// --- Review configuration ---

func (s *SQLiteStore) SaveReviewConfig(ctx context.Context, cfg *models.ReviewConfig) error {
	now := time.Now().UTC()
	cfg.UpdatedAt = now
	if cfg.CreatedAt.IsZero() {
		cfg.CreatedAt = now
	}

	guidelinesJSON, err := json.Marshal(cfg.EnabledGuidelines)
	if err != nil {
		guidelinesJSON = []byte("[]")
	}
	dimensionsJSON, err := json.Marshal(cfg.EnabledDimensions)
	if err != nil {
		dimensionsJSON = []byte("[]")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO review_configs (project_id, enabled_guidelines, enabled_dimensions, custom_instructions, model, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(project_id) DO UPDATE SET
			enabled_guidelines=excluded.enabled_guidelines,
			enabled_dimensions=excluded.enabled_dimensions,
			custom_instructions=excluded.custom_instructions,
			model=excluded.model,
			updated_at=excluded.updated_at`,
		cfg.ProjectID, string(guidelinesJSON), string(dimensionsJSON),
		cfg.CustomInstructions, cfg.Model, cfg.CreatedAt, cfg.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save review config: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetReviewConfig(ctx context.Context, projectID string) (*models.ReviewConfig, error) {
	cfg := &models.ReviewConfig{}
	var guidelinesJSON, dimensionsJSON string

	err := s.db.QueryRowContext(ctx,
		`SELECT project_id, enabled_guidelines, enabled_dimensions, custom_instructions, model, created_at, updated_at
		FROM review_configs WHERE project_id = ?`, projectID,
	).Scan(&cfg.ProjectID, &guidelinesJSON, &dimensionsJSON, &cfg.CustomInstructions, &cfg.Model, &cfg.CreatedAt, &cfg.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get review config: %w", err)
	}

	_ = json.Unmarshal([]byte(guidelinesJSON), &cfg.EnabledGuidelines)
	_ = json.Unmarshal([]byte(dimensionsJSON), &cfg.EnabledDimensions)
	return cfg, nil
}

// --- Review history ---

func (s *SQLiteStore) CreateReviewHistory(ctx context.Context, entry *models.ReviewHistoryEntry) error {
	if entry.ID == "" {
		entry.ID = newULID()
	}
	entry.CreatedAt = time.Now().UTC()

	filesJSON, err := json.Marshal(entry.FilesReviewed)
	if err != nil {
		filesJSON = []byte("[]")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO review_history (id, project_id, files_reviewed, files_count, total_issues, new_issues, reappeared_issues, duration_ms, model, triggered_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.ProjectID, string(filesJSON), entry.FilesCount,
		entry.TotalIssues, entry.NewIssues, entry.ReappearedIssues,
		entry.Duration.Milliseconds(), entry.Model, entry.TriggeredBy, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create review history: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListReviewHistory(ctx context.Context, projectID string, limit int) ([]*models.ReviewHistoryEntry, error) {
	query := `SELECT id, project_id, files_reviewed, files_count, total_issues, new_issues, reappeared_issues, duration_ms, model, triggered_by, created_at
		FROM review_history`
	var args []any

	if projectID != "" {
		query += " WHERE project_id = ?"
		args = append(args, projectID)
	}
	query += " ORDER BY created_at DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list review history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []*models.ReviewHistoryEntry
	for rows.Next() {
		e := &models.ReviewHistoryEntry{}
		var filesJSON string
		var durationMs int64
		if err := rows.Scan(&e.ID, &e.ProjectID, &filesJSON, &e.FilesCount,
			&e.TotalIssues, &e.NewIssues, &e.ReappearedIssues,
			&durationMs, &e.Model, &e.TriggeredBy, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan review history: %w", err)
		}
		_ = json.Unmarshal([]byte(filesJSON), &e.FilesReviewed)
		e.Duration = time.Duration(durationMs) * time.Millisecond
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
