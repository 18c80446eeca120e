// Package mcp exposes the rv data layer and review orchestration as MCP
// tools over stdio, so agents can run reviews and work the issue ledger.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/joescharf/rv/internal/models"
	"github.com/joescharf/rv/internal/review"
	"github.com/joescharf/rv/internal/store"
)

// Server wraps the rv data layer and exposes it as MCP tools.
type Server struct {
	store        store.Store
	orch         *review.Orchestrator
	defaultModel string
}

// NewServer creates the MCP server wrapper. The orchestrator may be nil when
// no API key is configured; the review tool then reports an error.
func NewServer(s store.Store, orch *review.Orchestrator, defaultModel string) *Server {
	return &Server{store: s, orch: orch, defaultModel: defaultModel}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("rv", "1.0.0", server.WithToolCapabilities(true))

	srv.AddTool(s.listProjectsTool())
	srv.AddTool(s.runReviewTool())
	srv.AddTool(s.listIssuesTool())
	srv.AddTool(s.resolveIssueTool())
	srv.AddTool(s.dismissIssueTool())
	srv.AddTool(s.getConfigTool())
	srv.AddTool(s.setConfigTool())
	srv.AddTool(s.reviewHistoryTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	srv := s.MCPServer()
	stdioServer := server.NewStdioServer(srv)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

// ---------------------------------------------------------------------------
// Tool definitions and handlers
// ---------------------------------------------------------------------------

// rv_list_projects
func (s *Server) listProjectsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("rv_list_projects",
		mcp.WithDescription("List all tracked projects. Returns a JSON array with id, name, path, and language."),
	)
	return tool, s.handleListProjects
}

func (s *Server) handleListProjects(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projects, err := s.store.ListProjects(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list projects: %v", err)), nil
	}

	type projectOut struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Path     string `json:"path"`
		Language string `json:"language"`
	}

	out := make([]projectOut, len(projects))
	for i, p := range projects {
		out[i] = projectOut{ID: p.ID, Name: p.Name, Path: p.Path, Language: p.Language}
	}

	data, err := json.Marshal(out)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal projects: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// rv_run_review
func (s *Server) runReviewTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("rv_run_review",
		mcp.WithDescription("Run a code review over the project's modified files. Findings are reconciled against the issue ledger: a finding matching a previously resolved issue is flagged as a reappearance. Returns the run result as JSON."),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project name")),
		mcp.WithString("triggered_by", mcp.Description("Who or what triggered the run")),
	)
	return tool, s.handleRunReview
}

func (s *Server) handleRunReview(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.orch == nil {
		return mcp.NewToolResultError("review orchestration not configured (missing API key)"), nil
	}

	projectName, err := request.RequireString("project")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: project"), nil
	}

	p, err := s.resolveProject(ctx, projectName)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("project not found: %s", projectName)), nil
	}

	cfg, err := s.store.GetReviewConfig(ctx, p.ID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("load review config: %v", err)), nil
	}
	if cfg == nil {
		cfg = &models.ReviewConfig{ProjectID: p.ID}
	}
	if cfg.Model == "" {
		cfg.Model = s.defaultModel
	}

	result := s.orch.Run(ctx, p.ID, request.GetString("triggered_by", "mcp"), cfg)

	data, err := json.Marshal(result)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// rv_list_issues
func (s *Server) listIssuesTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("rv_list_issues",
		mcp.WithDescription("List review issues, optionally filtered by project, file, status, severity, or category. Each issue has a file path, line, rule ID, title, status (active/resolved/dismissed), and reappearance info."),
		mcp.WithString("project", mcp.Description("Project name to filter by")),
		mcp.WithString("file", mcp.Description("File path filter")),
		mcp.WithString("status", mcp.Description("Status filter: active, resolved, dismissed")),
		mcp.WithString("severity", mcp.Description("Severity filter: error, warning, info")),
		mcp.WithString("category", mcp.Description("Category filter: security, architecture, linting, testing, performance, documentation")),
	)
	return tool, s.handleListIssues
}

func (s *Server) handleListIssues(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filter := store.IssueListFilter{
		FilePath: request.GetString("file", ""),
		Status:   models.IssueStatus(request.GetString("status", "")),
		Severity: models.Severity(request.GetString("severity", "")),
		Category: models.Category(request.GetString("category", "")),
	}

	if projectName := request.GetString("project", ""); projectName != "" {
		p, err := s.resolveProject(ctx, projectName)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("project not found: %s", projectName)), nil
		}
		filter.ProjectID = p.ID
	}

	issues, err := s.store.ListIssues(ctx, filter)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list issues: %v", err)), nil
	}

	type issueOut struct {
		ID                string `json:"id"`
		ProjectID         string `json:"project_id"`
		FilePath          string `json:"file_path"`
		Line              int    `json:"line"`
		RuleID            string `json:"rule_id"`
		Title             string `json:"title"`
		Description       string `json:"description,omitempty"`
		Suggestion        string `json:"suggestion,omitempty"`
		Status            string `json:"status"`
		Severity          string `json:"severity"`
		Category          string `json:"category"`
		IsManual          bool   `json:"is_manual"`
		WasResolvedBefore bool   `json:"was_resolved_before"`
		ResolutionCount   int    `json:"resolution_count"`
		CreatedAt         string `json:"created_at"`
	}

	out := make([]issueOut, len(issues))
	for i, issue := range issues {
		out[i] = issueOut{
			ID:                issue.ID,
			ProjectID:         issue.ProjectID,
			FilePath:          issue.FilePath,
			Line:              issue.Line,
			RuleID:            issue.RuleID,
			Title:             issue.Title,
			Description:       issue.Description,
			Suggestion:        issue.Suggestion,
			Status:            string(issue.Status),
			Severity:          string(issue.Severity),
			Category:          string(issue.Category),
			IsManual:          issue.IsManual,
			WasResolvedBefore: issue.WasResolvedBefore,
			ResolutionCount:   issue.ResolutionCount,
			CreatedAt:         issue.CreatedAt.Format(time.RFC3339),
		}
	}

	data, err := json.Marshal(out)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal issues: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// rv_resolve_issue
func (s *Server) resolveIssueTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("rv_resolve_issue",
		mcp.WithDescription("Mark an active issue as resolved. If the same finding comes back in a later review it is recorded as a reappearance."),
		mcp.WithString("issue_id", mcp.Required(), mcp.Description("Issue ID (full ULID or unique prefix)")),
		mcp.WithString("resolved_by", mcp.Description("Who resolved the issue")),
	)
	return tool, s.handleResolveIssue
}

func (s *Server) handleResolveIssue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	issueID, err := request.RequireString("issue_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: issue_id"), nil
	}

	issue, err := s.findIssue(ctx, issueID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if err := s.store.ResolveIssue(ctx, issue.ID, request.GetString("resolved_by", "mcp")); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to resolve issue: %v", err)), nil
	}

	data, _ := json.Marshal(map[string]any{"id": issue.ID, "status": "resolved"})
	return mcp.NewToolResultText(string(data)), nil
}

// rv_dismiss_issue
func (s *Server) dismissIssueTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("rv_dismiss_issue",
		mcp.WithDescription("Dismiss an active issue as not worth fixing. Dismissed issues are suppressed from future directives but do not count as resolutions, so a later identical finding is new rather than a reappearance."),
		mcp.WithString("issue_id", mcp.Required(), mcp.Description("Issue ID (full ULID or unique prefix)")),
	)
	return tool, s.handleDismissIssue
}

func (s *Server) handleDismissIssue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	issueID, err := request.RequireString("issue_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: issue_id"), nil
	}

	issue, err := s.findIssue(ctx, issueID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if err := s.store.DismissIssue(ctx, issue.ID); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to dismiss issue: %v", err)), nil
	}

	data, _ := json.Marshal(map[string]any{"id": issue.ID, "status": "dismissed"})
	return mcp.NewToolResultText(string(data)), nil
}

// rv_get_config
func (s *Server) getConfigTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("rv_get_config",
		mcp.WithDescription("Get a project's review configuration: enabled guidelines, dimensions, custom instructions, and model."),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project name")),
	)
	return tool, s.handleGetConfig
}

func (s *Server) handleGetConfig(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectName, err := request.RequireString("project")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: project"), nil
	}

	p, err := s.resolveProject(ctx, projectName)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("project not found: %s", projectName)), nil
	}

	cfg, err := s.store.GetReviewConfig(ctx, p.ID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("load review config: %v", err)), nil
	}
	if cfg == nil {
		return mcp.NewToolResultError(fmt.Sprintf("no review config for project: %s", projectName)), nil
	}

	data, err := json.Marshal(configOut(cfg))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal config: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// rv_set_config
func (s *Server) setConfigTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("rv_set_config",
		mcp.WithDescription("Set review configuration fields for a project. Provide at least one of guidelines, dimensions, instructions, or model. Guidelines and dimensions are comma-separated lists."),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project name")),
		mcp.WithString("guidelines", mcp.Description("Comma-separated guideline set IDs")),
		mcp.WithString("dimensions", mcp.Description("Comma-separated review dimension IDs")),
		mcp.WithString("instructions", mcp.Description("Free-form project instructions")),
		mcp.WithString("model", mcp.Description("Model for this project's reviews")),
	)
	return tool, s.handleSetConfig
}

func (s *Server) handleSetConfig(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectName, err := request.RequireString("project")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: project"), nil
	}

	p, err := s.resolveProject(ctx, projectName)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("project not found: %s", projectName)), nil
	}

	cfg, err := s.store.GetReviewConfig(ctx, p.ID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("load review config: %v", err)), nil
	}
	if cfg == nil {
		cfg = &models.ReviewConfig{ProjectID: p.ID}
	}

	updated := false
	if guidelines := request.GetString("guidelines", ""); guidelines != "" {
		cfg.EnabledGuidelines = splitList(guidelines)
		updated = true
	}
	if dimensions := request.GetString("dimensions", ""); dimensions != "" {
		cfg.EnabledDimensions = splitList(dimensions)
		updated = true
	}
	if instructions := request.GetString("instructions", ""); instructions != "" {
		cfg.CustomInstructions = instructions
		updated = true
	}
	if model := request.GetString("model", ""); model != "" {
		cfg.Model = model
		updated = true
	}
	if !updated {
		return mcp.NewToolResultError("no fields provided; specify at least one of: guidelines, dimensions, instructions, model"), nil
	}

	if err := s.store.SaveReviewConfig(ctx, cfg); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to save config: %v", err)), nil
	}

	data, _ := json.Marshal(configOut(cfg))
	return mcp.NewToolResultText(string(data)), nil
}

// rv_review_history
func (s *Server) reviewHistoryTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("rv_review_history",
		mcp.WithDescription("List past review runs for a project, most recent first. Each entry has the files reviewed, issue counts, duration, and who triggered it."),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project name")),
		mcp.WithNumber("limit", mcp.Description("Max runs to return (default 20)")),
	)
	return tool, s.handleReviewHistory
}

func (s *Server) handleReviewHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectName, err := request.RequireString("project")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: project"), nil
	}

	p, err := s.resolveProject(ctx, projectName)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("project not found: %s", projectName)), nil
	}

	limit := request.GetInt("limit", 20)
	entries, err := s.store.ListReviewHistory(ctx, p.ID, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list history: %v", err)), nil
	}

	type entryOut struct {
		ID               string   `json:"id"`
		FilesReviewed    []string `json:"files_reviewed"`
		FilesCount       int      `json:"files_count"`
		TotalIssues      int      `json:"total_issues"`
		NewIssues        int      `json:"new_issues"`
		ReappearedIssues int      `json:"reappeared_issues"`
		DurationMS       int64    `json:"duration_ms"`
		Model            string   `json:"model"`
		TriggeredBy      string   `json:"triggered_by"`
		CreatedAt        string   `json:"created_at"`
	}

	out := make([]entryOut, len(entries))
	for i, e := range entries {
		out[i] = entryOut{
			ID:               e.ID,
			FilesReviewed:    e.FilesReviewed,
			FilesCount:       e.FilesCount,
			TotalIssues:      e.TotalIssues,
			NewIssues:        e.NewIssues,
			ReappearedIssues: e.ReappearedIssues,
			DurationMS:       e.Duration.Milliseconds(),
			Model:            e.Model,
			TriggeredBy:      e.TriggeredBy,
			CreatedAt:        e.CreatedAt.Format(time.RFC3339),
		}
	}

	data, err := json.Marshal(out)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal history: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func configOut(cfg *models.ReviewConfig) map[string]any {
	return map[string]any{
		"project_id":          cfg.ProjectID,
		"enabled_guidelines":  cfg.EnabledGuidelines,
		"enabled_dimensions":  cfg.EnabledDimensions,
		"custom_instructions": cfg.CustomInstructions,
		"model":               cfg.Model,
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// resolveProject tries to find a project by name first, then by ID.
func (s *Server) resolveProject(ctx context.Context, name string) (*models.Project, error) {
	if p, err := s.store.GetProjectByName(ctx, name); err == nil {
		return p, nil
	}
	if p, err := s.store.GetProject(ctx, name); err == nil {
		return p, nil
	}
	return nil, fmt.Errorf("project not found: %s", name)
}

// findIssue finds an issue by full ID or unique prefix.
func (s *Server) findIssue(ctx context.Context, id string) (*models.Issue, error) {
	if issue, err := s.store.GetIssue(ctx, id); err == nil {
		return issue, nil
	}

	upper := strings.ToUpper(id)
	issues, err := s.store.ListIssues(ctx, store.IssueListFilter{})
	if err != nil {
		return nil, err
	}

	var matches []*models.Issue
	for _, issue := range issues {
		if strings.HasPrefix(issue.ID, upper) {
			matches = append(matches, issue)
		}
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("issue not found: %s", id)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("ambiguous issue ID %s: matches %d issues", id, len(matches))
	}
}
