// Package api exposes the issue ledger and review orchestration over REST.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/joescharf/rv/internal/models"
	"github.com/joescharf/rv/internal/review"
	"github.com/joescharf/rv/internal/store"
)

// Server provides the REST API handlers.
type Server struct {
	store        store.Store
	orch         *review.Orchestrator
	defaultModel string
	log          *slog.Logger
}

// NewServer creates a new API server. The orchestrator may be nil when no
// API key is configured; review runs then return 503.
func NewServer(s store.Store, orch *review.Orchestrator, defaultModel string, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{store: s, orch: orch, defaultModel: defaultModel, log: log}
}

// Router returns an http.Handler for the API routes.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/projects", s.listProjects)
	mux.HandleFunc("POST /api/v1/projects", s.createProject)
	mux.HandleFunc("GET /api/v1/projects/{id}", s.getProject)
	mux.HandleFunc("DELETE /api/v1/projects/{id}", s.deleteProject)

	mux.HandleFunc("GET /api/v1/projects/{id}/issues", s.listProjectIssues)
	mux.HandleFunc("POST /api/v1/projects/{id}/issues", s.createProjectIssue)
	mux.HandleFunc("GET /api/v1/projects/{id}/config", s.getReviewConfig)
	mux.HandleFunc("PUT /api/v1/projects/{id}/config", s.putReviewConfig)
	mux.HandleFunc("GET /api/v1/projects/{id}/history", s.listHistory)
	mux.HandleFunc("POST /api/v1/projects/{id}/review", s.runReview)

	mux.HandleFunc("GET /api/v1/issues/{id}", s.getIssue)
	mux.HandleFunc("POST /api/v1/issues/{id}/resolve", s.resolveIssue)
	mux.HandleFunc("POST /api/v1/issues/{id}/dismiss", s.dismissIssue)

	mux.HandleFunc("GET /api/v1/healthz", s.healthz)

	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// storeError maps "not found" store errors to 404, everything else to 500.
func storeError(w http.ResponseWriter, err error) {
	if strings.Contains(err.Error(), "not found") {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

// --- Projects ---

func (s *Server) listProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.store.ListProjects(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

func (s *Server) getProject(w http.ResponseWriter, r *http.Request) {
	project, err := s.store.GetProject(r.Context(), r.PathValue("id"))
	if err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (s *Server) createProject(w http.ResponseWriter, r *http.Request) {
	var p models.Project
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if p.Name == "" || p.Path == "" {
		writeError(w, http.StatusBadRequest, "name and path are required")
		return
	}
	if err := s.store.CreateProject(r.Context(), &p); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) deleteProject(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteProject(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Issues ---

func (s *Server) listProjectIssues(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	issues, err := s.store.ListIssues(r.Context(), store.IssueListFilter{
		ProjectID: r.PathValue("id"),
		FilePath:  q.Get("file"),
		Status:    models.IssueStatus(q.Get("status")),
		Severity:  models.Severity(q.Get("severity")),
		Category:  models.Category(q.Get("category")),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, issues)
}

func (s *Server) createProjectIssue(w http.ResponseWriter, r *http.Request) {
	var issue models.Issue
	if err := json.NewDecoder(r.Body).Decode(&issue); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if issue.FilePath == "" || issue.Title == "" {
		writeError(w, http.StatusBadRequest, "filePath and title are required")
		return
	}

	issue.ProjectID = r.PathValue("id")
	issue.Status = models.IssueStatusActive
	issue.IsManual = true
	issue.WasResolvedBefore = false
	issue.ResolutionCount = 0

	if err := s.store.CreateIssue(r.Context(), &issue); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, issue)
}

func (s *Server) getIssue(w http.ResponseWriter, r *http.Request) {
	issue, err := s.store.GetIssue(r.Context(), r.PathValue("id"))
	if err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, issue)
}

func (s *Server) resolveIssue(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ResolvedBy string `json:"resolvedBy"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	id := r.PathValue("id")
	if err := s.store.ResolveIssue(r.Context(), id, body.ResolvedBy); err != nil {
		storeError(w, err)
		return
	}
	issue, err := s.store.GetIssue(r.Context(), id)
	if err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, issue)
}

func (s *Server) dismissIssue(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.store.DismissIssue(r.Context(), id); err != nil {
		storeError(w, err)
		return
	}
	issue, err := s.store.GetIssue(r.Context(), id)
	if err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, issue)
}

// --- Review config ---

func (s *Server) getReviewConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.store.GetReviewConfig(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if cfg == nil {
		writeError(w, http.StatusNotFound, "no review config for project")
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) putReviewConfig(w http.ResponseWriter, r *http.Request) {
	var cfg models.ReviewConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	cfg.ProjectID = r.PathValue("id")
	if err := s.store.SaveReviewConfig(r.Context(), &cfg); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// --- Review runs ---

func (s *Server) runReview(w http.ResponseWriter, r *http.Request) {
	if s.orch == nil {
		writeError(w, http.StatusServiceUnavailable, "review orchestration not configured (missing API key)")
		return
	}

	var body struct {
		TriggeredBy string `json:"triggeredBy"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	projectID := r.PathValue("id")
	cfg, err := s.store.GetReviewConfig(r.Context(), projectID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if cfg == nil {
		cfg = &models.ReviewConfig{ProjectID: projectID, Model: s.defaultModel}
	}
	if cfg.Model == "" {
		cfg.Model = s.defaultModel
	}

	result := s.orch.Run(r.Context(), projectID, body.TriggeredBy, cfg)
	if !result.Success {
		s.log.Warn("review run failed", "project", projectID, "error", result.Error)
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) listHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := s.store.ListReviewHistory(r.Context(), r.PathValue("id"), 0)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
