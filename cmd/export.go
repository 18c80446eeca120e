package cmd

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joescharf/rv/internal/store"
)

var (
	exportFormat  string
	exportType    string
	exportProject string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export data as JSON, CSV, or Markdown",
	Long:  "Export projects, issues, or review history in various formats.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return exportRun(cmd.Context())
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "json", "Output format: json, csv, markdown")
	exportCmd.Flags().StringVar(&exportType, "type", "issues", "Data type: projects, issues, history")
	exportCmd.Flags().StringVarP(&exportProject, "project", "p", "", "Limit to one project (issues and history)")
	rootCmd.AddCommand(exportCmd)
}

func exportRun(ctx context.Context) error {
	s, err := getStore()
	if err != nil {
		return err
	}

	projectID := ""
	if exportProject != "" {
		p, err := s.GetProjectByName(ctx, exportProject)
		if err != nil {
			return err
		}
		projectID = p.ID
	}

	switch exportType {
	case "projects":
		return exportProjects(ctx, s)
	case "issues":
		return exportIssues(ctx, s, projectID)
	case "history":
		return exportHistory(ctx, s, projectID)
	default:
		return fmt.Errorf("unknown export type: %s (use: projects, issues, history)", exportType)
	}
}

func exportProjects(ctx context.Context, s store.Store) error {
	projects, err := s.ListProjects(ctx)
	if err != nil {
		return err
	}

	switch exportFormat {
	case "json":
		enc := json.NewEncoder(ui.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(projects)
	case "csv":
		w := csv.NewWriter(ui.Out)
		w.Write([]string{"ID", "Name", "Path", "Language", "Created"})
		for _, p := range projects {
			w.Write([]string{p.ID, p.Name, p.Path, p.Language, p.CreatedAt.Format("2006-01-02")})
		}
		w.Flush()
		return w.Error()
	case "markdown":
		fmt.Fprintln(ui.Out, "# Projects")
		fmt.Fprintln(ui.Out)
		fmt.Fprintln(ui.Out, "| Name | Path | Language |")
		fmt.Fprintln(ui.Out, "|------|------|----------|")
		for _, p := range projects {
			fmt.Fprintf(ui.Out, "| %s | %s | %s |\n", p.Name, p.Path, p.Language)
		}
		return nil
	default:
		return fmt.Errorf("unknown format: %s", exportFormat)
	}
}

func exportIssues(ctx context.Context, s store.Store, projectID string) error {
	issues, err := s.ListIssues(ctx, store.IssueListFilter{ProjectID: projectID})
	if err != nil {
		return err
	}

	switch exportFormat {
	case "json":
		enc := json.NewEncoder(ui.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(issues)
	case "csv":
		w := csv.NewWriter(ui.Out)
		w.Write([]string{"ID", "ProjectID", "File", "Line", "Rule", "Title", "Status", "Severity", "Category", "Reappeared", "Resolutions", "Created"})
		for _, i := range issues {
			reappeared := "no"
			if i.WasResolvedBefore {
				reappeared = "yes"
			}
			w.Write([]string{i.ID, i.ProjectID, i.FilePath, fmt.Sprintf("%d", i.Line), i.RuleID, i.Title,
				string(i.Status), string(i.Severity), string(i.Category),
				reappeared, fmt.Sprintf("%d", i.ResolutionCount), i.CreatedAt.Format("2006-01-02")})
		}
		w.Flush()
		return w.Error()
	case "markdown":
		fmt.Fprintln(ui.Out, "# Issues")
		fmt.Fprintln(ui.Out)
		fmt.Fprintln(ui.Out, "| File | Line | Rule | Title | Status | Severity |")
		fmt.Fprintln(ui.Out, "|------|------|------|-------|--------|----------|")
		for _, i := range issues {
			fmt.Fprintf(ui.Out, "| %s | %d | %s | %s | %s | %s |\n",
				i.FilePath, i.Line, i.RuleID, i.Title, i.Status, i.Severity)
		}
		return nil
	default:
		return fmt.Errorf("unknown format: %s", exportFormat)
	}
}

func exportHistory(ctx context.Context, s store.Store, projectID string) error {
	if projectID == "" {
		return fmt.Errorf("history export requires --project")
	}
	entries, err := s.ListReviewHistory(ctx, projectID, 0)
	if err != nil {
		return err
	}

	switch exportFormat {
	case "json":
		enc := json.NewEncoder(ui.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	case "csv":
		w := csv.NewWriter(ui.Out)
		w.Write([]string{"ID", "When", "Files", "Issues", "New", "Reappeared", "DurationMS", "Model", "By"})
		for _, e := range entries {
			w.Write([]string{e.ID, e.CreatedAt.Format("2006-01-02T15:04:05Z"),
				fmt.Sprintf("%d", e.FilesCount), fmt.Sprintf("%d", e.TotalIssues),
				fmt.Sprintf("%d", e.NewIssues), fmt.Sprintf("%d", e.ReappearedIssues),
				fmt.Sprintf("%d", e.Duration.Milliseconds()), e.Model, e.TriggeredBy})
		}
		w.Flush()
		return w.Error()
	case "markdown":
		fmt.Fprintln(ui.Out, "# Review History")
		fmt.Fprintln(ui.Out)
		fmt.Fprintln(ui.Out, "| When | Files | Issues | New | Reappeared | Model |")
		fmt.Fprintln(ui.Out, "|------|-------|--------|-----|------------|-------|")
		for _, e := range entries {
			fmt.Fprintf(ui.Out, "| %s | %d | %d | %d | %d | %s |\n",
				e.CreatedAt.Format("2006-01-02 15:04"), e.FilesCount, e.TotalIssues,
				e.NewIssues, e.ReappearedIssues, e.Model)
		}
		return nil
	default:
		return fmt.Errorf("unknown format: %s", exportFormat)
	}
}
