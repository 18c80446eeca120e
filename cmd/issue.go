package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/spf13/cobra"

	"github.com/joescharf/rv/internal/models"
	"github.com/joescharf/rv/internal/output"
	"github.com/joescharf/rv/internal/store"
)

var (
	issueProject  string
	issueFile     string
	issueStatus   string
	issueSeverity string
	issueCategory string

	issueAddLine        int
	issueAddSeverity    string
	issueAddCategory    string
	issueAddRule        string
	issueAddDescription string
	issueAddSuggestion  string

	issueResolvedBy string
)

var issueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Inspect and manage the issue ledger",
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueListRun(cmd.Context())
	},
}

var issueListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List issues",
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueListRun(cmd.Context())
	},
}

var issueShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show full detail for one issue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueShowRun(cmd.Context(), args[0])
	},
}

var issueAddCmd = &cobra.Command{
	Use:   "add <file> <title>",
	Short: "Record a manual issue",
	Long: `Record an issue found by a human reviewer. Manual issues live in the
same ledger as automated findings and go through the same resolve and
reappearance lifecycle.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueAddRun(cmd.Context(), args[0], args[1])
	},
}

var issueResolveCmd = &cobra.Command{
	Use:   "resolve <id>",
	Short: "Mark an active issue resolved",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueResolveRun(cmd.Context(), args[0])
	},
}

var issueDismissCmd = &cobra.Command{
	Use:   "dismiss <id>",
	Short: "Dismiss an active issue as not worth fixing",
	Long: `Dismiss an active issue. Dismissed issues are suppressed from future
review directives but do not count as resolutions: if the finding comes
back it is treated as new, not as a reappearance.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueDismissRun(cmd.Context(), args[0])
	},
}

func init() {
	issueCmd.PersistentFlags().StringVarP(&issueProject, "project", "p", "", "Project name (default: project at cwd)")

	issueListCmd.Flags().StringVar(&issueFile, "file", "", "Filter by file path")
	issueListCmd.Flags().StringVar(&issueStatus, "status", "", "Filter by status (active, resolved, dismissed)")
	issueListCmd.Flags().StringVar(&issueSeverity, "severity", "", "Filter by severity (error, warning, info)")
	issueListCmd.Flags().StringVar(&issueCategory, "category", "", "Filter by category")

	issueAddCmd.Flags().IntVar(&issueAddLine, "line", 0, "Line number")
	issueAddCmd.Flags().StringVar(&issueAddSeverity, "severity", "warning", "Severity (error, warning, info)")
	issueAddCmd.Flags().StringVar(&issueAddCategory, "category", "linting", "Category")
	issueAddCmd.Flags().StringVar(&issueAddRule, "rule", "MANUAL", "Rule identifier")
	issueAddCmd.Flags().StringVar(&issueAddDescription, "description", "", "Longer description")
	issueAddCmd.Flags().StringVar(&issueAddSuggestion, "suggestion", "", "Suggested fix")

	issueResolveCmd.Flags().StringVar(&issueResolvedBy, "by", "", "Who resolved it (default: current user)")

	issueCmd.AddCommand(issueListCmd, issueShowCmd, issueAddCmd, issueResolveCmd, issueDismissCmd)
	rootCmd.AddCommand(issueCmd)
}

func issueListRun(ctx context.Context) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	project, err := resolveProject(ctx, s, issueProject)
	if err != nil {
		return err
	}

	issues, err := s.ListIssues(ctx, store.IssueListFilter{
		ProjectID: project.ID,
		FilePath:  issueFile,
		Status:    models.IssueStatus(issueStatus),
		Severity:  models.Severity(issueSeverity),
		Category:  models.Category(issueCategory),
	})
	if err != nil {
		return err
	}
	if len(issues) == 0 {
		ui.Info("No issues found")
		return nil
	}

	table := ui.Table([]string{"ID", "Status", "Sev", "File", "Line", "Rule", "Title"})
	for _, i := range issues {
		table.Append([]string{
			shortID(i.ID),
			output.StatusColor(string(i.Status)),
			output.SeverityColor(string(i.Severity)),
			i.FilePath,
			fmt.Sprintf("%d", i.Line),
			i.RuleID,
			i.Title,
		})
	}
	return table.Render()
}

func issueShowRun(ctx context.Context, ref string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	issue, err := resolveIssueRef(ctx, s, ref)
	if err != nil {
		return err
	}

	fmt.Printf("%s %s\n\n", output.Cyan(issue.ID), issue.Title)
	fmt.Printf("  Status:     %s\n", output.StatusColor(string(issue.Status)))
	fmt.Printf("  Severity:   %s\n", output.SeverityColor(string(issue.Severity)))
	fmt.Printf("  Category:   %s\n", issue.Category)
	fmt.Printf("  Location:   %s:%d\n", issue.FilePath, issue.Line)
	fmt.Printf("  Rule:       %s\n", issue.RuleID)
	if issue.IsManual {
		fmt.Printf("  Source:     manual\n")
	}
	if issue.WasResolvedBefore {
		fmt.Printf("  Reappeared: yes (resolved %d time(s) before)\n", issue.ResolutionCount)
	}
	fmt.Printf("  First seen: %s\n", issue.FirstDetectedAt.Format("2006-01-02 15:04"))
	fmt.Printf("  Last seen:  %s\n", issue.LastSeenAt.Format("2006-01-02 15:04"))
	if issue.ResolvedAt != nil {
		fmt.Printf("  Resolved:   %s by %s\n", issue.ResolvedAt.Format("2006-01-02 15:04"), issue.ResolvedBy)
	}
	if issue.Description != "" {
		fmt.Printf("\n%s\n", issue.Description)
	}
	if issue.Suggestion != "" {
		fmt.Printf("\nSuggestion: %s\n", issue.Suggestion)
	}
	if issue.Snippet != "" {
		fmt.Printf("\n%s\n", issue.Snippet)
	}
	if issue.FixedCode != "" {
		fmt.Printf("\nProposed fix:\n%s\n", issue.FixedCode)
	}
	return nil
}

func issueAddRun(ctx context.Context, filePath, title string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	project, err := resolveProject(ctx, s, issueProject)
	if err != nil {
		return err
	}

	issue := &models.Issue{
		ProjectID:   project.ID,
		FilePath:    filePath,
		Line:        issueAddLine,
		RuleID:      issueAddRule,
		Title:       title,
		Description: issueAddDescription,
		Suggestion:  issueAddSuggestion,
		Severity:    models.Severity(issueAddSeverity),
		Category:    models.Category(issueAddCategory),
		Status:      models.IssueStatusActive,
		IsManual:    true,
	}
	if err := s.CreateIssue(ctx, issue); err != nil {
		return err
	}

	ui.Success("Recorded issue %s at %s:%d", shortID(issue.ID), filePath, issueAddLine)
	return nil
}

func issueResolveRun(ctx context.Context, ref string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	issue, err := resolveIssueRef(ctx, s, ref)
	if err != nil {
		return err
	}

	by := issueResolvedBy
	if by == "" {
		by = currentUser()
	}
	if err := s.ResolveIssue(ctx, issue.ID, by); err != nil {
		return err
	}

	ui.Success("Resolved %s (%s)", shortID(issue.ID), issue.Title)
	return nil
}

func issueDismissRun(ctx context.Context, ref string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	issue, err := resolveIssueRef(ctx, s, ref)
	if err != nil {
		return err
	}

	if err := s.DismissIssue(ctx, issue.ID); err != nil {
		return err
	}

	ui.Success("Dismissed %s (%s)", shortID(issue.ID), issue.Title)
	return nil
}

// resolveIssueRef accepts a full issue ID or a unique prefix.
func resolveIssueRef(ctx context.Context, s store.Store, ref string) (*models.Issue, error) {
	if len(ref) == ulid.EncodedSize {
		return s.GetIssue(ctx, ref)
	}

	all, err := s.ListIssues(ctx, store.IssueListFilter{})
	if err != nil {
		return nil, err
	}

	upper := strings.ToUpper(ref)
	var matches []*models.Issue
	for _, i := range all {
		if strings.HasPrefix(i.ID, upper) {
			matches = append(matches, i)
		}
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("no issue matches %q", ref)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("issue id %q is ambiguous (%d matches)", ref, len(matches))
	}
}
