package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/user"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/rv/internal/analysis"
	"github.com/joescharf/rv/internal/catalog"
	"github.com/joescharf/rv/internal/files"
	"github.com/joescharf/rv/internal/models"
	"github.com/joescharf/rv/internal/output"
	"github.com/joescharf/rv/internal/review"
)

var (
	reviewProject      string
	reviewGuidelines   []string
	reviewDimensions   []string
	reviewInstructions string
	reviewModel        string
	reviewJSON         bool
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Review modified files and reconcile findings into the ledger",
	Long: `Review runs the analysis capability over every modified file in the
project working tree. Findings are matched against previously resolved
issues: a finding at the same file, line, and rule as a resolved issue
is recorded as a reappearance, not a new issue.

Guidelines, dimensions, and instructions given as flags are saved as
the project's review config and reused on later runs.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return reviewRun(cmd.Context())
	},
}

func init() {
	reviewCmd.Flags().StringVarP(&reviewProject, "project", "p", "", "Project name (default: project at cwd)")
	reviewCmd.Flags().StringSliceVar(&reviewGuidelines, "guidelines", nil,
		fmt.Sprintf("Guideline sets to apply (%s)", strings.Join(catalog.GuidelineIDs(), ", ")))
	reviewCmd.Flags().StringSliceVar(&reviewDimensions, "dimensions", nil,
		fmt.Sprintf("Review dimensions to focus on (%s)", strings.Join(catalog.DimensionIDs(), ", ")))
	reviewCmd.Flags().StringVar(&reviewInstructions, "instructions", "", "Free-form project instructions for the reviewer")
	reviewCmd.Flags().StringVar(&reviewModel, "model", "", "Model override for this run")
	reviewCmd.Flags().BoolVar(&reviewJSON, "json", false, "Emit the run result as JSON")

	rootCmd.AddCommand(reviewCmd)
}

func reviewRun(ctx context.Context) error {
	s, err := getStore()
	if err != nil {
		return err
	}

	project, err := resolveProject(ctx, s, reviewProject)
	if err != nil {
		return err
	}

	cfg, err := effectiveConfig(ctx, project.ID)
	if err != nil {
		return err
	}

	apiKey := viper.GetString("anthropic.api_key")
	if apiKey == "" {
		return fmt.Errorf("no API key configured; set anthropic.api_key or RV_ANTHROPIC_API_KEY")
	}
	analyzer := analysis.NewClient(apiKey, cfg.Model)

	logLevel := slog.LevelWarn
	if verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	orch := review.NewOrchestrator(s, analyzer, files.NewGitSource(), logger, review.Options{
		Concurrency: viper.GetInt("review.concurrency"),
		Timeout:     viper.GetDuration("review.timeout"),
	})

	ui.Info("Reviewing %s with %s", project.Name, cfg.Model)
	result := orch.Run(ctx, project.ID, currentUser(), cfg)

	if reviewJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	if !result.Success {
		ui.Error("Review failed: %s", result.Error)
		return fmt.Errorf("review failed")
	}

	meta := result.Metadata
	if meta.FilesCount == 0 {
		ui.Success("No modified files to review")
		return nil
	}

	ui.Success("Reviewed %d file(s) in %s: %d issue(s), %d new, %d reappeared",
		meta.FilesCount, meta.Duration.Round(timeRound), meta.TotalIssues, meta.NewIssues, meta.ReappearedIssues)

	if len(result.Issues) > 0 {
		fmt.Println()
		printIssueTable(result.Issues)
	}
	return nil
}

// effectiveConfig merges run flags over the stored project config, falling
// back to defaults for anything still unset.
func effectiveConfig(ctx context.Context, projectID string) (*models.ReviewConfig, error) {
	s, err := getStore()
	if err != nil {
		return nil, err
	}

	cfg, err := s.GetReviewConfig(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = &models.ReviewConfig{ProjectID: projectID}
	}

	if reviewGuidelines != nil {
		cfg.EnabledGuidelines = reviewGuidelines
	}
	if reviewDimensions != nil {
		cfg.EnabledDimensions = reviewDimensions
	}
	if reviewInstructions != "" {
		cfg.CustomInstructions = reviewInstructions
	}
	if reviewModel != "" {
		cfg.Model = reviewModel
	}
	if cfg.Model == "" {
		cfg.Model = viper.GetString("anthropic.model")
	}

	for _, id := range cfg.EnabledGuidelines {
		if _, ok := catalog.Guideline(id); !ok {
			return nil, fmt.Errorf("unknown guideline %q (available: %s)", id, strings.Join(catalog.GuidelineIDs(), ", "))
		}
	}
	for _, id := range cfg.EnabledDimensions {
		if _, ok := catalog.Dimension(id); !ok {
			return nil, fmt.Errorf("unknown dimension %q (available: %s)", id, strings.Join(catalog.DimensionIDs(), ", "))
		}
	}
	return cfg, nil
}

func currentUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return os.Getenv("USER")
}

func printIssueTable(issues []*models.Issue) {
	table := ui.Table([]string{"ID", "File", "Line", "Sev", "Rule", "Title", "Seen"})
	for _, i := range issues {
		seen := "new"
		if i.WasResolvedBefore {
			seen = fmt.Sprintf("reappeared x%d", i.ResolutionCount)
		}
		table.Append([]string{
			shortID(i.ID),
			i.FilePath,
			fmt.Sprintf("%d", i.Line),
			output.SeverityColor(string(i.Severity)),
			i.RuleID,
			i.Title,
			seen,
		})
	}
	_ = table.Render()
}
