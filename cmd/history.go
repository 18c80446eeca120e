package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	historyProject string
	historyLimit   int
	historyFiles   bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show past review runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		return historyRun(cmd.Context())
	},
}

func init() {
	historyCmd.Flags().StringVarP(&historyProject, "project", "p", "", "Project name (default: project at cwd)")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Max runs to show")
	historyCmd.Flags().BoolVar(&historyFiles, "files", false, "Show the files each run reviewed")

	rootCmd.AddCommand(historyCmd)
}

func historyRun(ctx context.Context) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	project, err := resolveProject(ctx, s, historyProject)
	if err != nil {
		return err
	}

	entries, err := s.ListReviewHistory(ctx, project.ID, historyLimit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		ui.Info("No review runs recorded for %s", project.Name)
		return nil
	}

	table := ui.Table([]string{"When", "Files", "Issues", "New", "Reappeared", "Duration", "Model", "By"})
	for _, e := range entries {
		table.Append([]string{
			e.CreatedAt.Format("2006-01-02 15:04"),
			fmt.Sprintf("%d", e.FilesCount),
			fmt.Sprintf("%d", e.TotalIssues),
			fmt.Sprintf("%d", e.NewIssues),
			fmt.Sprintf("%d", e.ReappearedIssues),
			e.Duration.Round(timeRound).String(),
			e.Model,
			e.TriggeredBy,
		})
	}
	if err := table.Render(); err != nil {
		return err
	}

	if historyFiles {
		for _, e := range entries {
			fmt.Printf("\n%s:\n", e.CreatedAt.Format("2006-01-02 15:04"))
			if len(e.FilesReviewed) == 0 {
				fmt.Println("  (no files)")
				continue
			}
			fmt.Printf("  %s\n", strings.Join(e.FilesReviewed, "\n  "))
		}
	}
	return nil
}
