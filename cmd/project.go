package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/joescharf/rv/internal/detect"
	"github.com/joescharf/rv/internal/models"
	"github.com/joescharf/rv/internal/store"
)

var (
	projectDesc     string
	projectLanguage string
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage tracked projects",
	RunE: func(cmd *cobra.Command, args []string) error {
		return projectListRun()
	},
}

var projectAddCmd = &cobra.Command{
	Use:   "add <name> [path]",
	Short: "Track a project",
	Long:  "Track a project for review. Without [path], uses the current directory.",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := ""
		if len(args) > 1 {
			path = args[1]
		}
		return projectAddRun(args[0], path)
	},
}

var projectListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List tracked projects",
	RunE: func(cmd *cobra.Command, args []string) error {
		return projectListRun()
	},
}

var projectRemoveCmd = &cobra.Command{
	Use:     "remove <name>",
	Aliases: []string{"rm"},
	Short:   "Stop tracking a project (removes its issues and history)",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return projectRemoveRun(args[0])
	},
}

func init() {
	projectAddCmd.Flags().StringVar(&projectDesc, "description", "", "Project description")
	projectAddCmd.Flags().StringVar(&projectLanguage, "language", "", "Primary language")

	projectCmd.AddCommand(projectAddCmd, projectListCmd, projectRemoveCmd)
	rootCmd.AddCommand(projectCmd)
}

func projectAddRun(name, path string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	if path == "" {
		path, err = os.Getwd()
		if err != nil {
			return fmt.Errorf("get working directory: %w", err)
		}
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}

	if projectLanguage == "" {
		projectLanguage = detect.Language(abs)
	}

	p := &models.Project{
		Name:        name,
		Path:        abs,
		Description: projectDesc,
		Language:    projectLanguage,
	}
	if err := s.CreateProject(ctx, p); err != nil {
		return err
	}

	ui.Success("Tracking project %s at %s", p.Name, p.Path)
	return nil
}

func projectListRun() error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	projects, err := s.ListProjects(ctx)
	if err != nil {
		return err
	}
	if len(projects) == 0 {
		ui.Info("No projects tracked. Use 'rv project add <name>' to start.")
		return nil
	}

	table := ui.Table([]string{"Name", "Path", "Language", "Active Issues"})
	for _, p := range projects {
		active, err := s.FindActiveIssues(ctx, p.ID)
		if err != nil {
			return err
		}
		table.Append([]string{p.Name, p.Path, p.Language, fmt.Sprintf("%d", len(active))})
	}
	return table.Render()
}

func projectRemoveRun(name string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	p, err := s.GetProjectByName(ctx, name)
	if err != nil {
		return err
	}
	if err := s.DeleteProject(ctx, p.ID); err != nil {
		return err
	}

	ui.Success("Removed project %s", name)
	return nil
}

// resolveProject finds a project by name, falling back to matching the
// current working directory against tracked project paths.
func resolveProject(ctx context.Context, s store.Store, ref string) (*models.Project, error) {
	if ref != "" {
		return s.GetProjectByName(ctx, ref)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("get working directory: %w", err)
	}

	projects, err := s.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range projects {
		if p.Path == cwd {
			return p, nil
		}
	}
	return nil, fmt.Errorf("no project matches %s; pass a project name or run 'rv project add'", cwd)
}
