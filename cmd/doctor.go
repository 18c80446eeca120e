package cmd

import (
	"context"
	"os/exec"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/rv/internal/analysis"
	"github.com/joescharf/rv/internal/checkup"
)

var doctorProject string

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that rv can reach everything it needs",
	Long: `Doctor verifies the local setup: database, git, API credentials, and
the configured model. Checks fail closed; an unreachable API is
reported as unavailable, not assumed healthy.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return doctorRun(cmd.Context())
	},
}

func init() {
	doctorCmd.Flags().StringVarP(&doctorProject, "project", "p", "", "Also check a project's working tree")
	rootCmd.AddCommand(doctorCmd)
}

func doctorRun(ctx context.Context) error {
	ok := true

	if doctorProject != "" {
		projectOK, err := doctorProjectRun(ctx)
		if err != nil {
			return err
		}
		ok = ok && projectOK
	}

	if _, err := exec.LookPath("git"); err != nil {
		ui.Error("git: not found in PATH")
		ok = false
	} else {
		ui.Success("git: found")
	}

	if _, err := getStore(); err != nil {
		ui.Error("database: %v", err)
		ok = false
	} else {
		ui.Success("database: %s", viper.GetString("db_path"))
	}

	apiKey := viper.GetString("anthropic.api_key")
	model := viper.GetString("anthropic.model")
	if apiKey == "" {
		ui.Error("api key: not set (anthropic.api_key or RV_ANTHROPIC_API_KEY)")
		ui.Warning("skipping API checks")
		return doctorResult(false)
	}
	ui.Success("api key: set")

	client := analysis.NewClient(apiKey, model)

	cctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	if !client.CheckAvailability(cctx) {
		ui.Error("api: unreachable")
		return doctorResult(false)
	}
	ui.Success("api: reachable")

	if !client.CheckModelAvailability(cctx, model) {
		ui.Error("model %s: not available", model)
		return doctorResult(false)
	}
	ui.Success("model: %s", model)

	return doctorResult(ok)
}

// doctorProjectRun runs per-project readiness checks.
func doctorProjectRun(ctx context.Context) (bool, error) {
	s, err := getStore()
	if err != nil {
		return false, err
	}
	project, err := resolveProject(ctx, s, doctorProject)
	if err != nil {
		return false, err
	}

	ok := true
	for _, check := range checkup.NewChecker().Run(project.Path) {
		if check.Passed {
			ui.Success("%s: %s", check.Name, check.Detail)
		} else {
			ui.Error("%s: %s", check.Name, check.Detail)
			ok = false
		}
	}
	return ok, nil
}

func doctorResult(ok bool) error {
	if !ok {
		ui.Warning("Some checks failed; review runs may not work")
	}
	return nil
}
