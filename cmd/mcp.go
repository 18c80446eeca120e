package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/rv/internal/analysis"
	"github.com/joescharf/rv/internal/files"
	"github.com/joescharf/rv/internal/mcp"
	"github.com/joescharf/rv/internal/review"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server for agent integration",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

This lets coding agents run reviews and work the issue ledger natively.
Configure with:

  {
    "mcpServers": {
      "rv": { "command": "rv", "args": ["mcp"] }
    }
  }

Available tools: rv_list_projects, rv_run_review, rv_list_issues,
rv_resolve_issue, rv_dismiss_issue, rv_get_config, rv_set_config,
rv_review_history`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := getStore()
		if err != nil {
			return err
		}

		// Stdout carries the protocol; log to stderr only.
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

		model := viper.GetString("anthropic.model")
		var orch *review.Orchestrator
		if apiKey := viper.GetString("anthropic.api_key"); apiKey != "" {
			analyzer := analysis.NewClient(apiKey, model)
			orch = review.NewOrchestrator(s, analyzer, files.NewGitSource(), logger, review.Options{
				Concurrency: viper.GetInt("review.concurrency"),
				Timeout:     viper.GetDuration("review.timeout"),
			})
		} else {
			logger.Warn("no API key configured; rv_run_review disabled")
		}

		return mcp.NewServer(s, orch, model).ServeStdio(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
