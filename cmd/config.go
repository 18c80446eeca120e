package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/rv/internal/catalog"
	"github.com/joescharf/rv/internal/models"
)

var (
	configProject      string
	configGuidelines   []string
	configDimensions   []string
	configInstructions string
	configModel        string
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change a project's review configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun(cmd.Context())
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the project's review configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun(cmd.Context())
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Set review configuration fields for a project",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configSetRun(cmd.Context())
	},
}

var configCatalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "List available guideline sets and review dimensions",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configCatalogRun()
	},
}

func init() {
	configCmd.PersistentFlags().StringVarP(&configProject, "project", "p", "", "Project name (default: project at cwd)")

	configSetCmd.Flags().StringSliceVar(&configGuidelines, "guidelines", nil, "Guideline sets to enable")
	configSetCmd.Flags().StringSliceVar(&configDimensions, "dimensions", nil, "Review dimensions to enable")
	configSetCmd.Flags().StringVar(&configInstructions, "instructions", "", "Free-form project instructions")
	configSetCmd.Flags().StringVar(&configModel, "model", "", "Model for this project's reviews")

	configCmd.AddCommand(configShowCmd, configSetCmd, configCatalogCmd)
	rootCmd.AddCommand(configCmd)
}

func configShowRun(ctx context.Context) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	project, err := resolveProject(ctx, s, configProject)
	if err != nil {
		return err
	}

	cfg, err := s.GetReviewConfig(ctx, project.ID)
	if err != nil {
		return err
	}
	if cfg == nil {
		ui.Info("No review config saved for %s; the next review run saves one", project.Name)
		return nil
	}

	model := cfg.Model
	if model == "" {
		model = viper.GetString("anthropic.model") + " (default)"
	}
	fmt.Printf("Project:      %s\n", project.Name)
	fmt.Printf("Guidelines:   %s\n", orNone(strings.Join(cfg.EnabledGuidelines, ", ")))
	fmt.Printf("Dimensions:   %s\n", orNone(strings.Join(cfg.EnabledDimensions, ", ")))
	fmt.Printf("Model:        %s\n", model)
	fmt.Printf("Updated:      %s\n", cfg.UpdatedAt.Format("2006-01-02 15:04"))
	if strings.TrimSpace(cfg.CustomInstructions) != "" {
		fmt.Printf("\nInstructions:\n%s\n", cfg.CustomInstructions)
	}
	return nil
}

func configSetRun(ctx context.Context) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	project, err := resolveProject(ctx, s, configProject)
	if err != nil {
		return err
	}

	cfg, err := s.GetReviewConfig(ctx, project.ID)
	if err != nil {
		return err
	}
	if cfg == nil {
		cfg = &models.ReviewConfig{ProjectID: project.ID}
	}

	changed := false
	if configGuidelines != nil {
		for _, id := range configGuidelines {
			if _, ok := catalog.Guideline(id); !ok {
				return fmt.Errorf("unknown guideline %q (available: %s)", id, strings.Join(catalog.GuidelineIDs(), ", "))
			}
		}
		cfg.EnabledGuidelines = configGuidelines
		changed = true
	}
	if configDimensions != nil {
		for _, id := range configDimensions {
			if _, ok := catalog.Dimension(id); !ok {
				return fmt.Errorf("unknown dimension %q (available: %s)", id, strings.Join(catalog.DimensionIDs(), ", "))
			}
		}
		cfg.EnabledDimensions = configDimensions
		changed = true
	}
	if configInstructions != "" {
		cfg.CustomInstructions = configInstructions
		changed = true
	}
	if configModel != "" {
		cfg.Model = configModel
		changed = true
	}
	if !changed {
		return fmt.Errorf("nothing to set; pass --guidelines, --dimensions, --instructions, or --model")
	}

	if err := s.SaveReviewConfig(ctx, cfg); err != nil {
		return err
	}
	ui.Success("Saved review config for %s", project.Name)
	return nil
}

func configCatalogRun() error {
	fmt.Println("Guideline sets:")
	for _, id := range catalog.GuidelineIDs() {
		entry, _ := catalog.Guideline(id)
		fmt.Printf("  %-14s %s\n", id, entry.Title)
	}
	fmt.Println("\nReview dimensions:")
	for _, id := range catalog.DimensionIDs() {
		entry, _ := catalog.Dimension(id)
		fmt.Printf("  %-14s %s\n", id, entry.Title)
	}
	return nil
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
