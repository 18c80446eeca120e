package models

import "time"

// ReviewConfig holds the per-project review configuration. One row per
// project, last write wins.
type ReviewConfig struct {
	ProjectID          string
	EnabledGuidelines  []string
	EnabledDimensions  []string
	CustomInstructions string
	Model              string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}
