package models

import "time"

// Project represents a tracked repository that reviews run against.
type Project struct {
	ID          string
	Name        string
	Path        string
	Description string
	Language    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
