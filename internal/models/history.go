package models

import "time"

// ReviewHistoryEntry is an immutable summary of one review run. Entries are
// append-only; nothing updates or deletes them.
type ReviewHistoryEntry struct {
	ID               string
	ProjectID        string
	FilesReviewed    []string
	FilesCount       int
	TotalIssues      int
	NewIssues        int
	ReappearedIssues int
	Duration         time.Duration
	Model            string
	TriggeredBy      string
	CreatedAt        time.Time
}
