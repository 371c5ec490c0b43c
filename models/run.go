package models

import "time"

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// ScrapeRun records one reconciliation cycle for a source.
type ScrapeRun struct {
	ID              int64      `json:"id" db:"id"`
	RunUID          string     `json:"run_uid" db:"run_uid"`
	SourceID        string     `json:"source_id" db:"source_id"`
	StartedAt       time.Time  `json:"started_at" db:"started_at"`
	FinishedAt      *time.Time `json:"finished_at" db:"finished_at"`
	Status          RunStatus  `json:"status" db:"status"`
	ListingsFound   int        `json:"listings_found" db:"listings_found"`
	ListingsNew     int        `json:"listings_new" db:"listings_new"`
	ListingsUpdated int        `json:"listings_updated" db:"listings_updated"`
	RecordsDropped  int        `json:"records_dropped" db:"records_dropped"`
	ErrorsCount     int        `json:"errors_count" db:"errors_count"`
}
