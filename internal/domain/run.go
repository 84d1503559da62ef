package domain

import (
	"time"

	"github.com/google/uuid"
)

// RunStatus is the lifecycle state of an ingestion run.
type RunStatus string

// Run statuses. A run row is finalized exactly once and never mutated
// afterward; "running" only appears for rows whose process died mid-run.
const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// IngestionRun is the durable audit record of one attempt to ingest a unit of
// work (a month-day, a month-day over a year range, or one bulk shard).
type IngestionRun struct {
	ID            uuid.UUID
	Unit          string
	Source        SourceType
	PapersFetched int
	PapersNew     int
	PapersUpdated int
	Status        RunStatus
	ErrorMessage  string
	Duration      time.Duration
	CreatedAt     time.Time
}

// FailedFetch records a retrieval attempt that exhausted all retries.
// Append-only; cleanup is a housekeeping concern outside the pipeline.
type FailedFetch struct {
	ID           int64
	Unit         string
	Source       SourceType
	ErrorMessage string
	CreatedAt    time.Time
}
