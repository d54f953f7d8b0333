// Package runs tracks pipeline run state in memory.
//
// A run advances through the same stages as the processing pipeline:
// received -> normalized -> transcribed -> categorized -> placed -> done.
// State lives in memory only and is lost on restart; nothing here persists
// categorization history anywhere.
package runs

import (
	"time"
)

// Stage identifies how far a pipeline run has progressed.
type Stage string

const (
	StageReceived    Stage = "received"
	StageNormalized  Stage = "normalized"
	StageTranscribed Stage = "transcribed"
	StageCategorized Stage = "categorized"
	StagePlaced      Stage = "placed"
	StageDone        Stage = "done"
)

// Status is the terminal disposition of a run.
type Status string

const (
	// StatusRunning indicates the run is still in flight.
	StatusRunning Status = "running"
	// StatusCompleted indicates the receipt was archived successfully.
	StatusCompleted Status = "completed"
	// StatusRejected indicates a clean client-facing rejection (no text found).
	StatusRejected Status = "rejected"
	// StatusFailed indicates a service failure ended the run.
	StatusFailed Status = "failed"
)

// Run records a single pipeline execution.
type Run struct {
	// RunID is the unique identifier for this run.
	RunID string `json:"run_id"`

	// Filename is the client-supplied name of the uploaded file.
	Filename string `json:"filename"`

	// Stage is the last stage the run reached.
	Stage Stage `json:"stage"`

	// Status is the current disposition of the run.
	Status Status `json:"status"`

	// Category is the assigned label, once categorization completed.
	Category string `json:"category,omitempty"`

	// Quarter is the fiscal quarter folder the file was placed under.
	Quarter string `json:"quarter,omitempty"`

	// DriveFileID is the archived file's identifier, on success.
	DriveFileID string `json:"drive_file_id,omitempty"`

	// Error contains failure details if the run failed.
	Error string `json:"error,omitempty"`

	// CreatedAt is when the upload was received.
	CreatedAt time.Time `json:"created_at"`

	// FinishedAt is when the run reached a terminal status.
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Filter defines filtering criteria for listing runs.
type Filter struct {
	// Status filters runs by status.
	Status Status

	// Limit limits the number of results.
	Limit int

	// Offset for pagination.
	Offset int
}
