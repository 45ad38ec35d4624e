// Package api exposes the analyzer operations over HTTP, with an in-memory
// run history and a server-sent event stream for clients that watch analyses
// in progress.
package api

import "time"

// RunStatus represents the state of an analysis run.
type RunStatus string

const (
	StatusPending   RunStatus = "pending"
	StatusRunning   RunStatus = "running"
	StatusCompleted RunStatus = "completed"
	StatusFailed    RunStatus = "failed"
)

// AnalysisRun records one analysis request end to end.
type AnalysisRun struct {
	ID            string     `json:"id"`
	RootPath      string     `json:"root_path"`
	Status        RunStatus  `json:"status"`
	StartedAt     time.Time  `json:"started_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	Error         string     `json:"error,omitempty"`
	Modules       int        `json:"modules"`
	Relationships int        `json:"relationships"`
	Dependencies  int        `json:"dependencies"`
	Cycles        int        `json:"cycles"`
	UnusedModules int        `json:"unused_modules"`
}

// Stats holds aggregate statistics over the run history.
type Stats struct {
	TotalRuns      int     `json:"total_runs"`
	ActiveRuns     int     `json:"active_runs"`
	CompletedRuns  int     `json:"completed_runs"`
	FailedRuns     int     `json:"failed_runs"`
	TotalModules   int     `json:"total_modules"`
	AvgDuration    float64 `json:"avg_duration_seconds"`
	SuccessRate    float64 `json:"success_rate"`
	LastAnalyzedAt string  `json:"last_analyzed_at,omitempty"`
}

// Event is a real-time stream event.
type Event struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	RunID     string    `json:"run_id,omitempty"`
	Data      any       `json:"data,omitempty"`
}
