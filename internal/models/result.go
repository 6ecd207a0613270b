package models

import "time"

// ResultStatus is the terminal outcome of one task run.
type ResultStatus string

const (
	// ResultSuccess indicates the agent completed the task.
	ResultSuccess ResultStatus = "success"
	// ResultFailure indicates the agent failed or the run errored.
	ResultFailure ResultStatus = "failure"
)

// TaskResult records the outcome of executing a single task. It is created
// exactly once, when the run finishes, and never mutated afterward.
type TaskResult struct {
	Task

	// Status is success or failure.
	Status ResultStatus `json:"status"`

	// Report is a free-text description of the outcome. For failures this
	// carries the error message and is never empty.
	Report string `json:"report"`

	// CompletedAt is when the run finished.
	CompletedAt time.Time `json:"completedAt"`

	// GitDiff is the textual patch produced by the run, if any.
	GitDiff string `json:"gitDiff,omitempty"`
}
