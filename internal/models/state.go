package models

import (
	"fmt"
	"time"
)

// InputType identifies how the repository reference should be interpreted.
type InputType string

const (
	InputGitHubURL InputType = "github_url"
	InputGitURL    InputType = "git_url"
	InputLocalPath InputType = "local_path"
)

// Status is the lifecycle state of a submitted job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusAnalyzing Status = "analyzing"
	StatusAnalyzed  Status = "analyzed"
	StatusExecuting Status = "executing"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// statusOrder positions each status on the forward-only lifecycle path.
// completed and failed share the terminal rank.
var statusOrder = map[Status]int{
	StatusPending:   0,
	StatusAnalyzing: 1,
	StatusAnalyzed:  2,
	StatusExecuting: 3,
	StatusCompleted: 4,
	StatusFailed:    4,
}

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	_, ok := statusOrder[s]
	return ok
}

// IsTerminal reports whether no further transitions leave s.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransitionTo reports whether moving from s to next is permitted.
// Transitions are monotonic along pending -> analyzing -> analyzed ->
// executing -> {completed, failed}; skipping forward is allowed, moving
// backward is not, and nothing leaves a terminal status. Re-asserting the
// current status is a permitted no-op.
func (s Status) CanTransitionTo(next Status) bool {
	from, ok := statusOrder[s]
	if !ok {
		return false
	}
	to, ok := statusOrder[next]
	if !ok {
		return false
	}
	if next == s {
		return true
	}
	if s.IsTerminal() {
		return false
	}
	if next == StatusFailed {
		return true
	}
	return to > from
}

// TaskInput describes the repository reference a job was submitted with.
type TaskInput struct {
	Type InputType `json:"type"`
	URL  string    `json:"url"`

	// Config carries optional per-job overrides supplied at submission.
	Config map[string]any `json:"config,omitempty"`
}

// Validate rejects malformed submissions before they reach storage.
func (in *TaskInput) Validate() error {
	switch in.Type {
	case InputGitHubURL, InputGitURL, InputLocalPath:
	default:
		return fmt.Errorf("unknown input type %q", in.Type)
	}
	if in.URL == "" {
		return fmt.Errorf("input url is required")
	}
	return nil
}

// AnalyzerProgress tracks the repository-analysis phase of a job.
type AnalyzerProgress struct {
	Status      string     `json:"status"`
	Progress    int        `json:"progress"` // 0-100
	CurrentStep string     `json:"currentStep,omitempty"`
	TotalSteps  int        `json:"totalSteps,omitempty"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// SolverProgress tracks the task-execution phase of a job.
type SolverProgress struct {
	Status         string     `json:"status"`
	Progress       int        `json:"progress"` // 0-100
	TotalTasks     int        `json:"totalTasks"`
	CompletedTasks int        `json:"completedTasks"`
	FailedTasks    int        `json:"failedTasks"`
	CurrentTask    string     `json:"currentTask,omitempty"`
	StartedAt      *time.Time `json:"startedAt,omitempty"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
	Error          string     `json:"error,omitempty"`
}

// Validate enforces the counting invariant on solver progress.
func (p *SolverProgress) Validate() error {
	if p.CompletedTasks+p.FailedTasks > p.TotalTasks {
		return fmt.Errorf("completed (%d) + failed (%d) tasks exceed total (%d)",
			p.CompletedTasks, p.FailedTasks, p.TotalTasks)
	}
	return nil
}

// FinalReport summarizes a finished job.
type FinalReport struct {
	Summary        string `json:"summary"`
	TotalTasks     int    `json:"totalTasks"`
	CompletedTasks int    `json:"completedTasks"`
	FailedTasks    int    `json:"failedTasks"`
	DurationMS     int64  `json:"durationMs"`
}

// TaskState is the durable, top-level record of one submitted job.
type TaskState struct {
	ID        string    `json:"id"`
	Input     TaskInput `json:"input"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	AnalyzerProgress AnalyzerProgress `json:"analyzerProgress"`
	SolverProgress   SolverProgress   `json:"taskSolverProgress"`

	Tasks       []Task       `json:"tasks,omitempty"`
	Reports     []TaskResult `json:"reports,omitempty"`
	FinalReport *FinalReport `json:"finalReport,omitempty"`
}

// NewTaskState builds a fresh record for a submitted job: status pending,
// both progress phases at zero, createdAt == updatedAt.
func NewTaskState(id string, input TaskInput) *TaskState {
	now := time.Now().UTC()
	return &TaskState{
		ID:        id,
		Input:     input,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
		AnalyzerProgress: AnalyzerProgress{
			Status:   string(StatusPending),
			Progress: 0,
		},
		SolverProgress: SolverProgress{
			Status:   string(StatusPending),
			Progress: 0,
		},
	}
}

// TaskStateUpdate is a partial update over a TaskState. Nil fields are left
// untouched; non-nil fields replace the whole top-level field they name
// (shallow merge: a supplied progress record replaces the entire
// sub-record, not individual members).
type TaskStateUpdate struct {
	Status           *Status
	AnalyzerProgress *AnalyzerProgress
	SolverProgress   *SolverProgress
	Tasks            []Task
	Reports          []TaskResult
	FinalReport      *FinalReport
}

// Apply merges u over s and refreshes UpdatedAt. Status transitions are
// validated against the lifecycle state machine; an illegal transition
// leaves s unchanged.
func (s *TaskState) Apply(u TaskStateUpdate) error {
	if u.Status != nil {
		if !u.Status.Valid() {
			return fmt.Errorf("unknown status %q", *u.Status)
		}
		if !s.Status.CanTransitionTo(*u.Status) {
			return fmt.Errorf("illegal status transition %s -> %s", s.Status, *u.Status)
		}
	}
	if u.SolverProgress != nil {
		if err := u.SolverProgress.Validate(); err != nil {
			return err
		}
	}

	if u.Status != nil {
		s.Status = *u.Status
	}
	if u.AnalyzerProgress != nil {
		s.AnalyzerProgress = *u.AnalyzerProgress
	}
	if u.SolverProgress != nil {
		s.SolverProgress = *u.SolverProgress
	}
	if u.Tasks != nil {
		s.Tasks = u.Tasks
	}
	if u.Reports != nil {
		s.Reports = u.Reports
	}
	if u.FinalReport != nil {
		s.FinalReport = u.FinalReport
	}
	s.UpdatedAt = time.Now().UTC()
	return nil
}
