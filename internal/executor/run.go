// Package executor contains the task lifecycle core: Run wraps a single
// task's delegation to the external agent, and Scheduler drives a queue of
// tasks through a bounded set of concurrent runs.
package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/harrison/overseer/internal/agent"
	"github.com/harrison/overseer/internal/models"
)

// ErrNotCompleted is returned by Run.Result before Solve has finished.
var ErrNotCompleted = errors.New("executor: run not yet completed")

// Run executes exactly one task via the agent delegate and records one
// TaskResult. A Run is single-use: construct, Solve once, then Result.
type Run struct {
	task       models.Task
	repository string
	cfg        agent.Config
	delegate   agent.Executor
	timeout    time.Duration

	mu        sync.Mutex
	completed bool
	result    models.TaskResult
}

// NewRun prepares a run for one task. timeout bounds the delegate
// invocation; zero means no deadline.
func NewRun(task models.Task, repository string, delegate agent.Executor, cfg agent.Config, timeout time.Duration) *Run {
	return &Run{
		task:       task,
		repository: repository,
		cfg:        cfg,
		delegate:   delegate,
		timeout:    timeout,
	}
}

// Solve invokes the delegate and records the outcome. A delegate error
// (including a deadline breach) is captured as a failure result carrying
// the error message; Solve then returns that error so callers can
// distinguish failed runs without re-reading the result. Exactly one
// result exists after Solve returns, success or not.
func (r *Run) Solve(ctx context.Context) error {
	runCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	outcome, err := r.delegate.Execute(runCtx, r.task, r.repository, r.cfg)

	r.mu.Lock()
	defer r.mu.Unlock()

	if err != nil {
		r.result = models.TaskResult{
			Task:        r.task,
			Status:      models.ResultFailure,
			Report:      err.Error(),
			CompletedAt: time.Now().UTC(),
		}
		r.completed = true
		return fmt.Errorf("task %s: %w", r.task.ID, err)
	}

	r.result = models.TaskResult{
		Task:        r.task,
		Status:      models.ResultSuccess,
		Report:      outcome.Report,
		GitDiff:     outcome.GitDiff,
		CompletedAt: time.Now().UTC(),
	}
	r.completed = true
	return nil
}

// Result returns the recorded TaskResult. Calling before Solve completes
// returns ErrNotCompleted.
func (r *Run) Result() (models.TaskResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.completed {
		return models.TaskResult{}, ErrNotCompleted
	}
	return r.result, nil
}
