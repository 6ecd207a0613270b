// Package agent defines the boundary to the external agent process that
// actually performs a task, and a CLI-based implementation of it. The
// orchestrator treats the agent as an opaque, slow, possibly failing
// delegate and never interprets its internal protocol.
package agent

import (
	"context"

	"github.com/harrison/overseer/internal/models"
)

// Config carries the settings an invocation needs.
type Config struct {
	// Binary is the agent executable, resolved via PATH if not absolute.
	Binary string

	// Args are extra arguments prepended to every invocation.
	Args []string

	// WorkDir is the working directory for the agent process, typically
	// the checked-out repository. Empty means the current directory.
	WorkDir string
}

// Outcome is a successful agent result.
type Outcome struct {
	// Report is the agent's free-text description of what it did.
	Report string

	// GitDiff is the textual patch the run produced, when the agent
	// emits one.
	GitDiff string
}

// Executor executes one task against a repository reference. A failure is
// reported through the error return; the outcome is non-nil only on
// success.
type Executor interface {
	Execute(ctx context.Context, task models.Task, repository string, cfg Config) (*Outcome, error)
}
