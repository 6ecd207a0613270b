package agent

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/harrison/overseer/internal/models"
)

// diffMarker separates the agent's report from an optional trailing patch
// in its output.
const diffMarker = "---GIT-DIFF---"

// CLIExecutor runs the agent as a child process, one invocation per task.
// Create once and reuse; it is safe for concurrent use.
type CLIExecutor struct{}

// NewCLIExecutor returns a CLIExecutor.
func NewCLIExecutor() *CLIExecutor {
	return &CLIExecutor{}
}

// Execute invokes the configured binary with the task description and
// repository reference, blocking until the process exits. A non-zero exit
// is an error carrying the combined output; on success the output is split
// into report text and an optional diff at the diff marker.
func (e *CLIExecutor) Execute(ctx context.Context, task models.Task, repository string, cfg Config) (*Outcome, error) {
	if err := task.Validate(); err != nil {
		return nil, fmt.Errorf("invalid task: %w", err)
	}

	binary := cfg.Binary
	if binary == "" {
		binary = "agent"
	}

	args := append([]string{}, cfg.Args...)
	args = append(args, "--repository", repository, "--task-id", task.ID, "-p", buildPrompt(task))

	cmd := exec.CommandContext(ctx, binary, args...)
	if cfg.WorkDir != "" {
		cmd.Dir = cfg.WorkDir
	}

	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("agent invocation failed: %w (output: %s)", err, strings.TrimSpace(string(output)))
	}

	report, diff := splitOutput(string(output))
	return &Outcome{Report: report, GitDiff: diff}, nil
}

// buildPrompt renders the task into the prompt handed to the agent.
func buildPrompt(task models.Task) string {
	var b strings.Builder
	b.WriteString(task.Title)
	b.WriteString("\n\n")
	b.WriteString(task.Description)
	if len(task.RelatedFiles) > 0 {
		b.WriteString("\n\nRelated files:\n")
		for _, f := range task.RelatedFiles {
			b.WriteString("- ")
			b.WriteString(f)
			b.WriteString("\n")
		}
	}
	return b.String()
}

func splitOutput(output string) (report, diff string) {
	report = strings.TrimSpace(output)
	if idx := strings.Index(output, diffMarker); idx >= 0 {
		report = strings.TrimSpace(output[:idx])
		diff = strings.TrimSpace(output[idx+len(diffMarker):])
	}
	return report, diff
}
