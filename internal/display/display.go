// Package display renders job results for the terminal.
package display

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/harrison/overseer/internal/models"
	"github.com/harrison/overseer/internal/report"
)

// Renderer writes per-task result lines and a closing summary. Colors are
// applied only when enabled; pipe the output anywhere by disabling them.
type Renderer struct {
	writer   io.Writer
	colorize bool
}

// NewRenderer creates a Renderer writing to w.
func NewRenderer(w io.Writer, colorize bool) *Renderer {
	return &Renderer{writer: w, colorize: colorize}
}

// RenderResults prints one line per task result in completion order,
// followed by the final summary.
func (r *Renderer) RenderResults(results []models.TaskResult, final *models.FinalReport) {
	for i, result := range results {
		mark := r.mark(result.Status)
		fmt.Fprintf(r.writer, "%s [%d/%d] %s: %s\n", mark, i+1, len(results), result.Task.ID, result.Task.Title)
		if summary := report.Summarize(result.Report); summary != "" {
			fmt.Fprintf(r.writer, "      %s\n", summary)
		}
	}

	line := final.Summary
	if r.colorize {
		if final.FailedTasks > 0 {
			line = color.New(color.FgYellow).Sprint(line)
		} else {
			line = color.New(color.FgGreen).Sprint(line)
		}
	}
	fmt.Fprintf(r.writer, "\n%s (%s)\n", line, formatDuration(final.DurationMS))
}

func (r *Renderer) mark(status models.ResultStatus) string {
	if !r.colorize {
		if status == models.ResultSuccess {
			return "ok "
		}
		return "err"
	}
	if status == models.ResultSuccess {
		return color.New(color.FgGreen).Sprint("✓")
	}
	return color.New(color.FgRed).Sprint("✗")
}

func formatDuration(ms int64) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	seconds := float64(ms) / 1000
	if seconds < 60 {
		return fmt.Sprintf("%.1fs", seconds)
	}
	return fmt.Sprintf("%dm%02ds", int(seconds)/60, int(seconds)%60)
}
