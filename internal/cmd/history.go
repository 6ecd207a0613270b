package cmd

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/harrison/overseer/internal/logger"
	"github.com/harrison/overseer/internal/models"
	"github.com/harrison/overseer/internal/store"
)

// NewHistoryCommand creates the history command, listing job summaries
// newest first with optional status/type filters and pagination.
func NewHistoryCommand(opts *rootOptions) *cobra.Command {
	var (
		status    string
		inputType string
		limit     int
		offset    int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List submitted jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}

			st, err := store.New(cfg.DataDir, logger.New(os.Stderr, cfg.LogLevel))
			if err != nil {
				return err
			}

			history, err := st.GetTaskHistory(store.Filter{
				Status: models.Status(status),
				Type:   models.InputType(inputType),
				Offset: offset,
				Limit:  limit,
			})
			if err != nil {
				return err
			}

			printHistory(cmd, history)
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "filter by job status")
	cmd.Flags().StringVar(&inputType, "type", "", "filter by input type")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum entries to show (0 for all)")
	cmd.Flags().IntVar(&offset, "offset", 0, "entries to skip")

	return cmd
}

func printHistory(cmd *cobra.Command, history *store.History) {
	colorize := isatty.IsTerminal(os.Stdout.Fd())

	if len(history.Tasks) == 0 {
		cmd.Println("No jobs recorded.")
		return
	}

	for _, entry := range history.Tasks {
		statusLabel := string(entry.Status)
		if colorize {
			statusLabel = statusColor(entry.Status).Sprint(statusLabel)
		}
		line := fmt.Sprintf("%s  %-10s  %-12s  %s", entry.CreatedAt.Format("2006-01-02 15:04"), statusLabel, entry.Type, entry.URL)
		cmd.Println(line)
		if entry.Summary != "" {
			cmd.Printf("    %s\n", entry.Summary)
		}
	}
	cmd.Printf("\n%d of %d job(s) shown\n", len(history.Tasks), history.Total)
}

func statusColor(status models.Status) *color.Color {
	switch status {
	case models.StatusCompleted:
		return color.New(color.FgGreen)
	case models.StatusFailed:
		return color.New(color.FgRed)
	case models.StatusExecuting, models.StatusAnalyzing:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgCyan)
	}
}
