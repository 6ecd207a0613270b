package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/harrison/overseer/internal/logger"
	"github.com/harrison/overseer/internal/store"
)

// NewStatsCommand creates the stats command, reporting the durable
// store's footprint.
func NewStatsCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show durable store statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}

			st, err := store.New(cfg.DataDir, logger.New(os.Stderr, cfg.LogLevel))
			if err != nil {
				return err
			}

			stats, err := st.GetStorageStats()
			if err != nil {
				return err
			}

			cmd.Printf("Jobs:       %d\n", stats.TaskCount)
			cmd.Printf("Disk usage: %s\n", formatBytes(stats.TotalSizeBytes))
			return nil
		},
	}
	return cmd
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
