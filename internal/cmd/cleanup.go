package cmd

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/harrison/overseer/internal/logger"
	"github.com/harrison/overseer/internal/store"
)

// NewCleanupCommand creates the cleanup command, removing job records
// older than the retention window.
func NewCleanupCommand(opts *rootOptions) *cobra.Command {
	var maxAge time.Duration

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete job records older than the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}

			st, err := store.New(cfg.DataDir, logger.New(os.Stderr, cfg.LogLevel))
			if err != nil {
				return err
			}

			age := maxAge
			if age == 0 {
				age = cfg.CleanupMaxAge
			}

			removed, err := st.CleanupOldTasks(age)
			if err != nil {
				return err
			}

			cmd.Printf("Removed %d job record(s) older than %s.\n", removed, age)
			return nil
		},
	}

	cmd.Flags().DurationVar(&maxAge, "max-age", 0, "retention window (default from config, 720h)")

	return cmd
}
