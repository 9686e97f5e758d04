package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/emerald-hwsd/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var filter history.Filter
	var showStatus bool
	var pruneOlder time.Duration

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the recorded command log or status snapshots",
		Long: `Read the SQLite history written by "emeraldhwsd run" when database.enabled
is set. The command log is printed by default; --status prints status
snapshots instead. --prune deletes entries older than the given age.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			db, err := openHistoryDB(cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			repo := history.NewSQLiteRepository(db.DB)
			c := cmd.Context()

			switch {
			case pruneOlder > 0:
				deleted, err := repo.Prune(c, pruneOlder)
				if err != nil {
					return err
				}
				return writeJSON(cmd, map[string]int64{"deleted": deleted})

			case showStatus:
				entries, err := repo.GetStatusHistory(c, filter.DeviceID, filter.Limit)
				if err != nil {
					return err
				}
				return writeJSON(cmd, map[string]any{"snapshots": entries})

			default:
				result, err := repo.ListCommands(c, filter)
				if err != nil {
					return err
				}
				return writeJSON(cmd, result)
			}
		},
	}

	cmd.Flags().StringVar(&filter.DeviceID, "device", "", "Only entries for this hws_id")
	cmd.Flags().StringVar(&filter.Command, "command", "", "Only this command")
	cmd.Flags().BoolVar(&filter.Failed, "failed", false, "Only failed commands")
	cmd.Flags().IntVar(&filter.Limit, "limit", 50, "Maximum entries to show")
	cmd.Flags().IntVar(&filter.Offset, "offset", 0, "Entries to skip")
	cmd.Flags().BoolVar(&showStatus, "status", false, "Show status snapshots instead of the command log")
	cmd.Flags().DurationVar(&pruneOlder, "prune", 0, "Delete entries older than this age (e.g. 720h)")
	return cmd
}
