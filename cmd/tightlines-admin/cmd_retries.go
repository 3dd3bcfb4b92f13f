package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"tightlines/database"
	"tightlines/services"
)

func newRetriesCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "retries",
		Short: "Inspect or drain the reward retry queue",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Print queue counts by status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, closeFn, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			summary, err := database.NewRetryStore(e.db).Summary(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, summary)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "run-once",
		Short: "Apply every due retry once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, closeFn, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			worker := services.NewRewardRetryWorker(
				database.NewRetryStore(e.db),
				e.cfg.Retry,
				e.logger)
			stats, err := worker.RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, stats)
		},
	})
	return cmd
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
