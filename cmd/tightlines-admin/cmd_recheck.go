package main

import (
	"errors"

	"github.com/spf13/cobra"

	"tightlines/achievements"
	"tightlines/database"
)

func newRecheckCmd(open opener) *cobra.Command {
	var userID uint

	cmd := &cobra.Command{
		Use:   "recheck",
		Short: "Run the achievement engine for one user and print the result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if userID == 0 {
				return errors.New("--user is required")
			}
			e, closeFn, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			store := database.NewAchievementStore(e.db)
			engine := achievements.New(store,
				achievements.WithLogger(e.logger),
				achievements.WithRetryQueue(database.NewRetryStore(e.db)))

			return printJSON(cmd, engine.Check(cmd.Context(), userID))
		},
	}
	cmd.Flags().UintVar(&userID, "user", 0, "user id to evaluate")
	return cmd
}
