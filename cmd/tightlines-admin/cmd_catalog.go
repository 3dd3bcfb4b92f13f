package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tightlines/achievements"
	"tightlines/catalog"
	"tightlines/models"
)

func newCatalogCmd(open opener) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Validate or import the achievement catalog",
	}
	cmd.PersistentFlags().StringVarP(&file, "file", "f", "", "YAML catalog to use instead of the embedded one")

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Check the catalog and report criteria the engine does not know",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			defs, err := loadCatalog(file)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d achievements OK\n", len(defs))
			for _, id := range catalog.Unregistered(defs, achievements.DefaultRegistry().Has) {
				fmt.Fprintf(out, "warning: %s uses an unregistered criteria and will never unlock\n", id)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "import",
		Short: "Upsert the catalog into the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			defs, err := loadCatalog(file)
			if err != nil {
				return err
			}
			e, closeFn, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			if err := catalog.Seed(cmd.Context(), e.db, defs); err != nil {
				return err
			}
			e.logger.Info("catalog imported", zap.Int("achievements", len(defs)))
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d achievements\n", len(defs))
			return nil
		},
	})
	return cmd
}

func loadCatalog(file string) ([]models.Achievement, error) {
	if file == "" {
		return catalog.Load()
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return catalog.Parse(data)
}
