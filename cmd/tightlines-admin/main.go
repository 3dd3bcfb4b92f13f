// Command tightlines-admin runs operator tasks against the tightlines
// database: catalog import, manual rechecks and retry draining.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"tightlines/config"
	"tightlines/database"
	"tightlines/logging"
)

// env is the lazily opened runtime shared by subcommands that need the
// database.
type env struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *gorm.DB
}

type opener func(ctx context.Context) (*env, func(), error)

func openEnv(ctx context.Context) (*env, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, nil, err
	}
	db, err := database.Open(cfg.Database, logger)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		_ = database.Close(db)
		_ = logger.Sync()
	}
	return &env{cfg: cfg, logger: logger, db: db}, closeFn, nil
}

func newRootCmd(open opener) *cobra.Command {
	root := &cobra.Command{
		Use:           "tightlines-admin",
		Short:         "Operator tooling for the tightlines achievement backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newCatalogCmd(open),
		newRecheckCmd(open),
		newRetriesCmd(open),
	)
	return root
}

func main() {
	if err := newRootCmd(openEnv).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
