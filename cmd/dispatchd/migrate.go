package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Temutjin2k/grid-dispatch/config"
	"github.com/Temutjin2k/grid-dispatch/migrations"
	"github.com/Temutjin2k/grid-dispatch/pkg/postgres"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "migrate up|down",
		Short:     "Apply or roll back the dispatch outcome schema",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{string(postgres.Up), string(postgres.Down)},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.NewConfig(configPath, "")
			if err != nil {
				return fmt.Errorf("failed to configure application: %w", err)
			}

			dir := postgres.Direction(args[0])
			if err := postgres.Migrate(migrations.FS, cfg.Database.GetMigrationDSN(), dir); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "migrations %s: done\n", dir)
			return nil
		},
	}
}
