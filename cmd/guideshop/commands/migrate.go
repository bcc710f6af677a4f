package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/m3rciful/guideshop/core/database"
	"github.com/m3rciful/guideshop/core/logger"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			db := cfg.DatabaseConfig()
			if db == nil {
				return fmt.Errorf("migrate: no component uses postgres (storage.driver=%s, session.driver=%s)",
					cfg.Storage.Driver, cfg.Session.Driver)
			}
			if err := logger.InitLogger(cfg.CoreConfig()); err != nil {
				return err
			}
			defer func() { _ = logger.Shutdown() }()
			if err := database.RunMigrations(*db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}
