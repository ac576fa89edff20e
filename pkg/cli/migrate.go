package cli

import (
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver for migrations
	"github.com/spf13/cobra"

	"github.com/eburns009/starhouse-crm/pkg/config"
	"github.com/eburns009/starhouse-crm/pkg/database"
	"github.com/eburns009/starhouse-crm/pkg/logging"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		logger, err := logging.NewLogger(cfg.Env)
		if err != nil {
			return err
		}
		defer logger.Sync() //nolint:errcheck

		db, err := sql.Open("pgx", cfg.Database.ConnectionString())
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()

		return database.RunMigrations(db, cfg.MigrationsPath, logger)
	},
}
