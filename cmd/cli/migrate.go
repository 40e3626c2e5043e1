package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/FACorreiaa/rocketstart-api/pkg/db"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate up|down|status",
		Short:     "Apply, roll back or list database migrations",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down", "status"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := opts.load()
			if err != nil {
				return err
			}
			database, err := db.New(db.Config{
				DSN:             cfg.Database.DSN(),
				MaxConns:        2,
				MaxConnLifetime: time.Minute,
			}, log)
			if err != nil {
				return fmt.Errorf("connect database: %w", err)
			}
			defer database.Close()

			sqlDB := database.SQL()
			defer sqlDB.Close()
			return db.Migrate(cmd.Context(), sqlDB, args[0], log)
		},
	}
}
