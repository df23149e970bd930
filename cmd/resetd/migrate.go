package main

import (
	"errors"

	"github.com/MrEthical07/goReset/credentials"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the credential schema migrations to database.dsn",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Database.DSN == "" {
				return errors.New("database.dsn is not set")
			}
			db, err := credentials.OpenPostgres(cmd.Context(), cfg.Database.DSN)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := credentials.Migrate(cmd.Context(), db); err != nil {
				return err
			}
			logger.Info("migrations applied", zap.String("component", "credentials"))
			return nil
		},
	}
}
