// Command resetd serves password reset, registration and login over HTTP.
package main

import (
	"fmt"
	"os"

	"github.com/MrEthical07/goReset/internal/conf"
	"github.com/MrEthical07/goReset/internal/logging"
	"github.com/spf13/cobra"
	_ "go.uber.org/automaxprocs"
	"go.uber.org/zap"
)

var (
	configPath string

	cfg    *conf.Config
	logger *zap.Logger
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "resetd",
		Short: "Password reset service",
		Long: `resetd issues six digit password reset codes, delivers them out of band
and replaces the account secret once a valid code is presented.

Without redis.addr the vault and limiters run in memory; without
database.dsn credentials are kept in memory.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := conf.Load(configPath)
			if err != nil {
				return err
			}
			cfg = loaded

			logger, err = logging.New(cfg.Log.Level, cfg.Log.Format, map[string]interface{}{
				"service": "resetd",
			})
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file (default ./configs/resetd.yaml)")

	root.AddCommand(newServeCmd())
	root.AddCommand(newMigrateCmd())
	root.AddCommand(newUserCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
