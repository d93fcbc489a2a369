// Package eodctl implements the eodctl maintenance CLI.
package eodctl

import (
	"os"

	"github.com/spf13/cobra"
	platformcmd "github.com/watchdogpolska/small-eod/internal/platform/cmd"
	"github.com/watchdogpolska/small-eod/internal/platform/config"
)

// Config holds the store locations shared by every subcommand. Env vars
// carry the EOD_ prefix.
type Config struct {
	DBPath      string `env:"DB_PATH" envDefault:"data/small_eod.db"`
	AdminDBPath string `env:"ADMIN_DB_PATH" envDefault:"data/admin.db"`
}

// Execute runs the CLI with os.Args.
func Execute() {
	cmd, err := NewRootCmd()
	config.ExitOnError(err, "load config")
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// NewRootCmd builds the command tree with env defaults applied to flags.
func NewRootCmd() (*cobra.Command, error) {
	var cfg Config
	if err := platformcmd.ParseConfig(&cfg); err != nil {
		return nil, err
	}

	cmd := &cobra.Command{
		Use:          "eodctl",
		Short:        "Maintain the small-eod case database",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "case database path")
	cmd.PersistentFlags().StringVar(&cfg.AdminDBPath, "admin-db-path", cfg.AdminDBPath, "admin database path")

	cmd.AddCommand(
		exportCmd(&cfg),
		importCmd(&cfg),
		staffCmd(&cfg),
		migrateCmd(&cfg),
		i18nStatusCmd(),
	)
	return cmd, nil
}
