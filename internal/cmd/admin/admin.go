// Package admin parses configuration for and runs the admin process.
package admin

import (
	"context"
	"flag"
	"fmt"
	"time"

	platformcmd "github.com/watchdogpolska/small-eod/internal/platform/cmd"
	"github.com/watchdogpolska/small-eod/internal/services/admin"
)

// Config holds the admin command configuration. Env vars carry the EOD_
// prefix.
type Config struct {
	HTTPAddr       string        `env:"ADMIN_HTTP_ADDR" envDefault:":8082"`
	DBPath         string        `env:"DB_PATH" envDefault:"data/small_eod.db"`
	AdminDBPath    string        `env:"ADMIN_DB_PATH" envDefault:"data/admin.db"`
	SessionSecret  string        `env:"ADMIN_SESSION_SECRET"`
	SessionTTL     time.Duration `env:"ADMIN_SESSION_TTL" envDefault:"12h"`
	RequestTimeout time.Duration `env:"ADMIN_REQUEST_TIMEOUT" envDefault:"10s"`
}

// ParseConfig loads env defaults then lets flags override them.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := platformcmd.ParseConfigFromArgs(&cfg, fs, args, bindFlags); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func bindFlags(fs *flag.FlagSet, cfg *Config) {
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "HTTP listen address")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "case database path")
	fs.StringVar(&cfg.AdminDBPath, "admin-db-path", cfg.AdminDBPath, "admin database path")
	fs.DurationVar(&cfg.SessionTTL, "session-ttl", cfg.SessionTTL, "staff session lifetime")
}

// Run starts the admin server.
func Run(ctx context.Context, cfg Config) error {
	return platformcmd.RunWithTelemetry(ctx, platformcmd.ServiceAdmin, func(ctx context.Context) error {
		server, err := admin.NewServer(admin.Config{
			HTTPAddr:    cfg.HTTPAddr,
			DBPath:      cfg.DBPath,
			AdminDBPath: cfg.AdminDBPath,
			Auth: admin.AuthConfig{
				Secret: cfg.SessionSecret,
				TTL:    cfg.SessionTTL,
			},
			RequestTimeout: cfg.RequestTimeout,
		})
		if err != nil {
			return fmt.Errorf("init admin server: %w", err)
		}
		defer server.Close()

		if err := server.ListenAndServe(ctx); err != nil {
			return fmt.Errorf("serve admin: %w", err)
		}
		return nil
	})
}
