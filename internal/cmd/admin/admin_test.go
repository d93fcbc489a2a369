package admin

import (
	"flag"
	"testing"
	"time"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("admin", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.HTTPAddr != ":8082" {
		t.Fatalf("expected default http addr, got %q", cfg.HTTPAddr)
	}
	if cfg.DBPath != "data/small_eod.db" {
		t.Fatalf("expected default db path, got %q", cfg.DBPath)
	}
	if cfg.AdminDBPath != "data/admin.db" {
		t.Fatalf("expected default admin db path, got %q", cfg.AdminDBPath)
	}
	if cfg.SessionTTL != 12*time.Hour {
		t.Fatalf("expected default session ttl, got %v", cfg.SessionTTL)
	}
	if cfg.SessionSecret != "" {
		t.Fatalf("expected no session secret, got %q", cfg.SessionSecret)
	}
}

func TestParseConfigOverrides(t *testing.T) {
	t.Setenv("EOD_ADMIN_HTTP_ADDR", "env-admin")
	t.Setenv("EOD_DB_PATH", "env.db")
	t.Setenv("EOD_ADMIN_SESSION_SECRET", "s3cret")

	fs := flag.NewFlagSet("admin", flag.ContinueOnError)
	args := []string{"-http-addr", "flag-admin", "-session-ttl", "1h"}
	cfg, err := ParseConfig(fs, args)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.HTTPAddr != "flag-admin" {
		t.Fatalf("expected flag http addr, got %q", cfg.HTTPAddr)
	}
	if cfg.DBPath != "env.db" {
		t.Fatalf("expected env db path, got %q", cfg.DBPath)
	}
	if cfg.SessionSecret != "s3cret" {
		t.Fatalf("expected env secret, got %q", cfg.SessionSecret)
	}
	if cfg.SessionTTL != time.Hour {
		t.Fatalf("expected flag ttl, got %v", cfg.SessionTTL)
	}
}
