package config

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func newViper(t *testing.T) *viper.Viper {
	t.Helper()
	v := viper.New()
	SetDefaults(v)
	v.Set("data_dir", t.TempDir())
	return v
}

func TestLoadDefaults(t *testing.T) {
	v := newViper(t)
	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Listen != "127.0.0.1:8092" {
		t.Fatalf("unexpected listen %q", cfg.Listen)
	}
	if cfg.DatabasePath != filepath.Join(cfg.DataDir, "focusblocks.db") {
		t.Fatalf("unexpected database path %q", cfg.DatabasePath)
	}
	if cfg.TokenFile != filepath.Join(cfg.DataDir, "api-token") {
		t.Fatalf("unexpected token file %q", cfg.TokenFile)
	}
	if cfg.SweepInterval != 30*time.Second || cfg.BroadcastBackoff != 200*time.Millisecond {
		t.Fatalf("unexpected durations %+v", cfg)
	}
	if cfg.BroadcastRetries != 2 || cfg.DeepThresholdMinutes != 90 {
		t.Fatalf("unexpected numeric defaults %+v", cfg)
	}
	if !cfg.AuthEnabled || len(cfg.AllowedCIDRs) != 2 {
		t.Fatalf("unexpected auth defaults %+v", cfg)
	}
	if cfg.Location != time.Local || cfg.BlockedPath != "/blocked" || cfg.DnsmasqConfPath != "" {
		t.Fatalf("unexpected misc defaults %+v", cfg)
	}
}

func TestLoadExpandsHome(t *testing.T) {
	v := newViper(t)
	v.Set("database", "~/focus/test.db")
	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if strings.HasPrefix(cfg.DatabasePath, "~") || !strings.HasSuffix(cfg.DatabasePath, filepath.Join("focus", "test.db")) {
		t.Fatalf("expected expanded database path, got %q", cfg.DatabasePath)
	}
}

func TestLoadTimezone(t *testing.T) {
	v := newViper(t)
	v.Set("schedule.timezone", "UTC")
	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Location.String() != "UTC" {
		t.Fatalf("unexpected location %s", cfg.Location)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]any{
		"session.sweep_interval":         "0s",
		"session.deep_threshold_minutes": 0,
		"broadcast.retries":              -1,
		"auth.allowed_cidrs":             []string{"nope/99"},
		"schedule.timezone":              "Mars/Olympus",
		"rules.blocked_path":             "blocked",
		"listen":                         " ",
	}
	for key, value := range cases {
		v := newViper(t)
		v.Set(key, value)
		if _, err := Load(v); err == nil {
			t.Fatalf("expected error for %s=%v", key, value)
		}
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("FOCUSBLOCKS_LISTEN", "127.0.0.1:9999")
	t.Setenv("FOCUSBLOCKS_BROADCAST_RETRIES", "5")
	v := viper.New()
	SetDefaults(v)
	BindEnv(v)
	v.Set("data_dir", t.TempDir())
	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Listen != "127.0.0.1:9999" || cfg.BroadcastRetries != 5 {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
}
