// Package config loads daemon configuration through viper.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"

	"focus-blocks/internal/auth"
)

// EnvPrefix is the prefix of environment overrides, e.g. FOCUSBLOCKS_LISTEN.
const EnvPrefix = "FOCUSBLOCKS"

// Config is the validated daemon configuration.
type Config struct {
	Listen       string
	DataDir      string
	DatabasePath string

	LogLevel string
	LogFile  string

	SweepInterval        time.Duration
	DeepThresholdMinutes int

	BroadcastRetries int
	BroadcastBackoff time.Duration

	AuthEnabled  bool
	TokenFile    string
	AllowedCIDRs []string

	BlockedPath string

	DnsmasqConfPath  string
	DnsmasqReloadCmd string

	Location *time.Location
}

// SetDefaults registers every key with its default value.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("listen", "127.0.0.1:8092")
	v.SetDefault("data_dir", "~/.focusblocks")
	v.SetDefault("database", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("session.sweep_interval", "30s")
	v.SetDefault("session.deep_threshold_minutes", 90)
	v.SetDefault("broadcast.retries", 2)
	v.SetDefault("broadcast.backoff", "200ms")
	v.SetDefault("auth.enabled", true)
	v.SetDefault("auth.token_file", "")
	v.SetDefault("auth.allowed_cidrs", auth.DefaultAllowedCIDRs)
	v.SetDefault("rules.blocked_path", "/blocked")
	v.SetDefault("dnsmasq.conf_path", "")
	v.SetDefault("dnsmasq.reload_cmd", "")
	v.SetDefault("schedule.timezone", "")
}

// BindEnv enables FOCUSBLOCKS_* overrides for nested keys.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load reads and validates the configuration held by v.
func Load(v *viper.Viper) (Config, error) {
	dataDir, err := expandPath(v.GetString("data_dir"))
	if err != nil {
		return Config{}, fmt.Errorf("data_dir: %w", err)
	}
	if dataDir == "" {
		return Config{}, errors.New("data_dir is required")
	}

	cfg := Config{
		Listen:               strings.TrimSpace(v.GetString("listen")),
		DataDir:              dataDir,
		LogLevel:             v.GetString("log.level"),
		SweepInterval:        v.GetDuration("session.sweep_interval"),
		DeepThresholdMinutes: v.GetInt("session.deep_threshold_minutes"),
		BroadcastRetries:     v.GetInt("broadcast.retries"),
		BroadcastBackoff:     v.GetDuration("broadcast.backoff"),
		AuthEnabled:          v.GetBool("auth.enabled"),
		AllowedCIDRs:         v.GetStringSlice("auth.allowed_cidrs"),
		BlockedPath:          v.GetString("rules.blocked_path"),
		DnsmasqReloadCmd:     strings.TrimSpace(v.GetString("dnsmasq.reload_cmd")),
	}

	if cfg.Listen == "" {
		return Config{}, errors.New("listen address is required")
	}
	if cfg.DatabasePath, err = pathOrDefault(v.GetString("database"), filepath.Join(dataDir, "focusblocks.db")); err != nil {
		return Config{}, fmt.Errorf("database: %w", err)
	}
	if cfg.TokenFile, err = pathOrDefault(v.GetString("auth.token_file"), filepath.Join(dataDir, "api-token")); err != nil {
		return Config{}, fmt.Errorf("auth.token_file: %w", err)
	}
	if cfg.LogFile, err = expandPath(v.GetString("log.file")); err != nil {
		return Config{}, fmt.Errorf("log.file: %w", err)
	}
	if cfg.DnsmasqConfPath, err = expandPath(v.GetString("dnsmasq.conf_path")); err != nil {
		return Config{}, fmt.Errorf("dnsmasq.conf_path: %w", err)
	}

	if cfg.SweepInterval <= 0 {
		return Config{}, fmt.Errorf("session.sweep_interval must be positive, got %s", cfg.SweepInterval)
	}
	if cfg.DeepThresholdMinutes <= 0 {
		return Config{}, fmt.Errorf("session.deep_threshold_minutes must be positive, got %d", cfg.DeepThresholdMinutes)
	}
	if cfg.BroadcastRetries < 0 {
		return Config{}, fmt.Errorf("broadcast.retries must not be negative, got %d", cfg.BroadcastRetries)
	}
	if cfg.BroadcastBackoff < 0 {
		return Config{}, fmt.Errorf("broadcast.backoff must not be negative, got %s", cfg.BroadcastBackoff)
	}
	if !strings.HasPrefix(cfg.BlockedPath, "/") {
		return Config{}, fmt.Errorf("rules.blocked_path must start with /, got %q", cfg.BlockedPath)
	}
	if _, err := auth.NewAllowlist(cfg.AllowedCIDRs); err != nil {
		return Config{}, fmt.Errorf("auth.allowed_cidrs: %w", err)
	}

	cfg.Location = time.Local
	if tz := strings.TrimSpace(v.GetString("schedule.timezone")); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return Config{}, fmt.Errorf("schedule.timezone: %w", err)
		}
		cfg.Location = loc
	}
	return cfg, nil
}

func pathOrDefault(raw, fallback string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	return expandPath(raw)
}

func expandPath(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	return homedir.Expand(raw)
}
