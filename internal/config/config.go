// Package config provides configuration utilities for the application.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/praxical/rulesync/internal/common"
	"github.com/praxical/rulesync/internal/remote"
)

// Defaults used when the config file and environment are silent.
const (
	DefaultServerURL = "http://localhost:3001"
	defaultDBFile    = "local.db"
)

// LoadRemoteConfig builds the remote client configuration from Viper and
// environment variables. Precedence:
// 1. Viper configuration (from config file or RULESYNC_ env vars)
// 2. Direct environment variables (RULESYNC_SERVER_*)
// 3. Default values
func LoadRemoteConfig() (remote.Config, error) {
	cfg := remote.Config{
		BaseURL: DefaultServerURL,
	}

	if v := viper.GetString("server.url"); v != "" {
		cfg.BaseURL = v
	}
	if v := viper.GetString("server.api_key"); v != "" {
		cfg.APIKey = v
	}
	if v := viper.GetDuration("server.timeout"); v > 0 {
		cfg.Timeout = v
	}

	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("RULESYNC_SERVER_API_KEY")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	if err := cfg.Validate(); err != nil {
		return remote.Config{}, common.NewUserError("invalid server configuration", err)
	}

	return cfg, nil
}

// DatabasePath resolves the local store location. Falls back to
// ~/.local/share/rulesync/local.db when not configured.
func DatabasePath() (string, error) {
	if v := viper.GetString("database.path"); v != "" {
		return ExpandPath(v), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", common.NewUserError("could not determine home directory", err)
	}
	return filepath.Join(home, ".local", "share", "rulesync", defaultDBFile), nil
}

// LogFileOptions returns rotating-log settings when a log file is
// configured, nil otherwise.
func LogFileOptions() *common.LogFileOptions {
	path := viper.GetString("logging.file")
	if path == "" {
		return nil
	}

	opts := &common.LogFileOptions{
		Path:       ExpandPath(path),
		MaxSizeMB:  viper.GetInt("logging.max_size_mb"),
		MaxBackups: viper.GetInt("logging.max_backups"),
		MaxAgeDays: viper.GetInt("logging.max_age_days"),
	}
	if opts.MaxSizeMB == 0 {
		opts.MaxSizeMB = 10
	}
	if opts.MaxBackups == 0 {
		opts.MaxBackups = 3
	}
	return opts
}

// ExpandPath expands ~ and environment variables in a file path.
// It handles both ~ for home directory and $VAR style environment variables.
func ExpandPath(path string) string {
	if path == "" {
		return path
	}

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	} else if path == "~" {
		home, err := os.UserHomeDir()
		if err == nil {
			path = home
		}
	}

	return os.ExpandEnv(path)
}
