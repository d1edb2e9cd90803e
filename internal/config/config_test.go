package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRemoteConfigDefaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	cfg, err := LoadRemoteConfig()
	require.NoError(t, err)
	assert.Equal(t, DefaultServerURL, cfg.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Empty(t, cfg.APIKey)
}

func TestLoadRemoteConfigFromViper(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	viper.Set("server.url", "https://rules.example.com")
	viper.Set("server.api_key", "secret")
	viper.Set("server.timeout", "5s")

	cfg, err := LoadRemoteConfig()
	require.NoError(t, err)
	assert.Equal(t, "https://rules.example.com", cfg.BaseURL)
	assert.Equal(t, "secret", cfg.APIKey)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
}

func TestLoadRemoteConfigRejectsBadURL(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	viper.Set("server.url", "not-a-url")

	_, err := LoadRemoteConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid server configuration")
}

func TestDatabasePath(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	t.Run("configured path is expanded", func(t *testing.T) {
		viper.Set("database.path", "~/rulesync/local.db")
		defer viper.Set("database.path", "")

		path, err := DatabasePath()
		require.NoError(t, err)

		home, err := os.UserHomeDir()
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(home, "rulesync", "local.db"), path)
	})

	t.Run("default under home", func(t *testing.T) {
		path, err := DatabasePath()
		require.NoError(t, err)
		assert.Contains(t, path, filepath.Join("rulesync", "local.db"))
	})
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty", in: "", want: ""},
		{name: "plain", in: "/var/data/db", want: "/var/data/db"},
		{name: "tilde prefix", in: "~/data/db", want: filepath.Join(home, "data", "db")},
		{name: "bare tilde", in: "~", want: home},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExpandPath(tt.in))
		})
	}

	t.Run("env var", func(t *testing.T) {
		t.Setenv("RULESYNC_TEST_DIR", "/srv/rulesync")
		assert.Equal(t, "/srv/rulesync/db", ExpandPath("$RULESYNC_TEST_DIR/db"))
	})
}
