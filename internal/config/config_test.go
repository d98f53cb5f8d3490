package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/mutker/pressurebar/internal/config"
	"codeberg.org/mutker/pressurebar/internal/errors"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "pressurebar.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoad(t *testing.T) {
	configPath := writeConfig(t, `
endpoint = "ws://localhost:9000/graphql-subscriptions"
handshake_timeout = "5s"
glyph = "="
log_level = "debug"
metrics = true
metrics_addr = ":9100"
`)
	t.Setenv("PRESSUREBAR_CONFIG", configPath)

	cfg, err := config.Load(config.WithArgs(nil))
	require.NoError(t, err)

	assert.Equal(t, "ws://localhost:9000/graphql-subscriptions", cfg.Endpoint)
	assert.Equal(t, 5*time.Second, cfg.HandshakeTimeout)
	assert.Equal(t, "=", cfg.Glyph)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.Metrics)
	assert.Equal(t, ":9100", cfg.MetricsAddr)
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PRESSUREBAR_CONFIG", "")

	cfg, err := config.Load(config.WithArgs(nil))
	require.NoError(t, err, "Failed to load config")

	assert.Equal(t, config.DefaultEndpoint, cfg.Endpoint)
	assert.Equal(t, config.DefaultHandshakeTimeout, cfg.HandshakeTimeout)
	assert.Equal(t, "#", cfg.Glyph)
	assert.Equal(t, config.DefaultLogLevel, cfg.LogLevel)
	assert.False(t, cfg.Metrics)
	assert.Equal(t, config.DefaultMetricsAddr, cfg.MetricsAddr)
}

func TestLoadConfigFileInvalidFormat(t *testing.T) {
	configPath := writeConfig(t, `
This is not a valid TOML file
`)
	t.Setenv("PRESSUREBAR_CONFIG", configPath)

	_, err := config.Load(config.WithArgs(nil))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrReadConfig))
	assert.Contains(t, err.Error(), "Failed to read config file")
}

func TestInvalidLogLevel(t *testing.T) {
	configPath := writeConfig(t, `
log_level = "invalid"
`)
	t.Setenv("PRESSUREBAR_CONFIG", configPath)

	_, err := config.Load(config.WithArgs(nil))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrInvalidLogLevel))
}

func TestFlagsOverrideFileAndEnv(t *testing.T) {
	configPath := writeConfig(t, `
log_level = "info"
glyph = "*"
`)
	t.Setenv("PRESSUREBAR_CONFIG", configPath)
	t.Setenv("PRESSUREBAR_GLYPH", "+")

	cfg, err := config.Load(config.WithArgs([]string{"--log-level", "debug"}))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel, "Expected LogLevel to be set by flag")
	assert.Equal(t, "+", cfg.Glyph, "Expected Glyph to be set by environment")
}

func TestExplicitConfigFile(t *testing.T) {
	configPath := writeConfig(t, `
endpoint = "wss://example.net/graphql-subscriptions"
`)
	t.Setenv("PRESSUREBAR_CONFIG", "")

	cfg, err := config.Load(config.WithConfigFile(configPath), config.WithArgs(nil))
	require.NoError(t, err)
	assert.Equal(t, "wss://example.net/graphql-subscriptions", cfg.Endpoint)
}

func TestUnknownFlag(t *testing.T) {
	t.Setenv("PRESSUREBAR_CONFIG", "")

	_, err := config.Load(config.WithArgs([]string{"--no-such-flag"}))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrParseFlags))
}

func TestHelpFlag(t *testing.T) {
	t.Setenv("PRESSUREBAR_CONFIG", "")

	_, err := config.Load(config.WithArgs([]string{"--help"}))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrHelpRequested))
	assert.False(t, errors.HasCode(err, errors.ErrParseFlags))
	assert.True(t, errors.Is(err, pflag.ErrHelp))
}

func TestValidate(t *testing.T) {
	valid := func() config.Config {
		return config.Config{
			Endpoint:         config.DefaultEndpoint,
			HandshakeTimeout: time.Second,
			Glyph:            "#",
			LogLevel:         "warning",
			MetricsAddr:      config.DefaultMetricsAddr,
		}
	}

	tests := []struct {
		name   string
		mutate func(*config.Config)
		code   errors.ErrorCode
	}{
		{"valid", func(*config.Config) {}, ""},
		{"http endpoint", func(c *config.Config) { c.Endpoint = "http://host/x" }, errors.ErrInvalidConfig},
		{"no host", func(c *config.Config) { c.Endpoint = "ws:///x" }, errors.ErrInvalidConfig},
		{"empty glyph", func(c *config.Config) { c.Glyph = "" }, errors.ErrInvalidConfig},
		{"zero timeout", func(c *config.Config) { c.HandshakeTimeout = 0 }, errors.ErrInvalidConfig},
		{"bad level", func(c *config.Config) { c.LogLevel = "loud" }, errors.ErrInvalidLogLevel},
		{"metrics without addr", func(c *config.Config) {
			c.Metrics = true
			c.MetricsAddr = ""
		}, errors.ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.code == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.code, errors.CodeOf(err))
		})
	}
}
