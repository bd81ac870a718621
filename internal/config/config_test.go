package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "fmv.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 4, cfg.Batch.MaxConcurrentItems)
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	assert.InDelta(t, 0.45, cfg.Matcher.MinScore, 0.001)
	assert.InDelta(t, 0.25, cfg.Matcher.BackfillMinScore, 0.001)
	assert.Equal(t, 6, cfg.Matcher.ColocationWindow)
	assert.Equal(t, 160, cfg.Valuation.MaxSold)
	assert.Equal(t, 20, cfg.Valuation.MaxActive)
	assert.InDelta(t, 0.13, cfg.Assumptions.PlatformFeeRate, 0.001)
	assert.InDelta(t, 15, cfg.Assumptions.AvgShipCost, 0.001)
	assert.InDelta(t, 45, cfg.Assumptions.CertCost, 0.001)
	assert.InDelta(t, 20, cfg.Assumptions.CertShipInsureCost, 0.001)
	assert.InDelta(t, 0.05, cfg.Assumptions.TimePenaltyRate, 0.001)
	assert.InDelta(t, 150, cfg.Assumptions.MinLiftDollars, 0.001)
	assert.InDelta(t, 0.20, cfg.Assumptions.MinLiftPct, 0.001)
	assert.False(t, cfg.Monitoring.Enabled)
	assert.Equal(t, 300, cfg.Monitoring.CheckIntervalSecs)
	assert.Equal(t, 168, cfg.Monitoring.StaleAfterHours)
	assert.InDelta(t, 0.5, cfg.Monitoring.MinCoverage, 0.001)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/fmv
log:
  level: debug
  format: console
batch:
  max_concurrent_items: 8
assumptions:
  platform_fee_rate: 0.10
  cert_cost: 30
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/fmv", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 8, cfg.Batch.MaxConcurrentItems)
	assert.InDelta(t, 0.10, cfg.Assumptions.PlatformFeeRate, 0.001)
	assert.InDelta(t, 30, cfg.Assumptions.CertCost, 0.001)
	// Defaults still apply for unset values
	assert.InDelta(t, 15, cfg.Assumptions.AvgShipCost, 0.001)
	assert.Equal(t, 160, cfg.Valuation.MaxSold)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("FMV_STORE_DRIVER", "sqlite")
	t.Setenv("FMV_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("FMV_SERVER_PORT", "3000")
	t.Setenv("FMV_MATCHER_MIN_SCORE", "0.5")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.InDelta(t, 0.5, cfg.Matcher.MinScore, 0.001)
}

func TestLoadBadYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("store: [unclosed"), 0644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "sqlite"
	cfg.Batch.MaxConcurrentItems = 4
	cfg.Matcher.MinScore = 0.45
	cfg.Matcher.BackfillMinScore = 0.25
	cfg.Server.Port = 8080
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mode    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "cli defaults", mode: "cli", mutate: func(*Config) {}},
		{name: "serve defaults", mode: "serve", mutate: func(*Config) {}},
		{
			name:    "unknown mode",
			mode:    "nope",
			mutate:  func(*Config) {},
			wantErr: "unknown mode",
		},
		{
			name:    "unknown driver",
			mode:    "cli",
			mutate:  func(c *Config) { c.Store.Driver = "mysql" },
			wantErr: "store.driver",
		},
		{
			name:    "postgres without url",
			mode:    "cli",
			mutate:  func(c *Config) { c.Store.Driver = "postgres" },
			wantErr: "store.database_url is required",
		},
		{
			name:    "concurrency too low",
			mode:    "cli",
			mutate:  func(c *Config) { c.Batch.MaxConcurrentItems = 0 },
			wantErr: "max_concurrent_items must be between 1 and 64",
		},
		{
			name:    "concurrency too high",
			mode:    "cli",
			mutate:  func(c *Config) { c.Batch.MaxConcurrentItems = 65 },
			wantErr: "max_concurrent_items must be between 1 and 64",
		},
		{
			name:    "min score out of range",
			mode:    "cli",
			mutate:  func(c *Config) { c.Matcher.MinScore = 1.5 },
			wantErr: "matcher.min_score",
		},
		{
			name:    "serve needs a port",
			mode:    "serve",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: "server.port must be > 0",
		},
		{
			name: "odd assumptions accepted",
			mode: "cli",
			mutate: func(c *Config) {
				c.Assumptions.PlatformFeeRate = 1.5
				c.Assumptions.AvgShipCost = -10
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validDefaults()
			tt.mutate(cfg)
			err := cfg.Validate(tt.mode)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
