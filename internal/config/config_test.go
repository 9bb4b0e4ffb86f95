package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://data.sec.gov", cfg.Edgar.BaseURL)
	assert.Equal(t, "https://www.sec.gov/files/company_tickers.json", cfg.Edgar.DirectoryURL)
	assert.Equal(t, 30, cfg.Edgar.TimeoutSecs)
	assert.Equal(t, 3, cfg.Edgar.MaxRetries)
	assert.InDelta(t, 0.8, cfg.Edgar.MinNameScore, 0.001)
	assert.Equal(t, 10, cfg.RateGate.Capacity)
	assert.InDelta(t, 1.0, cfg.RateGate.WindowSecs, 0.001)
	assert.Equal(t, 1, cfg.RateGate.Floor)
	assert.InDelta(t, 0.5, cfg.RateGate.BackoffFactor, 0.001)
	assert.Equal(t, 10, cfg.RateGate.RecoveryThreshold)
	assert.Equal(t, "sqlite", cfg.Cache.Driver)
	assert.Equal(t, 5, cfg.Batch.Concurrency)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
edgar:
  user_agent: "Acme admin@acme.com"
  max_retries: 5
rategate:
  capacity: 4
cache:
  driver: memory
  ttl:
    financials: 72h
    filings_list: 1h
log:
  level: debug
  format: console
server:
  port: 9090
batch:
  concurrency: 10
scorer:
  tech_points_each: 10
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "Acme admin@acme.com", cfg.Edgar.UserAgent)
	assert.Equal(t, 5, cfg.Edgar.MaxRetries)
	assert.Equal(t, 4, cfg.RateGate.Capacity)
	assert.Equal(t, "memory", cfg.Cache.Driver)
	assert.Equal(t, 72*time.Hour, cfg.Cache.TTL["financials"])
	assert.Equal(t, time.Hour, cfg.Cache.TTL["filings_list"])
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 10, cfg.Batch.Concurrency)
	assert.Equal(t, 10, cfg.Scorer.TechPointsEach)
	// Defaults still apply for unset values
	assert.Equal(t, "https://data.sec.gov", cfg.Edgar.BaseURL)
	assert.InDelta(t, 0.5, cfg.RateGate.BackoffFactor, 0.001)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
server:
  port: 9090
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))
	t.Setenv("EDGAR_ENRICH_SERVER_PORT", "7070")
	t.Setenv("EDGAR_ENRICH_EDGAR_USER_AGENT", "Acme ops@acme.com")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "Acme ops@acme.com", cfg.Edgar.UserAgent)
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))
	assert.NotNil(t, zap.L())

	err := InitLogger(LogConfig{Level: "nope", Format: "json"})
	assert.Error(t, err)
}
