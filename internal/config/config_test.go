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

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "qualifier.db", cfg.Store.SQLitePath)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "https://api.hubapi.com", cfg.HubSpot.BaseURL)
	assert.Equal(t, "sql_qualifier_status", cfg.HubSpot.StatusProperty)
	assert.Equal(t, "sql_qualifier_json", cfg.HubSpot.ResultProperty)
	assert.Equal(t, "sql_qualifier", cfg.HubSpot.QualifyField)
	assert.Equal(t, "https://api.tavily.com", cfg.Tavily.BaseURL)
	assert.Equal(t, 5, cfg.Tavily.MaxResults)
	assert.Equal(t, "it", cfg.Semrush.Database)
	assert.Equal(t, "http://localhost:11434", cfg.Ollama.BaseURL)
	assert.InDelta(t, 0.6, cfg.Revenue.SimilarityThreshold, 0.001)
	assert.Equal(t, 20, cfg.Revenue.TierTimeoutSecs)
	assert.Equal(t, 45, cfg.Enrich.TaskTimeoutSecs)
	assert.Equal(t, []string{"default"}, cfg.Intake.Pipelines)
	assert.Equal(t, []string{"inbound"}, cfg.Intake.Sources)
	assert.Equal(t, 600, cfg.Scan.IntervalSecs)
	assert.Equal(t, 50, cfg.Scan.BatchLimit)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/qualifier
log:
  level: debug
  format: console
server:
  port: 9090
scan:
  interval_secs: 120
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/qualifier", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 120, cfg.Scan.IntervalSecs)
	// Defaults still apply for unset values
	assert.Equal(t, "sql_qualifier_status", cfg.HubSpot.StatusProperty)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("QUALIFIER_STORE_DRIVER", "postgres")
	t.Setenv("QUALIFIER_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	t.Setenv("QUALIFIER_SERVER_PORT", "3000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
}

func TestScanInterval(t *testing.T) {
	assert.Equal(t, 2*time.Minute, ScanConfig{IntervalSecs: 120}.Interval())
	assert.Equal(t, 10*time.Minute, ScanConfig{}.Interval())
	assert.Equal(t, 10*time.Minute, ScanConfig{IntervalSecs: -5}.Interval())
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

func validProcessConfig() *Config {
	cfg := &Config{}
	cfg.Server.Port = 8080
	cfg.Store.Driver = "sqlite"
	cfg.HubSpot.Token = "pat-test"
	cfg.Slack.BotToken = "xoxb-test"
	cfg.Slack.SigningSecret = "secret"
	cfg.Slack.Channel = "#inbound"
	cfg.Revenue.SimilarityThreshold = 0.6
	return cfg
}

func TestValidateProcess_AllPresent(t *testing.T) {
	assert.NoError(t, validProcessConfig().Validate("process"))
}

func TestValidateProcess_MissingFields(t *testing.T) {
	cfg := &Config{}
	cfg.Store.Driver = "sqlite"
	cfg.Revenue.SimilarityThreshold = 0.6

	err := cfg.Validate("process")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hubspot.token is required")
	assert.Contains(t, err.Error(), "slack.bot_token is required")
	assert.Contains(t, err.Error(), "slack.channel is required")
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validProcessConfig()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidateServe_RequiresSigningSecret(t *testing.T) {
	cfg := validProcessConfig()
	cfg.Slack.SigningSecret = ""

	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "slack.signing_secret is required")
}

func TestValidatePostgresRequiresURL(t *testing.T) {
	cfg := validProcessConfig()
	cfg.Store.Driver = "postgres"

	err := cfg.Validate("process")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")

	cfg.Store.DatabaseURL = "postgres://localhost/qualifier"
	assert.NoError(t, cfg.Validate("process"))
}

func TestValidateSimilarityBounds(t *testing.T) {
	cfg := validProcessConfig()

	cfg.Revenue.SimilarityThreshold = 0
	err := cfg.Validate("process")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "similarity_threshold")

	cfg.Revenue.SimilarityThreshold = 1.5
	assert.Error(t, cfg.Validate("process"))

	cfg.Revenue.SimilarityThreshold = 1.0
	assert.NoError(t, cfg.Validate("process"))
}

func TestValidateUnknownMode(t *testing.T) {
	err := validProcessConfig().Validate("unknown")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}
