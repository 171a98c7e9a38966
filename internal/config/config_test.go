package config

import (
	"os"
	"path/filepath"
	"testing"

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

	assert.Equal(t, "xlsx", cfg.Store.Driver)
	assert.Equal(t, "email_tracking.xlsx", cfg.Store.Path)
	assert.Equal(t, "replies.jsonl", cfg.Mailbox.Path)
	assert.Equal(t, 24, cfg.Mailbox.SinceHours)
	assert.Equal(t, 30, cfg.Monitor.IntervalMins)
	assert.Equal(t, 3, cfg.Monitor.FollowupDays)
	assert.Equal(t, 3, cfg.Monitor.DLQMaxRetries)
	assert.True(t, cfg.Classify.UseAI)
	assert.InDelta(t, 0.75, cfg.Classify.BlendThreshold, 0.001)
	assert.Equal(t, 100, cfg.Classify.ComplexWordLimit)
	assert.Equal(t, 8, cfg.Classify.SmallBatchThreshold)
	assert.Equal(t, "claude-sonnet-4-5-20250929", cfg.Anthropic.SonnetModel)
	assert.Equal(t, "https://login.salesforce.com", cfg.Salesforce.LoginURL)
	assert.InDelta(t, 5.0, cfg.Salesforce.RPS, 0.001)
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
store:
  driver: sqlite
  path: tracking.db
mailbox:
  path: inbox.jsonl
monitor:
  interval_mins: 10
  spam_domains:
    - "@bulkmail.example"
log:
  level: debug
  format: console
server:
  port: 9090
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "tracking.db", cfg.Store.Path)
	assert.Equal(t, "inbox.jsonl", cfg.Mailbox.Path)
	assert.Equal(t, 10, cfg.Monitor.IntervalMins)
	assert.Equal(t, []string{"@bulkmail.example"}, cfg.Monitor.SpamDomains)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	// Defaults still apply for unset values
	assert.Equal(t, 3, cfg.Monitor.FollowupDays)
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

	t.Setenv("OUTREACH_STORE_DRIVER", "postgres")
	t.Setenv("OUTREACH_LOG_LEVEL", "warn")

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

	t.Setenv("OUTREACH_SERVER_PORT", "3000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
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

// validDefaults returns a Config with defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "xlsx"
	cfg.Store.Path = "email_tracking.xlsx"
	cfg.Monitor.IntervalMins = 30
	cfg.Monitor.FollowupDays = 3
	cfg.Classify.BlendThreshold = 0.75
	cfg.Server.Port = 8080
	return cfg
}

func TestValidateCheck_FileDriverNeedsPath(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Path = ""

	err := cfg.Validate("check")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.path is required")
}

func TestValidateCheck_PostgresNeedsURL(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "postgres"

	err := cfg.Validate("check")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")

	cfg.Store.DatabaseURL = "postgres://localhost/outreach"
	assert.NoError(t, cfg.Validate("check"))
}

func TestValidateCheck_UnknownDriver(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "mongodb"

	err := cfg.Validate("check")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver must be xlsx, sqlite or postgres")
}

func TestValidateCheck_AIRequiresKey(t *testing.T) {
	cfg := validDefaults()
	cfg.Classify.UseAI = true

	err := cfg.Validate("check")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic.key is required")

	cfg.Anthropic.Key = "sk-ant-key"
	assert.NoError(t, cfg.Validate("check"))
}

func TestValidateMonitor_IntervalBounds(t *testing.T) {
	cfg := validDefaults()
	cfg.Monitor.IntervalMins = 0

	err := cfg.Validate("monitor")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "monitor.interval_mins must be >= 1")
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidateMigrate_NeedsURL(t *testing.T) {
	cfg := validDefaults()

	err := cfg.Validate("migrate")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")
}

func TestValidateSync_NeedsStore(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Path = ""

	err := cfg.Validate("sync")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.path is required")

	cfg.Store.Path = "email_tracking.xlsx"
	assert.NoError(t, cfg.Validate("sync"))
}

func TestValidateSalesforce_EnabledNeedsCreds(t *testing.T) {
	cfg := validDefaults()
	cfg.Salesforce.Enabled = true

	err := cfg.Validate("check")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "salesforce.client_id is required")
	assert.Contains(t, err.Error(), "salesforce.username is required")

	cfg.Salesforce.ClientID = "client"
	cfg.Salesforce.Username = "sales@example.com"
	assert.NoError(t, cfg.Validate("check"))
}

func TestValidateBlendThresholdBounds(t *testing.T) {
	cfg := validDefaults()
	cfg.Classify.BlendThreshold = 1.5

	err := cfg.Validate("check")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "blend_threshold")
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}
