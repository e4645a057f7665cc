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

// chdirTemp moves into an empty directory so no config.yaml is found.
func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, int32(5), cfg.Store.MaxConns)
	assert.Equal(t, "https://serpapi.com", cfg.SerpAPI.BaseURL)
	assert.Equal(t, "pl", cfg.SerpAPI.HL)
	assert.Equal(t, "pl", cfg.SerpAPI.GL)
	assert.Equal(t, 10, cfg.SerpAPI.Num)
	assert.Equal(t, 30, cfg.SerpAPI.TimeoutSecs)
	assert.InDelta(t, 1.0, cfg.SerpAPI.RequestsPerSecond, 0.001)
	assert.Equal(t, 1, cfg.SerpAPI.MaxAttempts)
	assert.Equal(t, ProviderGoogleAI, cfg.AI.Provider)
	assert.Equal(t, "gemini-2.5-flash-lite", cfg.AI.Model)
	assert.Equal(t, int64(1024), cfg.AI.MaxTokens)
	assert.Equal(t, 1200*time.Millisecond, cfg.Pipeline.ItemDelay)
	assert.True(t, cfg.Pipeline.Preflight)
	assert.Equal(t, "Półkolonie", cfg.Pipeline.DefaultCampType)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
  database_url: leads.db
ai:
  provider: ollama
  model: llama3
pipeline:
  item_delay: 2s
  preflight: false
log:
  level: debug
  format: console
server:
  port: 9090
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "leads.db", cfg.Store.DatabaseURL)
	assert.Equal(t, ProviderOllama, cfg.AI.Provider)
	assert.Equal(t, "llama3", cfg.AI.Model)
	assert.Equal(t, 2*time.Second, cfg.Pipeline.ItemDelay)
	assert.False(t, cfg.Pipeline.Preflight)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	// Defaults still apply for unset values
	assert.Equal(t, 10, cfg.SerpAPI.Num)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	t.Setenv("CAMPLEADS_STORE_DRIVER", "postgres")
	t.Setenv("CAMPLEADS_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadSecretsFromEnv(t *testing.T) {
	chdirTemp(t)

	t.Setenv("CAMPLEADS_SERPAPI_KEY", "serp-key")
	t.Setenv("GEMINI_API_KEY", "gemini-key")
	t.Setenv("DATABASE_URL", "postgres://localhost/leads")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "serp-key", cfg.SerpAPI.Key)
	assert.Equal(t, "gemini-key", cfg.AI.Key)
	assert.Equal(t, "postgres://localhost/leads", cfg.Store.DatabaseURL)
}

func TestLoadPrefixedSecretWins(t *testing.T) {
	chdirTemp(t)

	t.Setenv("CAMPLEADS_SERPAPI_KEY", "prefixed")
	t.Setenv("SERPAPI_API_KEY", "legacy")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "prefixed", cfg.SerpAPI.Key)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("CAMPLEADS_SERVER_PORT", "3000")
	t.Setenv("CAMPLEADS_PIPELINE_ITEM_DELAY", "250ms")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, 250*time.Millisecond, cfg.Pipeline.ItemDelay)
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

// validDefaults returns a Config that passes every component check.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "postgres"
	cfg.Store.DatabaseURL = "postgres://localhost/test"
	cfg.SerpAPI.Key = "serp-key"
	cfg.AI.Provider = ProviderGoogleAI
	cfg.AI.Key = "ai-key"
	cfg.AI.Model = "gemini-2.5-flash-lite"
	cfg.Pipeline.ItemDelay = 1200 * time.Millisecond
	cfg.Server.Port = 8080
	return cfg
}

func TestValidate_AllComponentsValid(t *testing.T) {
	cfg := validDefaults()
	for _, c := range []string{ComponentStore, ComponentServe, ComponentSearch, ComponentCategorize, ComponentScrape} {
		assert.NoError(t, cfg.Validate(c), c)
	}
}

func TestValidateScrape_MissingFields(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.DatabaseURL = ""
	cfg.SerpAPI.Key = ""
	cfg.AI.Key = ""

	err := cfg.Validate(ComponentScrape)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")
	assert.Contains(t, err.Error(), "serpapi.key is required")
	assert.Contains(t, err.Error(), "ai.key is required for provider googleai")
}

func TestValidateScrape_OllamaNeedsNoKey(t *testing.T) {
	cfg := validDefaults()
	cfg.AI.Provider = ProviderOllama
	cfg.AI.Key = ""

	assert.NoError(t, cfg.Validate(ComponentScrape))
}

func TestValidate_SQLiteNeedsNoURL(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "sqlite"
	cfg.Store.DatabaseURL = ""

	assert.NoError(t, cfg.Validate(ComponentStore))
}

func TestValidate_UnsupportedDriverAndProvider(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "mysql"
	cfg.AI.Provider = "mistral"

	err := cfg.Validate(ComponentCategorize)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `store.driver "mysql" is not supported`)
	assert.Contains(t, err.Error(), `ai.provider "mistral" is not supported`)
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate(ComponentServe)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidateSearch_OnlyNeedsKey(t *testing.T) {
	cfg := &Config{}
	cfg.SerpAPI.Key = "k"
	assert.NoError(t, cfg.Validate(ComponentSearch))
}

func TestValidateUnknownComponent(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown component")
}
