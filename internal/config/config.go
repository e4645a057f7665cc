package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// AI providers understood by ai.NewGenerator.
const (
	ProviderGoogleAI  = "googleai"
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderOllama    = "ollama"
)

// Components passed to Validate.
const (
	ComponentStore      = "store"
	ComponentScrape     = "scrape"
	ComponentCategorize = "categorize"
	ComponentSearch     = "search"
	ComponentServe      = "serve"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	SerpAPI  SerpAPIConfig  `yaml:"serpapi" mapstructure:"serpapi"`
	AI       AIConfig       `yaml:"ai" mapstructure:"ai"`
	Pipeline PipelineConfig `yaml:"pipeline" mapstructure:"pipeline"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// SerpAPIConfig holds search and profile lookup settings.
type SerpAPIConfig struct {
	Key               string  `yaml:"key" mapstructure:"key"`
	BaseURL           string  `yaml:"base_url" mapstructure:"base_url"`
	HL                string  `yaml:"hl" mapstructure:"hl"`
	GL                string  `yaml:"gl" mapstructure:"gl"`
	Num               int     `yaml:"num" mapstructure:"num"`
	TimeoutSecs       int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	MaxAttempts       int     `yaml:"max_attempts" mapstructure:"max_attempts"`
}

// AIConfig selects and configures the generative text provider.
type AIConfig struct {
	Provider  string `yaml:"provider" mapstructure:"provider"`
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	BaseURL   string `yaml:"base_url" mapstructure:"base_url"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// PipelineConfig configures scrape runs.
type PipelineConfig struct {
	ItemDelay       time.Duration `yaml:"item_delay" mapstructure:"item_delay"`
	Preflight       bool          `yaml:"preflight" mapstructure:"preflight"`
	DefaultCampType string        `yaml:"default_camp_type" mapstructure:"default_camp_type"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CAMPLEADS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Secrets have no default, so bind them explicitly. The unprefixed names
	// are what existing deployments export.
	for key, legacy := range map[string]string{
		"store.database_url": "DATABASE_URL",
		"serpapi.key":        "SERPAPI_API_KEY",
		"ai.key":             "GEMINI_API_KEY",
	} {
		envKey := "CAMPLEADS_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, envKey, legacy); err != nil {
			return nil, eris.Wrapf(err, "config: bind env %s", key)
		}
	}

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.max_conns", 5)
	v.SetDefault("store.min_conns", 1)
	v.SetDefault("serpapi.base_url", "https://serpapi.com")
	v.SetDefault("serpapi.hl", "pl")
	v.SetDefault("serpapi.gl", "pl")
	v.SetDefault("serpapi.num", 10)
	v.SetDefault("serpapi.timeout_secs", 30)
	v.SetDefault("serpapi.requests_per_second", 1.0)
	v.SetDefault("serpapi.max_attempts", 1)
	v.SetDefault("ai.provider", ProviderGoogleAI)
	v.SetDefault("ai.model", "gemini-2.5-flash-lite")
	v.SetDefault("ai.max_tokens", 1024)
	v.SetDefault("pipeline.item_delay", 1200*time.Millisecond)
	v.SetDefault("pipeline.preflight", true)
	v.SetDefault("pipeline.default_camp_type", "Półkolonie")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the settings a component needs are present. All
// problems are reported at once.
func (c *Config) Validate(component string) error {
	var problems []string
	switch component {
	case ComponentStore:
		problems = c.storeProblems()
	case ComponentServe:
		problems = c.storeProblems()
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	case ComponentSearch:
		problems = c.searchProblems()
	case ComponentCategorize:
		problems = append(c.storeProblems(), c.aiProblems()...)
	case ComponentScrape:
		problems = append(c.storeProblems(), c.searchProblems()...)
		problems = append(problems, c.aiProblems()...)
		if c.Pipeline.ItemDelay < 0 {
			problems = append(problems, "pipeline.item_delay must be >= 0")
		}
	default:
		return eris.Errorf("config: unknown component %q", component)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: invalid for %s: %s", component, strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) storeProblems() []string {
	switch c.Store.Driver {
	case "postgres":
		if c.Store.DatabaseURL == "" {
			return []string{"store.database_url is required for postgres"}
		}
	case "sqlite":
	default:
		return []string{fmt.Sprintf("store.driver %q is not supported", c.Store.Driver)}
	}
	return nil
}

func (c *Config) searchProblems() []string {
	var out []string
	if c.SerpAPI.Key == "" {
		out = append(out, "serpapi.key is required")
	}
	if c.SerpAPI.RequestsPerSecond < 0 {
		out = append(out, "serpapi.requests_per_second must be >= 0")
	}
	return out
}

func (c *Config) aiProblems() []string {
	var out []string
	switch c.AI.Provider {
	case ProviderOllama:
	case ProviderGoogleAI, ProviderAnthropic, ProviderOpenAI:
		if c.AI.Key == "" {
			out = append(out, fmt.Sprintf("ai.key is required for provider %s", c.AI.Provider))
		}
	default:
		out = append(out, fmt.Sprintf("ai.provider %q is not supported", c.AI.Provider))
	}
	if c.AI.Model == "" {
		out = append(out, "ai.model is required")
	}
	return out
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
