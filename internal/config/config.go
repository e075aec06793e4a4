package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	HubSpot    HubSpotConfig    `yaml:"hubspot" mapstructure:"hubspot"`
	Slack      SlackConfig      `yaml:"slack" mapstructure:"slack"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Ollama     OllamaConfig     `yaml:"ollama" mapstructure:"ollama"`
	Tavily     TavilyConfig     `yaml:"tavily" mapstructure:"tavily"`
	Semrush    SemrushConfig    `yaml:"semrush" mapstructure:"semrush"`
	Similarweb SimilarwebConfig `yaml:"similarweb" mapstructure:"similarweb"`
	Vies       ViesConfig       `yaml:"vies" mapstructure:"vies"`
	Revenue    RevenueConfig    `yaml:"revenue" mapstructure:"revenue"`
	Enrich     EnrichConfig     `yaml:"enrich" mapstructure:"enrich"`
	Intake     IntakeConfig     `yaml:"intake" mapstructure:"intake"`
	Scan       ScanConfig       `yaml:"scan" mapstructure:"scan"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the dedup store backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
}

// HubSpotConfig holds CRM API settings and the deal property names the
// pipeline reads and writes.
type HubSpotConfig struct {
	Token          string `yaml:"token" mapstructure:"token"`
	BaseURL        string `yaml:"base_url" mapstructure:"base_url"`
	PortalID       string `yaml:"portal_id" mapstructure:"portal_id"`
	StatusProperty string `yaml:"status_property" mapstructure:"status_property"`
	ResultProperty string `yaml:"result_property" mapstructure:"result_property"`
	QualifyField   string `yaml:"qualify_field" mapstructure:"qualify_field"`
}

// SlackConfig holds notification channel settings.
type SlackConfig struct {
	BotToken      string `yaml:"bot_token" mapstructure:"bot_token"`
	SigningSecret string `yaml:"signing_secret" mapstructure:"signing_secret"`
	Channel       string `yaml:"channel" mapstructure:"channel"`
}

// AnthropicConfig holds the scoring model settings.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// OllamaConfig holds the optional local text-extraction settings.
type OllamaConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
}

// TavilyConfig holds web search API settings.
type TavilyConfig struct {
	Key        string `yaml:"key" mapstructure:"key"`
	BaseURL    string `yaml:"base_url" mapstructure:"base_url"`
	MaxResults int    `yaml:"max_results" mapstructure:"max_results"`
}

// SemrushConfig holds search-traffic API settings.
type SemrushConfig struct {
	Key      string `yaml:"key" mapstructure:"key"`
	BaseURL  string `yaml:"base_url" mapstructure:"base_url"`
	Database string `yaml:"database" mapstructure:"database"`
}

// SimilarwebConfig holds site-analytics API settings.
type SimilarwebConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// ViesConfig holds the VAT registry endpoint.
type ViesConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// RevenueConfig tunes the tiered revenue chain.
type RevenueConfig struct {
	TierConfigPath      string  `yaml:"tier_config_path" mapstructure:"tier_config_path"`
	SimilarityThreshold float64 `yaml:"similarity_threshold" mapstructure:"similarity_threshold"`
	TierTimeoutSecs     int     `yaml:"tier_timeout_secs" mapstructure:"tier_timeout_secs"`
}

// EnrichConfig tunes the enrichment coordinator.
type EnrichConfig struct {
	TaskTimeoutSecs int    `yaml:"task_timeout_secs" mapstructure:"task_timeout_secs"`
	UserAgent       string `yaml:"user_agent" mapstructure:"user_agent"`
}

// IntakeConfig holds the webhook allow-list filter.
type IntakeConfig struct {
	Pipelines []string `yaml:"pipelines" mapstructure:"pipelines"`
	Sources   []string `yaml:"sources" mapstructure:"sources"`
}

// ScanConfig configures the recovery scan loop.
type ScanConfig struct {
	IntervalSecs int `yaml:"interval_secs" mapstructure:"interval_secs"`
	BatchLimit   int `yaml:"batch_limit" mapstructure:"batch_limit"`
}

// Interval returns the scan interval as a duration.
func (s ScanConfig) Interval() time.Duration {
	if s.IntervalSecs <= 0 {
		return 10 * time.Minute
	}
	return time.Duration(s.IntervalSecs) * time.Second
}

// ServerConfig configures the webhook server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
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
	v.SetEnvPrefix("QUALIFIER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_path", "qualifier.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("hubspot.base_url", "https://api.hubapi.com")
	v.SetDefault("hubspot.status_property", "sql_qualifier_status")
	v.SetDefault("hubspot.result_property", "sql_qualifier_json")
	v.SetDefault("hubspot.qualify_field", "sql_qualifier")
	v.SetDefault("vies.base_url", "https://ec.europa.eu/taxation_customs/vies/rest-api")
	v.SetDefault("tavily.base_url", "https://api.tavily.com")
	v.SetDefault("tavily.max_results", 5)
	v.SetDefault("semrush.base_url", "https://api.semrush.com")
	v.SetDefault("semrush.database", "it")
	v.SetDefault("similarweb.base_url", "https://api.similarweb.com")
	v.SetDefault("ollama.base_url", "http://localhost:11434")
	v.SetDefault("ollama.model", "llama3.1")
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("revenue.similarity_threshold", 0.6)
	v.SetDefault("revenue.tier_timeout_secs", 20)
	v.SetDefault("enrich.task_timeout_secs", 45)
	v.SetDefault("enrich.user_agent", "lead-qualifier/1.0")
	v.SetDefault("intake.pipelines", []string{"default"})
	v.SetDefault("intake.sources", []string{"inbound"})
	v.SetDefault("scan.interval_secs", 600)
	v.SetDefault("scan.batch_limit", 50)

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

// Validate checks that the settings a given mode depends on are present.
// Modes: "serve" (webhook server + scanner), "process" (one-shot processing).
func (c *Config) Validate(mode string) error {
	var missing []string

	requireStr := func(key, val string) {
		if val == "" {
			missing = append(missing, key+" is required")
		}
	}

	switch mode {
	case "serve":
		if c.Server.Port <= 0 {
			missing = append(missing, "server.port must be > 0")
		}
		requireStr("slack.signing_secret", c.Slack.SigningSecret)
		fallthrough
	case "process":
		requireStr("hubspot.token", c.HubSpot.Token)
		requireStr("slack.bot_token", c.Slack.BotToken)
		requireStr("slack.channel", c.Slack.Channel)
		if c.Store.Driver == "postgres" {
			requireStr("store.database_url", c.Store.DatabaseURL)
		}
		if c.Revenue.SimilarityThreshold <= 0 || c.Revenue.SimilarityThreshold > 1 {
			missing = append(missing, "revenue.similarity_threshold must be in (0, 1]")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(missing) > 0 {
		return eris.New("config: " + strings.Join(missing, "; "))
	}
	return nil
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
