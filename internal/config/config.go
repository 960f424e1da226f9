package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration. It is assembled once at
// startup and passed explicitly to every component; nothing reads ambient
// global state.
type Config struct {
	Batch    BatchConfig    `yaml:"batch" mapstructure:"batch"`
	Fetch    FetchConfig    `yaml:"fetch" mapstructure:"fetch"`
	Scrape   ScrapeConfig   `yaml:"scrape" mapstructure:"scrape"`
	Analysis AnalysisConfig `yaml:"analysis" mapstructure:"analysis"`
	Classify ClassifyConfig `yaml:"classify" mapstructure:"classify"`
	Storage  StorageConfig  `yaml:"storage" mapstructure:"storage"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// BatchConfig configures the batch orchestrator.
type BatchConfig struct {
	Concurrency         int `yaml:"concurrency" mapstructure:"concurrency"`
	ItemTimeoutSecs     int `yaml:"item_timeout_secs" mapstructure:"item_timeout_secs"`
	DownloadConcurrency int `yaml:"download_concurrency" mapstructure:"download_concurrency"`
}

// ItemTimeout returns the per-item timeout as a duration.
func (c BatchConfig) ItemTimeout() time.Duration {
	return time.Duration(c.ItemTimeoutSecs) * time.Second
}

// FetchConfig configures the fetch/download executor.
type FetchConfig struct {
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxAttempts int    `yaml:"max_attempts" mapstructure:"max_attempts"`
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`
}

// ScrapeConfig configures the page-fetch chain.
type ScrapeConfig struct {
	Headless        bool `yaml:"headless" mapstructure:"headless"`
	TimeoutSecs     int  `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MinContentBytes int  `yaml:"min_content_bytes" mapstructure:"min_content_bytes"`
}

// AnalysisConfig configures the external analysis call.
type AnalysisConfig struct {
	Key             string `yaml:"key" mapstructure:"key"`
	Model           string `yaml:"model" mapstructure:"model"`
	Instruction     string `yaml:"instruction" mapstructure:"instruction"`
	MaxTokens       int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
	QuotaCalls      int    `yaml:"quota_calls" mapstructure:"quota_calls"`
	QuotaWindowSecs int    `yaml:"quota_window_secs" mapstructure:"quota_window_secs"`
}

// QuotaWindow returns the rate-limit window as a duration.
func (c AnalysisConfig) QuotaWindow() time.Duration {
	return time.Duration(c.QuotaWindowSecs) * time.Second
}

// CategoryRule maps a document category to its anchor-text patterns.
// Declaration order is the tie-break order during classification.
type CategoryRule struct {
	Name     string   `yaml:"name" mapstructure:"name"`
	Patterns []string `yaml:"patterns" mapstructure:"patterns"`
}

// ClassifyConfig configures the document classifier. Empty Categories or
// AllowedExtensions mean the built-in defaults apply.
type ClassifyConfig struct {
	AllowedExtensions []string       `yaml:"allowed_extensions" mapstructure:"allowed_extensions"`
	Categories        []CategoryRule `yaml:"categories" mapstructure:"categories"`
}

// StorageConfig configures local persistence.
type StorageConfig struct {
	Dir          string `yaml:"dir" mapstructure:"dir"`
	DatabasePath string `yaml:"database_path" mapstructure:"database_path"`
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
	v.SetEnvPrefix("HARVEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("batch.concurrency", 5)
	v.SetDefault("batch.item_timeout_secs", 30)
	v.SetDefault("batch.download_concurrency", 5)
	v.SetDefault("fetch.timeout_secs", 30)
	v.SetDefault("fetch.max_attempts", 1)
	v.SetDefault("fetch.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36")
	v.SetDefault("scrape.headless", false)
	v.SetDefault("scrape.timeout_secs", 15)
	v.SetDefault("scrape.min_content_bytes", 100)
	v.SetDefault("analysis.model", "claude-haiku-4-5-20251001")
	v.SetDefault("analysis.max_tokens", 1024)
	v.SetDefault("analysis.quota_calls", 30)
	v.SetDefault("analysis.quota_window_secs", 60)
	v.SetDefault("storage.dir", "data")
	v.SetDefault("storage.database_path", "harvest.db")
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
