// Package config loads application configuration from a yaml file and the
// environment, and initializes the global logger.
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
	Source   SourceConfig   `yaml:"source" mapstructure:"source"`
	Oracle   OracleConfig   `yaml:"oracle" mapstructure:"oracle"`
	Pipeline PipelineConfig `yaml:"pipeline" mapstructure:"pipeline"`
	Index    IndexConfig    `yaml:"index" mapstructure:"index"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// SourceConfig configures paginated review acquisition.
type SourceConfig struct {
	// ListingBaseURL is the review listing gateway endpoint.
	ListingBaseURL string `yaml:"listing_base_url" mapstructure:"listing_base_url"`
	// TargetReviews is the default number of reviews to fetch per run.
	TargetReviews int `yaml:"target_reviews" mapstructure:"target_reviews"`
	// MinReviews is the minimum corpus size before the run records a
	// partial-data warning.
	MinReviews int `yaml:"min_reviews" mapstructure:"min_reviews"`
	// PolitenessDelayMS is the minimum interval between page fetches.
	PolitenessDelayMS int `yaml:"politeness_delay_ms" mapstructure:"politeness_delay_ms"`
	// PageRetries is the per-page retry attempt budget.
	PageRetries int `yaml:"page_retries" mapstructure:"page_retries"`
	// TimeoutSecs bounds a single page fetch.
	TimeoutSecs int `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// PolitenessDelay returns the configured inter-page interval.
func (c SourceConfig) PolitenessDelay() time.Duration {
	return time.Duration(c.PolitenessDelayMS) * time.Millisecond
}

// Timeout returns the per-page fetch deadline.
func (c SourceConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// OracleConfig configures the extraction oracle client.
type OracleConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
	// Temperature keeps extraction near-deterministic across repeated runs.
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`
	MaxTokens   int64   `yaml:"max_tokens" mapstructure:"max_tokens"`
	// AttemptTimeoutSecs bounds one oracle call; exceeding it counts as a
	// transient failure.
	AttemptTimeoutSecs int `yaml:"attempt_timeout_secs" mapstructure:"attempt_timeout_secs"`
	// RateLimitCooldownSecs is the fixed wait after a rate-limit signal.
	RateLimitCooldownSecs int `yaml:"rate_limit_cooldown_secs" mapstructure:"rate_limit_cooldown_secs"`
	MaxAttempts           int `yaml:"max_attempts" mapstructure:"max_attempts"`
}

// AttemptTimeout returns the per-call deadline.
func (c OracleConfig) AttemptTimeout() time.Duration {
	return time.Duration(c.AttemptTimeoutSecs) * time.Second
}

// RateLimitCooldown returns the fixed rate-limit wait.
func (c OracleConfig) RateLimitCooldown() time.Duration {
	return time.Duration(c.RateLimitCooldownSecs) * time.Second
}

// PipelineConfig configures batching, concurrency, and merging.
type PipelineConfig struct {
	// BatchSize is the number of reviews per oracle call.
	BatchSize int `yaml:"batch_size" mapstructure:"batch_size"`
	// Concurrency is the batch worker pool size. Kept small so parallel
	// workers stay inside the oracle's aggregate rate limit.
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
	// MentionFloor flags merged entities with fewer distinct source reviews
	// as low-confidence.
	MentionFloor int `yaml:"mention_floor" mapstructure:"mention_floor"`
}

// IndexConfig configures the Q&A relevance index.
type IndexConfig struct {
	// TopN is the default number of reviews returned per query.
	TopN int `yaml:"top_n" mapstructure:"top_n"`
}

// ServerConfig configures the HTTP API.
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
	v.SetEnvPrefix("REVIEWS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("source.target_reviews", 100)
	v.SetDefault("source.min_reviews", 10)
	v.SetDefault("source.politeness_delay_ms", 1500)
	v.SetDefault("source.page_retries", 3)
	v.SetDefault("source.timeout_secs", 30)
	v.SetDefault("oracle.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("oracle.temperature", 0.2)
	v.SetDefault("oracle.max_tokens", 4096)
	v.SetDefault("oracle.attempt_timeout_secs", 60)
	v.SetDefault("oracle.rate_limit_cooldown_secs", 30)
	v.SetDefault("oracle.max_attempts", 3)
	v.SetDefault("pipeline.batch_size", 15)
	v.SetDefault("pipeline.concurrency", 4)
	v.SetDefault("pipeline.mention_floor", 2)
	v.SetDefault("index.top_n", 50)

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

	if cfg.Pipeline.BatchSize <= 0 {
		return nil, eris.Errorf("config: pipeline.batch_size must be positive, got %d", cfg.Pipeline.BatchSize)
	}
	if cfg.Pipeline.Concurrency <= 0 {
		cfg.Pipeline.Concurrency = 1
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
