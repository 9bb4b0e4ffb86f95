// Package config loads application configuration from config.yaml and the
// environment and initializes the global logger.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/edgar-enrich/internal/scorer"
)

// Config holds the full application configuration.
type Config struct {
	Edgar    EdgarConfig    `yaml:"edgar" mapstructure:"edgar"`
	RateGate RateGateConfig `yaml:"rategate" mapstructure:"rategate"`
	Cache    CacheConfig    `yaml:"cache" mapstructure:"cache"`
	Scorer   scorer.Config  `yaml:"scorer" mapstructure:"scorer"`
	Batch    BatchConfig    `yaml:"batch" mapstructure:"batch"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// EdgarConfig configures the EDGAR API client.
type EdgarConfig struct {
	// UserAgent must include a contact email per SEC fair-access policy.
	UserAgent    string  `yaml:"user_agent" mapstructure:"user_agent"`
	BaseURL      string  `yaml:"base_url" mapstructure:"base_url"`
	DirectoryURL string  `yaml:"directory_url" mapstructure:"directory_url"`
	TimeoutSecs  int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries   int     `yaml:"max_retries" mapstructure:"max_retries"`
	MinNameScore float64 `yaml:"min_name_score" mapstructure:"min_name_score"`
}

// RateGateConfig configures the client-side sliding-window rate gate.
type RateGateConfig struct {
	Capacity          int     `yaml:"capacity" mapstructure:"capacity"`
	WindowSecs        float64 `yaml:"window_secs" mapstructure:"window_secs"`
	Floor             int     `yaml:"floor" mapstructure:"floor"`
	BackoffFactor     float64 `yaml:"backoff_factor" mapstructure:"backoff_factor"`
	RecoveryRate      float64 `yaml:"recovery_rate" mapstructure:"recovery_rate"`
	RecoveryThreshold int     `yaml:"recovery_threshold" mapstructure:"recovery_threshold"`
}

// CacheConfig configures the response cache backend.
type CacheConfig struct {
	// Driver is sqlite, postgres, or memory.
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int    `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int    `yaml:"min_conns" mapstructure:"min_conns"`

	// TTL overrides the retention per cache tier, keyed by tier name,
	// e.g. ttl: {financials: 168h}.
	TTL map[string]time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

// BatchConfig configures batch enrichment.
type BatchConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

// ServerConfig configures the HTTP API server.
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
	v.SetEnvPrefix("EDGAR_ENRICH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("edgar.base_url", "https://data.sec.gov")
	v.SetDefault("edgar.directory_url", "https://www.sec.gov/files/company_tickers.json")
	v.SetDefault("edgar.timeout_secs", 30)
	v.SetDefault("edgar.max_retries", 3)
	v.SetDefault("edgar.min_name_score", 0.8)
	v.SetDefault("rategate.capacity", 10)
	v.SetDefault("rategate.window_secs", 1.0)
	v.SetDefault("rategate.floor", 1)
	v.SetDefault("rategate.backoff_factor", 0.5)
	v.SetDefault("rategate.recovery_rate", 0.1)
	v.SetDefault("rategate.recovery_threshold", 10)
	v.SetDefault("cache.driver", "sqlite")
	v.SetDefault("cache.path", "~/.edgar-enrich/cache.db")
	v.SetDefault("cache.max_conns", 10)
	v.SetDefault("cache.min_conns", 2)
	v.SetDefault("batch.concurrency", 5)
	v.SetDefault("server.port", 8080)
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
