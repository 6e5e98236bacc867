// Package config handles configuration loading for MarketMind.
// It supports YAML config files with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration.
type Config struct {
	LLM        LLMConfig        `mapstructure:"llm"        yaml:"llm"`
	MarketData MarketDataConfig `mapstructure:"marketdata" yaml:"marketdata"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"   yaml:"pipeline"`
	Analytics  AnalyticsConfig  `mapstructure:"analytics"  yaml:"analytics"`
	Gateway    GatewayConfig    `mapstructure:"gateway"    yaml:"gateway"`
	Database   DatabaseConfig   `mapstructure:"database"   yaml:"database"`
	API        APIConfig        `mapstructure:"api"        yaml:"api"`
	Logging    LoggingConfig    `mapstructure:"logging"    yaml:"logging"`
}

// LLMConfig holds the AI provider configuration.
type LLMConfig struct {
	GeminiKey   string  `mapstructure:"gemini_key"    yaml:"gemini_key"`
	Model       string  `mapstructure:"model"         yaml:"model"`
	Temperature float64 `mapstructure:"temperature"   yaml:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"    yaml:"max_tokens"`
	TimeoutSec  int     `mapstructure:"timeout_sec"   yaml:"timeout_sec"`
}

// MarketDataConfig holds the quote provider and cache settings.
type MarketDataConfig struct {
	APIKey             string `mapstructure:"api_key"              yaml:"api_key"`
	BaseURL            string `mapstructure:"base_url"             yaml:"base_url"`
	CacheTTLSec        int    `mapstructure:"cache_ttl_sec"        yaml:"cache_ttl_sec"`
	UpstreamTimeoutSec int    `mapstructure:"upstream_timeout_sec" yaml:"upstream_timeout_sec"`
	RequestTimeoutSec  int    `mapstructure:"request_timeout_sec"  yaml:"request_timeout_sec"`
	RedisAddr          string `mapstructure:"redis_addr"           yaml:"redis_addr"` // optional
	RedisPassword      string `mapstructure:"redis_password"       yaml:"redis_password"`
	RedisDB            int    `mapstructure:"redis_db"             yaml:"redis_db"`
}

// PipelineConfig holds ingestion pipeline settings.
type PipelineConfig struct {
	IntervalMin   int `mapstructure:"interval_min"    yaml:"interval_min"`
	RunTimeoutSec int `mapstructure:"run_timeout_sec" yaml:"run_timeout_sec"`
	DedupHours    int `mapstructure:"dedup_hours"     yaml:"dedup_hours"`
	MaxArticles   int `mapstructure:"max_articles"    yaml:"max_articles"`
}

// AnalyticsConfig holds daily aggregation settings.
type AnalyticsConfig struct {
	BatchSize   int    `mapstructure:"batch_size"    yaml:"batch_size"`
	DailyRunUTC string `mapstructure:"daily_run_utc" yaml:"daily_run_utc"` // "HH:MM"
}

// GatewayConfig holds user-mutation gateway settings.
type GatewayConfig struct {
	SubmitWindowSec int `mapstructure:"submit_window_sec" yaml:"submit_window_sec"`
}

// DatabaseConfig holds persistence settings. An empty URL selects the
// in-memory store (dev mode).
type DatabaseConfig struct {
	URL      string `mapstructure:"url"       yaml:"url"`
	MaxConns int    `mapstructure:"max_conns" yaml:"max_conns"`
}

// APIConfig holds HTTP API server settings.
type APIConfig struct {
	Host        string   `mapstructure:"host"          yaml:"host"`
	Port        int      `mapstructure:"port"          yaml:"port"`
	CORSOrigins []string `mapstructure:"cors_origins"  yaml:"cors_origins"`
	RateRPS     float64  `mapstructure:"rate_rps"      yaml:"rate_rps"`
	RateBurst   int      `mapstructure:"rate_burst"    yaml:"rate_burst"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `mapstructure:"format" yaml:"format"` // "text" or "json"
}

// CacheTTL returns the market-data cache TTL as a duration.
func (c MarketDataConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSec) * time.Second
}

// UpstreamTimeout returns the per-upstream-call timeout as a duration.
func (c MarketDataConfig) UpstreamTimeout() time.Duration {
	return time.Duration(c.UpstreamTimeoutSec) * time.Second
}

// RequestTimeout returns the overall market-data request budget as a duration.
func (c MarketDataConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSec) * time.Second
}

// Interval returns the scheduled pipeline interval as a duration.
func (c PipelineConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMin) * time.Minute
}

// RunTimeout returns the per-run budget as a duration.
func (c PipelineConfig) RunTimeout() time.Duration {
	return time.Duration(c.RunTimeoutSec) * time.Second
}

// DedupWindow returns the dedup horizon as a duration.
func (c PipelineConfig) DedupWindow() time.Duration {
	return time.Duration(c.DedupHours) * time.Hour
}

// SubmitWindow returns the per-user submission window as a duration.
func (c GatewayConfig) SubmitWindow() time.Duration {
	return time.Duration(c.SubmitWindowSec) * time.Second
}

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml (project root)
//  2. ~/.marketmind/config.yaml (home directory)
//  3. /etc/marketmind/config.yaml (system)
//
// Environment variables override config file values.
// Format: MARKETMIND_<SECTION>_<KEY>, e.g., MARKETMIND_LLM_GEMINI_KEY
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".marketmind"))
	v.AddConfigPath("/etc/marketmind")

	v.SetEnvPrefix("MARKETMIND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is fine, use defaults + env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	overrideFromEnv(&cfg)

	return &cfg, nil
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetEnvPrefix("MARKETMIND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	overrideFromEnv(&cfg)
	return &cfg, nil
}

// setDefaults sets sensible defaults for all config values.
func setDefaults(v *viper.Viper) {
	// LLM defaults
	v.SetDefault("llm.model", "gemini-2.0-flash")
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.max_tokens", 8192)
	v.SetDefault("llm.timeout_sec", 120)

	// Market data defaults. The quote client appends /query itself, so the
	// base URL must not carry it.
	v.SetDefault("marketdata.base_url", "https://www.alphavantage.co")
	v.SetDefault("marketdata.cache_ttl_sec", 300)
	v.SetDefault("marketdata.upstream_timeout_sec", 10)
	v.SetDefault("marketdata.request_timeout_sec", 30)
	v.SetDefault("marketdata.redis_db", 0)

	// Pipeline defaults
	v.SetDefault("pipeline.interval_min", 15)
	v.SetDefault("pipeline.run_timeout_sec", 540)
	v.SetDefault("pipeline.dedup_hours", 24)
	v.SetDefault("pipeline.max_articles", 30)

	// Analytics defaults
	v.SetDefault("analytics.batch_size", 1000)
	v.SetDefault("analytics.daily_run_utc", "23:55")

	// Gateway defaults
	v.SetDefault("gateway.submit_window_sec", 60)

	// Database defaults (empty URL = in-memory dev store)
	v.SetDefault("database.max_conns", 10)

	// API defaults
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.cors_origins", []string{"http://localhost:5173"})
	v.SetDefault("api.rate_rps", 5.0)
	v.SetDefault("api.rate_burst", 10)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// overrideFromEnv explicitly reads sensitive keys from environment variables.
func overrideFromEnv(cfg *Config) {
	if key := os.Getenv("MARKETMIND_LLM_GEMINI_KEY"); key != "" {
		cfg.LLM.GeminiKey = key
	}
	if key := os.Getenv("MARKETMIND_MARKETDATA_API_KEY"); key != "" {
		cfg.MarketData.APIKey = key
	}
	if url := os.Getenv("MARKETMIND_DATABASE_URL"); url != "" {
		cfg.Database.URL = url
	}
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
