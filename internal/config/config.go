package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"StockMonitor/internal/model"
)

// EnvPrefix prefixes every environment override, e.g. MONITOR_SERVER_PORT.
// Fields tagged with an envconfig name can also be set by that bare name
// (PORT, SQLITE_PATH, HTTPS_PROXY, ...).
const EnvPrefix = "MONITOR"

// ProviderConfig configures one entry of the ordered source list.
type ProviderConfig struct {
	Name       string        `yaml:"name"`
	Enabled    bool          `yaml:"enabled"`
	BaseURL    string        `yaml:"base_url"`
	APIKey     string        `yaml:"api_key"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries *int          `yaml:"max_retries"` // nil uses retry.max_retries
}

// Config holds all application configuration.
type Config struct {
	Server struct {
		Port int    `yaml:"port" envconfig:"PORT"`
		Mode string `yaml:"mode" envconfig:"GIN_MODE"`
		// CORSOrigins lists allowed browser origins; empty allows all.
		CORSOrigins []string `yaml:"cors_origins" envconfig:"CORS_ORIGINS"`
	} `yaml:"server" envconfig:"SERVER"`
	Cache struct {
		SQLitePath string        `yaml:"sqlite_path" envconfig:"SQLITE_PATH"`
		TTL        time.Duration `yaml:"ttl" envconfig:"CACHE_TTL"`
		// JournalPath enables the provider attempt journal when set.
		JournalPath string `yaml:"journal_path" envconfig:"JOURNAL_PATH"`
	} `yaml:"cache" envconfig:"CACHE"`
	Retry struct {
		MaxRetries *int          `yaml:"max_retries" envconfig:"MAX_RETRIES"`
		BaseDelay  time.Duration `yaml:"base_delay" envconfig:"BASE_DELAY"`
		MaxDelay   time.Duration `yaml:"max_delay" envconfig:"MAX_DELAY"`
		Factor     float64       `yaml:"factor" envconfig:"FACTOR"`
		MaxJitter  time.Duration `yaml:"max_jitter" envconfig:"MAX_JITTER"`
	} `yaml:"retry" envconfig:"RETRY"`
	Providers []ProviderConfig `yaml:"providers" ignored:"true"`
	Schedule  struct {
		RefreshCron string   `yaml:"refresh_cron" envconfig:"REFRESH_CRON"`
		Watchlist   []string `yaml:"watchlist" envconfig:"WATCHLIST"`
		Period      string   `yaml:"period" envconfig:"REFRESH_PERIOD"`
	} `yaml:"schedule" envconfig:"SCHEDULE"`
	RequestTimeout time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT"`
	Dedup          bool          `yaml:"dedup" envconfig:"DEDUP"`
	Proxy          string        `yaml:"proxy" envconfig:"HTTPS_PROXY"`

	// AlphaVantageKey fills the api_key of an alphavantage provider that has
	// none, so the key can live in the environment only.
	AlphaVantageKey string `yaml:"-" envconfig:"ALPHAVANTAGE_API_KEY"`
}

// Load reads .env, then the YAML file at path, then environment overrides,
// and finally fills defaults. Missing files are not an error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("environment overrides: %w", err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.Mode == "" {
		c.Server.Mode = "release"
	}
	if c.Cache.SQLitePath == "" {
		c.Cache.SQLitePath = "data/stock_monitor.db"
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = 5 * time.Minute
	}
	if c.Retry.MaxRetries == nil {
		n := 2
		c.Retry.MaxRetries = &n
	}
	if c.Retry.BaseDelay == 0 {
		c.Retry.BaseDelay = time.Second
	}
	if c.Retry.Factor == 0 {
		c.Retry.Factor = 2
	}
	if c.Retry.MaxJitter == 0 {
		c.Retry.MaxJitter = time.Second
	}
	if len(c.Providers) == 0 {
		c.Providers = []ProviderConfig{
			{Name: "yahoo", Enabled: true},
			{Name: "yahoo_csv", Enabled: true},
		}
		if c.AlphaVantageKey != "" {
			c.Providers = append(c.Providers, ProviderConfig{Name: "alphavantage", Enabled: true})
		}
	}
	for i := range c.Providers {
		p := &c.Providers[i]
		p.Name = strings.ToLower(strings.TrimSpace(p.Name))
		if p.Name == "alphavantage" && p.APIKey == "" {
			p.APIKey = c.AlphaVantageKey
		}
	}
	if c.Schedule.Period == "" {
		c.Schedule.Period = "1mo"
	}
	for i, s := range c.Schedule.Watchlist {
		c.Schedule.Watchlist[i] = strings.ToUpper(strings.TrimSpace(s))
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 30 * time.Second
	}
}

// EnabledProviders returns the enabled providers in configured order.
func (c *Config) EnabledProviders() []ProviderConfig {
	var out []ProviderConfig
	for _, p := range c.Providers {
		if p.Enabled {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks that all required fields are set.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("server.mode must be debug, release or test, got %q", c.Server.Mode)
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive")
	}
	if c.Retry.MaxRetries != nil && *c.Retry.MaxRetries < 0 {
		return fmt.Errorf("retry.max_retries must not be negative")
	}
	if c.Retry.Factor < 1 {
		return fmt.Errorf("retry.factor must be at least 1")
	}
	if c.Retry.BaseDelay < 0 || c.Retry.MaxDelay < 0 || c.Retry.MaxJitter < 0 {
		return fmt.Errorf("retry delays must not be negative")
	}
	if len(c.EnabledProviders()) == 0 {
		return fmt.Errorf("at least one provider must be enabled")
	}
	for i, p := range c.Providers {
		if p.Name == "" {
			return fmt.Errorf("providers[%d].name is required", i)
		}
		if p.MaxRetries != nil && *p.MaxRetries < 0 {
			return fmt.Errorf("providers[%d].max_retries must not be negative", i)
		}
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive")
	}
	if _, err := model.ParsePeriod(c.Schedule.Period); err != nil {
		return fmt.Errorf("schedule.period: %w", err)
	}
	for _, s := range c.Schedule.Watchlist {
		if s == "" {
			return fmt.Errorf("schedule.watchlist contains an empty symbol")
		}
	}
	if len(c.Schedule.Watchlist) > 0 && c.Schedule.RefreshCron == "" {
		return fmt.Errorf("schedule.refresh_cron is required when a watchlist is set")
	}
	return nil
}
