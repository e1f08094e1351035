package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/user/hcaptcha-monitor/internal/domain"
	"github.com/user/hcaptcha-monitor/internal/hcaptcha"
)

// Website is one monitored deployment as written in the config file.
type Website struct {
	Host    string `mapstructure:"host"`
	SiteKey string `mapstructure:"siteKey"`
}

// Config stores all configuration for the application.
type Config struct {
	Interval             int       `mapstructure:"interval"` // in seconds
	NotificationEndpoint string    `mapstructure:"notificationEndpoint"`
	Websites             []Website `mapstructure:"websites"`
	Scripts              []string  `mapstructure:"scripts"`

	OutputDir      string   `mapstructure:"outputDir"`
	BootstrapURL   string   `mapstructure:"bootstrapURL"`
	SiteConfigURL  string   `mapstructure:"siteConfigURL"`
	AssetHost      string   `mapstructure:"assetHost"`
	Fetcher        string   `mapstructure:"fetcher"`        // http | browser
	RequestTimeout int      `mapstructure:"requestTimeout"` // in seconds
	Proxies        []string `mapstructure:"proxies"`
	UserAgents     []string `mapstructure:"userAgents"`

	ServerPort   string `mapstructure:"serverPort"`
	LogLevel     string `mapstructure:"logLevel"`
	RedisAddr    string `mapstructure:"redisAddr"`
	RedisChannel string `mapstructure:"redisChannel"`
}

// Load reads configuration from the given JSON file, with MONITOR_* environment
// variables taking precedence over file values. A missing or malformed file
// is an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	v.SetEnvPrefix("MONITOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set default values
	v.SetDefault("interval", 60)
	v.SetDefault("notificationEndpoint", "")
	v.SetDefault("outputDir", "output")
	endpoints := hcaptcha.DefaultEndpoints()
	v.SetDefault("bootstrapURL", endpoints.BootstrapURL)
	v.SetDefault("siteConfigURL", endpoints.SiteConfigURL)
	v.SetDefault("assetHost", endpoints.AssetHost)
	v.SetDefault("fetcher", "http")
	v.SetDefault("requestTimeout", 30)
	v.SetDefault("serverPort", "")
	v.SetDefault("logLevel", "info")
	v.SetDefault("redisAddr", "")
	v.SetDefault("redisChannel", "hcaptcha:versions")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

// Validate checks that the fields the poll loop depends on are present.
func (c *Config) Validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("interval must be a positive number of seconds, got %d", c.Interval)
	}
	if len(c.Websites) == 0 {
		return fmt.Errorf("websites required")
	}
	for i, w := range c.Websites {
		if w.Host == "" {
			return fmt.Errorf("websites[%d]: host required", i)
		}
		if w.SiteKey == "" {
			return fmt.Errorf("websites[%d]: siteKey required", i)
		}
	}
	if len(c.Scripts) == 0 {
		return fmt.Errorf("scripts required")
	}
	for i, s := range c.Scripts {
		if s == "" || strings.ContainsAny(s, `/\`) {
			return fmt.Errorf("scripts[%d]: invalid asset name %q", i, s)
		}
	}
	if c.OutputDir == "" {
		return fmt.Errorf("outputDir required")
	}
	switch c.Fetcher {
	case "http", "browser":
	default:
		return fmt.Errorf("fetcher must be http or browser, got %q", c.Fetcher)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("requestTimeout must be positive, got %d", c.RequestTimeout)
	}
	return nil
}

// PollInterval is the delay between two full passes over the targets.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Interval) * time.Second
}

// Timeout is the per-request HTTP timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}

// Targets returns the configured websites in file order.
func (c *Config) Targets() []domain.Target {
	targets := make([]domain.Target, 0, len(c.Websites))
	for _, w := range c.Websites {
		targets = append(targets, domain.Target{Host: w.Host, SiteKey: w.SiteKey})
	}
	return targets
}
