package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigAPIURL   = "https://script.google.com/macros/s/AKfycbxBgNRcxnJg9DM0jn91REAucFDi3VuWGZ5KaCow7fPypuF80ga3e8fQSfajMW7TsCbr/exec"
	DefaultBenefitsAPIURL = "https://script.google.com/macros/s/AKfycbzMKzsXrGF4dsMyaiYr7xp4jtuNtTxY1joHCssks4e2UZ6ivHjBQS4n5Yt5uc4oWfuzrQ/exec?type=benefits"
	DefaultAgentID        = "bj"
	DefaultWhatsApp       = "60173225153"
	DefaultRatesTTL       = 5 * time.Minute
)

// Config holds all application configuration values
type Config struct {
	Port            string        `yaml:"port"`
	ConfigAPIURL    string        `yaml:"config_api_url"`
	BenefitsAPIURL  string        `yaml:"benefits_api_url"`
	DefaultLeadsURL string        `yaml:"default_leads_url"`
	DefaultAgentID  string        `yaml:"default_agent_id"`
	DefaultWhatsApp string        `yaml:"default_whatsapp"`
	RatesTTL        time.Duration `yaml:"rates_ttl"`
	CalcDelay       time.Duration `yaml:"calc_delay"`
	HTTPTimeout     time.Duration `yaml:"http_timeout"`
	CacheDriver     string        `yaml:"cache_driver"`
	CachePath       string        `yaml:"cache_path"`
	ShortIOAPIKey   string        `yaml:"shortio_api_key"`
	ShortIODomain   string        `yaml:"shortio_domain"`
	ShortenTimeout  time.Duration `yaml:"shorten_timeout"`
	LogLevel        string        `yaml:"log_level"`
}

// Defaults returns the built-in configuration
func Defaults() *Config {
	return &Config{
		Port:           "8080",
		ConfigAPIURL:   DefaultConfigAPIURL,
		BenefitsAPIURL: DefaultBenefitsAPIURL,
		// The config script also accepts lead posts, so it doubles as the fallback sheet
		DefaultLeadsURL: DefaultConfigAPIURL,
		DefaultAgentID:  DefaultAgentID,
		DefaultWhatsApp: DefaultWhatsApp,
		RatesTTL:        DefaultRatesTTL,
		HTTPTimeout:     15 * time.Second,
		ShortenTimeout:  3 * time.Second,
		CacheDriver:     "memory",
		CachePath:       "getquote-cache.db",
		LogLevel:        "info",
	}
}

// LoadConfig reads .env, then the optional YAML file at path, then environment variables
func LoadConfig(path string) (*Config, error) {
	// A missing .env is normal outside development
	_ = godotenv.Load()

	cfg := Defaults()

	if path == "" {
		path = os.Getenv("GETQUOTE_CONFIG")
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.loadEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("error parsing config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) loadEnv() error {
	setString(&c.Port, "PORT")
	setString(&c.ConfigAPIURL, "CONFIG_API_URL")
	setString(&c.BenefitsAPIURL, "BENEFITS_API_URL")
	setString(&c.DefaultLeadsURL, "DEFAULT_LEADS_URL")
	setString(&c.DefaultAgentID, "DEFAULT_AGENT_ID")
	setString(&c.DefaultWhatsApp, "DEFAULT_WHATSAPP")
	setString(&c.CacheDriver, "CACHE_DRIVER")
	setString(&c.CachePath, "CACHE_PATH")
	setString(&c.ShortIOAPIKey, "SHORTIO_API_KEY")
	setString(&c.ShortIODomain, "SHORTIO_DOMAIN")
	setString(&c.LogLevel, "LOG_LEVEL")

	for env, dst := range map[string]*time.Duration{
		"RATES_TTL":       &c.RatesTTL,
		"CALC_DELAY":      &c.CalcDelay,
		"HTTP_TIMEOUT":    &c.HTTPTimeout,
		"SHORTEN_TIMEOUT": &c.ShortenTimeout,
	} {
		if err := setDuration(dst, env); err != nil {
			return err
		}
	}
	return nil
}

// Validate rejects configurations the service cannot start with
func (c *Config) Validate() error {
	switch {
	case c.ConfigAPIURL == "":
		return fmt.Errorf("config api url is required")
	case c.BenefitsAPIURL == "":
		return fmt.Errorf("benefits api url is required")
	case c.RatesTTL <= 0:
		return fmt.Errorf("rates ttl must be positive, got %s", c.RatesTTL)
	case c.CalcDelay < 0:
		return fmt.Errorf("calc delay must not be negative, got %s", c.CalcDelay)
	case c.ShortenTimeout <= 0:
		return fmt.Errorf("shorten timeout must be positive, got %s", c.ShortenTimeout)
	}
	switch c.CacheDriver {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("unknown cache driver %q", c.CacheDriver)
	}
	return nil
}

// ShortLinksEnabled reports whether hand-off links should go through Short.io
func (c *Config) ShortLinksEnabled() bool {
	return c.ShortIOAPIKey != "" && c.ShortIODomain != ""
}

func setString(dst *string, env string) {
	if v, ok := os.LookupEnv(env); ok && v != "" {
		*dst = v
	}
}

// Durations accept Go syntax ("90s") or a bare number of seconds
func setDuration(dst *time.Duration, env string) error {
	v, ok := os.LookupEnv(env)
	if !ok || v == "" {
		return nil
	}
	if d, err := time.ParseDuration(v); err == nil {
		*dst = d
		return nil
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid duration in %s: %q", env, v)
	}
	*dst = time.Duration(secs) * time.Second
	return nil
}
