// Package config handles formfill configuration from a YAML file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level formfill configuration.
type Config struct {
	Browser BrowserConfig `yaml:"browser"`
	LLM     LLMConfig     `yaml:"llm"`
	Fill    FillConfig    `yaml:"fill"`
	Store   StoreConfig   `yaml:"store"`
	HTTP    HTTPConfig    `yaml:"http"`
	Sinks   []SinkConfig  `yaml:"sinks"`

	// Aliases is an optional YAML file of extra label aliases.
	Aliases string `yaml:"aliases"`
}

// BrowserConfig controls Chrome lifecycle.
type BrowserConfig struct {
	Remote           string        `yaml:"remote"`
	MemoryLimit      int64         `yaml:"memory_limit"`
	RecycleInterval  time.Duration `yaml:"recycle_interval"`
	ResourceBlocking []string      `yaml:"resource_blocking"`
	Stealth          string        `yaml:"stealth"` // headless | headful
	XvfbDisplay      string        `yaml:"xvfb_display"`
	NavTimeout       time.Duration `yaml:"nav_timeout"`
	// AllowPrivate lets FillURL open loopback and private-network pages.
	AllowPrivate bool `yaml:"allow_private"`
}

// LLMConfig selects and tunes the model provider.
type LLMConfig struct {
	Provider     string        `yaml:"provider"` // gemini | ollama | http | none
	Model        string        `yaml:"model"`
	URL          string        `yaml:"url"` // ollama base URL or http endpoint
	Timeout      time.Duration `yaml:"timeout"`
	Retries      int           `yaml:"retries"` // negative disables
	CacheSize    int           `yaml:"cache_size"`
	Instructions string        `yaml:"instructions"`

	// FallbackModel, when set, sends failed calls to a local Ollama model
	// at FallbackURL before the deterministic mapper takes over.
	FallbackModel string `yaml:"fallback_model"`
	FallbackURL   string `yaml:"fallback_url"`

	// APIKey is never read from the file; it comes from GEMINI_API_KEY.
	APIKey string `yaml:"-"`
}

// FillConfig tunes the filler.
type FillConfig struct {
	// Delay between fields. Negative disables pacing.
	Delay time.Duration `yaml:"delay"`
}

// StoreConfig locates the SQLite databases. An empty History disables
// pass history.
type StoreConfig struct {
	Profiles string `yaml:"profiles"`
	History  string `yaml:"history"`
}

// HTTPConfig configures the HTTP API.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
	// TokenHash is a bcrypt hash of the bearer token. Empty disables auth.
	TokenHash string `yaml:"token_hash"`
	// MaxBody caps request bodies in bytes.
	MaxBody int64 `yaml:"max_body"`
	// RateLimit is the number of fill and reconcile calls allowed per
	// client per minute. Negative disables limiting.
	RateLimit int `yaml:"rate_limit"`
}

// SinkConfig defines a report output backend.
type SinkConfig struct {
	Type string `yaml:"type"` // stdout | webhook
	URL  string `yaml:"url"`  // for webhook
}

// LoadFile reads a YAML configuration file and applies defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.ApplyDefaults()
	return &cfg, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	if c.Browser.MemoryLimit <= 0 {
		c.Browser.MemoryLimit = 1 << 30
	}
	if c.Browser.RecycleInterval <= 0 {
		c.Browser.RecycleInterval = 4 * time.Hour
	}
	if c.Browser.Stealth == "" {
		c.Browser.Stealth = "headless"
	}
	if c.Browser.XvfbDisplay == "" {
		c.Browser.XvfbDisplay = ":99"
	}
	if c.Browser.NavTimeout <= 0 {
		c.Browser.NavTimeout = 30 * time.Second
	}
	if c.Browser.ResourceBlocking == nil {
		c.Browser.ResourceBlocking = []string{"images", "fonts", "media"}
	}

	if c.LLM.Provider == "" {
		c.LLM.Provider = "gemini"
	}
	if c.LLM.Timeout <= 0 {
		c.LLM.Timeout = 60 * time.Second
	}
	if c.LLM.Retries < 0 {
		c.LLM.Retries = 0
	} else if c.LLM.Retries == 0 {
		c.LLM.Retries = 2
	}
	if c.LLM.CacheSize == 0 {
		c.LLM.CacheSize = 128
	}

	if c.Fill.Delay == 0 {
		c.Fill.Delay = 50 * time.Millisecond
	} else if c.Fill.Delay < 0 {
		c.Fill.Delay = 0
	}

	if c.Store.Profiles == "" {
		c.Store.Profiles = "data/profiles.db"
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8089"
	}
	if c.HTTP.MaxBody <= 0 {
		c.HTTP.MaxBody = 4 << 20
	}
	if c.HTTP.RateLimit == 0 {
		c.HTTP.RateLimit = 30
	}
	if len(c.Sinks) == 0 {
		c.Sinks = []SinkConfig{{Type: "stdout"}}
	}
}
