package formfill

import "github.com/hazyhaar/formfill/formfill/internal/config"

// Config is the top-level formfill configuration. Re-exported from internal.
type Config = config.Config

// BrowserConfig controls Chrome lifecycle.
type BrowserConfig = config.BrowserConfig

// LLMConfig selects and tunes the model provider.
type LLMConfig = config.LLMConfig

// FillConfig tunes the filler.
type FillConfig = config.FillConfig

// StoreConfig locates the SQLite databases.
type StoreConfig = config.StoreConfig

// HTTPConfig configures the HTTP API.
type HTTPConfig = config.HTTPConfig

// SinkConfig defines a report output backend.
type SinkConfig = config.SinkConfig

// LoadConfigFile reads a YAML configuration file.
func LoadConfigFile(path string) (*Config, error) {
	return config.LoadFile(path)
}

// DefaultConfig returns a configuration with every default applied.
func DefaultConfig() *Config {
	return config.Default()
}
