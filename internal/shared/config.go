package shared

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	API   APIConfig   `toml:"api"`
	Cache CacheConfig `toml:"cache"`
	Auth  AuthConfig  `toml:"auth"`
}

// APIConfig contains backend endpoint settings.
type APIConfig struct {
	BaseURL   string  `toml:"base_url"`
	StreamURL string  `toml:"stream_url"`
	RateLimit float64 `toml:"rate_limit"` // requests per second, 0 disables throttling
}

// CacheConfig contains local cache database settings.
type CacheConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// AuthConfig contains settings for the browser login handoff.
type AuthConfig struct {
	LoginPath    string `toml:"login_path"`
	CallbackPort int    `toml:"callback_port"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// A .env file in the working directory is loaded first (if present), then
// FOLIOX_* environment variables override file values so that CI and
// one-off invocations do not need a config file edit.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyEnvOverrides(&config)
	return &config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	applyEnvOverrides(&config)
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func applyEnvOverrides(config *Config) {
	_ = godotenv.Load()

	if v := os.Getenv("FOLIOX_API_URL"); v != "" {
		config.API.BaseURL = v
	}
	if v := os.Getenv("FOLIOX_STREAM_URL"); v != "" {
		config.API.StreamURL = v
	}
	if v := os.Getenv("FOLIOX_CACHE_PATH"); v != "" {
		config.Cache.Path = v
	}
	if v := os.Getenv("FOLIOX_CALLBACK_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			config.Auth.CallbackPort = port
		}
	}
}
