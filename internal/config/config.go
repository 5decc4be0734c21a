// ABOUTME: Configuration loading and parsing for the moplexity client
// ABOUTME: Supports YAML or TOML files with environment variable expansion and duration parsing

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// EnvConfigPath names the environment variable that overrides the config location.
const EnvConfigPath = "MOPLEXITY_CONFIG"

// DefaultBaseURL is where the backend listens in a local install.
const DefaultBaseURL = "http://localhost:8000"

// Config represents the complete client configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Database  DatabaseConfig  `yaml:"database" toml:"database"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry" toml:"telemetry"`
}

// ServerConfig describes the backend the client talks to
type ServerConfig struct {
	BaseURL string `yaml:"base_url" toml:"base_url"`

	// ResponseHeaderTimeout bounds the wait for response headers. Zero means
	// no limit; a streaming body is never cut off by it.
	ResponseHeaderTimeout    time.Duration `yaml:"-" toml:"-"`
	ResponseHeaderTimeoutRaw string        `yaml:"response_header_timeout" toml:"response_header_timeout"`
}

// DatabaseConfig holds settings storage configuration
type DatabaseConfig struct {
	Path string `yaml:"path" toml:"path"`
	// Ephemeral keeps settings in memory only.
	Ephemeral bool `yaml:"ephemeral" toml:"ephemeral"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
	// File, when set, receives log output (rotated) instead of stderr.
	File string `yaml:"file" toml:"file"`
}

// TelemetryConfig controls OpenTelemetry export
type TelemetryConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Dir     string `yaml:"dir" toml:"dir"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			BaseURL: DefaultBaseURL,
		},
		Database: DatabaseConfig{
			Path: filepath.Join(dataHome(), "moplexity", "client.db"),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			File:   filepath.Join(stateHome(), "moplexity", "client.log"),
		},
		Telemetry: TelemetryConfig{
			Dir: filepath.Join(stateHome(), "moplexity", "telemetry"),
		},
	}
}

// Path returns the config file location: $MOPLEXITY_CONFIG if set,
// otherwise $XDG_CONFIG_HOME/moplexity/client.yaml.
func Path() string {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p
	}
	return filepath.Join(configHome(), "moplexity", "client.yaml")
}

// LoadOrDefault loads path, or returns Default() if the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are parsed as TOML, everything else as YAML. Values not
// present in the file keep their defaults.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw content
	expandedData := expandEnvVars(string(data))

	cfg := Default()
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expandedData, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expandedData), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	// Parse duration fields
	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.BaseURL == "" {
		return fmt.Errorf("server.base_url is required")
	}
	u, err := url.Parse(c.Server.BaseURL)
	if err != nil {
		return fmt.Errorf("server.base_url is invalid: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("server.base_url must be an absolute http or https URL, got %q", c.Server.BaseURL)
	}

	if c.Server.ResponseHeaderTimeout < 0 {
		return fmt.Errorf("server.response_header_timeout must not be negative")
	}

	if !c.Database.Ephemeral && c.Database.Path == "" {
		return fmt.Errorf("database.path is required (or set database.ephemeral)")
	}

	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	if c.Telemetry.Enabled && c.Telemetry.Dir == "" {
		return fmt.Errorf("telemetry.dir is required when telemetry is enabled")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Server.ResponseHeaderTimeoutRaw != "" {
		cfg.Server.ResponseHeaderTimeout, err = time.ParseDuration(cfg.Server.ResponseHeaderTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing response_header_timeout %q: %w", cfg.Server.ResponseHeaderTimeoutRaw, err)
		}
	}

	return nil
}

func configHome() string {
	return xdgDir("XDG_CONFIG_HOME", ".config")
}

func dataHome() string {
	return xdgDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
}

func stateHome() string {
	return xdgDir("XDG_STATE_HOME", filepath.Join(".local", "state"))
}

func xdgDir(env, fallback string) string {
	if dir := os.Getenv(env); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return fallback
	}
	return filepath.Join(home, fallback)
}
