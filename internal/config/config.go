// ABOUTME: Configuration loading and parsing for outline-mcp
// ABOUTME: Supports YAML or TOML files with environment variable expansion, defaults and duration parsing

package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Environment variables consulted by the loader.
const (
	EnvConfigPath = "OUTLINE_MCP_CONFIG"
	EnvAPIKey     = "OUTLINE_API_KEY"
	EnvAPIURL     = "OUTLINE_API_URL"
)

// DefaultAPIURL is the hosted Outline API.
const DefaultAPIURL = "https://app.getoutline.com/api"

// Config represents the complete outline-mcp configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Tailscale TailscaleConfig `yaml:"tailscale" toml:"tailscale"`
	Outline   OutlineConfig   `yaml:"outline" toml:"outline"`
	Audit     AuditConfig     `yaml:"audit" toml:"audit"`
	RateLimit RateLimitConfig `yaml:"ratelimit" toml:"ratelimit"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
}

// ServerConfig holds the HTTP listener and request handling settings
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr" toml:"http_addr"`
	// ExecutionUnits bounds how many MCP requests are handled at once.
	ExecutionUnits    int    `yaml:"execution_units" toml:"execution_units"`
	MaxBodyBytes      int64  `yaml:"max_body_bytes" toml:"max_body_bytes"`
	CORSAllowedOrigin string `yaml:"cors_allowed_origin" toml:"cors_allowed_origin"`

	RequestTimeout    time.Duration `yaml:"-" toml:"-"`
	RequestTimeoutRaw string        `yaml:"request_timeout" toml:"request_timeout"`
}

// TailscaleConfig holds Tailscale tsnet configuration
type TailscaleConfig struct {
	Enabled   bool   `yaml:"enabled" toml:"enabled"`
	Hostname  string `yaml:"hostname" toml:"hostname"`
	AuthKey   string `yaml:"auth_key" toml:"auth_key"`
	StateDir  string `yaml:"state_dir" toml:"state_dir"`
	Ephemeral bool   `yaml:"ephemeral" toml:"ephemeral"`
}

// OutlineConfig holds the upstream Outline API settings
type OutlineConfig struct {
	APIURL string `yaml:"api_url" toml:"api_url"`
	// APIKey is the fallback credential for requests that carry none.
	APIKey string `yaml:"api_key" toml:"api_key"`

	Timeout    time.Duration `yaml:"-" toml:"-"`
	TimeoutRaw string        `yaml:"timeout" toml:"timeout"`
}

// AuditConfig holds the tool-call audit log settings. An empty path disables it.
type AuditConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// RateLimitConfig holds per-tool rate limits. Zero disables limiting.
type RateLimitConfig struct {
	ToolsPerSecond float64            `yaml:"tools_per_second" toml:"tools_per_second"`
	Burst          int                `yaml:"burst" toml:"burst"`
	PerTool        map[string]float64 `yaml:"per_tool" toml:"per_tool"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPAddr:          "0.0.0.0:8080",
			ExecutionUnits:    16,
			MaxBodyBytes:      1 << 20,
			CORSAllowedOrigin: "*",
			RequestTimeoutRaw: "60s",
		},
		Tailscale: TailscaleConfig{
			Hostname: "outline-mcp",
		},
		Outline: OutlineConfig{
			TimeoutRaw: "30s",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are parsed as TOML, everything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw content
	expanded := expandEnvVars(string(data))

	cfg := Default()
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expanded, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	return finish(cfg)
}

// Resolve picks the config file to load: flagPath, then $OUTLINE_MCP_CONFIG,
// then DefaultPath(). A missing file at the default location is not an
// error; defaults plus environment are used instead. Returns the path that
// was loaded, or "" when running on defaults.
func Resolve(flagPath string) (*Config, string, error) {
	path := flagPath
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path != "" {
		cfg, err := Load(path)
		return cfg, path, err
	}

	path = DefaultPath()
	if _, err := os.Stat(path); err == nil {
		cfg, err := Load(path)
		return cfg, path, err
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, "", fmt.Errorf("checking config file: %w", err)
	}

	cfg, err := finish(Default())
	return cfg, "", err
}

// DefaultPath returns $XDG_CONFIG_HOME/outline-mcp/config.yaml, falling back
// to ~/.config/outline-mcp/config.yaml.
func DefaultPath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(".config", "outline-mcp", "config.yaml")
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "outline-mcp", "config.yaml")
}

func finish(cfg *Config) (*Config, error) {
	applyEnv(cfg)

	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// applyEnv fills unset Outline settings from the environment.
func applyEnv(cfg *Config) {
	if cfg.Outline.APIKey == "" {
		cfg.Outline.APIKey = os.Getenv(EnvAPIKey)
	}
	if cfg.Outline.APIURL == "" {
		cfg.Outline.APIURL = os.Getenv(EnvAPIURL)
	}
	if cfg.Outline.APIURL == "" {
		cfg.Outline.APIURL = DefaultAPIURL
	}
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
	// The HTTP address is required unless Tailscale provides the listener
	if !c.Tailscale.Enabled && c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required (or enable tailscale)")
	}

	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}

	if c.Server.ExecutionUnits < 1 {
		return fmt.Errorf("server.execution_units must be at least 1, got %d", c.Server.ExecutionUnits)
	}
	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("server.max_body_bytes must be positive")
	}
	if c.Server.RequestTimeout <= 0 {
		return fmt.Errorf("server.request_timeout must be positive")
	}

	u, err := url.Parse(c.Outline.APIURL)
	if err != nil {
		return fmt.Errorf("outline.api_url is not a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("outline.api_url must use http or https scheme")
	}
	if c.Outline.Timeout <= 0 {
		return fmt.Errorf("outline.timeout must be positive")
	}

	if c.RateLimit.ToolsPerSecond < 0 {
		return fmt.Errorf("ratelimit.tools_per_second must not be negative")
	}
	if c.RateLimit.Burst < 0 {
		return fmt.Errorf("ratelimit.burst must not be negative")
	}
	for tool, rps := range c.RateLimit.PerTool {
		if rps <= 0 {
			return fmt.Errorf("ratelimit.per_tool.%s must be positive", tool)
		}
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json; got %q", c.Logging.Format)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Server.RequestTimeoutRaw != "" {
		cfg.Server.RequestTimeout, err = time.ParseDuration(cfg.Server.RequestTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing request_timeout %q: %w", cfg.Server.RequestTimeoutRaw, err)
		}
	}

	if cfg.Outline.TimeoutRaw != "" {
		cfg.Outline.Timeout, err = time.ParseDuration(cfg.Outline.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing outline timeout %q: %w", cfg.Outline.TimeoutRaw, err)
		}
	}

	return nil
}
