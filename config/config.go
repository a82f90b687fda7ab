package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/c360/enginelink/pkg/tlsutil"
)

// DefaultAuthTokenEnv is consulted for the credential when the config file
// carries no inline token.
const DefaultAuthTokenEnv = "ENGINELINK_AUTH_TOKEN"

// Config is the complete application configuration.
type Config struct {
	Engine  EngineConfig  `yaml:"engine"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	Kernel  KernelConfig  `yaml:"kernel"`
}

// EngineConfig describes the remote engine session.
type EngineConfig struct {
	// Endpoint is the ws:// or wss:// address of the engine.
	Endpoint string `yaml:"endpoint"`
	// AuthToken is the inline bearer credential. Prefer AuthTokenEnv so the
	// token stays out of the file.
	AuthToken string `yaml:"auth_token,omitempty"`
	// AuthTokenEnv names the environment variable holding the credential.
	AuthTokenEnv string `yaml:"auth_token_env,omitempty"`

	CommandTimeout   time.Duration `yaml:"command_timeout"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`

	// Dial controls backoff while establishing the connection.
	Dial DialConfig `yaml:"dial"`

	// TLS customizes certificate handling for wss endpoints.
	TLS tlsutil.ClientConfig `yaml:"tls,omitempty"`
}

// DialConfig is the reconnect backoff policy for connection attempts.
type DialConfig struct {
	MaxAttempts  int           `yaml:"max_attempts"`
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

// KernelConfig describes the embedded compute kernel.
type KernelConfig struct {
	Enabled bool `yaml:"enabled"`
	// ModulePath is the wasm module file implementing the kernel.
	ModulePath string `yaml:"module_path"`
	// MemoryLimitPages caps the module's linear memory in 64KiB pages.
	// Zero means the runtime default.
	MemoryLimitPages uint32 `yaml:"memory_limit_pages"`
}

// Default returns the configuration used when no file is supplied.
func Default() *Config {
	return &Config{
		Engine: EngineConfig{
			AuthTokenEnv:     DefaultAuthTokenEnv,
			CommandTimeout:   30 * time.Second,
			HandshakeTimeout: 10 * time.Second,
			Dial: DialConfig{
				MaxAttempts:  10,
				InitialDelay: 50 * time.Millisecond,
				MaxDelay:     time.Second,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
			Path:    "/metrics",
		},
	}
}

// Load reads and validates the configuration at path, filling defaults for
// anything the file omits.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes, defaults, and validates raw YAML configuration.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Engine.AuthTokenEnv == "" {
		c.Engine.AuthTokenEnv = DefaultAuthTokenEnv
	}
	if c.Engine.CommandTimeout <= 0 {
		c.Engine.CommandTimeout = 30 * time.Second
	}
	if c.Engine.HandshakeTimeout <= 0 {
		c.Engine.HandshakeTimeout = 10 * time.Second
	}
	if c.Engine.Dial.MaxAttempts <= 0 {
		c.Engine.Dial.MaxAttempts = 10
	}
	if c.Engine.Dial.InitialDelay <= 0 {
		c.Engine.Dial.InitialDelay = 50 * time.Millisecond
	}
	if c.Engine.Dial.MaxDelay <= 0 {
		c.Engine.Dial.MaxDelay = time.Second
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Metrics.Port == 0 {
		c.Metrics.Port = 9090
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if c.Engine.Endpoint == "" {
		return fmt.Errorf("engine.endpoint is required")
	}
	u, err := url.Parse(c.Engine.Endpoint)
	if err != nil {
		return fmt.Errorf("engine.endpoint is not a valid URL: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("engine.endpoint scheme must be ws or wss, got %q", u.Scheme)
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be in 1..65535, got %d", c.Metrics.Port)
	}
	if !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with /, got %q", c.Metrics.Path)
	}

	if c.Engine.Dial.MaxDelay < c.Engine.Dial.InitialDelay {
		return fmt.Errorf("engine.dial.max_delay must be >= initial_delay")
	}

	if c.Kernel.Enabled && c.Kernel.ModulePath == "" {
		return fmt.Errorf("kernel.module_path is required when the kernel is enabled")
	}
	return nil
}

// ResolveAuthToken returns the credential: the inline token when present,
// otherwise the value of the configured environment variable. An empty
// result is allowed; the engine decides whether anonymous sessions work.
func (c *Config) ResolveAuthToken() string {
	if c.Engine.AuthToken != "" {
		return c.Engine.AuthToken
	}
	return os.Getenv(c.Engine.AuthTokenEnv)
}
