// Package config provides configuration helpers that define runtime defaults,
// YAML loading, environment overrides and validation for the chat server.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultPort is the TCP port the chat server listens on.
	DefaultPort = 9009
	// DefaultMaxLineLength caps the bytes buffered for a single line.
	DefaultMaxLineLength = 64 * 1024
)

// RateLimitConfig defines the parameters for per-connection message rate limiting.
// A Burst of zero disables limiting.
type RateLimitConfig struct {
	Burst          int           `yaml:"burst"`
	RefillInterval time.Duration `yaml:"refill_interval"`
}

// ServerConfig holds the chat listener settings.
type ServerConfig struct {
	Host            string          `yaml:"host"`
	Port            int             `yaml:"port"`
	MaxLineLength   int             `yaml:"max_line_length"`
	WriteTimeout    time.Duration   `yaml:"write_timeout"`
	ShutdownTimeout time.Duration   `yaml:"shutdown_timeout"`
	Encoding        string          `yaml:"encoding"`
	RateLimit       RateLimitConfig `yaml:"rate_limit"`
}

// ConsoleConfig holds the operator console (HTTP + WebSocket) settings.
type ConsoleConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Address        string   `yaml:"address"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	MaxMessageSize int64    `yaml:"max_message_size"`
}

// LoggingConfig represents logging settings
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config is the complete server configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Console ConsoleConfig `yaml:"console"`
	Logging LoggingConfig `yaml:"logging"`
}

// Default returns a Config populated with default values for all settings.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "",
			Port:            DefaultPort,
			MaxLineLength:   DefaultMaxLineLength,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 5 * time.Second,
			Encoding:        "utf-8",
			RateLimit: RateLimitConfig{
				Burst:          0,
				RefillInterval: time.Second,
			},
		},
		Console: ConsoleConfig{
			Enabled: true,
			Address: "127.0.0.1:8080",
			AllowedOrigins: []string{
				"http://localhost:8080",
				"http://127.0.0.1:8080",
			},
			MaxMessageSize: 4096,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the configuration from defaults, the optional YAML file at path
// and environment variables, in that order.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)
	cfg.sanitize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

func applyEnvOverrides(cfg *Config) {
	if host, ok := os.LookupEnv("CHAT_HOST"); ok {
		cfg.Server.Host = strings.TrimSpace(host)
	}

	if port := os.Getenv("CHAT_PORT"); port != "" {
		cfg.Server.Port = parsePort(port, cfg.Server.Port)
	}

	if maxLen := os.Getenv("CHAT_MAX_LINE_LENGTH"); maxLen != "" {
		cfg.Server.MaxLineLength = parseNonNegativeInt(maxLen, cfg.Server.MaxLineLength)
	}

	if timeout := os.Getenv("CHAT_WRITE_TIMEOUT"); timeout != "" {
		cfg.Server.WriteTimeout = parseDuration(timeout, cfg.Server.WriteTimeout)
	}

	if enc := os.Getenv("CHAT_ENCODING"); enc != "" {
		cfg.Server.Encoding = enc
	}

	if burst := os.Getenv("RATE_LIMIT_BURST"); burst != "" {
		if parsed, err := strconv.Atoi(burst); err == nil && parsed >= 0 {
			cfg.Server.RateLimit.Burst = parsed
		}
	}

	if interval := os.Getenv("RATE_LIMIT_REFILL_INTERVAL"); interval != "" {
		cfg.Server.RateLimit.RefillInterval = parseRefillInterval(interval, cfg.Server.RateLimit.RefillInterval)
	}

	if enabled := os.Getenv("CONSOLE_ENABLED"); enabled != "" {
		if parsed, err := strconv.ParseBool(enabled); err == nil {
			cfg.Console.Enabled = parsed
		}
	}

	if addr := os.Getenv("CONSOLE_ADDR"); addr != "" {
		cfg.Console.Address = addr
	}

	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.Console.AllowedOrigins = parseOrigins(origins)
	}

	if maxSize := os.Getenv("MAX_MESSAGE_SIZE"); maxSize != "" {
		cfg.Console.MaxMessageSize = parseMaxMessageSize(maxSize, cfg.Console.MaxMessageSize)
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}

	if format := os.Getenv("LOG_FORMAT"); format != "" {
		cfg.Logging.Format = format
	}
}

// sanitize replaces unusable zero values with defaults.
func (c *Config) sanitize() {
	def := Default()

	if c.Server.WriteTimeout <= 0 {
		c.Server.WriteTimeout = def.Server.WriteTimeout
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = def.Server.ShutdownTimeout
	}
	if strings.TrimSpace(c.Server.Encoding) == "" {
		c.Server.Encoding = def.Server.Encoding
	}
	if c.Server.RateLimit.Burst > 0 && c.Server.RateLimit.RefillInterval <= 0 {
		c.Server.RateLimit.RefillInterval = time.Second
	}
	if c.Console.MaxMessageSize <= 0 {
		c.Console.MaxMessageSize = def.Console.MaxMessageSize
	}
	if c.Logging.Level == "" {
		c.Logging.Level = def.Logging.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = def.Logging.Format
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port out of range: %d", c.Server.Port)
	}

	if c.Server.RateLimit.Burst < 0 {
		return fmt.Errorf("rate limit burst cannot be negative: %d", c.Server.RateLimit.Burst)
	}

	if c.Console.Enabled && c.Console.Address == "" {
		return fmt.Errorf("console enabled but address is empty")
	}

	if !isValidLogLevel(c.Logging.Level) {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	return nil
}

// String returns a string representation of the configuration (for logging)
func (c *Config) String() string {
	return fmt.Sprintf("Config{Listen: %s:%d, Encoding: %s, Console: %v@%s, LogLevel: %s}",
		c.Server.Host, c.Server.Port, c.Server.Encoding, c.Console.Enabled, c.Console.Address, c.Logging.Level)
}

func isValidLogLevel(level string) bool {
	valid := []string{"debug", "info", "warn", "error"}
	level = strings.ToLower(level)
	for _, v := range valid {
		if level == v {
			return true
		}
	}
	return false
}

func parseOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func parsePort(value string, defaultValue int) int {
	if port, err := strconv.Atoi(value); err == nil && port >= 0 && port <= 65535 {
		return port
	}
	return defaultValue
}

func parseMaxMessageSize(value string, defaultValue int64) int64 {
	if size, err := strconv.ParseInt(value, 10, 64); err == nil && size > 0 {
		return size
	}
	return defaultValue
}

// parseNonNegativeInt accepts 0, which callers treat as "no limit".
func parseNonNegativeInt(value string, defaultValue int) int {
	if parsed, err := strconv.Atoi(value); err == nil && parsed >= 0 {
		return parsed
	}
	return defaultValue
}

// parseDuration accepts Go duration syntax ("750ms") or whole seconds ("5").
func parseDuration(value string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	return parseRefillInterval(value, defaultValue)
}

func parseRefillInterval(value string, defaultValue time.Duration) time.Duration {
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}
