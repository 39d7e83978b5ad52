// Package config provides configuration loading for advisord.
//
// Configuration is layered: built-in defaults, then an optional YAML file,
// then environment variables. See LoadWithFile for the precedence rules and
// the environment variable mapping.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/labstack/gommon/bytes"
)

// Environment names accepted in security.environment.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Agent providers accepted in agent.provider.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Config holds the complete advisord configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Session       SessionConfig       `koanf:"session"`
	Agent         AgentConfig         `koanf:"agent"`
	Security      SecurityConfig      `koanf:"security"`
	Observability ObservabilityConfig `koanf:"observability"`
	Logging       LoggingConfig       `koanf:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"http_port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	BodyLimit       string        `koanf:"body_limit"` // echo size notation, e.g. "64K"
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// SessionConfig holds session store configuration.
type SessionConfig struct {
	Timeout time.Duration `koanf:"timeout"`
}

// AgentConfig selects and tunes the language model backend.
type AgentConfig struct {
	Provider   string   `koanf:"provider"`
	Model      string   `koanf:"model"`
	APIKey     Secret   `koanf:"api_key"`
	BaseURL    string   `koanf:"base_url"`
	Timeout    Duration `koanf:"timeout"`
	MaxRetries int      `koanf:"max_retries"`
	RateLimit  float64  `koanf:"rate_limit"` // requests per second
	Burst      int      `koanf:"burst"`
}

// SecurityConfig holds CORS, header and rate limit settings.
type SecurityConfig struct {
	Environment    string `koanf:"environment"`
	FrontendOrigin string `koanf:"frontend_origin"`
	ConsultRate    int    `koanf:"consult_rate"` // requests per minute per client
	HealthRate     int    `koanf:"health_rate"`  // requests per minute per client
}

// IsProduction reports whether the service runs in production mode.
func (s SecurityConfig) IsProduction() bool {
	return s.Environment == EnvProduction
}

// IsDevelopment reports whether the service runs in development mode.
func (s SecurityConfig) IsDevelopment() bool {
	return s.Environment == EnvDevelopment
}

// ObservabilityConfig holds OpenTelemetry configuration.
type ObservabilityConfig struct {
	EnableTelemetry bool   `koanf:"enable_telemetry"`
	ServiceName     string `koanf:"service_name"`
	Endpoint        string `koanf:"endpoint"`
	Protocol        string `koanf:"protocol"` // "grpc" or "http/protobuf"
	Insecure        bool   `koanf:"insecure"`
}

// LoggingConfig holds the user-facing logging knobs. The full logging
// configuration lives in internal/logging.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8000,
			ShutdownTimeout: 10 * time.Second,
			BodyLimit:       "64K",
		},
		Session: SessionConfig{
			Timeout: 30 * time.Minute,
		},
		Agent: AgentConfig{
			Provider:   ProviderGemini,
			Model:      "gemini-flash-latest",
			Timeout:    Duration(2 * time.Minute),
			MaxRetries: 3,
			RateLimit:  1,
			Burst:      2,
		},
		Security: SecurityConfig{
			Environment:    EnvDevelopment,
			FrontendOrigin: "http://localhost:3000",
			ConsultRate:    10,
			HealthRate:     30,
		},
		Observability: ObservabilityConfig{
			EnableTelemetry: false,
			ServiceName:     "advisord",
			Endpoint:        "localhost:4317",
			Protocol:        "grpc",
			Insecure:        true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate validates the configuration.
//
// Returns an error if:
//   - Server port is not between 1 and 65535
//   - Shutdown or session timeout is not positive
//   - Body limit is not a valid size
//   - Agent provider is unknown, or retries/rate limits are out of range
//   - Environment is neither development nor production
//   - Rate limits are not positive
//   - Service name is empty (when telemetry is enabled)
//   - Logging format is neither json nor console
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}
	if _, err := bytes.Parse(c.Server.BodyLimit); err != nil {
		return fmt.Errorf("invalid body limit %q: %w", c.Server.BodyLimit, err)
	}

	if c.Session.Timeout <= 0 {
		return errors.New("session timeout must be positive")
	}

	switch c.Agent.Provider {
	case ProviderGemini, ProviderOpenAI:
	default:
		return fmt.Errorf("unknown agent provider %q (must be %s or %s)", c.Agent.Provider, ProviderGemini, ProviderOpenAI)
	}
	if c.Agent.Model == "" {
		return errors.New("agent model is required")
	}
	if c.Agent.Timeout.Duration() <= 0 {
		return errors.New("agent timeout must be positive")
	}
	if c.Agent.MaxRetries < 0 {
		return fmt.Errorf("agent max_retries must be >= 0, got %d", c.Agent.MaxRetries)
	}
	if c.Agent.RateLimit <= 0 || c.Agent.Burst < 1 {
		return errors.New("agent rate_limit must be positive and burst at least 1")
	}

	switch c.Security.Environment {
	case EnvDevelopment, EnvProduction:
	default:
		return fmt.Errorf("unknown environment %q (must be %s or %s)", c.Security.Environment, EnvDevelopment, EnvProduction)
	}
	if c.Security.ConsultRate < 1 || c.Security.HealthRate < 1 {
		return errors.New("rate limits must be at least 1 request per minute")
	}

	if c.Observability.EnableTelemetry && c.Observability.ServiceName == "" {
		return errors.New("service name required when telemetry is enabled")
	}

	if f := strings.ToLower(c.Logging.Format); f != "json" && f != "console" {
		return fmt.Errorf("logging format must be 'json' or 'console', got %q", c.Logging.Format)
	}

	return nil
}
