package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	maxConfigFileSize = 1024 * 1024 // 1MB

	// EnvPrefix prefixes every environment variable read by LoadWithFile.
	EnvPrefix = "ADVISORD_"

	// DefaultOpenAIModel is used when the openai provider is selected without
	// a model.
	DefaultOpenAIModel = "gpt-4o-mini"
)

// LoadWithFile loads configuration from a YAML file, then overrides with
// environment variables.
//
// Configuration precedence (highest to lowest):
//  1. ADVISORD_* environment variables (ADVISORD_SERVER_HTTP_PORT, ...)
//  2. Well-known variables shared with other tooling (see applyWellKnownEnv)
//  3. YAML config file (~/.config/advisord/config.yaml)
//  4. Defaults from Default()
//
// If configPath is empty the default path is used. A missing file is not an
// error.
//
// # Security Considerations
//
// The file must live under ~/.config/advisord/ or /etc/advisord/, have 0600
// or 0400 permissions and be at most 1MB.
//
// # Environment Variable Mapping
//
// The prefix is stripped and the first underscore separates the section from
// the field name:
//
//	ADVISORD_SERVER_HTTP_PORT        -> server.http_port
//	ADVISORD_AGENT_API_KEY           -> agent.api_key
//	ADVISORD_SECURITY_FRONTEND_ORIGIN -> security.frontend_origin
func LoadWithFile(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configPath = filepath.Join(home, ".config", "advisord", "config.yaml")
	}

	if err := validateConfigPath(configPath); err != nil {
		return nil, fmt.Errorf("config path validation failed: %w", err)
	}

	if _, err := os.Stat(configPath); err == nil {
		content, err := readConfigFile(configPath)
		if err != nil {
			return nil, err
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Unmarshal over the defaults so keys absent from every source keep them.
	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(cfg, k)
	applyWellKnownEnv(cfg, k)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// envKey maps ADVISORD_SECTION_FIELD_NAME to section.field_name.
func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	parts := strings.SplitN(lower, "_", 2)
	if len(parts) == 1 {
		return lower
	}
	return parts[0] + "." + parts[1]
}

// readConfigFile opens the file once and validates it through the open
// descriptor to avoid a TOCTOU race.
func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if err := validateConfigFileProperties(info); err != nil {
		return nil, fmt.Errorf("config file validation failed: %w", err)
	}

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return content, nil
}

// applyWellKnownEnv fills values from environment variables that deployments
// commonly set without the ADVISORD_ prefix. Explicitly configured values win.
func applyWellKnownEnv(cfg *Config, k *koanf.Koanf) {
	if !k.Exists("agent.api_key") {
		var keys []string
		switch cfg.Agent.Provider {
		case ProviderOpenAI:
			keys = []string{"OPENAI_API_KEY"}
		default:
			keys = []string{"GOOGLE_API_KEY", "GEMINI_API_KEY"}
		}
		for _, key := range keys {
			if v := os.Getenv(key); v != "" {
				cfg.Agent.APIKey = Secret(v)
				break
			}
		}
	}
	if !k.Exists("security.frontend_origin") {
		if v := os.Getenv("FRONTEND_ORIGIN"); v != "" {
			cfg.Security.FrontendOrigin = v
		}
	}
	if !k.Exists("security.environment") {
		if v := os.Getenv("ENVIRONMENT"); v != "" {
			cfg.Security.Environment = strings.ToLower(v)
		}
	}
}

// EnsureConfigDir creates ~/.config/advisord with 0700 permissions if it does
// not exist.
func EnsureConfigDir() error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	configDir := filepath.Join(home, ".config", "advisord")
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory %s: %w", configDir, err)
	}
	return nil
}

// validateConfigPath checks if path is in allowed directories.
// This validation runs even if the file doesn't exist yet.
func validateConfigPath(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	// Follow symlinks so they cannot escape the allowed directories. Paths
	// that do not exist yet are checked as given.
	resolvedPath, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		resolvedPath = absPath
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	if resolvedHome, err := filepath.EvalSymlinks(home); err == nil {
		home = resolvedHome
	}

	allowedDirs := []string{
		filepath.Join(home, ".config", "advisord"),
		"/etc/advisord",
	}
	for _, dir := range allowedDirs {
		if resolvedPath == dir || strings.HasPrefix(resolvedPath, dir+string(filepath.Separator)) {
			return nil
		}
	}

	return fmt.Errorf("config file must be in ~/.config/advisord/ or /etc/advisord/")
}

// validateConfigFileProperties checks file permissions and size.
func validateConfigFileProperties(info os.FileInfo) error {
	// Windows has a different permission model.
	if runtime.GOOS != "windows" {
		perm := info.Mode().Perm()
		if perm != 0600 && perm != 0400 {
			return fmt.Errorf("insecure config file permissions: %v (expected 0600 or 0400)", perm)
		}
	}

	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}

	return nil
}

// applyDefaults restores defaults for values explicitly set to their zero
// value and picks provider-specific defaults.
func applyDefaults(cfg *Config, k *koanf.Koanf) {
	def := Default()

	if cfg.Server.Host == "" {
		cfg.Server.Host = def.Server.Host
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = def.Server.Port
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = def.Server.ShutdownTimeout
	}
	if cfg.Server.BodyLimit == "" {
		cfg.Server.BodyLimit = def.Server.BodyLimit
	}

	if cfg.Session.Timeout == 0 {
		cfg.Session.Timeout = def.Session.Timeout
	}

	cfg.Agent.Provider = strings.ToLower(cfg.Agent.Provider)
	if cfg.Agent.Provider == "" {
		cfg.Agent.Provider = def.Agent.Provider
	}
	if cfg.Agent.Provider == ProviderOpenAI && !k.Exists("agent.model") {
		cfg.Agent.Model = DefaultOpenAIModel
	}
	if cfg.Agent.Model == "" {
		cfg.Agent.Model = def.Agent.Model
	}
	if cfg.Agent.Timeout == 0 {
		cfg.Agent.Timeout = def.Agent.Timeout
	}

	if cfg.Security.Environment == "" {
		cfg.Security.Environment = def.Security.Environment
	}

	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = def.Observability.ServiceName
	}
	if cfg.Observability.Protocol == "" {
		cfg.Observability.Protocol = def.Observability.Protocol
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = def.Logging.Level
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = def.Logging.Format
	}
}
