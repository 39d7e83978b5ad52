package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestHome points HOME at a temp dir, clears the well-known variables
// LoadWithFile consults and returns the allowed config directory.
func setupTestHome(t *testing.T) string {
	t.Helper()

	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, key := range []string{"GOOGLE_API_KEY", "GEMINI_API_KEY", "OPENAI_API_KEY", "FRONTEND_ORIGIN", "ENVIRONMENT"} {
		t.Setenv(key, "")
	}

	dir := filepath.Join(home, ".config", "advisord")
	require.NoError(t, os.MkdirAll(dir, 0700))
	return dir
}

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadWithFile_MissingFileUsesDefaults(t *testing.T) {
	setupTestHome(t)

	cfg, err := LoadWithFile("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadWithFile_ValidYAML(t *testing.T) {
	dir := setupTestHome(t)
	path := writeConfig(t, dir, `server:
  host: 127.0.0.1
  http_port: 9000
  body_limit: 32K
session:
  timeout: 45m
agent:
  provider: gemini
  api_key: yaml-key
  timeout: 90s
  max_retries: 5
security:
  environment: production
  frontend_origin: https://advisor.example.com
observability:
  enable_telemetry: true
  service_name: advisord-test
logging:
  level: debug
  format: console
`)

	cfg, err := LoadWithFile(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr())
	assert.Equal(t, "32K", cfg.Server.BodyLimit)
	assert.Equal(t, 45*time.Minute, cfg.Session.Timeout)
	assert.Equal(t, "yaml-key", cfg.Agent.APIKey.Value())
	assert.Equal(t, 90*time.Second, cfg.Agent.Timeout.Duration())
	assert.Equal(t, 5, cfg.Agent.MaxRetries)
	assert.Equal(t, "gemini-flash-latest", cfg.Agent.Model, "unset keys keep defaults")
	assert.True(t, cfg.Security.IsProduction())
	assert.Equal(t, "https://advisor.example.com", cfg.Security.FrontendOrigin)
	assert.True(t, cfg.Observability.EnableTelemetry)
	assert.Equal(t, "advisord-test", cfg.Observability.ServiceName)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
}

func TestLoadWithFile_EnvironmentOverride(t *testing.T) {
	dir := setupTestHome(t)
	path := writeConfig(t, dir, `server:
  http_port: 9000
observability:
  service_name: yaml-service
`)

	t.Setenv("ADVISORD_SERVER_HTTP_PORT", "7777")
	t.Setenv("ADVISORD_OBSERVABILITY_SERVICE_NAME", "env-service")
	t.Setenv("ADVISORD_SESSION_TIMEOUT", "5m")
	t.Setenv("ADVISORD_SECURITY_CONSULT_RATE", "20")

	cfg, err := LoadWithFile(path)
	require.NoError(t, err)

	assert.Equal(t, 7777, cfg.Server.Port)
	assert.Equal(t, "env-service", cfg.Observability.ServiceName)
	assert.Equal(t, 5*time.Minute, cfg.Session.Timeout)
	assert.Equal(t, 20, cfg.Security.ConsultRate)
}

func TestLoadWithFile_WellKnownVariables(t *testing.T) {
	t.Run("gemini key and deployment settings", func(t *testing.T) {
		setupTestHome(t)
		t.Setenv("GOOGLE_API_KEY", "google-key")
		t.Setenv("FRONTEND_ORIGIN", "https://app.example.com")
		t.Setenv("ENVIRONMENT", "Production")

		cfg, err := LoadWithFile("")
		require.NoError(t, err)
		assert.Equal(t, "google-key", cfg.Agent.APIKey.Value())
		assert.Equal(t, "https://app.example.com", cfg.Security.FrontendOrigin)
		assert.True(t, cfg.Security.IsProduction())
	})

	t.Run("openai provider", func(t *testing.T) {
		setupTestHome(t)
		t.Setenv("ADVISORD_AGENT_PROVIDER", "OpenAI")
		t.Setenv("OPENAI_API_KEY", "openai-key")
		t.Setenv("GOOGLE_API_KEY", "ignored")

		cfg, err := LoadWithFile("")
		require.NoError(t, err)
		assert.Equal(t, ProviderOpenAI, cfg.Agent.Provider)
		assert.Equal(t, DefaultOpenAIModel, cfg.Agent.Model)
		assert.Equal(t, "openai-key", cfg.Agent.APIKey.Value())
	})

	t.Run("prefixed variable wins", func(t *testing.T) {
		setupTestHome(t)
		t.Setenv("GOOGLE_API_KEY", "google-key")
		t.Setenv("ADVISORD_AGENT_API_KEY", "explicit-key")

		cfg, err := LoadWithFile("")
		require.NoError(t, err)
		assert.Equal(t, "explicit-key", cfg.Agent.APIKey.Value())
	})
}

func TestLoadWithFile_InvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"bad provider", "agent:\n  provider: llama\n", "unknown agent provider"},
		{"bad environment", "security:\n  environment: staging\n", "unknown environment"},
		{"bad duration", "session:\n  timeout: soon\n", "failed to unmarshal"},
		{"negative agent timeout", "agent:\n  timeout: -5s\n", "failed to unmarshal"},
		{"malformed yaml", "server: [\n", "failed to load config file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := setupTestHome(t)
			path := writeConfig(t, dir, tt.yaml)

			_, err := LoadWithFile(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadWithFile_InsecurePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission model differs on windows")
	}
	dir := setupTestHome(t)
	path := writeConfig(t, dir, "server:\n  http_port: 9000\n")
	require.NoError(t, os.Chmod(path, 0644))

	_, err := LoadWithFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insecure config file permissions")
}

func TestLoadWithFile_TooLarge(t *testing.T) {
	dir := setupTestHome(t)
	path := writeConfig(t, dir, "# "+strings.Repeat("x", maxConfigFileSize)+"\n")

	_, err := LoadWithFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too large")
}

func TestValidateConfigPath(t *testing.T) {
	dir := setupTestHome(t)

	valid := []string{
		filepath.Join(dir, "config.yaml"),
		filepath.Join(dir, "nested", "config.yaml"),
		"/etc/advisord/config.yaml",
	}
	for _, path := range valid {
		t.Run("allows "+path, func(t *testing.T) {
			assert.NoError(t, validateConfigPath(path))
		})
	}

	invalid := []string{
		"/etc/passwd",
		"/tmp/config.yaml",
		"/etc/advisord-evil/config.yaml",
		filepath.Join(dir, "..", "..", "config.yaml"),
	}
	for _, path := range invalid {
		t.Run("rejects "+path, func(t *testing.T) {
			assert.Error(t, validateConfigPath(path))
		})
	}

	t.Run("rejects path outside allowed dirs even if it exists", func(t *testing.T) {
		outside := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(outside, []byte("{}"), 0600))
		_, err := LoadWithFile(outside)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "config path validation failed")
	})
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "server.http_port", envKey("ADVISORD_SERVER_HTTP_PORT"))
	assert.Equal(t, "agent.api_key", envKey("ADVISORD_AGENT_API_KEY"))
	assert.Equal(t, "debug", envKey("ADVISORD_DEBUG"))
}

func TestEnsureConfigDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	require.NoError(t, EnsureConfigDir())

	info, err := os.Stat(filepath.Join(home, ".config", "advisord"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
