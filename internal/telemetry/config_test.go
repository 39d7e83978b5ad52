package telemetry

import (
	"testing"
	"time"

	"github.com/fyrsmithlabs/advisord/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	assert.False(t, cfg.Enabled)
	assert.Equal(t, ProtocolGRPC, cfg.Protocol)
	assert.Equal(t, "advisord", cfg.ServiceName)
	assert.NoError(t, cfg.Validate())

	cfg.Enabled = true
	assert.NoError(t, cfg.Validate(), "defaults are valid when enabled")
}

func TestConfigFrom(t *testing.T) {
	cfg := ConfigFrom(config.ObservabilityConfig{
		EnableTelemetry: true,
		ServiceName:     "advisord-prod",
		Endpoint:        "otel.example.com:4317",
		Protocol:        ProtocolHTTP,
		Insecure:        false,
	}, "1.4.0")

	assert.True(t, cfg.Enabled)
	assert.Equal(t, "advisord-prod", cfg.ServiceName)
	assert.Equal(t, "otel.example.com:4317", cfg.Endpoint)
	assert.Equal(t, ProtocolHTTP, cfg.Protocol)
	assert.Equal(t, "1.4.0", cfg.ServiceVersion)
	assert.False(t, cfg.Insecure)
	require.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"missing endpoint", func(c *Config) { c.Endpoint = "" }, "endpoint is required"},
		{"missing service name", func(c *Config) { c.ServiceName = "" }, "service_name"},
		{"missing version", func(c *Config) { c.ServiceVersion = "" }, "service_version"},
		{"bad protocol", func(c *Config) { c.Protocol = "udp" }, "protocol"},
		{"insecure remote", func(c *Config) { c.Endpoint = "collector.example.com:4317" }, "insecure export"},
		{"sample rate above 1", func(c *Config) { c.SampleRate = 1.5 }, "sample_rate"},
		{"zero export interval", func(c *Config) { c.Metrics.ExportInterval = 0 }, "export_interval"},
		{"zero shutdown", func(c *Config) { c.ShutdownAfter = 0 }, "shutdown_timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			cfg.Enabled = true
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	t.Run("disabled skips validation", func(t *testing.T) {
		cfg := &Config{Enabled: false, ShutdownAfter: config.Duration(time.Second)}
		assert.NoError(t, cfg.Validate())
	})
}

func TestConfig_IsLocalEndpoint(t *testing.T) {
	tests := []struct {
		endpoint string
		local    bool
	}{
		{"localhost:4317", true},
		{"127.0.0.1:4317", true},
		{"127.1.2.3:4318", true},
		{"[::1]:4317", true},
		{"::1", true},
		{"http://localhost:4318", true},
		{"collector:4317", false},
		{"10.0.0.5:4317", false},
		{"https://otel.example.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.endpoint, func(t *testing.T) {
			cfg := &Config{Endpoint: tt.endpoint}
			assert.Equal(t, tt.local, cfg.isLocalEndpoint())
		})
	}
}

func TestStripScheme(t *testing.T) {
	assert.Equal(t, "otel:4318", stripScheme("https://otel:4318"))
	assert.Equal(t, "otel:4318", stripScheme("http://otel:4318"))
	assert.Equal(t, "otel:4318", stripScheme("otel:4318"))
}
