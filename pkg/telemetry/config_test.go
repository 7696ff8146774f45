package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var otelEnv = []string{
	"OTEL_ENABLED",
	"OTEL_SERVICE_NAME",
	"OTEL_SERVICE_VERSION",
	"OTEL_EXPORTER_OTLP_ENDPOINT",
	"OTEL_EXPORTER_OTLP_PROTOCOL",
	"OTEL_EXPORTER_OTLP_HEADERS",
	"OTEL_EXPORTER_OTLP_INSECURE",
	"OTEL_TRACES_SAMPLER",
	"OTEL_TRACES_SAMPLER_ARG",
	"OTEL_RESOURCE_ATTRIBUTES",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range otelEnv {
		t.Setenv(k, "")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		clearEnv(t)
		cfg := LoadFromEnv()
		assert.False(t, cfg.Enabled)
		assert.Equal(t, "reachscan", cfg.ServiceName)
		assert.Equal(t, "unknown", cfg.ServiceVersion)
		assert.Equal(t, "grpc", cfg.Protocol)
		assert.Empty(t, cfg.Headers)
	})

	t.Run("enabled case insensitive", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("OTEL_ENABLED", "TRUE")
		assert.True(t, LoadFromEnv().Enabled)
	})

	t.Run("custom values", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("OTEL_SERVICE_NAME", "heap-checks")
		t.Setenv("OTEL_SERVICE_VERSION", "1.0.0")
		t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "https://collector.example.com:4317")
		t.Setenv("OTEL_EXPORTER_OTLP_PROTOCOL", "http/protobuf")
		t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "true")
		t.Setenv("OTEL_EXPORTER_OTLP_HEADERS", "Authorization=Bearer abc")
		t.Setenv("OTEL_RESOURCE_ATTRIBUTES", "env=ci, team = runtime")

		cfg := LoadFromEnv()
		assert.Equal(t, "heap-checks", cfg.ServiceName)
		assert.Equal(t, "1.0.0", cfg.ServiceVersion)
		assert.Equal(t, "https://collector.example.com:4317", cfg.Endpoint)
		assert.Equal(t, "http/protobuf", cfg.Protocol)
		assert.True(t, cfg.Insecure)
		assert.Equal(t, map[string]string{"Authorization": "Bearer abc"}, cfg.Headers)
		assert.Equal(t, map[string]string{"env": "ci", "team": "runtime"}, cfg.ResourceAttrs)
	})
}

func TestParseKeyValuePairs(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  map[string]string
	}{
		{"empty", "", map[string]string{}},
		{"single", "a=1", map[string]string{"a": "1"}},
		{"multiple", "a=1,b=2", map[string]string{"a": "1", "b": "2"}},
		{"value with equals", "token=a=b", map[string]string{"token": "a=b"}},
		{"missing key", "=x,b=2", map[string]string{"b": "2"}},
		{"no separator", "junk,b=2", map[string]string{"b": "2"}},
		{"trailing comma", "a=1,", map[string]string{"a": "1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseKeyValuePairs(tt.input))
		})
	}
}

func TestSplitEndpoint(t *testing.T) {
	tests := []struct {
		endpoint  string
		insecure  bool
		wantHost  string
		wantPlain bool
	}{
		{"collector:4317", false, "collector:4317", false},
		{"collector:4317", true, "collector:4317", true},
		{"https://collector:4318", false, "collector:4318", false},
		{"http://collector:4318", false, "collector:4318", true},
	}
	for _, tt := range tests {
		host, plain := splitEndpoint(tt.endpoint, tt.insecure)
		assert.Equal(t, tt.wantHost, host, tt.endpoint)
		assert.Equal(t, tt.wantPlain, plain, tt.endpoint)
	}
}
