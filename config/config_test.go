package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_FillsDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
engine:
  endpoint: wss://engine.example.com/session
`))
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.Engine.CommandTimeout)
	assert.Equal(t, 10*time.Second, cfg.Engine.HandshakeTimeout)
	assert.Equal(t, DefaultAuthTokenEnv, cfg.Engine.AuthTokenEnv)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, 9090, cfg.Metrics.Port)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
}

func TestParse_ExplicitValues(t *testing.T) {
	cfg, err := Parse([]byte(`
engine:
  endpoint: ws://localhost:8080/session
  command_timeout: 5s
  handshake_timeout: 2s
logging:
  level: debug
  format: json
metrics:
  enabled: true
  port: 9100
kernel:
  enabled: true
  module_path: /opt/kernel.wasm
  memory_limit_pages: 1024
`))
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.Engine.CommandTimeout)
	assert.Equal(t, 2*time.Second, cfg.Engine.HandshakeTimeout)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, 9100, cfg.Metrics.Port)
	assert.True(t, cfg.Kernel.Enabled)
	assert.Equal(t, "/opt/kernel.wasm", cfg.Kernel.ModulePath)
	assert.Equal(t, uint32(1024), cfg.Kernel.MemoryLimitPages)
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "missing endpoint",
			yaml: `logging: {level: info}`,
			want: "engine.endpoint is required",
		},
		{
			name: "wrong scheme",
			yaml: `engine: {endpoint: "https://engine.example.com"}`,
			want: "scheme must be ws or wss",
		},
		{
			name: "bad log level",
			yaml: "engine: {endpoint: \"wss://e\"}\nlogging: {level: loud}",
			want: "logging.level",
		},
		{
			name: "bad metrics port",
			yaml: "engine: {endpoint: \"wss://e\"}\nmetrics: {port: 99999}",
			want: "metrics.port",
		},
		{
			name: "kernel without module",
			yaml: "engine: {endpoint: \"wss://e\"}\nkernel: {enabled: true}",
			want: "kernel.module_path",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
engine:
  endpoint: wss://engine.example.com/session
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "wss://engine.example.com/session", cfg.Engine.Endpoint)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestResolveAuthToken(t *testing.T) {
	cfg := Default()
	cfg.Engine.AuthToken = "inline"
	assert.Equal(t, "inline", cfg.ResolveAuthToken())

	cfg.Engine.AuthToken = ""
	cfg.Engine.AuthTokenEnv = "ENGINELINK_TEST_TOKEN"
	t.Setenv("ENGINELINK_TEST_TOKEN", "from-env")
	assert.Equal(t, "from-env", cfg.ResolveAuthToken())
}
