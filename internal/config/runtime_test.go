package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadOptionsDefaults(t *testing.T) {
	opts, err := LoadOptions(filepath.Join(writeConfig(t, "{}"), "cbtlab.yaml"))
	require.NoError(t, err)
	require.Equal(t, "https://openrouter.ai/api/v1", opts.BaseURL)
	require.Equal(t, 60*time.Second, opts.HTTPTimeout())
	require.Equal(t, 2*time.Second, opts.RetryDelay())
	require.Equal(t, 3, opts.RetryAttempts)
	require.Equal(t, 5, opts.Rounds)
	require.Equal(t, 32, opts.Workers)
	require.Equal(t, "info", opts.LogLevel)
	require.False(t, opts.Tracing.Enabled)
	require.Equal(t, 8090, opts.Server.Port)
}

func TestLoadOptionsFromFile(t *testing.T) {
	dir := writeConfig(t, `
output_dir: /tmp/results
rounds: 3
workers: 8
tracing:
  enabled: true
  exporter: zipkin
server:
  port: 9000
`)
	opts, err := LoadOptions(filepath.Join(dir, "cbtlab.yaml"))
	require.NoError(t, err)
	require.Equal(t, "/tmp/results", opts.OutputDir)
	require.Equal(t, 3, opts.Rounds)
	require.Equal(t, 8, opts.Workers)
	require.True(t, opts.Tracing.Enabled)
	require.Equal(t, "zipkin", opts.Tracing.Exporter)
	require.Equal(t, 9000, opts.Server.Port)
}

func TestLoadOptionsEnvOverride(t *testing.T) {
	t.Setenv("CBTLAB_WORKERS", "4")
	t.Setenv("CBTLAB_OUTPUT_DIR", "env-output")
	opts, err := LoadOptions(filepath.Join(writeConfig(t, "{}"), "cbtlab.yaml"))
	require.NoError(t, err)
	require.Equal(t, 4, opts.Workers)
	require.Equal(t, "env-output", opts.OutputDir)
}

func TestLoadOptionsInvalidWorkersFallsBack(t *testing.T) {
	dir := writeConfig(t, "workers: -1\nrounds: 0\n")
	opts, err := LoadOptions(filepath.Join(dir, "cbtlab.yaml"))
	require.NoError(t, err)
	require.Equal(t, 32, opts.Workers)
	require.Equal(t, 5, opts.Rounds)
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cbtlab.yaml"), []byte(content), 0o644))
	return dir
}
