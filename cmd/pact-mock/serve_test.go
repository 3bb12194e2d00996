package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServeFlagsOverrideEnvironment(t *testing.T) {
	t.Setenv("ADMIN_PORT", "9090")
	t.Setenv("LOG_LEVEL", "warn")

	cmd := newServeCommand()
	require.NoError(t, cmd.Flags().Parse([]string{"--admin-port", "9191", "--env-file", filepath.Join(t.TempDir(), "missing.env")}))

	opts := serveOptions{}
	opts.envFile, _ = cmd.Flags().GetString("env-file")
	opts.adminPort, _ = cmd.Flags().GetInt("admin-port")

	config, err := opts.config(cmd)
	require.NoError(t, err)
	assert.Equal(t, 9191, config.AdminPort)
	assert.Equal(t, "warn", config.LogLevel)
}

func TestServeReadsEnvFile(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(envFile, []byte("PLUGIN_DIR=/tmp/pact-plugins\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("PLUGIN_DIR") })

	cmd := newServeCommand()
	config, err := serveOptions{envFile: envFile}.config(cmd)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/pact-plugins", config.PluginDir)
}

func TestServeRejectsBadEnvFile(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), "bad.env")
	require.NoError(t, os.WriteFile(envFile, []byte("PACT_MOCK_TEST=\"unterminated\n"), 0o600))

	_, err := serveOptions{envFile: envFile}.config(newServeCommand())
	assert.Error(t, err)
}

func TestRootCommandHasServe(t *testing.T) {
	cmd, _, err := newRootCommand().Find([]string{"serve"})
	require.NoError(t, err)
	assert.Equal(t, "serve", cmd.Name())
}
