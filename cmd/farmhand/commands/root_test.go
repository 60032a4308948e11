package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetFlags(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		envFile, backend, dataDir, logLevel = "", "", "", ""
	})
}

func TestLoadConfigFlagOverrides(t *testing.T) {
	resetFlags(t)
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("LOG_LEVEL", "warn")

	backend = "badger"
	dataDir = t.TempDir()
	logLevel = "debug"

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "badger", cfg.StoreBackend)
	assert.Equal(t, dataDir, cfg.DataDir)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadConfigRejectsUnknownBackend(t *testing.T) {
	resetFlags(t)
	backend = "sqlite"

	_, err := loadConfig()
	assert.Error(t, err)
}

func TestLoadConfigMissingEnvFile(t *testing.T) {
	resetFlags(t)
	envFile = "/nonexistent/.env"

	_, err := loadConfig()
	assert.Error(t, err)
}

func TestCommandsRegistered(t *testing.T) {
	for _, name := range []string{"serve", "seed", "sync-prices"} {
		cmd, _, err := rootCmd.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, cmd.Name())
	}
}
