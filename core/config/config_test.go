package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, 30, cfg.Database.TimeoutSeconds)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "Local", cfg.Persistence.LocalTimezone)
	assert.Equal(t, 8, cfg.Persistence.LoadConcurrency)
	assert.Equal(t, "entities.yaml", cfg.Persistence.MetadataPath)
}

func TestLoadConfig_EnvFile(t *testing.T) {
	dir := t.TempDir()
	env := "PERSISTENCE_LOAD_CONCURRENCY=2\nPERSISTENCE_LOCAL_TIMEZONE=UTC\nDATABASE_DRIVER=sqlite\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(env), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("PERSISTENCE_LOAD_CONCURRENCY")
		os.Unsetenv("PERSISTENCE_LOCAL_TIMEZONE")
		os.Unsetenv("DATABASE_DRIVER")
	})

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Persistence.LoadConcurrency)
	assert.Equal(t, "UTC", cfg.Persistence.LocalTimezone)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
}

func TestLoadConfig_RejectsInvalidSettings(t *testing.T) {
	dir := t.TempDir()
	env := "DATABASE_DRIVER=postgres\nPERSISTENCE_LOCAL_TIMEZONE=Nowhere/Else\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(env), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("DATABASE_DRIVER")
		os.Unsetenv("PERSISTENCE_LOCAL_TIMEZONE")
	})

	_, err := LoadConfig(dir)
	require.Error(t, err)
	assert.ErrorContains(t, err, "database.driver")
	assert.ErrorContains(t, err, "persistence.local_timezone")
}

func TestConfig_Validate(t *testing.T) {
	cfg := Config{}
	cfg.Database.Driver = "sqlite"
	cfg.Persistence.MetadataPath = "entities.yaml"
	assert.NoError(t, cfg.Validate())

	cfg.Persistence.LoadConcurrency = -1
	cfg.Persistence.MetadataPath = ""
	err := cfg.Validate()
	assert.ErrorContains(t, err, "persistence.load_concurrency")
	assert.ErrorContains(t, err, "persistence.metadata_path")
}
