package config

import (
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"ADAPTSIM_PORT", "ADAPTSIM_DATA_DIR", "ADAPTSIM_DB", "ADAPTSIM_PARAMS",
		"ADAPTSIM_WORKERS", "ADAPTSIM_ARCHIVE", "CORS_ORIGINS", "RANDOM_ORG_KEY", "ADAPTSIM_LOG_LEVEL"} {
		t.Setenv(k, "")
	}
	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8000, c.Port)
	assert.Equal(t, "data", c.DataDir)
	assert.Equal(t, filepath.Join("data", "adaptsim.db"), c.DBPath)
	assert.Equal(t, filepath.Join("data", "archive"), c.ArchiveDir())
	assert.False(t, c.Archive)
	assert.Empty(t, c.CORSOrigins)
	assert.Equal(t, slog.LevelInfo, c.LogLevel)
	assert.Positive(t, c.Workers)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ADAPTSIM_PORT", "9100")
	t.Setenv("ADAPTSIM_DATA_DIR", "/var/lib/adaptsim")
	t.Setenv("ADAPTSIM_DB", "")
	t.Setenv("ADAPTSIM_ARCHIVE", "true")
	t.Setenv("ADAPTSIM_WORKERS", "3")
	t.Setenv("CORS_ORIGINS", "http://localhost:3000, https://example.org ,")
	t.Setenv("ADAPTSIM_LOG_LEVEL", "debug")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9100, c.Port)
	assert.Equal(t, "/var/lib/adaptsim/adaptsim.db", c.DBPath)
	assert.True(t, c.Archive)
	assert.Equal(t, 3, c.Workers)
	assert.Equal(t, []string{"http://localhost:3000", "https://example.org"}, c.CORSOrigins)
	assert.Equal(t, slog.LevelDebug, c.LogLevel)
}

func TestLoadRejectsMalformed(t *testing.T) {
	t.Setenv("ADAPTSIM_PORT", "eighty")
	_, err := Load()
	require.Error(t, err)

	t.Setenv("ADAPTSIM_PORT", "")
	t.Setenv("ADAPTSIM_LOG_LEVEL", "loud")
	_, err = Load()
	require.Error(t, err)
}
