package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "json", cfg.Data.Backend)
	assert.Equal(t, "data/library.json", cfg.Data.Path)
	assert.Equal(t, "plain", cfg.Auth.Verifier)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "library.yaml")
	raw := `
data:
  backend: sqlite
  path: /tmp/library.db
auth:
  verifier: bcrypt
log:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Data.Backend)
	assert.Equal(t, "/tmp/library.db", cfg.Data.Path)
	assert.Equal(t, "bcrypt", cfg.Auth.Verifier)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "library.yaml")
	require.NoError(t, os.WriteFile(path, []byte("data:\n  backend: json\n"), 0o644))

	t.Setenv("LIBRARY_DATA_BACKEND", "sqlite")
	t.Setenv("LIBRARY_LOG_LEVEL", "warn")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Data.Backend)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadRejectsInvalidBackend(t *testing.T) {
	t.Setenv("LIBRARY_DATA_BACKEND", "postgres")

	_, err := Load("")
	assert.Error(t, err)
}

func TestLoadRejectsInvalidVerifier(t *testing.T) {
	t.Setenv("LIBRARY_AUTH_VERIFIER", "md5")

	_, err := Load("")
	assert.Error(t, err)
}

func TestLoadRejectsEmptyPath(t *testing.T) {
	t.Setenv("LIBRARY_DATA_PATH", "")

	_, err := Load("")
	assert.Error(t, err)
}
