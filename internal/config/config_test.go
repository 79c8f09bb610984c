package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "/v1", cfg.Server.BasePath)
	assert.Equal(t, 1048576, cfg.Limits.MaxContentBytes)
	assert.Equal(t, 50, cfg.Limits.MaxDepth)
	assert.Equal(t, "publisher", cfg.Auth.DefaultRole)
}

func TestFromYAMLKeepsDefaultsForUnsetFields(t *testing.T) {
	cfg, err := FromYAML([]byte("limits:\n  max_depth: 10\n"))
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Limits.MaxDepth)
	assert.Equal(t, 1048576, cfg.Limits.MaxContentBytes)
}

func TestFromYAMLRejectsInvalid(t *testing.T) {
	bad := []string{
		"server:\n  base_path: v1\n",
		"limits:\n  max_depth: -1\n",
		"logging:\n  level: loud\n",
		"auth:\n  default_role: ghost\n",
		"webhooks:\n  - url: not-a-url\n",
		"server: [",
	}
	for _, raw := range bad {
		_, err := FromYAML([]byte(raw))
		assert.Error(t, err, raw)
	}
}

func TestLoadOptional(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadOptional(dir)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "mdversion.yml"), []byte("cache:\n  active_ttl_seconds: 5\n"), 0o644))
	cfg, err = LoadOptional(dir)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Cache.ActiveTTLSeconds)

	_, err = Load(t.TempDir())
	assert.Error(t, err)
}

func TestPermissions(t *testing.T) {
	cfg := Default()
	assert.ElementsMatch(t, []string{"document.write", "version.transition", "version.activate"}, cfg.Permissions(nil))
	assert.Contains(t, cfg.Permissions([]string{"admin"}), "schema.write")
	assert.Empty(t, cfg.Permissions([]string{"viewer"}))
}
