package app

import (
	"bytes"
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mdversion/internal/config"
	"mdversion/internal/engine"
)

func TestOpenWithDefaults(t *testing.T) {
	var logs bytes.Buffer
	rt, err := Open(Options{Workspace: t.TempDir(), LogOutput: &logs})
	require.NoError(t, err)
	defer rt.Close()

	assert.Equal(t, "/v1", rt.Config.Server.BasePath)
	assert.Contains(t, logs.String(), "0001_init.sql")

	res, err := rt.Engine.CreateFirstVersion(context.Background(), engine.VersionInput{
		Type: "user", Name: "john", Content: []byte(`{}`), Author: "me",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Version.Number())
}

func TestOpenReadsWorkspaceConfig(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(config.Path(dir), []byte("limits:\n  max_content_bytes: 8\n"), 0o644))
	rt, err := Open(Options{Workspace: dir, LogOutput: &bytes.Buffer{}})
	require.NoError(t, err)
	defer rt.Close()

	assert.Equal(t, 8, rt.Config.Limits.MaxContentBytes)
	_, err = rt.Engine.CreateFirstVersion(context.Background(), engine.VersionInput{
		Type: "user", Name: "john", Content: []byte(`{"too":"long"}`), Author: "me",
	})
	assert.Error(t, err)
}

func TestOpenRejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(config.Path(dir), []byte("server:\n  base_path: nope\n"), 0o644))
	_, err := Open(Options{Workspace: dir})
	assert.Error(t, err)
}
