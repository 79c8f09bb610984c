package migrate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mdversion/internal/db"
)

func TestMigrateIsIdempotent(t *testing.T) {
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	defer conn.Close()

	applied, err := Migrate(conn)
	require.NoError(t, err)
	require.NotEmpty(t, applied)
	assert.Equal(t, 1, applied[0].Version)

	again, err := Migrate(conn)
	require.NoError(t, err)
	assert.Empty(t, again)

	status, err := Status(context.Background(), conn)
	require.NoError(t, err)
	assert.Len(t, status, len(applied))
	assert.Equal(t, "0001_init.sql", status[0].Name)
}
