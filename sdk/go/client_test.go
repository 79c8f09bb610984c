package mdversionsdk_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mdversion/internal/config"
	"mdversion/internal/db"
	"mdversion/internal/engine"
	"mdversion/internal/migrate"
	"mdversion/internal/server"
	mdversionsdk "mdversion/sdk/go"
)

func newClient(t *testing.T) *mdversionsdk.Client {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	_, err = migrate.Migrate(conn)
	require.NoError(t, err)
	handler, err := server.New(server.Config{
		Engine:   engine.New(conn, config.Default()),
		BasePath: "/v1",
		Auth:     server.AuthConfig{JWTSecret: "sdk-secret"},
	})
	require.NoError(t, err)
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	token, err := server.SignToken("sdk-secret", "sdk-user", []string{"publisher"}, time.Hour)
	require.NoError(t, err)
	c := mdversionsdk.New(ts.URL)
	c.BearerToken = token
	return c
}

func TestClientRoundTrip(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()

	v1, err := c.CreateDocument(ctx, "loyalty-program", "gold-tier", map[string]any{"discount": 10, "tier": "gold"}, "")
	require.NoError(t, err)
	assert.Equal(t, 1, v1.VersionNumber)
	assert.Equal(t, "sdk-user", v1.Author)

	v2, err := c.CreateVersion(ctx, "loyalty-program", "gold-tier", map[string]any{"discount": 15}, "bump")
	require.NoError(t, err)
	assert.Equal(t, 2, v2.VersionNumber)

	_, err = c.Active(ctx, "loyalty-program", "gold-tier")
	var apiErr *mdversionsdk.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "no_active_version", apiErr.Code)

	require.NoError(t, c.Activate(ctx, "loyalty-program", "gold-tier", 2))
	active, err := c.Active(ctx, "loyalty-program", "gold-tier")
	require.NoError(t, err)
	assert.Equal(t, 2, active.VersionNumber)

	cmp, err := c.Compare(ctx, "loyalty-program", "gold-tier", 1, 2)
	require.NoError(t, err)
	assert.True(t, cmp.HasBreakingChanges)
	assert.Equal(t, 2, cmp.ChangeCount)

	archived, err := c.Transition(ctx, "loyalty-program", "gold-tier", 1, "ARCHIVED")
	require.NoError(t, err)
	assert.Equal(t, "ARCHIVED", archived.PublishingState)

	history, err := c.History(ctx, "loyalty-program", "gold-tier")
	require.NoError(t, err)
	require.Len(t, history, 2)

	got, err := c.GetVersion(ctx, "loyalty-program", "gold-tier", 1)
	require.NoError(t, err)
	assert.JSONEq(t, `{"discount":10,"tier":"gold"}`, string(got.Content))

	page, err := c.ListDocuments(ctx, "loyalty-program", 10, "")
	require.NoError(t, err)
	require.Len(t, page.Items, 1)

	evts, err := c.Events(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, evts, 4)
	assert.Equal(t, "sdk-user", evts[0].ActorID)
}

func TestClientReportsAuthErrors(t *testing.T) {
	c := newClient(t)
	c.BearerToken = ""
	_, err := c.CreateDocument(context.Background(), "user", "john", map[string]any{"a": 1}, "")
	var apiErr *mdversionsdk.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "unauthorized", apiErr.Code)
}
