package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mdversion/internal/config"
)

func TestResolveUsesRoles(t *testing.T) {
	cfg := config.Default()

	viewer := Resolve(cfg, "v", "jwt", []string{"viewer"})
	assert.False(t, viewer.Has(PermDocumentWrite))
	err := viewer.Require(PermDocumentWrite)
	var fe ForbiddenError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, PermDocumentWrite, fe.Permission)

	admin := Resolve(cfg, "a", "jwt", []string{"admin"})
	assert.NoError(t, admin.Require(PermSchemaWrite))
	assert.NoError(t, admin.Require(PermAPIKeyManage))
}

func TestResolveFallsBackToDefaultRole(t *testing.T) {
	p := Resolve(config.Default(), "anon", "api_key", nil)
	assert.True(t, p.Has(PermVersionActivate))
	assert.False(t, p.Has(PermSchemaWrite))
}

func TestPrincipalContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	ctx := WithPrincipal(context.Background(), Principal{ActorID: "alice"})
	p, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "alice", p.ActorID)
}
