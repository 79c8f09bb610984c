package auth

import (
	"context"
	"fmt"
	"slices"

	"mdversion/internal/config"
)

// Permissions granted through config roles.
const (
	PermDocumentWrite     = "document.write"
	PermVersionTransition = "version.transition"
	PermVersionActivate   = "version.activate"
	PermSchemaWrite       = "schema.write"
	PermAPIKeyManage      = "apikey.manage"
)

// ForbiddenError indicates missing permission.
type ForbiddenError struct {
	ActorID    string
	Permission string
}

func (e ForbiddenError) Error() string {
	return fmt.Sprintf("permission %s required", e.Permission)
}

// Principal is an authenticated caller and the permissions its roles resolve to.
type Principal struct {
	ActorID     string
	Source      string
	Roles       []string
	Permissions []string
}

// Resolve expands roles into permissions using cfg. With no roles the configured default role applies.
func Resolve(cfg *config.Config, actorID, source string, roles []string) Principal {
	p := Principal{ActorID: actorID, Source: source, Roles: roles}
	if cfg != nil {
		p.Permissions = cfg.Permissions(roles)
	}
	return p
}

func (p Principal) Has(perm string) bool {
	return slices.Contains(p.Permissions, perm)
}

// Require returns ForbiddenError unless p holds perm.
func (p Principal) Require(perm string) error {
	if p.Has(perm) {
		return nil
	}
	return ForbiddenError{ActorID: p.ActorID, Permission: perm}
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
