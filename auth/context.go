package auth

import (
	"context"

	"assetmgt/models"
)

type ctxKey string

const (
	identityKey  ctxKey = "identity"
	principalKey ctxKey = "principal"
)

// Principal is a verified identity resolved to its user record.
type Principal struct {
	User models.User
	Role Role
}

func (p Principal) Can(c Capability) bool {
	return Allow(p.Role, c)
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok && id.Email != ""
}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}
