package rbac

import "context"

// Identity describes the authenticated actor as carried by a verified
// credential. Permissions are the token snapshot, not a live resolution.
type Identity struct {
	UserID      int64
	UserName    string
	Permissions map[string]struct{}
}

// HasPermission reports whether the identity's claim set grants p.
func (id Identity) HasPermission(p Permission) bool {
	_, ok := id.Permissions[string(p)]
	return ok
}

type identityContextKey struct{}

// ContextWithIdentity stores the identity in context.
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext extracts the identity from context.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(Identity)
	return id, ok
}
