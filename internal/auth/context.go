package auth

import "context"

type principalContextKey struct{}

// ContextWithPrincipal attaches the authenticated principal to the context.
func ContextWithPrincipal(ctx context.Context, principal Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, &principal)
}

// PrincipalFromContext extracts the authenticated principal from the context.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	v, ok := ctx.Value(principalContextKey{}).(*Principal)
	if !ok || v == nil {
		return Principal{}, false
	}
	return *v, true
}

// UserIDFromContext returns the authenticated user id, if any.
func UserIDFromContext(ctx context.Context) (string, bool) {
	principal, ok := PrincipalFromContext(ctx)
	if !ok || principal.User.ID == "" {
		return "", false
	}
	return principal.User.ID, true
}
