package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"docvault.org/internal/auth"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

var publicPaths = []string{
	"/v1/auth/register",
	"/v1/auth/login",
	"/v1/auth/refresh",
	"/metrics",
	"/healthz",
	"/readyz",
	"/",
}

// withAuth resolves the bearer token into a principal before any protected
// handler runs. The user is re-read from the store on every request: a token
// outlives its holder's active flag, the lookup does not.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		if isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, "Authentication required")
			return
		}

		principal, err := a.auth.Authenticate(r.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrInvalidToken):
				writeError(w, r, http.StatusUnauthorized, "Invalid token")
			case errors.Is(err, auth.ErrUnauthenticated):
				writeError(w, r, http.StatusUnauthorized, "User not found or inactive")
			default:
				writeError(w, r, http.StatusInternalServerError, "Internal server error")
			}
			return
		}

		ctx := auth.ContextWithPrincipal(r.Context(), principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ensurePermissions writes the failure response and reports whether the
// caller holds every named permission.
func (a *API) ensurePermissions(w http.ResponseWriter, r *http.Request, perms ...string) bool {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "Authentication required")
		return false
	}
	if !principal.HasAll(perms...) {
		writeError(w, r, http.StatusForbidden, "Insufficient permissions")
		return false
	}
	return true
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}
