package auth

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const (
	MemberIDKey contextKey = "member_id"
	CodenameKey contextKey = "codename"
	RolesKey    contextKey = "roles"
)

// Middleware validates the bearer token on incoming HTTP calls and injects
// the member identity into the request context. Sessions never share a
// global "current user"; every downstream operation receives the identity
// explicitly.
func Middleware(tokens *TokenSource) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := ClaimsFromRequest(tokens, r)
			if err != nil {
				http.Error(w, "invalid or expired token", http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), MemberIDKey, claims.MemberID)
			ctx = context.WithValue(ctx, CodenameKey, claims.Codename)
			ctx = context.WithValue(ctx, RolesKey, claims.Roles)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClaimsFromRequest extracts and validates the credential from either the
// Authorization header or, for websocket upgrades where headers are
// awkward for browser clients, the "token" query parameter.
func ClaimsFromRequest(tokens *TokenSource, r *http.Request) (*CustomClaims, error) {
	raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if raw == "" || raw == r.Header.Get("Authorization") {
		raw = r.URL.Query().Get("token")
	}
	return tokens.Validate(raw)
}

// MemberIDFromContext returns the authenticated member id, if any.
func MemberIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(MemberIDKey).(string)
	return id, ok && id != ""
}

// HasRole reports whether the authenticated member carries a role.
func HasRole(ctx context.Context, role string) bool {
	roles, ok := ctx.Value(RolesKey).([]string)
	if !ok {
		return false
	}
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
