package auth

import (
	"net/http"
	"strings"

	"github.com/meridian-bank/meridian/internal/platform/httpx"
	"github.com/meridian-bank/meridian/internal/shared"
)

// Middleware resolves bearer tokens into identities.
type Middleware struct {
	tokens *TokenStore
}

// NewMiddleware constructs the middleware.
func NewMiddleware(tokens *TokenStore) *Middleware {
	return &Middleware{tokens: tokens}
}

// Require rejects requests whose token is missing, invalid or carries a
// different role, and otherwise injects the identity into the context.
func (m *Middleware) Require(role shared.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := m.tokens.Resolve(r.Context(), BearerToken(r))
			if err != nil {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
				return
			}
			if id.Role != role {
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "")
				return
			}
			next.ServeHTTP(w, r.WithContext(shared.ContextWithIdentity(r.Context(), id)))
		})
	}
}

// BearerToken extracts the token from the Authorization header.
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return token
	}
	return header
}
