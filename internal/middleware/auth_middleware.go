package middleware

import (
	"context"
	"net/http"

	"github.com/mkaur-dev/school-backend/internal/auth"
	"github.com/mkaur-dev/school-backend/internal/models"
)

type contextKey string

const principalKey contextKey = "principal"

// RequireAuth resolves the principal from the session cookie and puts it on
// the request context. It only authenticates; per-action policy belongs to
// the authorization engine.
func RequireAuth(tokens *auth.TokenIssuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie("token")
			if err != nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			principal, err := tokens.Validate(cookie.Value)
			if err != nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), principalKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// PrincipalFrom returns the principal set by RequireAuth.
func PrincipalFrom(ctx context.Context) (models.Principal, bool) {
	principal, ok := ctx.Value(principalKey).(models.Principal)
	return principal, ok
}
