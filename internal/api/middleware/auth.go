package middleware

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/opsdesk/server/internal/api/problem"
	"github.com/opsdesk/server/internal/auth"
)

const claimsKey contextKey = "auth_claims"

// Authenticate verifies the bearer token and stores the claims in the
// request context. Every failure mode answers the same 401.
func Authenticate(jwt *auth.JWTManager, env string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := auth.TokenFromHeader(r.Header.Get("Authorization"))
			if err != nil {
				problem.Write(w, r, http.StatusUnauthorized, "about:blank", "Unauthorized", err, env)
				return
			}
			claims, err := jwt.Verify(token)
			if err != nil {
				problem.Write(w, r, http.StatusUnauthorized, "about:blank", "Unauthorized", err, env)
				return
			}

			reqLogger := zerolog.Ctx(r.Context()).With().
				Str("user_id", claims.UserID()).
				Str("username", claims.Username).
				Logger()

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			ctx = reqLogger.WithContext(ctx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AdminOnly gates a handler to admin identities. Must run after Authenticate.
func AdminOnly(env string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				problem.Write(w, r, http.StatusUnauthorized, "about:blank", "Unauthorized", auth.ErrUnauthenticated, env)
				return
			}
			if err := auth.RequireRole(claims, auth.RoleAdmin); err != nil {
				problem.Write(w, r, http.StatusForbidden, "about:blank", "Forbidden", err, env)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClaimsFromContext returns the verified claims stored by Authenticate.
func ClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*auth.Claims)
	return claims, ok
}
