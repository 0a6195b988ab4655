package middleware

import (
	"net/http"
	"strings"

	"github.com/hongminglow/crm-backend/internal/auth"
	"github.com/hongminglow/crm-backend/internal/http/respond"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

const bearerPrefix = "Bearer "

// TokenParser verifies a raw bearer token.
type TokenParser interface {
	Parse(token string) (*auth.Claims, error)
}

// Authenticate rejects requests without a valid bearer token and attaches the
// verified claims to the request context for the rest of the chain.
func Authenticate(tokens TokenParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, bearerPrefix) || strings.TrimSpace(header[len(bearerPrefix):]) == "" {
				respond.Error(w, r, http.StatusUnauthorized, "Access denied. No token provided.")
				return
			}

			claims, err := tokens.Parse(strings.TrimSpace(header[len(bearerPrefix):]))
			if err != nil {
				hlog.FromRequest(r).Debug().Err(err).Msg("bearer token rejected")
				respond.Error(w, r, http.StatusUnauthorized, "Invalid or expired token.")
				return
			}

			hlog.FromRequest(r).UpdateContext(func(c zerolog.Context) zerolog.Context {
				return c.Int64("user_id", claims.UserID)
			})
			next.ServeHTTP(w, r.WithContext(auth.WithClaims(r.Context(), claims)))
		})
	}
}
