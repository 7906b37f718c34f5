package middleware

import (
	"net/http"
	"strings"

	"github.com/leca/imgdrop/internal/api"
)

// Auth returns middleware that requires a matching Bearer token. An empty
// configured token disables the check entirely.
func Auth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			const prefix = "Bearer "
			authHeader := r.Header.Get("Authorization")
			if strings.HasPrefix(authHeader, prefix) && authHeader[len(prefix):] == token {
				next.ServeHTTP(w, r)
				return
			}
			api.Error(w, http.StatusUnauthorized, "Authentication required")
		})
	}
}
