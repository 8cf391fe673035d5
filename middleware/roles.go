package middleware

import (
	"net/http"
	"strings"

	authcore "github.com/ridgelock-io/authcore"
)

// RequireRole wraps [RequireAuth] and additionally rejects requests whose
// validated role is not in the allow-list. Role comparison is case-insensitive.
func RequireRole(engine *authcore.Engine, roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		guard := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, ok := AuthResultFromContext(r.Context())
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			for _, role := range roles {
				if strings.EqualFold(res.Role, role) {
					next.ServeHTTP(w, r)
					return
				}
			}

			http.Error(w, "forbidden", http.StatusForbidden)
		})

		return RequireAuth(engine)(guard)
	}
}
