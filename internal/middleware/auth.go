package middleware

import (
	"net/http"
	"strings"

	"github.com/bizsim/agegate/internal/util"
	"github.com/bizsim/agegate/internal/util/logger"
)

// RequireAdmin guards operational endpoints with a bearer admin token.
func RequireAdmin(jwtManager *util.JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}
			tokenStr := strings.TrimSpace(authHeader[7:])
			claims, err := jwtManager.ValidateToken(tokenStr)
			if err != nil {
				logger.Debug("admin auth rejected: %v", err)
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			if claims.Scope != "admin" {
				http.Error(w, "insufficient scope", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
