// auth/middleware.go
package auth

import (
	"encoding/json"
	"net/http"
)

// RequireConnection rejects requests when no accounting-platform
// connection exists, so protected routes fail fast instead of surfacing
// upstream 401s mid-sync
func RequireConnection(service *Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if connected, _ := service.Connected(); !connected {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(map[string]any{
					"error": ErrAuthRequired.Error(),
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
