// routes/auth.go
package routes

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/eGGnogSC/paysync/internal/auth"
)

// RegisterAuthRoutes registers the OAuth flow routes
func RegisterAuthRoutes(router *mux.Router, authHandler *auth.Handler) {
	router.HandleFunc("/oauth/authorize", authHandler.AuthorizeHandler).Methods(http.MethodGet)
	router.HandleFunc("/oauth/callback", authHandler.CallbackHandler).Methods(http.MethodGet)
	router.HandleFunc("/oauth/status", authHandler.StatusHandler).Methods(http.MethodGet)
	router.HandleFunc("/oauth/status", authHandler.DisconnectHandler).Methods(http.MethodDelete)
}
