// routes/routes.go
package routes

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/eGGnogSC/paysync/internal/auth"
	"github.com/eGGnogSC/paysync/internal/syncer"
	"github.com/eGGnogSC/paysync/internal/webhook"
)

// SetupRoutes configures all API routes
func SetupRoutes(
	router *mux.Router,
	authHandler *auth.Handler,
	authService *auth.Service,
	syncHandler *syncer.Handler,
	webhookHandler *webhook.Handler,
) {
	RegisterAuthRoutes(router, authHandler)

	// Gateway-facing webhook, authenticated by shared secret only
	router.HandleFunc("/webhook", webhookHandler.Handle).Methods(http.MethodPost)

	// Dashboard data endpoints
	router.HandleFunc("/transactions", syncHandler.TransactionsHandler).Methods(http.MethodGet)
	router.HandleFunc("/transfers", syncHandler.TransfersHandler).Methods(http.MethodGet)

	// Sync and admin routes need an accounting connection
	protected := router.NewRoute().Subrouter()
	protected.Use(auth.RequireConnection(authService))
	protected.HandleFunc("/sync/trigger", syncHandler.TriggerHandler).Methods(http.MethodPost)
	protected.HandleFunc("/sync/single", syncHandler.SingleSyncHandler).Methods(http.MethodPost)
	protected.HandleFunc("/accounts", syncHandler.AccountsHandler).Methods(http.MethodGet)
	protected.HandleFunc("/admin/finance-account", syncHandler.FinanceAccountHandler).Methods(http.MethodPut)

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods(http.MethodGet)
}
