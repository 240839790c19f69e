// auth/handlers.go
package auth

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// Handler provides HTTP handlers for the OAuth flow
type Handler struct {
	service      *Service
	dashboardURL string
	log          *zap.Logger
}

// NewHandler creates a new auth handler
func NewHandler(service *Service, dashboardURL string, log *zap.Logger) *Handler {
	return &Handler{
		service:      service,
		dashboardURL: dashboardURL,
		log:          log,
	}
}

// generateState creates a fresh random state for OAuth CSRF protection
func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// AuthorizeHandler initiates the accounting-platform authorization flow
func (h *Handler) AuthorizeHandler(w http.ResponseWriter, r *http.Request) {
	state, err := generateState()
	if err != nil {
		http.Error(w, "Failed to generate state", http.StatusInternalServerError)
		return
	}

	session := GetSession(r)
	session.Values["oauth_state"] = state
	session.Values["oauth_state_expiry"] = time.Now().Add(10 * time.Minute).Unix()
	if err := session.Save(r, w); err != nil {
		http.Error(w, "Failed to save session", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, h.service.AuthorizationURL(state), http.StatusFound)
}

// CallbackHandler validates state, exchanges the code and stores tokens.
// Browser-facing errors carry a coarse code only, never upstream detail.
func (h *Handler) CallbackHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if errCode := query.Get("error"); errCode != "" {
		h.log.Warn("authorization denied by provider",
			zap.String("error", errCode),
			zap.String("description", query.Get("error_description")))
		h.redirectError(w, r, errCode)
		return
	}

	code := query.Get("code")
	state := query.Get("state")
	if code == "" || state == "" {
		h.redirectError(w, r, "invalid_callback")
		return
	}

	session := GetSession(r)
	savedState, ok := session.Values["oauth_state"].(string)
	expiry, expOK := session.Values["oauth_state_expiry"].(int64)

	delete(session.Values, "oauth_state")
	delete(session.Values, "oauth_state_expiry")
	_ = session.Save(r, w)

	if !ok || savedState != state {
		h.log.Warn("OAuth state mismatch", zap.Error(ErrInvalidState))
		h.redirectError(w, r, "invalid_state")
		return
	}
	if !expOK || time.Now().Unix() > expiry {
		h.redirectError(w, r, "state_expired")
		return
	}

	if _, err := h.service.ExchangeCode(r.Context(), code); err != nil {
		h.log.Error("code exchange failed", zap.Error(err))
		h.redirectError(w, r, "token_exchange_failed")
		return
	}

	SetConnectedCookie(w, true)
	http.Redirect(w, r, h.dashboardURL+"?auth=success", http.StatusFound)
}

func (h *Handler) redirectError(w http.ResponseWriter, r *http.Request, code string) {
	http.Redirect(w, r, h.dashboardURL+"?error="+url.QueryEscape(code), http.StatusFound)
}

// StatusHandler returns the connection status
func (h *Handler) StatusHandler(w http.ResponseWriter, r *http.Request) {
	connected, token := h.service.Connected()

	resp := map[string]any{
		"connected":         connected,
		"has_access_token":  false,
		"has_refresh_token": false,
	}
	if token != nil {
		resp["has_access_token"] = token.AccessToken != ""
		resp["has_refresh_token"] = token.RefreshToken != ""
		resp["token_type"] = token.TokenType
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// DisconnectHandler clears the stored tokens
func (h *Handler) DisconnectHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Disconnect(); err != nil {
		h.log.Error("disconnect failed", zap.Error(err))
		http.Error(w, "Failed to clear tokens", http.StatusInternalServerError)
		return
	}

	SetConnectedCookie(w, false)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"success": true})
}
