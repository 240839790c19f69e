// auth/session.go
package auth

import (
	"net/http"

	"github.com/gorilla/sessions"
)

const (
	sessionName = "paysync-oauth-session"

	// ConnectedCookie is a non-sensitive flag the dashboard reads to show
	// connection state. It never carries token material.
	ConnectedCookie = "paysync_connected"
)

var store *sessions.CookieStore

// InitSessionStore initializes the cookie session store used for the
// OAuth state parameter. secure must match the scheme the app is served
// on, or browsers drop the state cookie and every callback fails.
func InitSessionStore(secret []byte, secure bool) {
	store = sessions.NewCookieStore(secret)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   600, // state lives 10 minutes
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// GetSession retrieves the OAuth session
func GetSession(r *http.Request) *sessions.Session {
	session, _ := store.Get(r, sessionName)
	return session
}

// SetConnectedCookie writes the dashboard-visible connection flag
func SetConnectedCookie(w http.ResponseWriter, connected bool) {
	cookie := &http.Cookie{
		Name:     ConnectedCookie,
		Path:     "/",
		HttpOnly: false,
		SameSite: http.SameSiteLaxMode,
	}
	if connected {
		cookie.Value = "true"
		cookie.MaxAge = 86400 * 30
	} else {
		cookie.Value = ""
		cookie.MaxAge = -1
	}
	http.SetCookie(w, cookie)
}
