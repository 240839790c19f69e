// auth/handlers_test.go
package auth

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testDashboard = "http://localhost:8080"

func newTestHandler(t *testing.T, tokenURL string) (*Handler, *memTokenStore) {
	t.Helper()
	InitSessionStore([]byte("test-session-secret"), false)

	store := &memTokenStore{}
	svc := newTestService(tokenURL, store)
	return NewHandler(svc, testDashboard, zap.NewNop()), store
}

func TestAuthorizeRedirectsWithState(t *testing.T) {
	h, _ := newTestHandler(t, "https://accounting.example.com/oauth/token")

	req := httptest.NewRequest(http.MethodGet, "/oauth/authorize", nil)
	rec := httptest.NewRecorder()

	h.AuthorizeHandler(rec, req)

	require.Equal(t, http.StatusFound, rec.Code)

	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.NotEmpty(t, location.Query().Get("state"))
	assert.Equal(t, "code", location.Query().Get("response_type"))

	// State is bound to the browser via the session cookie
	assert.NotEmpty(t, rec.Result().Cookies())
}

func TestCallbackRejectsMismatchedState(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("token exchange must not be attempted on state mismatch")
	}))
	defer tokenServer.Close()

	h, _ := newTestHandler(t, tokenServer.URL)

	// Issue a state first
	authorizeReq := httptest.NewRequest(http.MethodGet, "/oauth/authorize", nil)
	authorizeRec := httptest.NewRecorder()
	h.AuthorizeHandler(authorizeRec, authorizeReq)

	// Callback carries a different state value
	callbackReq := httptest.NewRequest(http.MethodGet, "/oauth/callback?code=abc&state=forged", nil)
	for _, cookie := range authorizeRec.Result().Cookies() {
		callbackReq.AddCookie(cookie)
	}
	callbackRec := httptest.NewRecorder()

	h.CallbackHandler(callbackRec, callbackReq)

	require.Equal(t, http.StatusFound, callbackRec.Code)
	assert.Contains(t, callbackRec.Header().Get("Location"), "error=invalid_state")
}

func TestCallbackWithoutSessionState(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("token exchange must not be attempted without issued state")
	}))
	defer tokenServer.Close()

	h, _ := newTestHandler(t, tokenServer.URL)

	req := httptest.NewRequest(http.MethodGet, "/oauth/callback?code=abc&state=whatever", nil)
	rec := httptest.NewRecorder()

	h.CallbackHandler(rec, req)

	require.Equal(t, http.StatusFound, rec.Code)
	assert.Contains(t, rec.Header().Get("Location"), "error=invalid_state")
}

func TestCallbackExchangesCodeAndSetsConnectedCookie(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"at-1","refresh_token":"rt-1","token_type":"Bearer","expires_in":3600}`))
	}))
	defer tokenServer.Close()

	h, store := newTestHandler(t, tokenServer.URL)

	authorizeRec := httptest.NewRecorder()
	h.AuthorizeHandler(authorizeRec, httptest.NewRequest(http.MethodGet, "/oauth/authorize", nil))

	location, err := url.Parse(authorizeRec.Header().Get("Location"))
	require.NoError(t, err)
	state := location.Query().Get("state")

	callbackReq := httptest.NewRequest(http.MethodGet, "/oauth/callback?code=abc&state="+url.QueryEscape(state), nil)
	for _, cookie := range authorizeRec.Result().Cookies() {
		callbackReq.AddCookie(cookie)
	}
	callbackRec := httptest.NewRecorder()

	h.CallbackHandler(callbackRec, callbackReq)

	require.Equal(t, http.StatusFound, callbackRec.Code)
	assert.Contains(t, callbackRec.Header().Get("Location"), "auth=success")

	token, err := store.GetToken()
	require.NoError(t, err)
	require.NotNil(t, token)
	assert.Equal(t, "at-1", token.AccessToken)

	var connectedCookie *http.Cookie
	for _, cookie := range callbackRec.Result().Cookies() {
		if cookie.Name == ConnectedCookie {
			connectedCookie = cookie
		}
	}
	require.NotNil(t, connectedCookie)
	assert.Equal(t, "true", connectedCookie.Value)
	assert.False(t, connectedCookie.HttpOnly)
}

func TestCallbackPropagatesProviderError(t *testing.T) {
	h, _ := newTestHandler(t, "https://accounting.example.com/oauth/token")

	req := httptest.NewRequest(http.MethodGet, "/oauth/callback?error=access_denied", nil)
	rec := httptest.NewRecorder()

	h.CallbackHandler(rec, req)

	require.Equal(t, http.StatusFound, rec.Code)
	assert.Contains(t, rec.Header().Get("Location"), "error=access_denied")
}

func TestStatusAndDisconnect(t *testing.T) {
	h, store := newTestHandler(t, "https://accounting.example.com/oauth/token")

	rec := httptest.NewRecorder()
	h.StatusHandler(rec, httptest.NewRequest(http.MethodGet, "/oauth/status", nil))
	assert.JSONEq(t, `{"connected":false,"has_access_token":false,"has_refresh_token":false}`, rec.Body.String())

	require.NoError(t, store.SaveToken(&OAuthToken{
		AccessToken:  "at-1",
		RefreshToken: "rt-1",
		TokenType:    "Bearer",
	}))

	rec = httptest.NewRecorder()
	h.StatusHandler(rec, httptest.NewRequest(http.MethodGet, "/oauth/status", nil))
	assert.Contains(t, rec.Body.String(), `"connected":true`)
	assert.Contains(t, rec.Body.String(), `"has_refresh_token":true`)

	rec = httptest.NewRecorder()
	h.DisconnectHandler(rec, httptest.NewRequest(http.MethodDelete, "/oauth/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	token, err := store.GetToken()
	require.NoError(t, err)
	assert.Nil(t, token)
}

func TestSessionCookieSecureFollowsScheme(t *testing.T) {
	sessionCookie := func(secure bool) *http.Cookie {
		InitSessionStore([]byte("test-session-secret"), secure)
		svc := newTestService("https://accounting.example.com/oauth/token", &memTokenStore{})
		h := NewHandler(svc, testDashboard, zap.NewNop())

		rec := httptest.NewRecorder()
		h.AuthorizeHandler(rec, httptest.NewRequest(http.MethodGet, "/oauth/authorize", nil))
		require.Equal(t, http.StatusFound, rec.Code)

		cookies := rec.Result().Cookies()
		require.NotEmpty(t, cookies)
		return cookies[0]
	}

	assert.False(t, sessionCookie(false).Secure)
	assert.True(t, sessionCookie(true).Secure)
}
