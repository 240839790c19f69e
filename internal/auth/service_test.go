// auth/service_test.go
package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memTokenStore is an in-memory TokenStore for tests
type memTokenStore struct {
	mu    sync.Mutex
	token *OAuthToken
}

func (s *memTokenStore) SaveToken(token *OAuthToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	return nil
}

func (s *memTokenStore) GetToken() (*OAuthToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, nil
}

func (s *memTokenStore) DeleteToken() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = nil
	return nil
}

func newTestService(tokenURL string, store TokenStore) *Service {
	return NewService(OAuthConfig{
		ClientID:     "test-client",
		ClientSecret: "test-secret",
		RedirectURI:  "http://localhost/oauth/callback",
		AuthURL:      "https://accounting.example.com/oauth/authorize",
		TokenURL:     tokenURL,
	}, store)
}

func TestAuthorizationURL(t *testing.T) {
	svc := newTestService("https://accounting.example.com/oauth/token", &memTokenStore{})

	u := svc.AuthorizationURL("state-123")

	assert.Contains(t, u, "client_id=test-client")
	assert.Contains(t, u, "response_type=code")
	assert.Contains(t, u, "state=state-123")
	assert.Contains(t, u, "redirect_uri=")
}

func TestExchangeCodeStoresTokens(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "authorization_code", r.Form.Get("grant_type"))
		assert.Equal(t, "code-abc", r.Form.Get("code"))
		assert.Equal(t, "test-client", r.Form.Get("client_id"))
		assert.Equal(t, "test-secret", r.Form.Get("client_secret"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"at-1","refresh_token":"rt-1","token_type":"Bearer","expires_in":3600}`))
	}))
	defer server.Close()

	store := &memTokenStore{}
	svc := newTestService(server.URL, store)

	token, err := svc.ExchangeCode(context.Background(), "code-abc")
	require.NoError(t, err)
	assert.Equal(t, "at-1", token.AccessToken)
	assert.True(t, token.ExpiresAt.After(time.Now()))

	// Stored state immediately reflects the connection
	connected, stored := svc.Connected()
	assert.True(t, connected)
	require.NotNil(t, stored)
	assert.Equal(t, "at-1", stored.AccessToken)
	assert.Equal(t, "rt-1", stored.RefreshToken)
}

func TestExchangeCodeUpstreamFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	defer server.Close()

	svc := newTestService(server.URL, &memTokenStore{})

	_, err := svc.ExchangeCode(context.Background(), "bad-code")
	require.Error(t, err)

	var exchangeErr *TokenExchangeError
	require.ErrorAs(t, err, &exchangeErr)
	assert.Equal(t, http.StatusBadRequest, exchangeErr.Status)
	assert.Contains(t, exchangeErr.Body, "invalid_grant")

	connected, _ := svc.Connected()
	assert.False(t, connected)
}

func TestValidTokenRefreshesNearExpiry(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.Form.Get("grant_type"))
		assert.Equal(t, "rt-old", r.Form.Get("refresh_token"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"at-new","token_type":"Bearer","expires_in":3600}`))
	}))
	defer server.Close()

	store := &memTokenStore{token: &OAuthToken{
		AccessToken:  "at-old",
		RefreshToken: "rt-old",
		TokenType:    "Bearer",
		ExpiresAt:    time.Now().Add(time.Minute),
	}}
	svc := newTestService(server.URL, store)

	token, err := svc.ValidToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "at-new", token.AccessToken)
	// Provider did not rotate the refresh token, old one is kept
	assert.Equal(t, "rt-old", token.RefreshToken)
}

func TestRefreshFailureIsTerminal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"invalid_refresh_token"}`))
	}))
	defer server.Close()

	store := &memTokenStore{token: &OAuthToken{
		AccessToken:  "at-old",
		RefreshToken: "rt-bad",
		ExpiresAt:    time.Now().Add(time.Minute),
	}}
	svc := newTestService(server.URL, store)

	_, err := svc.ValidToken(context.Background())
	var refreshErr *TokenRefreshError
	require.ErrorAs(t, err, &refreshErr)

	// Tokens are dropped, further calls require re-authorization
	_, err = svc.ValidToken(context.Background())
	assert.ErrorIs(t, err, ErrAuthRequired)
}

func TestValidTokenWithoutConnection(t *testing.T) {
	svc := newTestService("https://accounting.example.com/oauth/token", &memTokenStore{})

	_, err := svc.ValidToken(context.Background())
	assert.ErrorIs(t, err, ErrAuthRequired)
}

func TestValidTokenSkipsRefreshWhenFresh(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("token endpoint must not be called for a fresh token")
	}))
	defer server.Close()

	store := &memTokenStore{token: &OAuthToken{
		AccessToken: "at-fresh",
		ExpiresAt:   time.Now().Add(time.Hour),
	}}
	svc := newTestService(server.URL, store)

	token, err := svc.ValidToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "at-fresh", token.AccessToken)
}

func TestConcurrentRefreshHitsTokenEndpointOnce(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		time.Sleep(20 * time.Millisecond)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"at-new","token_type":"Bearer","expires_in":3600}`))
	}))
	defer server.Close()

	store := &memTokenStore{token: &OAuthToken{
		AccessToken:  "at-old",
		RefreshToken: "rt-old",
		ExpiresAt:    time.Now().Add(time.Minute),
	}}
	svc := newTestService(server.URL, store)

	const workers = 8
	tokens := make([]*OAuthToken, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokens[i], errs[i] = svc.ValidToken(context.Background())
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "at-new", tokens[i].AccessToken)
	}
}
