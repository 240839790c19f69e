// auth/service.go
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// refreshWindow is how long before expiry a token is refreshed
const refreshWindow = 5 * time.Minute

// Service handles OAuth 2.0 operations against the accounting platform
type Service struct {
	config     OAuthConfig
	tokenStore TokenStore
	httpClient *http.Client

	// refreshMu serializes refresh so concurrent requests cannot each
	// refresh and invalidate the other's token
	refreshMu sync.Mutex
}

// NewService creates a new auth service
func NewService(config OAuthConfig, tokenStore TokenStore) *Service {
	return &Service{
		config:     config,
		tokenStore: tokenStore,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// AuthorizationURL builds the authorization-request URL for the given
// CSRF state value
func (s *Service) AuthorizationURL(state string) string {
	u, _ := url.Parse(s.config.AuthURL)
	q := u.Query()

	q.Set("client_id", s.config.ClientID)
	q.Set("response_type", "code")
	q.Set("scope", s.config.Scope)
	q.Set("redirect_uri", s.config.RedirectURI)
	q.Set("state", state)

	u.RawQuery = q.Encode()
	return u.String()
}

// ExchangeCode exchanges an authorization code for tokens and stores them
func (s *Service) ExchangeCode(ctx context.Context, code string) (*OAuthToken, error) {
	data := url.Values{}
	data.Set("grant_type", "authorization_code")
	data.Set("code", code)
	data.Set("redirect_uri", s.config.RedirectURI)

	token, status, body, err := s.executeTokenRequest(ctx, data)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, &TokenExchangeError{Status: status, Body: body}
	}

	token.ExpiresAt = time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)

	if err := s.tokenStore.SaveToken(token); err != nil {
		return nil, fmt.Errorf("failed to save token: %w", err)
	}

	return token, nil
}

// Refresh exchanges the stored refresh token for a new token set.
// On upstream rejection the stored tokens are cleared so the connection
// reads as disconnected until the operator re-authorizes.
func (s *Service) Refresh(ctx context.Context) (*OAuthToken, error) {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	current, err := s.tokenStore.GetToken()
	if err != nil {
		return nil, fmt.Errorf("failed to get token for refresh: %w", err)
	}
	if current == nil || current.RefreshToken == "" {
		return nil, ErrAuthRequired
	}

	// Another request may have refreshed while we waited on the mutex
	if time.Until(current.ExpiresAt) >= refreshWindow {
		return current, nil
	}

	data := url.Values{}
	data.Set("grant_type", "refresh_token")
	data.Set("refresh_token", current.RefreshToken)

	token, status, body, err := s.executeTokenRequest(ctx, data)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		// Refresh failure is terminal: drop the tokens and require
		// re-authorization
		_ = s.tokenStore.DeleteToken()
		return nil, &TokenRefreshError{Status: status, Body: body}
	}

	token.ExpiresAt = time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)

	// Some providers do not rotate the refresh token
	if token.RefreshToken == "" {
		token.RefreshToken = current.RefreshToken
	}

	if err := s.tokenStore.SaveToken(token); err != nil {
		return nil, fmt.Errorf("failed to save refreshed token: %w", err)
	}

	return token, nil
}

// executeTokenRequest performs a form POST to the token endpoint
func (s *Service) executeTokenRequest(ctx context.Context, data url.Values) (*OAuthToken, int, string, error) {
	data.Set("client_id", s.config.ClientID)
	data.Set("client_secret", s.config.ClientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, 0, "", fmt.Errorf("failed to create token request: %w", err)
	}

	req.Header.Add("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Add("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, 0, "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, string(body), nil
	}

	var token OAuthToken
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, 0, "", fmt.Errorf("failed to parse token response: %w", err)
	}

	return &token, resp.StatusCode, "", nil
}

// ValidToken returns a usable token, refreshing when it is within the
// refresh window. Returns ErrAuthRequired when no connection exists.
func (s *Service) ValidToken(ctx context.Context) (*OAuthToken, error) {
	token, err := s.tokenStore.GetToken()
	if err != nil {
		return nil, fmt.Errorf("failed to get token: %w", err)
	}
	if token == nil {
		return nil, ErrAuthRequired
	}

	if time.Until(token.ExpiresAt) < refreshWindow {
		token, err = s.Refresh(ctx)
		if err != nil {
			return nil, err
		}
	}

	return token, nil
}

// AccessToken implements the API client's token source
func (s *Service) AccessToken(ctx context.Context) (string, error) {
	token, err := s.ValidToken(ctx)
	if err != nil {
		return "", err
	}
	return token.AccessToken, nil
}

// Connected reports whether tokens are currently stored
func (s *Service) Connected() (bool, *OAuthToken) {
	token, err := s.tokenStore.GetToken()
	if err != nil || token == nil {
		return false, nil
	}
	return true, token
}

// Disconnect removes the stored tokens
func (s *Service) Disconnect() error {
	return s.tokenStore.DeleteToken()
}
