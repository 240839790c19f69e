// auth/models.go
package auth

import (
	"errors"
	"fmt"
	"time"
)

// OAuthToken represents token data from the accounting platform.
// Replaced wholesale on every exchange or refresh, never patched.
type OAuthToken struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int       `json:"expires_in"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// TokenStore persists the single accounting-platform connection.
// GetToken returns (nil, nil) when no token is stored; absence is a
// normal state, not an error.
type TokenStore interface {
	SaveToken(token *OAuthToken) error
	GetToken() (*OAuthToken, error)
	DeleteToken() error
}

// OAuthConfig holds OAuth 2.0 configuration
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scope        string
	AuthURL      string
	TokenURL     string
}

// ErrAuthRequired indicates there is no usable token and the operator
// must re-authorize with the accounting platform
var ErrAuthRequired = errors.New("accounting authorization required")

// ErrInvalidState indicates the OAuth callback state did not match the
// value issued for this browser session
var ErrInvalidState = errors.New("invalid OAuth state parameter")

// TokenExchangeError indicates the authorization-code exchange failed
type TokenExchangeError struct {
	Status int
	Body   string
}

func (e *TokenExchangeError) Error() string {
	return fmt.Sprintf("token exchange failed with status %d: %s", e.Status, e.Body)
}

// TokenRefreshError indicates a refresh-token exchange failed. This is
// terminal: callers must require re-authorization, not retry.
type TokenRefreshError struct {
	Status int
	Body   string
}

func (e *TokenRefreshError) Error() string {
	return fmt.Sprintf("token refresh failed with status %d: %s", e.Status, e.Body)
}
