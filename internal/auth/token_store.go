// auth/token_store.go
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisTokenStore implements TokenStore using Redis
type RedisTokenStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisTokenStore creates a new Redis-backed token store
func NewRedisTokenStore(client redis.UniversalClient, prefix string) *RedisTokenStore {
	return &RedisTokenStore{
		client: client,
		prefix: prefix,
	}
}

func (s *RedisTokenStore) key() string {
	return s.prefix + ":oauth:token"
}

// SaveToken stores the token set, replacing any previous one
func (s *RedisTokenStore) SaveToken(token *OAuthToken) error {
	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}

	// Keep the record past access-token expiry so the refresh token
	// remains available
	ttl := time.Until(token.ExpiresAt) + 30*24*time.Hour

	if err := s.client.Set(context.Background(), s.key(), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}

	return nil
}

// GetToken retrieves the stored token set, or nil when none exists
func (s *RedisTokenStore) GetToken() (*OAuthToken, error) {
	data, err := s.client.Get(context.Background(), s.key()).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get token: %w", err)
	}

	var token OAuthToken
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("failed to unmarshal token: %w", err)
	}

	return &token, nil
}

// DeleteToken removes the stored token set
func (s *RedisTokenStore) DeleteToken() error {
	if err := s.client.Del(context.Background(), s.key()).Err(); err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}
