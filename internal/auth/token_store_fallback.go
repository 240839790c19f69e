// auth/token_store_fallback.go
package auth

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// FallbackTokenStore keeps a local copy of the token set so the bridge
// can keep syncing through a Redis outage
type FallbackTokenStore struct {
	redisStore  *RedisTokenStore
	cached      *OAuthToken
	cacheMutex  sync.RWMutex
	healthCheck func() bool
	log         *zap.Logger
}

// NewFallbackTokenStore creates a token store with Redis and local fallback
func NewFallbackTokenStore(redisClient redis.UniversalClient, prefix string, healthCheck func() bool, log *zap.Logger) *FallbackTokenStore {
	return &FallbackTokenStore{
		redisStore:  NewRedisTokenStore(redisClient, prefix),
		healthCheck: healthCheck,
		log:         log,
	}
}

// SaveToken stores the token set in Redis and the local cache
func (s *FallbackTokenStore) SaveToken(token *OAuthToken) error {
	s.cacheMutex.Lock()
	s.cached = token
	s.cacheMutex.Unlock()

	if s.healthCheck() {
		if err := s.redisStore.SaveToken(token); err != nil {
			s.log.Warn("failed to save token to redis, keeping local copy", zap.Error(err))
		}
	}

	return nil
}

// GetToken tries Redis first, falling back to the local cache
func (s *FallbackTokenStore) GetToken() (*OAuthToken, error) {
	if s.healthCheck() {
		token, err := s.redisStore.GetToken()
		if err == nil {
			s.cacheMutex.Lock()
			s.cached = token
			s.cacheMutex.Unlock()
			return token, nil
		}
		s.log.Warn("failed to get token from redis, using local copy", zap.Error(err))
	}

	s.cacheMutex.RLock()
	defer s.cacheMutex.RUnlock()
	return s.cached, nil
}

// DeleteToken removes the token set from both stores
func (s *FallbackTokenStore) DeleteToken() error {
	s.cacheMutex.Lock()
	s.cached = nil
	s.cacheMutex.Unlock()

	if s.healthCheck() {
		if err := s.redisStore.DeleteToken(); err != nil {
			s.log.Warn("failed to delete token from redis", zap.Error(err))
		}
	}

	return nil
}

// StartReplicationRoutine periodically writes the local copy back to
// Redis once it recovers
func (s *FallbackTokenStore) StartReplicationRoutine(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !s.healthCheck() {
					continue
				}

				s.cacheMutex.RLock()
				token := s.cached
				s.cacheMutex.RUnlock()

				if token == nil {
					continue
				}
				if err := s.redisStore.SaveToken(token); err != nil {
					s.log.Warn("token replication to redis failed", zap.Error(err))
				}
			}
		}
	}()
}
