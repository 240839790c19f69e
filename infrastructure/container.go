// infrastructure/container.go
package infrastructure

import (
	"context"
	"strings"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/eGGnogSC/paysync/config"
	"github.com/eGGnogSC/paysync/infrastructure/redis"
	"github.com/eGGnogSC/paysync/internal/auth"
	"github.com/eGGnogSC/paysync/internal/syncer"
	"github.com/eGGnogSC/paysync/internal/transfers"
	"github.com/eGGnogSC/paysync/internal/webhook"
	"github.com/eGGnogSC/paysync/pkg/kledo"
	"github.com/eGGnogSC/paysync/pkg/xendit"
)

// Container provides application dependencies
type Container struct {
	Log *zap.Logger

	// Services
	AuthService *auth.Service
	SyncService *syncer.Service

	// Handlers
	AuthHandler    *auth.Handler
	SyncHandler    *syncer.Handler
	WebhookHandler *webhook.Handler

	// Infrastructure
	RedisClient   goredis.UniversalClient
	RedisHealth   *redis.HealthChecker
	TokenStore    auth.TokenStore
	TransferStore *transfers.Store
	KledoClient   *kledo.Client
	XenditClient  *xendit.Client
}

// NewContainer creates and initializes the dependency container
func NewContainer(ctx context.Context, cfg config.Config) (*Container, error) {
	log, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}

	container := &Container{Log: log}

	redisCfg := redis.DefaultConfig()
	redisCfg.Addresses = cfg.Redis.Addresses
	redisCfg.Password = cfg.Redis.Password
	redisCfg.DB = cfg.Redis.DB

	container.RedisClient = redis.NewUniversalClient(redisCfg)
	container.RedisHealth = redis.NewHealthChecker(container.RedisClient, 30*time.Second)

	fallbackStore := auth.NewFallbackTokenStore(
		container.RedisClient,
		cfg.Redis.KeyPrefix,
		container.RedisHealth.IsHealthy,
		log,
	)
	fallbackStore.StartReplicationRoutine(ctx)
	container.TokenStore = fallbackStore

	auth.InitSessionStore([]byte(cfg.Session.Secret), strings.HasPrefix(cfg.App.BaseURL, "https://"))

	container.AuthService = auth.NewService(auth.OAuthConfig{
		ClientID:     cfg.Kledo.ClientID,
		ClientSecret: cfg.Kledo.ClientSecret,
		RedirectURI:  cfg.Kledo.RedirectURI,
		AuthURL:      cfg.Kledo.AuthURL,
		TokenURL:     cfg.Kledo.TokenURL,
	}, container.TokenStore)

	container.KledoClient = kledo.NewClient(cfg.Kledo.APIBaseURL, container.AuthService)
	container.XenditClient = xendit.NewClient(cfg.Xendit.APIBaseURL, cfg.Xendit.SecretKey)

	container.TransferStore, err = transfers.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}

	container.SyncService = syncer.NewService(container.KledoClient, container.TransferStore, log)

	container.AuthHandler = auth.NewHandler(container.AuthService, cfg.App.BaseURL, log)
	container.SyncHandler = syncer.NewHandler(container.SyncService, container.XenditClient, container.TransferStore, log)
	container.WebhookHandler = webhook.NewHandler(cfg.Xendit.CallbackToken, container.SyncService, log)

	return container, nil
}

// VerifyAccountingContract checks the accounting API is reachable with
// the stored connection. Absence of a connection is not an error.
func (c *Container) VerifyAccountingContract(ctx context.Context) {
	if connected, _ := c.AuthService.Connected(); !connected {
		c.Log.Info("accounting platform not connected yet")
		return
	}

	profile, err := c.KledoClient.GetProfile(ctx)
	if err != nil {
		c.Log.Warn("accounting API contract check failed", zap.Error(err))
		return
	}
	c.Log.Info("accounting platform connected", zap.String("account", profile.Email))
}

// Shutdown gracefully closes connections
func (c *Container) Shutdown() {
	if c.TransferStore != nil {
		if err := c.TransferStore.Close(); err != nil {
			c.Log.Error("error closing transfer store", zap.Error(err))
		}
	}
	if c.RedisClient != nil {
		if err := c.RedisClient.Close(); err != nil {
			c.Log.Error("error closing redis connection", zap.Error(err))
		}
	}
	_ = c.Log.Sync()
}
