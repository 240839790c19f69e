// config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Kledo    KledoConfig
	Xendit   XenditConfig
	Redis    RedisConfig
	Session  SessionConfig
	Database DatabaseConfig
	App      AppConfig
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port    string
	Timeout int // seconds, applied to read and write
}

// KledoConfig holds accounting platform OAuth and API settings
type KledoConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	AuthURL      string
	TokenURL     string
	APIBaseURL   string
}

// XenditConfig holds payment gateway settings
type XenditConfig struct {
	SecretKey     string
	APIBaseURL    string
	CallbackToken string // shared secret for webhook verification
}

// RedisConfig holds token store connection settings
type RedisConfig struct {
	Addresses []string
	Password  string
	DB        int
	KeyPrefix string
}

// SessionConfig holds cookie session settings
type SessionConfig struct {
	Secret string
}

// DatabaseConfig holds the transfers store location
type DatabaseConfig struct {
	Path string
}

// AppConfig holds application-level settings
type AppConfig struct {
	BaseURL string // dashboard base URL, used for OAuth redirects
}

// Load reads configuration from environment variables
func Load() (Config, error) {
	cfg := Config{
		Server: ServerConfig{
			Port:    getEnv("PORT", "8080"),
			Timeout: getEnvInt("SERVER_TIMEOUT", 30),
		},
		Kledo: KledoConfig{
			ClientID:     os.Getenv("KLEDO_CLIENT_ID"),
			ClientSecret: os.Getenv("KLEDO_CLIENT_SECRET"),
			RedirectURI:  os.Getenv("KLEDO_REDIRECT_URI"),
			AuthURL:      getEnv("KLEDO_AUTH_URL", "https://app.kledo.com/oauth/authorize"),
			TokenURL:     os.Getenv("KLEDO_TOKEN_URL"),
			APIBaseURL:   getEnv("KLEDO_API_BASE_URL", "https://app.kledo.com/api/v1"),
		},
		Xendit: XenditConfig{
			SecretKey:     os.Getenv("XENDIT_SECRET_KEY"),
			APIBaseURL:    getEnv("XENDIT_API_BASE_URL", "https://api.xendit.co"),
			CallbackToken: os.Getenv("XENDIT_WEBHOOK_TOKEN"),
		},
		Redis: RedisConfig{
			Addresses: strings.Split(getEnv("REDIS_ADDRESSES", "localhost:6379"), ","),
			Password:  os.Getenv("REDIS_PASSWORD"),
			DB:        getEnvInt("REDIS_DB", 0),
			KeyPrefix: getEnv("REDIS_KEY_PREFIX", "paysync"),
		},
		Session: SessionConfig{
			Secret: os.Getenv("SESSION_SECRET"),
		},
		Database: DatabaseConfig{
			Path: getEnv("DATABASE_PATH", "paysync.db"),
		},
		App: AppConfig{
			BaseURL: getEnv("APP_BASE_URL", "http://localhost:8080"),
		},
	}

	// Token endpoint lives under the API base unless overridden
	if cfg.Kledo.TokenURL == "" {
		cfg.Kledo.TokenURL = cfg.Kledo.APIBaseURL + "/oauth/token"
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// validate checks that all required configuration values are present
func (c Config) validate() error {
	missing := []string{}

	if c.Kledo.ClientID == "" {
		missing = append(missing, "KLEDO_CLIENT_ID")
	}
	if c.Kledo.ClientSecret == "" {
		missing = append(missing, "KLEDO_CLIENT_SECRET")
	}
	if c.Kledo.RedirectURI == "" {
		missing = append(missing, "KLEDO_REDIRECT_URI")
	}
	if c.Xendit.SecretKey == "" {
		missing = append(missing, "XENDIT_SECRET_KEY")
	}
	if c.Xendit.CallbackToken == "" {
		missing = append(missing, "XENDIT_WEBHOOK_TOKEN")
	}
	if c.Session.Secret == "" {
		missing = append(missing, "SESSION_SECRET")
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return n
}
