// Package config loads application configuration from the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
)

// Config is the full application configuration.
type Config struct {
	Port int `env:"PORT,default=3000"`

	// External Formbar endpoints.
	AuthURL      string `env:"AUTH_URL,default=https://formbar.yorktechapps.com"`
	ThisURL      string `env:"THIS_URL"`
	FormbarWSURL string `env:"FORMBAR_WS_URL"`
	APIKey       string `env:"API_KEY"`
	AppAccountID int64  `env:"APP_ACCOUNT_ID,default=0"`

	Store       string `env:"STORE,default=memory"` // "memory" or "postgres"
	PostgresDSN string `env:"POSTGRES_DSN"`

	TransferTimeout time.Duration `env:"TRANSFER_TIMEOUT,default=10s"`
	SessionTTL      time.Duration `env:"SESSION_TTL,default=12h"`

	LogLevel  string `env:"LOG_LEVEL,default=info"`
	LogFormat string `env:"LOG_FORMAT,default=text"`
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && err != envdecode.ErrNoTargetFieldsAreSet {
		return nil, fmt.Errorf("decode environment: %w", err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize fills derived defaults and trims whitespace.
func (c *Config) Normalize() {
	c.Store = strings.TrimSpace(strings.ToLower(c.Store))
	if c.Store == "" {
		c.Store = "memory"
	}
	c.AuthURL = strings.TrimRight(strings.TrimSpace(c.AuthURL), "/")
	c.ThisURL = strings.TrimSpace(c.ThisURL)
	if c.ThisURL == "" {
		c.ThisURL = fmt.Sprintf("http://localhost:%d/login", c.Port)
	}
	c.FormbarWSURL = strings.TrimSpace(c.FormbarWSURL)
	if c.FormbarWSURL == "" {
		c.FormbarWSURL = toWebsocketURL(c.AuthURL) + "/transfers"
	}
}

// Validate rejects configurations that cannot work.
func (c *Config) Validate() error {
	if c.Store != "memory" && c.Store != "postgres" {
		return fmt.Errorf("unknown store %q", c.Store)
	}
	if c.Store == "postgres" && c.PostgresDSN == "" {
		return fmt.Errorf("POSTGRES_DSN is required when STORE=postgres")
	}
	if c.TransferTimeout <= 0 {
		return fmt.Errorf("TRANSFER_TIMEOUT must be positive")
	}
	return nil
}

func toWebsocketURL(httpURL string) string {
	switch {
	case strings.HasPrefix(httpURL, "https"):
		return "wss" + httpURL[len("https"):]
	case strings.HasPrefix(httpURL, "http"):
		return "ws" + httpURL[len("http"):]
	default:
		return httpURL
	}
}
