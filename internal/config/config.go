// Package config loads server settings from defaults, an optional YAML file,
// and the environment, in that order of precedence (environment wins).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full server configuration.
type Config struct {
	Addr     string `yaml:"addr"`
	DBPath   string `yaml:"db"`
	LogLevel string `yaml:"log_level"`
	// DevUser is used as the authenticated user when OIDC is not configured.
	DevUser string     `yaml:"dev_user"`
	Auth    AuthConfig `yaml:"auth"`
}

type AuthConfig struct {
	IssuerURL    string        `yaml:"issuer_url"`
	ClientID     string        `yaml:"client_id"`
	ClientSecret string        `yaml:"client_secret"`
	RedirectURL  string        `yaml:"redirect_url"`
	SessionKey   string        `yaml:"session_key"`
	SessionTTL   time.Duration `yaml:"session_ttl"`
	CookieSecure bool          `yaml:"cookie_secure"`
	CookieDomain string        `yaml:"cookie_domain"`
}

// OIDCEnabled reports whether enough is set to run the OIDC flow.
func (a AuthConfig) OIDCEnabled() bool {
	return a.IssuerURL != "" && a.ClientID != "" && a.RedirectURL != ""
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Addr:     ":8080",
		DBPath:   "macros.db",
		LogLevel: "info",
		DevUser:  "dev-user",
		Auth: AuthConfig{
			SessionTTL: 30 * 24 * time.Hour,
		},
	}
}

// Load builds the configuration. An empty path skips the file; a path that
// does not exist is an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if cfg.Addr == "" {
		return Config{}, errors.New("addr is required")
	}
	if cfg.DBPath == "" {
		return Config{}, errors.New("db path is required")
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if port := os.Getenv("PORT"); port != "" {
		cfg.Addr = ":" + port
	}
	setString(&cfg.DBPath, "MACROS_DB")
	setString(&cfg.LogLevel, "MACROS_LOG")
	setString(&cfg.DevUser, "DEV_USER")
	setString(&cfg.Auth.IssuerURL, "OIDC_ISSUER_URL")
	setString(&cfg.Auth.ClientID, "OIDC_CLIENT_ID")
	setString(&cfg.Auth.ClientSecret, "OIDC_CLIENT_SECRET")
	setString(&cfg.Auth.RedirectURL, "OIDC_REDIRECT_URL")
	setString(&cfg.Auth.SessionKey, "SESSION_KEY")
	setString(&cfg.Auth.CookieDomain, "COOKIE_DOMAIN")
	if raw := os.Getenv("COOKIE_SECURE"); raw != "" {
		secure, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return fmt.Errorf("COOKIE_SECURE: %w", err)
		}
		cfg.Auth.CookieSecure = secure
	}
	if raw := os.Getenv("SESSION_TTL"); raw != "" {
		ttl, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("SESSION_TTL: %w", err)
		}
		cfg.Auth.SessionTTL = ttl
	}
	return nil
}

func setString(target *string, key string) {
	if value := os.Getenv(key); value != "" {
		*target = value
	}
}
