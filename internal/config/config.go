// Package config loads process configuration. Required identity and
// connection values come from the environment (a local .env file is honored
// in development); optional server tunables can be layered from a YAML file.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// Config is the environment-derived configuration.
type Config struct {
	JWTSecret            string
	InternalClientID     string
	InternalClientSecret string
	InternalAPIID        string
	InternalWorkspaceID  string
	DatabaseURL          string
	RedisURL             string
	Debug                bool
}

// Load reads the environment, after loading .env if present. Missing
// required variables are an error.
func Load() (*Config, error) {
	// A missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := &Config{
		JWTSecret:            os.Getenv("JWT_SECRET"),
		InternalClientID:     os.Getenv("INTERNAL_CLIENT_ID"),
		InternalClientSecret: os.Getenv("INTERNAL_CLIENT_SECRET"),
		InternalAPIID:        os.Getenv("INTERNAL_API_ID"),
		InternalWorkspaceID:  os.Getenv("INTERNAL_WORKSPACE_ID"),
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		RedisURL:             os.Getenv("REDIS_URL"),
		Debug:                os.Getenv("DEBUG") == "true",
	}

	required := map[string]string{
		"JWT_SECRET":         cfg.JWTSecret,
		"INTERNAL_CLIENT_ID": cfg.InternalClientID,
		"DATABASE_URL":       cfg.DatabaseURL,
		"REDIS_URL":          cfg.RedisURL,
	}
	for name, value := range required {
		if value == "" {
			return nil, fmt.Errorf("config: %s must be set", name)
		}
	}

	return cfg, nil
}

// Settings are server tunables with sane defaults, optionally overridden by
// a YAML file.
type Settings struct {
	Addr                   string `yaml:"addr"`
	ShutdownTimeoutSeconds int    `yaml:"shutdown_timeout_seconds"`
	TokenTTLHours          int    `yaml:"token_ttl_hours"`
}

// DefaultSettings returns the values used when no settings file exists.
func DefaultSettings() Settings {
	return Settings{
		Addr:                   ":8080",
		ShutdownTimeoutSeconds: 10,
		TokenTTLHours:          24,
	}
}

// ShutdownTimeout returns the graceful-shutdown window.
func (s Settings) ShutdownTimeout() time.Duration {
	return time.Duration(s.ShutdownTimeoutSeconds) * time.Second
}

// TokenTTL returns the access token lifetime.
func (s Settings) TokenTTL() time.Duration {
	return time.Duration(s.TokenTTLHours) * time.Hour
}

// LoadSettings merges the YAML file at path over the defaults. A missing
// file returns the defaults; a malformed one is an error.
func LoadSettings(path string) (Settings, error) {
	settings := DefaultSettings()

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return settings, nil
	}
	if err != nil {
		return settings, err
	}
	defer f.Close()

	var fromFile Settings
	if err := yaml.NewDecoder(f).Decode(&fromFile); err != nil {
		return settings, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if fromFile.Addr != "" {
		settings.Addr = fromFile.Addr
	}
	if fromFile.ShutdownTimeoutSeconds != 0 {
		settings.ShutdownTimeoutSeconds = fromFile.ShutdownTimeoutSeconds
	}
	if fromFile.TokenTTLHours != 0 {
		settings.TokenTTLHours = fromFile.TokenTTLHours
	}

	return settings, nil
}
