// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// DefaultSessionLifetime is used when neither the login request nor the
// environment specifies a session lifetime.
const DefaultSessionLifetime = 86400 * time.Second

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on (e.g. 127.0.0.1:3535).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// DatabaseURL is the Postgres DSN.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// RedisAddr is the Redis host:port for the session cache.
	RedisAddr string `mapstructure:"REDIS_ADDR"`
	// RedisPassword is the Redis password; empty when Redis has no auth.
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	// JWTSecret signs session tokens (HS256). Required to serve.
	JWTSecret string `mapstructure:"JWT_SECRET"`
	// ArgonSecret keys password hashes server-side. Required to serve.
	ArgonSecret string `mapstructure:"ARGON_SECRET"`
	// ArgonIterations overrides the argon2id time cost; 0 means the built-in default.
	ArgonIterations uint32 `mapstructure:"ARGON_ITERATIONS"`
	// ArgonMemorySize overrides the argon2id memory cost in KiB; 0 means the built-in default.
	ArgonMemorySize uint32 `mapstructure:"ARGON_MEMORY_SIZE"`
	// SessionLifetimeSeconds is the process-wide default session lifetime in
	// seconds; 0 falls back to DefaultSessionLifetime. A per-login requested
	// lifetime always wins over this.
	SessionLifetimeSeconds int64 `mapstructure:"SESSION_LIFETIME"`
	// OTLPEndpoint is the OTLP gRPC collector endpoint for traces; empty disables export.
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// OTLPInsecure forces plaintext OTLP export even for https endpoints.
	OTLPInsecure bool `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	// LogLevel is the zerolog level (e.g. "debug", "info").
	LogLevel string `mapstructure:"LOG_LEVEL"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env.
// Secrets are not validated here; commands that serve traffic must also call ValidateSecrets.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", "127.0.0.1:3535")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("ARGON_SECRET", "")
	v.SetDefault("ARGON_ITERATIONS", 0)
	v.SetDefault("ARGON_MEMORY_SIZE", 0)
	v.SetDefault("SESSION_LIFETIME", 0)
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("LOG_LEVEL", "info")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}
	if cfg.SessionLifetimeSeconds < 0 {
		return nil, fmt.Errorf("config: SESSION_LIFETIME must not be negative, got %d", cfg.SessionLifetimeSeconds)
	}

	return &cfg, nil
}

// ValidateSecrets checks that the signing and hashing secrets are present.
// Required by commands that authenticate (server, seed); migrate does not need them.
func (c *Config) ValidateSecrets() error {
	if c.JWTSecret == "" {
		return errors.New("config: JWT_SECRET must be set")
	}
	if c.ArgonSecret == "" {
		return errors.New("config: ARGON_SECRET must be set")
	}
	return nil
}

// SessionLifetime returns the process-wide default session lifetime.
// Zero (unset) falls back to DefaultSessionLifetime.
func (c *Config) SessionLifetime() time.Duration {
	if c.SessionLifetimeSeconds > 0 {
		return time.Duration(c.SessionLifetimeSeconds) * time.Second
	}
	return DefaultSessionLifetime
}
