// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package config handles application-wide settings and environment parsing.

It leverages 'caarlos0/env' to map OS environment variables into a strongly-typed
Go struct, providing early validation and default values. A local '.env' file is
loaded first through 'joho/godotenv' when present; real environment variables
always win over it.

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}

Architecture:

  - Immutability: Once loaded, configuration is read-only.
  - DI-Friendly: Passed to core components (DB, Redis, RabbitMQ) via constructors.
  - Zero Hidden State: No global variables are used to store config.
*/
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Storage drivers understood by [Config.StorageDriver].
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// # Configuration Schema

// Config holds all runtime configuration for the Keygate services.
type Config struct {

	// Server settings
	ServerPort  string `env:"SERVER_PORT"  envDefault:"8080"`
	Environment string `env:"ENVIRONMENT"  envDefault:"development"`

	// Logging
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	LogDev   bool   `env:"LOG_DEV"   envDefault:"false"`

	// StorageDriver selects the repository backend ("postgres" or "memory").
	StorageDriver string `env:"STORAGE_DRIVER" envDefault:"postgres"`

	// Relational Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL"`

	// MigrationPath is the filesystem path to the SQL migrations directory.
	MigrationPath string `env:"MIGRATION_PATH" envDefault:"./data/migrations"`

	// Key-Value Cache (Redis). Optional: the resend throttle is disabled without it.
	RedisURL string `env:"REDIS_URL"`

	// Message broker (RabbitMQ). Optional: activation mails are only logged without it.
	AMQPURL string `env:"AMQP_URL"`

	// Access token signing
	JWTPrivKeyPath string        `env:"JWT_PRIVATE_KEY_PATH,required"`
	JWTPubKeyPath  string        `env:"JWT_PUBLIC_KEY_PATH,required"`
	AccessTokenTTL time.Duration `env:"JWT_EXPIRE_IN"        envDefault:"15m"`

	// RefreshExpireDays is the refresh token lifetime in whole days.
	RefreshExpireDays int `env:"REFRESH_EXPIRE_DAYS" envDefault:"7"`

	// PasswordAlgorithm selects the hash for new passwords ("bcrypt" or "argon2id").
	PasswordAlgorithm string `env:"PASSWORD_ALGORITHM" envDefault:"bcrypt"`

	// ResendCooldown is the minimum delay between two activation mails for one user.
	ResendCooldown time.Duration `env:"RESEND_COOLDOWN" envDefault:"30s"`

	// Identity provider linking policy
	OAuthRequireVerifiedEmail bool `env:"OAUTH_REQUIRE_VERIFIED_EMAIL" envDefault:"true"`
	OAuthAllowLinking         bool `env:"OAUTH_ALLOW_LINKING"          envDefault:"true"`
	OAuthAllowSignup          bool `env:"OAUTH_ALLOW_SIGNUP"           envDefault:"true"`

	// Cross-Origin Resource Sharing
	ExtraOrigins string `env:"EXTRA_ORIGINS"`
}

// # Configuration Loading

// Load reads an optional .env file and parses environment variables into a [Config].
func Load() (*Config, error) {

	// A missing .env file is the normal case outside local development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: failed to read .env file: %w", err)
	}

	cfg := &Config{}

	// This will fail if any field marked with 'required' is missing.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StorageDriver {
	case StoragePostgres:
		if c.DatabaseURL == "" {
			return errors.New("config: DATABASE_URL is required for the postgres storage driver")
		}
	case StorageMemory:
	default:
		return fmt.Errorf("config: unknown STORAGE_DRIVER %q", c.StorageDriver)
	}

	if c.AccessTokenTTL <= 0 {
		return errors.New("config: JWT_EXPIRE_IN must be positive")
	}

	if c.RefreshExpireDays <= 0 {
		return errors.New("config: REFRESH_EXPIRE_DAYS must be positive")
	}

	return nil
}

// RefreshTTL returns the refresh token lifetime as a duration.
func (c *Config) RefreshTTL() time.Duration {
	return time.Duration(c.RefreshExpireDays) * 24 * time.Hour
}

// IsDevelopment reports whether the server is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// # Worker Configuration

// MailerConfig holds the settings of the cmd/mailer worker.
type MailerConfig struct {
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	LogDev   bool   `env:"LOG_DEV"   envDefault:"false"`

	AMQPURL string `env:"AMQP_URL,notEmpty"`

	// SMTPAddr empty means mails are only logged.
	SMTPAddr     string `env:"SMTP_ADDR"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	SMTPFrom     string `env:"SMTP_FROM" envDefault:"no-reply@keygate.local"`
}

// LoadMailer reads the mailer worker settings the same way [Load] does.
func LoadMailer() (*MailerConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: failed to read .env file: %w", err)
	}

	cfg := &MailerConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}
	return cfg, nil
}

// SeedConfig holds the settings of the cmd/seed command.
type SeedConfig struct {
	DatabaseURL   string `env:"DATABASE_URL,notEmpty"`
	MigrationPath string `env:"MIGRATION_PATH" envDefault:"./data/migrations"`

	AdminEmail    string `env:"SEED_ADMIN_EMAIL"    envDefault:"admin@booking.com"`
	AdminPassword string `env:"SEED_ADMIN_PASSWORD,notEmpty"`
	AdminName     string `env:"SEED_ADMIN_NAME"     envDefault:"Administrator"`

	PasswordAlgorithm string `env:"PASSWORD_ALGORITHM" envDefault:"bcrypt"`
}

// LoadSeed reads the seed command settings.
func LoadSeed() (*SeedConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: failed to read .env file: %w", err)
	}

	cfg := &SeedConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}
	return cfg, nil
}
