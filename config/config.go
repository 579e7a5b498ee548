package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// AppConfig is the root configuration, composed from the per-concern structs in this package
// and loaded from environment variables with github.com/caarlos0/env:
//   - auth.go: sign-in mode, identity fallback, session cookie delivery
//   - provider.go: OAuth client registration with the identity provider
//   - session.go: session lifetime and backing store
//   - database.go: PostgreSQL and Redis
//   - http.go: listener, frontend redirects, debug routes
//   - observability.go: logging and StatsD metrics
type AppConfig struct {
	// IsDev enables development conveniences. DEV=true or NODE_ENV=development.
	IsDev bool `env:"DEV" envDefault:"false"`

	// TokenEncryptionKey seals provider tokens at rest. 64 hex chars are used as a raw
	// AES-256 key; anything else is hashed. Empty stores tokens unencrypted.
	TokenEncryptionKey string `env:"TOKEN_ENCRYPTION_KEY"`

	Auth     AuthConfig
	Provider ProviderConfig
	Session  SessionConfig

	Postgres DBConfig    `envPrefix:"DB_"`
	Redis    RedisConfig `envPrefix:"REDIS_"`

	HTTP          HTTPConfig
	Observability ObservabilityConfig
}

// Sanitize applies guardrails after loading from the environment.
func (c *AppConfig) Sanitize() {
	c.Provider.Sanitize()
	c.Session.Sanitize()
	c.HTTP.Sanitize()
	c.Observability.Sanitize()
	c.detectDevMode()
}

func (c *AppConfig) detectDevMode() {
	if !c.IsDev {
		nodeEnv := strings.ToLower(os.Getenv("NODE_ENV"))
		c.IsDev = nodeEnv == "development" || nodeEnv == "dev"
	}
}

// Validate reports every missing or inconsistent setting at once so startup can fail fast.
func (c *AppConfig) Validate() error {
	var errs []error
	if c.Auth.Mode == AuthModeOAuth {
		errs = append(errs, c.Provider.Validate()...)
	}
	if c.Session.TTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL must be positive"))
	}
	if c.Session.Store == SessionStoreRedis && strings.TrimSpace(c.Redis.URI) == "" && !c.Redis.UseSentinel {
		errs = append(errs, errors.New("REDIS_URI is required when SESSION_STORE=redis"))
	}
	if err := c.HTTP.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Auth.Mode == AuthModeMock && !c.IsDev {
		errs = append(errs, fmt.Errorf("AUTH_MODE=%s requires DEV=true", c.Auth.Mode))
	}
	return errors.Join(errs...)
}
