package config

import (
	"fmt"
	"strings"
	"time"
)

// SessionStoreKind selects where sessions live.
type SessionStoreKind string

const (
	SessionStorePostgres SessionStoreKind = "postgres"
	SessionStoreRedis    SessionStoreKind = "redis"
)

// UnmarshalText implements encoding.TextUnmarshaler for SessionStoreKind.
func (k *SessionStoreKind) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "postgres", "redis":
		*k = SessionStoreKind(v)
		return nil
	default:
		return fmt.Errorf("invalid SessionStore: %q (valid options: postgres, redis)", v)
	}
}

// SessionConfig controls first-party sessions.
type SessionConfig struct {
	Store SessionStoreKind `env:"SESSION_STORE" envDefault:"postgres"`
	TTL   time.Duration    `env:"SESSION_TTL"   envDefault:"168h"`

	// RedisGrace keeps expired sessions readable so they report expiry instead of vanishing.
	RedisGrace time.Duration `env:"SESSION_REDIS_GRACE" envDefault:"24h"`

	// PurgeInterval runs expired-session cleanup in the server process. Zero disables it.
	PurgeInterval time.Duration `env:"SESSION_PURGE_INTERVAL" envDefault:"1h"`
}

// Sanitize clamps negative durations.
func (s *SessionConfig) Sanitize() {
	if s.Store == "" {
		s.Store = SessionStorePostgres
	}
	if s.RedisGrace < 0 {
		s.RedisGrace = 0
	}
	if s.PurgeInterval < 0 {
		s.PurgeInterval = 0
	}
}
