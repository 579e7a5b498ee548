package config

import (
	"fmt"
	"strings"
)

// AuthMode selects the identity provider implementation.
type AuthMode string

const (
	// AuthModeOAuth signs in against the Microsoft identity platform.
	AuthModeOAuth AuthMode = "oauth"
	// AuthModeMock short-circuits the provider with a fixed identity. Development only.
	AuthModeMock AuthMode = "mock"
)

// UnmarshalText implements encoding.TextUnmarshaler for AuthMode.
func (a *AuthMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "oauth", "mock":
		*a = AuthMode(v)
		return nil
	default:
		return fmt.Errorf("invalid AuthMode: %q (valid options: oauth, mock)", v)
	}
}

// IdentityFallback selects what happens when the identity lookup fails during a callback.
type IdentityFallback string

const (
	IdentityFallbackPlaceholder IdentityFallback = "placeholder"
	IdentityFallbackFail        IdentityFallback = "fail"
)

// UnmarshalText implements encoding.TextUnmarshaler for IdentityFallback.
func (f *IdentityFallback) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "placeholder", "fail":
		*f = IdentityFallback(v)
		return nil
	default:
		return fmt.Errorf("invalid IdentityFallback: %q (valid options: placeholder, fail)", v)
	}
}

// DevAuthConfig is the identity returned when AUTH_MODE=mock.
type DevAuthConfig struct {
	Email       string `env:"EMAIL"        envDefault:"dev@example.com"`
	DisplayName string `env:"DISPLAY_NAME" envDefault:"Dev User"`
}

// AuthConfig groups sign-in behaviour.
type AuthConfig struct {
	Mode AuthMode `env:"AUTH_MODE" envDefault:"oauth"`

	DevAuth DevAuthConfig `envPrefix:"DEV_AUTH_"`

	IdentityFallback IdentityFallback `env:"IDENTITY_FALLBACK" envDefault:"placeholder"`

	// SetSessionCookie also delivers the session token as a `session` cookie on callback.
	SetSessionCookie bool `env:"AUTH_SET_SESSION_COOKIE" envDefault:"false"`
}
