package msidentity

// Package msidentity adapts the Microsoft identity platform (OAuth2 v2.0 endpoints and Microsoft Graph)
// to the TokenExchanger and IdentityResolver ports.

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
)

// Defaults for the public Microsoft cloud.
const (
	DefaultAuthorityURL = "https://login.microsoftonline.com"
	DefaultGraphURL     = "https://graph.microsoft.com"
	DefaultTenant       = "common"
	DefaultTimeout      = 10 * time.Second
)

// DefaultScopes grants sign-in, a refresh token, and mailbox read access.
var DefaultScopes = []string{"openid", "profile", "email", "offline_access", "User.Read", "Mail.Read"}

// Config is the immutable provider configuration shared by Exchanger and Resolver.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Tenant       string
	AuthorityURL string
	GraphURL     string
	Scopes       []string
	Timeout      time.Duration

	// VerifyIDToken checks the id_token signature against the tenant JWKS before reading its tid claim.
	VerifyIDToken bool
	JWKSURL       string
	// KeySet overrides the remote JWKS; used by tests.
	KeySet gooidc.KeySet

	HTTPClient *http.Client // Optional, defaults to a client with Timeout
	Logger     *slog.Logger
}

func (c Config) validate() error {
	if c.ClientID == "" {
		return errors.New("client ID is required")
	}
	if c.ClientSecret == "" {
		return errors.New("client secret is required")
	}
	if c.RedirectURI == "" {
		return errors.New("redirect URI is required")
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.Tenant == "" {
		c.Tenant = DefaultTenant
	}
	c.AuthorityURL = strings.TrimSuffix(firstNonEmpty(c.AuthorityURL, DefaultAuthorityURL), "/")
	c.GraphURL = strings.TrimSuffix(firstNonEmpty(c.GraphURL, DefaultGraphURL), "/")
	if len(c.Scopes) == 0 {
		c.Scopes = append([]string(nil), DefaultScopes...)
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.JWKSURL == "" {
		c.JWKSURL = c.tenantBase() + "/discovery/v2.0/keys"
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

func (c Config) tenantBase() string { return c.AuthorityURL + "/" + c.Tenant }

// AuthorizeEndpoint is the v2.0 authorize URL for the configured tenant.
func (c Config) AuthorizeEndpoint() string { return c.tenantBase() + "/oauth2/v2.0/authorize" }

// TokenEndpoint is the v2.0 token URL for the configured tenant.
func (c Config) TokenEndpoint() string { return c.tenantBase() + "/oauth2/v2.0/token" }

// firstNonEmpty returns the first non-empty string from vals, or empty string if none.
func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
