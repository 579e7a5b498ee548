package devauth

// Package devauth provides a config-driven identity provider for local development.

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"time"

	domainauth "github.com/commandcenter/inboxauth/internal/domain/auth"
	"github.com/commandcenter/inboxauth/internal/ports"
)

// DefaultCallbackPath is where AuthorizeURL sends the browser back to.
const DefaultCallbackPath = "/auth/provider/callback"

// Config controls the dev provider behavior. Email is required.
type Config struct {
	Email        string
	DisplayName  string
	CallbackPath string        // default DefaultCallbackPath
	TokenTTL     time.Duration // default 1h when zero
}

var (
	_ ports.TokenExchanger   = (*Provider)(nil)
	_ ports.IdentityResolver = (*Provider)(nil)
)

// Provider implements ports.TokenExchanger and ports.IdentityResolver for local development.
// It short-circuits the OAuth flow by redirecting straight back to our own callback.
// Exchange issues synthetic tokens for any non-empty code; Resolve returns the configured identity.
type Provider struct {
	identity     domainauth.Identity
	callbackPath string
	tokenTTL     time.Duration
}

// NewProvider constructs a dev provider from Config.
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.Email == "" {
		return nil, errors.New("dev auth: Email is required")
	}
	path := cfg.CallbackPath
	if path == "" {
		path = DefaultCallbackPath
	}
	ttl := cfg.TokenTTL
	if ttl == 0 {
		ttl = time.Hour
	}
	return &Provider{
		identity:     domainauth.Identity{Email: cfg.Email, DisplayName: cfg.DisplayName},
		callbackPath: path,
		tokenTTL:     ttl,
	}, nil
}

// AuthorizeURL returns a local callback URL carrying a dev code and a flow-tagged state.
func (p *Provider) AuthorizeURL(_ context.Context, flow domainauth.FlowKind) (string, string, error) {
	nonce, err := randomString(24)
	if err != nil {
		return "", "", fmt.Errorf("generate state: %w", err)
	}
	state := domainauth.EncodeState(flow, nonce)
	q := url.Values{"code": {"dev"}, "state": {state}}
	return p.callbackPath + "?" + q.Encode(), state, nil
}

// Exchange ignores the code value and returns fresh synthetic tokens.
func (p *Provider) Exchange(_ context.Context, code string) (domainauth.TokenSet, error) {
	if code == "" {
		return domainauth.TokenSet{}, domainauth.ErrMissingCode
	}
	access, err := randomString(24)
	if err != nil {
		return domainauth.TokenSet{}, fmt.Errorf("%w: %w", domainauth.ErrExchangeFailed, err)
	}
	refresh, err := randomString(24)
	if err != nil {
		return domainauth.TokenSet{}, fmt.Errorf("%w: %w", domainauth.ErrExchangeFailed, err)
	}
	return domainauth.TokenSet{
		AccessToken:  "dev-access-" + access,
		RefreshToken: "dev-refresh-" + refresh,
		ExpiresIn:    p.tokenTTL,
		Scope:        "dev",
	}, nil
}

// Resolve returns the configured identity for any token.
func (p *Provider) Resolve(_ context.Context, _ string) (domainauth.Identity, error) {
	return p.identity, nil
}

func randomString(nBytes int) (string, error) {
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
