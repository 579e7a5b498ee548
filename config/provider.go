package config

import (
	"errors"
	"strings"
	"time"
)

// ProviderConfig is the OAuth client registration with the Microsoft identity platform.
type ProviderConfig struct {
	ClientID     string `env:"OUTLOOK_CLIENT_ID"`
	ClientSecret string `env:"OUTLOOK_CLIENT_SECRET"`
	RedirectURI  string `env:"OUTLOOK_REDIRECT_URI"`

	// Tenant is a directory id or domain, or one of common, organizations, consumers.
	Tenant       string   `env:"OUTLOOK_TENANT"        envDefault:"common"`
	AuthorityURL string   `env:"OUTLOOK_AUTHORITY_URL" envDefault:"https://login.microsoftonline.com"`
	GraphURL     string   `env:"OUTLOOK_GRAPH_URL"     envDefault:"https://graph.microsoft.com"`
	Scopes       []string `env:"OUTLOOK_SCOPES"        envDefault:"openid profile email offline_access User.Read Mail.Read" envSeparator:" "`

	// VerifyIDToken checks the id_token signature against the tenant JWKS before trusting its tid.
	VerifyIDToken bool   `env:"OUTLOOK_VERIFY_ID_TOKEN" envDefault:"false"`
	JWKSURL       string `env:"OUTLOOK_JWKS_URL"`

	HTTPTimeout time.Duration `env:"PROVIDER_HTTP_TIMEOUT" envDefault:"10s"`
}

// Sanitize trims values and restores defaults for blanks.
func (p *ProviderConfig) Sanitize() {
	p.ClientID = strings.TrimSpace(p.ClientID)
	p.RedirectURI = strings.TrimSpace(p.RedirectURI)
	if p.Tenant = strings.TrimSpace(p.Tenant); p.Tenant == "" {
		p.Tenant = "common"
	}
	p.AuthorityURL = strings.TrimRight(strings.TrimSpace(p.AuthorityURL), "/")
	p.GraphURL = strings.TrimRight(strings.TrimSpace(p.GraphURL), "/")

	scopes := p.Scopes[:0]
	for _, s := range p.Scopes {
		if s = strings.TrimSpace(s); s != "" {
			scopes = append(scopes, s)
		}
	}
	p.Scopes = scopes

	if p.HTTPTimeout <= 0 {
		p.HTTPTimeout = 10 * time.Second
	}
}

// Validate returns one error per missing required setting.
func (p *ProviderConfig) Validate() []error {
	var errs []error
	if p.ClientID == "" {
		errs = append(errs, errors.New("OUTLOOK_CLIENT_ID is missing"))
	}
	if p.ClientSecret == "" {
		errs = append(errs, errors.New("OUTLOOK_CLIENT_SECRET is missing"))
	}
	if p.RedirectURI == "" {
		errs = append(errs, errors.New("OUTLOOK_REDIRECT_URI is missing"))
	}
	return errs
}
