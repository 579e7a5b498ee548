package config

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// HTTPConfig contains HTTP server and redirect configuration.
type HTTPConfig struct {
	Addr string `env:"HTTP_ADDR" envDefault:":3005"`

	// FrontendURL is the origin callbacks redirect back to. Required.
	FrontendURL string `env:"FRONTEND_URL"`

	ConnectLandingPath string `env:"CONNECT_LANDING_PATH" envDefault:"/ConnectInbox"`
	LoginLandingPath   string `env:"LOGIN_LANDING_PATH"   envDefault:"/CommandCenter"`

	// CookieDomain scopes the session cookie. Empty uses the request host.
	CookieDomain string `env:"APP_COOKIE_DOMAIN" envDefault:""`

	// DebugRoutesEnabled mounts the /debug endpoints.
	DebugRoutesEnabled bool `env:"DEBUG_ROUTES_ENABLED" envDefault:"false"`
}

// Sanitize normalizes the frontend URL and landing paths.
func (h *HTTPConfig) Sanitize() {
	h.FrontendURL = strings.TrimRight(strings.TrimSpace(h.FrontendURL), "/")
	h.ConnectLandingPath = normalizePath(h.ConnectLandingPath, "/ConnectInbox")
	h.LoginLandingPath = normalizePath(h.LoginLandingPath, "/CommandCenter")
	h.CookieDomain = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(h.CookieDomain)), ".")
}

// Validate requires FRONTEND_URL and rejects a cookie domain browsers would refuse.
func (h *HTTPConfig) Validate() error {
	var errs []error
	if h.FrontendURL == "" {
		errs = append(errs, errors.New("FRONTEND_URL is missing"))
	}
	if err := h.validateCookieDomain(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// validateCookieDomain rejects public suffixes such as "com" or "co.uk".
func (h *HTTPConfig) validateCookieDomain() error {
	if h.CookieDomain == "" || h.CookieDomain == "localhost" {
		return nil
	}
	if suffix, _ := publicsuffix.PublicSuffix(h.CookieDomain); suffix == h.CookieDomain {
		return fmt.Errorf("APP_COOKIE_DOMAIN %q is a public suffix", h.CookieDomain)
	}
	return nil
}

func normalizePath(p, def string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return def
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}
