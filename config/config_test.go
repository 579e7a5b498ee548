package config

import (
	"reflect"
	"strings"
	"testing"
	"time"

	env "github.com/caarlos0/env/v11"
)

func TestAppConfigDefaults(t *testing.T) {
	t.Setenv("NODE_ENV", "")

	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("env.Parse() error = %v", err)
	}
	cfg.Sanitize()

	if cfg.Auth.Mode != AuthModeOAuth {
		t.Fatalf("Auth.Mode = %q, want oauth", cfg.Auth.Mode)
	}
	if cfg.Auth.IdentityFallback != IdentityFallbackPlaceholder {
		t.Fatalf("IdentityFallback = %q, want placeholder", cfg.Auth.IdentityFallback)
	}
	if cfg.Provider.Tenant != "common" {
		t.Fatalf("Provider.Tenant = %q, want common", cfg.Provider.Tenant)
	}
	wantScopes := []string{"openid", "profile", "email", "offline_access", "User.Read", "Mail.Read"}
	if !reflect.DeepEqual(cfg.Provider.Scopes, wantScopes) {
		t.Fatalf("Provider.Scopes = %v, want %v", cfg.Provider.Scopes, wantScopes)
	}
	if cfg.Provider.HTTPTimeout != 10*time.Second {
		t.Fatalf("Provider.HTTPTimeout = %v, want 10s", cfg.Provider.HTTPTimeout)
	}
	if cfg.Session.Store != SessionStorePostgres || cfg.Session.TTL != 7*24*time.Hour {
		t.Fatalf("Session = %+v, want postgres with 168h TTL", cfg.Session)
	}
	if cfg.HTTP.ConnectLandingPath != "/ConnectInbox" || cfg.HTTP.LoginLandingPath != "/CommandCenter" {
		t.Fatalf("landing paths = %q, %q", cfg.HTTP.ConnectLandingPath, cfg.HTTP.LoginLandingPath)
	}
	if cfg.HTTP.DebugRoutesEnabled {
		t.Fatal("debug routes must be off by default")
	}
	if cfg.Postgres.Name != "inboxauth" {
		t.Fatalf("Postgres.Name = %q, want inboxauth", cfg.Postgres.Name)
	}
}

func TestAppConfigFromEnvironment(t *testing.T) {
	t.Setenv("OUTLOOK_CLIENT_ID", " app-client ")
	t.Setenv("OUTLOOK_CLIENT_SECRET", "super-secret")
	t.Setenv("OUTLOOK_REDIRECT_URI", "https://api.example.com/auth/provider/callback")
	t.Setenv("OUTLOOK_TENANT", "contoso.onmicrosoft.com")
	t.Setenv("OUTLOOK_SCOPES", "openid  Mail.Read")
	t.Setenv("OUTLOOK_AUTHORITY_URL", "https://login.example.com/")
	t.Setenv("IDENTITY_FALLBACK", "FAIL")
	t.Setenv("SESSION_STORE", "redis")
	t.Setenv("FRONTEND_URL", "https://app.example.com/")
	t.Setenv("CONNECT_LANDING_PATH", "inbox")
	t.Setenv("AUTH_SET_SESSION_COOKIE", "true")

	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("env.Parse() error = %v", err)
	}
	cfg.Sanitize()

	if cfg.Provider.ClientID != "app-client" {
		t.Fatalf("ClientID = %q", cfg.Provider.ClientID)
	}
	if !reflect.DeepEqual(cfg.Provider.Scopes, []string{"openid", "Mail.Read"}) {
		t.Fatalf("Scopes = %v", cfg.Provider.Scopes)
	}
	if cfg.Provider.AuthorityURL != "https://login.example.com" {
		t.Fatalf("AuthorityURL = %q", cfg.Provider.AuthorityURL)
	}
	if cfg.Auth.IdentityFallback != IdentityFallbackFail {
		t.Fatalf("IdentityFallback = %q", cfg.Auth.IdentityFallback)
	}
	if cfg.Session.Store != SessionStoreRedis {
		t.Fatalf("Session.Store = %q", cfg.Session.Store)
	}
	if cfg.HTTP.FrontendURL != "https://app.example.com" || cfg.HTTP.ConnectLandingPath != "/inbox" {
		t.Fatalf("HTTP = %+v", cfg.HTTP)
	}
	if !cfg.Auth.SetSessionCookie {
		t.Fatal("SetSessionCookie = false, want true")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestAppConfigRejectsInvalidEnums(t *testing.T) {
	tests := map[string]string{
		"AUTH_MODE":         "saml",
		"IDENTITY_FALLBACK": "retry",
		"SESSION_STORE":     "memcached",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			var cfg AppConfig
			if err := env.Parse(&cfg); err == nil {
				t.Fatalf("expected %s=%s to be rejected", key, value)
			}
		})
	}
}

func TestValidateReportsAllMissingProviderSettings(t *testing.T) {
	cfg := AppConfig{
		Auth:    AuthConfig{Mode: AuthModeOAuth},
		Session: SessionConfig{Store: SessionStorePostgres, TTL: time.Hour},
	}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, name := range []string{"OUTLOOK_CLIENT_ID", "OUTLOOK_CLIENT_SECRET", "OUTLOOK_REDIRECT_URI"} {
		if !strings.Contains(err.Error(), name) {
			t.Fatalf("error %q does not mention %s", err, name)
		}
	}
}

func TestValidateMockModeRequiresDev(t *testing.T) {
	cfg := AppConfig{
		Auth:    AuthConfig{Mode: AuthModeMock},
		Session: SessionConfig{Store: SessionStorePostgres, TTL: time.Hour},
		HTTP:    HTTPConfig{FrontendURL: "http://localhost:3000"},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected mock mode without DEV to be rejected")
	}
	cfg.IsDev = true
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestObservabilitySlogLevel(t *testing.T) {
	cases := map[string]string{"debug": "DEBUG", "warning": "WARN", "error": "ERROR", "": "INFO", "loud": "INFO"}
	for in, want := range cases {
		c := ObservabilityConfig{LogLevel: in}
		if got := c.SlogLevel().String(); got != want {
			t.Fatalf("SlogLevel(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestMetricsSanitizeDisablesWithoutAddress(t *testing.T) {
	c := ObservabilityMetricsConfig{Enabled: true, StatsdAddress: "  "}
	c.Sanitize()
	if c.IsEnabled() {
		t.Fatal("metrics should be disabled without an address")
	}
}

func TestHTTPValidateCookieDomain(t *testing.T) {
	cases := []struct {
		domain  string
		wantErr bool
	}{
		{"", false},
		{"localhost", false},
		{".App.Example.com", false},
		{"example.co.uk", false},
		{"com", true},
		{"co.uk", true},
	}
	for _, tc := range cases {
		h := HTTPConfig{FrontendURL: "https://app.example.com", CookieDomain: tc.domain}
		h.Sanitize()
		err := h.Validate()
		if (err != nil) != tc.wantErr {
			t.Fatalf("Validate(%q) error = %v, wantErr %v", tc.domain, err, tc.wantErr)
		}
	}
}

func TestValidateRequiresFrontendURL(t *testing.T) {
	cfg := AppConfig{
		IsDev:   true,
		Auth:    AuthConfig{Mode: AuthModeMock},
		Session: SessionConfig{Store: SessionStorePostgres, TTL: time.Hour},
		HTTP:    HTTPConfig{FrontendURL: "  /  "},
	}
	cfg.HTTP.Sanitize()
	if cfg.HTTP.FrontendURL != "" {
		t.Fatalf("FrontendURL = %q, want empty after Sanitize", cfg.HTTP.FrontendURL)
	}
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "FRONTEND_URL is missing") {
		t.Fatalf("Validate() error = %v, want FRONTEND_URL is missing", err)
	}
}
