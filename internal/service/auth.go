package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	domainauth "github.com/commandcenter/inboxauth/internal/domain/auth"
	"github.com/commandcenter/inboxauth/internal/observability/metrics"
	"github.com/commandcenter/inboxauth/internal/observability/statsd"
	"github.com/commandcenter/inboxauth/internal/ports"
)

// IdentityFallback selects what a callback does when the identity lookup fails.
type IdentityFallback string

const (
	// FallbackPlaceholder records the login under the placeholder identity.
	FallbackPlaceholder IdentityFallback = "placeholder"
	// FallbackFail aborts the callback with ErrIdentityUnavailable.
	FallbackFail IdentityFallback = "fail"
)

// Valid reports whether f is a known policy.
func (f IdentityFallback) Valid() bool {
	return f == FallbackPlaceholder || f == FallbackFail
}

// AuthServiceOptions groups dependencies for AuthService.
type AuthServiceOptions struct {
	Exchanger ports.TokenExchanger   // Required
	Resolver  ports.IdentityResolver // Required
	Accounts  ports.AccountStore     // Required
	Sessions  *SessionService        // Required

	// Tenant is the configured directory tenant. Multi-tenant aliases defer to the tid claim.
	Tenant   string
	Scopes   []string         // Stored with the token when the provider does not echo a scope
	Fallback IdentityFallback // Defaults to FallbackPlaceholder
	Clock    func() time.Time
	Metrics  statsd.Sink
	Logger   *slog.Logger
}

// AuthService runs the provider sign-in flow: code exchange, identity resolution,
// account and token upsert, then session issuance.
type AuthService struct {
	exchanger ports.TokenExchanger
	resolver  ports.IdentityResolver
	accounts  ports.AccountStore
	sessions  *SessionService

	tenant   string
	scope    string
	fallback IdentityFallback
	now      func() time.Time
	metrics  statsd.Sink
	logger   *slog.Logger
}

// NewAuthService constructs an AuthService.
func NewAuthService(opts AuthServiceOptions) (*AuthService, error) {
	switch {
	case opts.Exchanger == nil:
		return nil, errors.New("token exchanger is required")
	case opts.Resolver == nil:
		return nil, errors.New("identity resolver is required")
	case opts.Accounts == nil:
		return nil, errors.New("account store is required")
	case opts.Sessions == nil:
		return nil, errors.New("session service is required")
	}
	fallback := opts.Fallback
	if fallback == "" {
		fallback = FallbackPlaceholder
	}
	if !fallback.Valid() {
		return nil, fmt.Errorf("unknown identity fallback %q", fallback)
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		exchanger: opts.Exchanger,
		resolver:  opts.Resolver,
		accounts:  opts.Accounts,
		sessions:  opts.Sessions,
		tenant:    strings.TrimSpace(opts.Tenant),
		scope:     strings.Join(opts.Scopes, " "),
		fallback:  fallback,
		now:       now,
		metrics:   opts.Metrics,
		logger:    logger.With("component", "auth_service"),
	}, nil
}

// BeginResult carries the provider redirect for a new flow.
type BeginResult struct {
	AuthURL string
	State   string
}

// Begin starts a login or connect flow.
func (s *AuthService) Begin(ctx context.Context, flow domainauth.FlowKind) (*BeginResult, error) {
	if !flow.Valid() {
		flow = domainauth.FlowLogin
	}
	authURL, state, err := s.exchanger.AuthorizeURL(ctx, flow)
	if err != nil {
		return nil, fmt.Errorf("build authorize url: %w", err)
	}
	return &BeginResult{AuthURL: authURL, State: state}, nil
}

// CallbackInput is the query the provider redirected back with.
type CallbackInput struct {
	Code  string
	State string
}

// CallbackResult describes a completed sign-in.
type CallbackResult struct {
	Flow     domainauth.FlowKind
	Identity domainauth.Identity
	Login    domainauth.LoginResult
	Session  domainauth.Session
}

// Callback completes a flow. Steps run strictly in order and the first failure aborts the rest.
func (s *AuthService) Callback(ctx context.Context, in CallbackInput) (res *CallbackResult, err error) {
	flow := domainauth.ParseFlowKind(in.State)
	started := s.now()
	defer func() {
		m := metrics.CallbackMetric{Flow: string(flow), Result: metrics.ResultSuccess, Duration: s.now().Sub(started)}
		if err != nil {
			m.Result, m.Err = metrics.ResultError, err
		}
		metrics.EmitCallback(s.metrics, m)
	}()

	if in.Code == "" {
		return nil, domainauth.ErrMissingCode
	}

	tokens, err := s.exchanger.Exchange(ctx, in.Code)
	if err != nil {
		s.logger.WarnContext(ctx, "token exchange failed", "flow", flow, "error", err)
		return nil, fmt.Errorf("exchange code: %w", err)
	}

	identity, err := s.resolveIdentity(ctx, flow, tokens.AccessToken)
	if err != nil {
		return nil, err
	}

	scope := tokens.Scope
	if scope == "" {
		scope = s.scope
	}
	login, err := s.accounts.RecordLogin(ctx, domainauth.LoginRecord{
		Email:    identity.Email,
		TenantID: s.tenantFor(tokens),
		Token: domainauth.ProviderToken{
			AccessToken:  tokens.AccessToken,
			RefreshToken: tokens.RefreshToken,
			ExpiresAt:    s.now().UTC().Add(tokens.ExpiresIn),
			Scope:        scope,
		},
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "record login failed", "flow", flow, "error", err)
		return nil, persistenceError("record login", err)
	}

	sess, err := s.sessions.Issue(ctx, login.UserID)
	if err != nil {
		s.logger.ErrorContext(ctx, "issue session failed", "flow", flow, "user_id", login.UserID, "error", err)
		return nil, fmt.Errorf("issue session: %w", err)
	}

	s.logger.InfoContext(ctx, "provider sign-in completed",
		"flow", flow,
		"user_id", login.UserID,
		"account_id", login.AccountID,
		"placeholder_identity", identity.Placeholder,
	)
	return &CallbackResult{Flow: flow, Identity: identity, Login: login, Session: sess}, nil
}

func (s *AuthService) resolveIdentity(ctx context.Context, flow domainauth.FlowKind, accessToken string) (domainauth.Identity, error) {
	identity, err := s.resolver.Resolve(ctx, accessToken)
	if err == nil {
		return identity, nil
	}
	if s.fallback == FallbackFail {
		s.logger.WarnContext(ctx, "identity lookup failed", "flow", flow, "error", err)
		if !errors.Is(err, domainauth.ErrIdentityUnavailable) {
			err = fmt.Errorf("%w: %w", domainauth.ErrIdentityUnavailable, err)
		}
		return domainauth.Identity{}, err
	}
	s.logger.WarnContext(ctx, "identity lookup failed, using placeholder", "flow", flow, "error", err)
	metrics.EmitIdentityFallback(s.metrics, string(flow))
	return domainauth.PlaceholderIdentity(), nil
}

// tenantFor prefers a concrete configured tenant and falls back to the tid claim for the
// multi-tenant aliases. nil leaves a previously stored tenant in place.
func (s *AuthService) tenantFor(tokens domainauth.TokenSet) *string {
	switch strings.ToLower(s.tenant) {
	case "", "common", "organizations", "consumers":
		if tokens.TenantID == "" {
			return nil
		}
		tid := tokens.TenantID
		return &tid
	default:
		t := s.tenant
		return &t
	}
}

// IdentityRefresh is the outcome of re-reading the identity behind the latest stored token.
type IdentityRefresh struct {
	AccountID string
	Identity  domainauth.Identity
	// Updated is false when the lookup produced no usable address and the stored email was kept.
	// Identity.Placeholder is then set and Identity.Email must not be reported.
	Updated bool
}

// RefreshLatestIdentity looks up the identity behind the most recently stored token and
// re-keys its account when a real address comes back.
func (s *AuthService) RefreshLatestIdentity(ctx context.Context) (*IdentityRefresh, error) {
	tok, err := s.accounts.LatestToken(ctx)
	if errors.Is(err, domainauth.ErrNoStoredToken) {
		return nil, err
	}
	if err != nil {
		return nil, persistenceError("load latest token", err)
	}

	identity, err := s.resolver.Resolve(ctx, tok.AccessToken)
	out := &IdentityRefresh{AccountID: tok.AccountID, Identity: identity}
	if errors.Is(err, domainauth.ErrProfileWithoutAddress) {
		return out, nil
	}
	if err != nil {
		return nil, fmt.Errorf("refresh identity: %w", err)
	}
	if identity.Placeholder || identity.Email == "" {
		return out, nil
	}
	if err := s.accounts.UpdateAccountEmail(ctx, tok.AccountID, identity.Email); err != nil {
		return nil, persistenceError("update account email", err)
	}
	out.Updated = true
	return out, nil
}

// CountAccounts reports the number of connected provider accounts.
func (s *AuthService) CountAccounts(ctx context.Context) (int64, error) {
	n, err := s.accounts.CountAccounts(ctx)
	if err != nil {
		return 0, persistenceError("count accounts", err)
	}
	return n, nil
}

// Sessions exposes the session manager used to validate and revoke sessions.
func (s *AuthService) Sessions() *SessionService { return s.sessions }
