package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	domainauth "github.com/commandcenter/inboxauth/internal/domain/auth"
	"github.com/commandcenter/inboxauth/internal/mocks"
	authmocks "github.com/commandcenter/inboxauth/internal/mocks/auth"
)

type authFixture struct {
	svc       *AuthService
	exchanger *authmocks.StubExchanger
	resolver  *authmocks.StubResolver
	accounts  *authmocks.MemoryAccountStore
	sessions  *authmocks.MemorySessionStore
	sink      *countingSink
}

type countingSink struct {
	mu     sync.Mutex
	counts map[string]int
}

func (c *countingSink) Count(name string, v int64, _ map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts == nil {
		c.counts = make(map[string]int)
	}
	c.counts[name] += int(v)
}

func (c *countingSink) Gauge(string, float64, map[string]string)        {}
func (c *countingSink) Timing(string, time.Duration, map[string]string) {}

func (c *countingSink) get(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[name]
}

func newAuthFixture(t *testing.T, mutate func(*AuthServiceOptions)) *authFixture {
	t.Helper()
	f := &authFixture{
		exchanger: authmocks.NewStubExchanger(),
		resolver:  &authmocks.StubResolver{Identity: domainauth.Identity{Email: "ada@example.com", DisplayName: "Ada"}},
		accounts:  authmocks.NewMemoryAccountStore(),
		sessions:  authmocks.NewMemorySessionStore(),
		sink:      &countingSink{},
	}
	sessions, err := NewSessionService(SessionServiceOptions{
		Store: f.sessions,
		Users: f.accounts,
		Clock: func() time.Time { return testNow },
	})
	require.NoError(t, err)

	opts := AuthServiceOptions{
		Exchanger: f.exchanger,
		Resolver:  f.resolver,
		Accounts:  f.accounts,
		Sessions:  sessions,
		Tenant:    "common",
		Scopes:    []string{"openid", "Mail.Read"},
		Clock:     func() time.Time { return testNow },
		Metrics:   f.sink,
	}
	if mutate != nil {
		mutate(&opts)
	}
	svc, err := NewAuthService(opts)
	require.NoError(t, err)
	f.svc = svc
	return f
}

func TestNewAuthService_Validation(t *testing.T) {
	ctrl := gomock.NewController(t)
	sessions, err := NewSessionService(SessionServiceOptions{
		Store: mocks.NewMockSessionStore(ctrl),
		Users: mocks.NewMockUserDirectory(ctrl),
	})
	require.NoError(t, err)

	full := AuthServiceOptions{
		Exchanger: mocks.NewMockTokenExchanger(ctrl),
		Resolver:  mocks.NewMockIdentityResolver(ctrl),
		Accounts:  mocks.NewMockAccountStore(ctrl),
		Sessions:  sessions,
	}

	tests := []struct {
		name   string
		mutate func(*AuthServiceOptions)
	}{
		{"missing exchanger", func(o *AuthServiceOptions) { o.Exchanger = nil }},
		{"missing resolver", func(o *AuthServiceOptions) { o.Resolver = nil }},
		{"missing accounts", func(o *AuthServiceOptions) { o.Accounts = nil }},
		{"missing sessions", func(o *AuthServiceOptions) { o.Sessions = nil }},
		{"unknown fallback", func(o *AuthServiceOptions) { o.Fallback = "retry" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := full
			tt.mutate(&opts)
			_, err := NewAuthService(opts)
			require.Error(t, err)
		})
	}

	svc, err := NewAuthService(full)
	require.NoError(t, err)
	assert.Equal(t, FallbackPlaceholder, svc.fallback)
}

func TestAuthService_Begin(t *testing.T) {
	f := newAuthFixture(t, nil)
	ctx := context.Background()

	res, err := f.svc.Begin(ctx, domainauth.FlowConnect)
	require.NoError(t, err)
	assert.Equal(t, "connect_nonce-1", res.State)
	assert.Contains(t, res.AuthURL, "state=connect_nonce-1")

	res, err = f.svc.Begin(ctx, domainauth.FlowKind("bogus"))
	require.NoError(t, err)
	assert.Equal(t, domainauth.FlowLogin, domainauth.ParseFlowKind(res.State))
}

func TestAuthService_Begin_ProviderError(t *testing.T) {
	f := newAuthFixture(t, nil)
	f.exchanger.AuthorizeFunc = func(context.Context, domainauth.FlowKind) (string, string, error) {
		return "", "", errors.New("entropy exhausted")
	}
	_, err := f.svc.Begin(context.Background(), domainauth.FlowLogin)
	require.Error(t, err)
}

func TestAuthService_Callback_Success(t *testing.T) {
	f := newAuthFixture(t, nil)
	ctx := context.Background()

	res, err := f.svc.Callback(ctx, CallbackInput{Code: "abc", State: "connect_xyz"})
	require.NoError(t, err)

	assert.Equal(t, domainauth.FlowConnect, res.Flow)
	assert.Equal(t, "ada@example.com", res.Identity.Email)
	assert.False(t, res.Identity.Placeholder)
	assert.Equal(t, res.Login.UserID, res.Session.UserID)
	assert.Equal(t, testNow.Add(domainauth.SessionLifetime), res.Session.ExpiresAt)
	assert.Equal(t, []string{"abc"}, f.exchanger.Codes())

	tok, err := f.accounts.GetToken(ctx, res.Login.AccountID)
	require.NoError(t, err)
	assert.Equal(t, "access-1", tok.AccessToken)
	assert.Equal(t, "refresh-1", tok.RefreshToken)
	assert.Equal(t, testNow.Add(time.Hour), tok.ExpiresAt)
	assert.Equal(t, "openid offline_access Mail.Read", tok.Scope)

	p, err := f.svc.Sessions().Validate(ctx, res.Session.Token)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", p.Email)
	assert.Equal(t, 1, f.sink.get("auth.callback"))
}

func TestAuthService_Callback_ScopeFallsBackToConfigured(t *testing.T) {
	f := newAuthFixture(t, nil)
	f.exchanger.Tokens.Scope = ""

	res, err := f.svc.Callback(context.Background(), CallbackInput{Code: "abc"})
	require.NoError(t, err)
	tok, err := f.accounts.GetToken(context.Background(), res.Login.AccountID)
	require.NoError(t, err)
	assert.Equal(t, "openid Mail.Read", tok.Scope)
	assert.Equal(t, domainauth.FlowLogin, res.Flow)
}

func TestAuthService_Callback_RepeatLoginReusesAccount(t *testing.T) {
	f := newAuthFixture(t, nil)
	ctx := context.Background()

	first, err := f.svc.Callback(ctx, CallbackInput{Code: "c1", State: "login_a"})
	require.NoError(t, err)

	f.exchanger.Tokens.AccessToken = "access-2"
	f.exchanger.Tokens.RefreshToken = "refresh-2"
	second, err := f.svc.Callback(ctx, CallbackInput{Code: "c2", State: "login_b"})
	require.NoError(t, err)

	assert.Equal(t, first.Login, second.Login)
	assert.NotEqual(t, first.Session.Token, second.Session.Token)
	assert.Equal(t, 1, f.accounts.UserCount())
	assert.Equal(t, 1, f.accounts.TokenCount())
	assert.Equal(t, 2, f.sessions.Len())

	tok, err := f.accounts.GetToken(ctx, first.Login.AccountID)
	require.NoError(t, err)
	assert.Equal(t, "access-2", tok.AccessToken)
}

func TestAuthService_Callback_MissingCode(t *testing.T) {
	f := newAuthFixture(t, nil)

	_, err := f.svc.Callback(context.Background(), CallbackInput{State: "login_x"})
	require.ErrorIs(t, err, domainauth.ErrMissingCode)
	assert.Empty(t, f.exchanger.Codes())
	assert.Equal(t, 0, f.accounts.UserCount())
	assert.Equal(t, 0, f.sessions.Len())
}

func TestAuthService_Callback_ExchangeFailureStopsFlow(t *testing.T) {
	ctrl := gomock.NewController(t)
	exchanger := mocks.NewMockTokenExchanger(ctrl)
	resolver := mocks.NewMockIdentityResolver(ctrl)
	accounts := mocks.NewMockAccountStore(ctrl)
	store := mocks.NewMockSessionStore(ctrl)

	exchanger.EXPECT().Exchange(gomock.Any(), "abc").
		Return(domainauth.TokenSet{}, fmt.Errorf("%w: invalid_grant", domainauth.ErrExchangeFailed))

	sessions, err := NewSessionService(SessionServiceOptions{Store: store, Users: mocks.NewMockUserDirectory(ctrl)})
	require.NoError(t, err)
	svc, err := NewAuthService(AuthServiceOptions{
		Exchanger: exchanger, Resolver: resolver, Accounts: accounts, Sessions: sessions,
	})
	require.NoError(t, err)

	_, err = svc.Callback(context.Background(), CallbackInput{Code: "abc", State: "login_x"})
	require.ErrorIs(t, err, domainauth.ErrExchangeFailed)
	assert.Equal(t, domainauth.CategoryUpstream, domainauth.Classify(err))
}

func TestAuthService_Callback_PlaceholderFallback(t *testing.T) {
	f := newAuthFixture(t, nil)
	f.resolver.Err = errors.New("graph unavailable")

	res, err := f.svc.Callback(context.Background(), CallbackInput{Code: "abc", State: "login_x"})
	require.NoError(t, err)
	assert.True(t, res.Identity.Placeholder)

	_, ok := f.accounts.Account(domainauth.PlaceholderEmail)
	assert.True(t, ok)
	assert.Equal(t, 1, f.sink.get("auth.identity.fallback"))
}

func TestAuthService_Callback_FailFallback(t *testing.T) {
	f := newAuthFixture(t, func(o *AuthServiceOptions) { o.Fallback = FallbackFail })
	f.resolver.Err = errors.New("graph unavailable")

	_, err := f.svc.Callback(context.Background(), CallbackInput{Code: "abc", State: "login_x"})
	require.ErrorIs(t, err, domainauth.ErrIdentityUnavailable)
	assert.Equal(t, 0, f.accounts.UserCount())
	assert.Equal(t, 0, f.sessions.Len())
}

func TestAuthService_Callback_PersistenceFailure(t *testing.T) {
	f := newAuthFixture(t, nil)
	f.accounts.Err = errors.New("disk full")

	_, err := f.svc.Callback(context.Background(), CallbackInput{Code: "abc", State: "login_x"})
	require.ErrorIs(t, err, domainauth.ErrPersistenceFailed)
	assert.Equal(t, 0, f.sessions.Len())
}

func TestAuthService_Callback_SessionFailureLeavesAccount(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockSessionStore(ctrl)
	store.EXPECT().Create(gomock.Any(), gomock.Any()).Return(errors.New("insert failed"))

	accounts := authmocks.NewMemoryAccountStore()
	sessions, err := NewSessionService(SessionServiceOptions{Store: store, Users: accounts})
	require.NoError(t, err)
	svc, err := NewAuthService(AuthServiceOptions{
		Exchanger: authmocks.NewStubExchanger(),
		Resolver:  authmocks.StubResolver{Identity: domainauth.Identity{Email: "ada@example.com"}},
		Accounts:  accounts,
		Sessions:  sessions,
	})
	require.NoError(t, err)

	_, err = svc.Callback(context.Background(), CallbackInput{Code: "abc"})
	require.ErrorIs(t, err, domainauth.ErrPersistenceFailed)
	assert.Equal(t, 1, accounts.TokenCount())
}

func TestAuthService_TenantSelection(t *testing.T) {
	tests := []struct {
		name       string
		configured string
		tid        string
		want       *string
	}{
		{"concrete tenant wins", "contoso.onmicrosoft.com", "tid-1", strPtr("contoso.onmicrosoft.com")},
		{"common uses tid", "common", "tid-1", strPtr("tid-1")},
		{"organizations uses tid", "Organizations", "tid-2", strPtr("tid-2")},
		{"common without tid", "common", "", nil},
		{"unset without tid", "", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAuthFixture(t, func(o *AuthServiceOptions) { o.Tenant = tt.configured })
			f.exchanger.Tokens.TenantID = tt.tid

			_, err := f.svc.Callback(context.Background(), CallbackInput{Code: "abc"})
			require.NoError(t, err)
			acct, ok := f.accounts.Account("ada@example.com")
			require.True(t, ok)
			assert.Equal(t, tt.want, acct.TenantID)
		})
	}
}

func TestAuthService_RefreshLatestIdentity(t *testing.T) {
	ctx := context.Background()

	t.Run("no stored token", func(t *testing.T) {
		f := newAuthFixture(t, nil)
		_, err := f.svc.RefreshLatestIdentity(ctx)
		require.ErrorIs(t, err, domainauth.ErrNoStoredToken)
	})

	t.Run("real identity re-keys account", func(t *testing.T) {
		f := newAuthFixture(t, nil)
		f.resolver.Err = errors.New("graph down")
		res, err := f.svc.Callback(ctx, CallbackInput{Code: "abc"})
		require.NoError(t, err)
		require.True(t, res.Identity.Placeholder)

		f.resolver.Err = nil
		f.resolver.Identity = domainauth.Identity{Email: "grace@example.com"}
		out, err := f.svc.RefreshLatestIdentity(ctx)
		require.NoError(t, err)
		assert.True(t, out.Updated)
		assert.Equal(t, res.Login.AccountID, out.AccountID)

		_, ok := f.accounts.Account("grace@example.com")
		assert.True(t, ok)
	})

	t.Run("lookup failure keeps stored email", func(t *testing.T) {
		f := newAuthFixture(t, nil)
		_, err := f.svc.Callback(ctx, CallbackInput{Code: "abc"})
		require.NoError(t, err)

		f.resolver.Err = errors.New("401")
		_, err = f.svc.RefreshLatestIdentity(ctx)
		require.ErrorIs(t, err, domainauth.ErrIdentityUnavailable)

		_, ok := f.accounts.Account("ada@example.com")
		assert.True(t, ok)
	})

	t.Run("profile without address is not an error", func(t *testing.T) {
		f := newAuthFixture(t, nil)
		res, err := f.svc.Callback(ctx, CallbackInput{Code: "abc"})
		require.NoError(t, err)

		f.resolver.Err = domainauth.ErrProfileWithoutAddress
		out, err := f.svc.RefreshLatestIdentity(ctx)
		require.NoError(t, err)
		assert.False(t, out.Updated)
		assert.True(t, out.Identity.Placeholder)
		assert.Equal(t, res.Login.AccountID, out.AccountID)

		_, ok := f.accounts.Account("ada@example.com")
		assert.True(t, ok)
	})
}

func TestAuthService_CountAccounts(t *testing.T) {
	f := newAuthFixture(t, nil)
	ctx := context.Background()

	n, err := f.svc.CountAccounts(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = f.svc.Callback(ctx, CallbackInput{Code: "abc"})
	require.NoError(t, err)
	n, err = f.svc.CountAccounts(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func strPtr(s string) *string { return &s }
