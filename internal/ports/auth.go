package ports

// Package ports defines interfaces (hexagonal ports) for sign-in, token custody, and sessions.
// Implementations live in internal/adapters and internal/data; orchestration in internal/service.

import (
	"context"
	"time"

	domainauth "github.com/commandcenter/inboxauth/internal/domain/auth"
)

// TokenExchanger builds provider authorize URLs and redeems authorization codes.
type TokenExchanger interface {
	// AuthorizeURL returns the provider URL to redirect the browser to and the state value it carries.
	AuthorizeURL(ctx context.Context, flow domainauth.FlowKind) (authURL, state string, err error)

	// Exchange redeems an authorization code. It returns ErrExchangeFailed unless both an access and a
	// refresh token were issued.
	Exchange(ctx context.Context, code string) (domainauth.TokenSet, error)
}

// IdentityResolver turns an access token into a durable identity.
// On failure it returns the placeholder identity together with a non-nil error wrapping
// ErrIdentityUnavailable; callers decide whether to accept the placeholder.
type IdentityResolver interface {
	Resolve(ctx context.Context, accessToken string) (domainauth.Identity, error)
}

// AccountStore persists users, provider accounts, and provider tokens.
type AccountStore interface {
	UpsertIdentity(ctx context.Context, email string, tenantID *string) (domainauth.LoginResult, error)
	UpsertToken(ctx context.Context, tok domainauth.ProviderToken) error
	// RecordLogin performs UpsertIdentity and UpsertToken atomically.
	RecordLogin(ctx context.Context, rec domainauth.LoginRecord) (domainauth.LoginResult, error)
	UpdateAccountEmail(ctx context.Context, accountID, email string) error
	GetToken(ctx context.Context, accountID string) (domainauth.ProviderToken, error)
	LatestToken(ctx context.Context) (domainauth.ProviderToken, error)
	CountAccounts(ctx context.Context) (int64, error)
}

// UserDirectory resolves user attributes needed by session validation.
type UserDirectory interface {
	EmailForUser(ctx context.Context, userID string) (string, error)
}

// SessionStore persists first-party sessions keyed by their opaque token.
type SessionStore interface {
	// Create stores a new session. It returns ErrTokenCollision if the token is already taken.
	Create(ctx context.Context, sess domainauth.Session) error
	// FindByToken returns ErrNotFound when no session carries the token.
	FindByToken(ctx context.Context, token string) (domainauth.Session, error)
	// DeleteByToken removes every session carrying the token and reports how many were removed.
	DeleteByToken(ctx context.Context, token string) (int64, error)
	// DeleteExpired removes sessions whose expiry is at or before the cutoff.
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
