package auth

// Package auth contains domain-level types for provider sign-in, token custody, and sessions.
// It is pure and free of framework/adapter concerns.

import "time"

// PlaceholderEmail is the identity used when the provider identity endpoint cannot be reached
// or returns no usable address.
const PlaceholderEmail = "unknown@outlook"

// SessionLifetime is the default validity window of a first-party session.
const SessionLifetime = 7 * 24 * time.Hour

// TokenSet is what the provider token endpoint returned for an authorization code.
// AccessToken and RefreshToken are provider secrets and must never be logged.
type TokenSet struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
	Scope        string
	IDToken      string
	// TenantID is the directory (tid claim) the signed-in account belongs to, when known.
	TenantID string
}

// Identity is the durable identity resolved from an access token.
type Identity struct {
	Email       string
	DisplayName string
	// Placeholder is set when Email is PlaceholderEmail because resolution failed.
	Placeholder bool
}

// PlaceholderIdentity returns the fallback identity.
func PlaceholderIdentity() Identity {
	return Identity{Email: PlaceholderEmail, Placeholder: true}
}

// User is a first-party user keyed by email.
type User struct {
	ID        string    `db:"id"         json:"id"`
	Email     string    `db:"email"      json:"email"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ProviderAccount links an external identity to a User by email.
type ProviderAccount struct {
	ID         string    `db:"id"          json:"id"`
	OwnerEmail string    `db:"owner_email" json:"owner_email"`
	TenantID   *string   `db:"tenant_id"   json:"tenant_id,omitempty"`
	CreatedAt  time.Time `db:"created_at"  json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"  json:"updated_at"`
}

// ProviderToken is the single live token set stored for a ProviderAccount.
type ProviderToken struct {
	ID           string    `json:"id"`
	AccountID    string    `json:"account_id"`
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	ExpiresAt    time.Time `json:"expires_at"`
	Scope        string    `json:"scope"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// LoginRecord groups everything persisted for one successful callback.
type LoginRecord struct {
	Email    string
	TenantID *string
	Token    ProviderToken
}

// LoginResult identifies the rows written for a LoginRecord.
type LoginResult struct {
	UserID    string
	AccountID string
}

// Session is a first-party session. Token is the opaque bearer credential handed to the client.
type Session struct {
	ID        string    `db:"id"         json:"id"`
	UserID    string    `db:"user_id"    json:"user_id"`
	Token     string    `db:"token"      json:"token"`
	ExpiresAt time.Time `db:"expires_at" json:"expires_at"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Expired reports whether the session is no longer valid at now.
func (s Session) Expired(now time.Time) bool { return !now.Before(s.ExpiresAt) }

// Principal is the authenticated caller behind a valid session.
type Principal struct {
	UserID    string
	Email     string
	SessionID string
	ExpiresAt time.Time
}
