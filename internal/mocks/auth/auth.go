package auth

// Package auth contains simple hand-written test doubles for auth ports.
// These are lightweight and suitable for unit tests without codegen.

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	domainauth "github.com/commandcenter/inboxauth/internal/domain/auth"
	"github.com/commandcenter/inboxauth/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.TokenExchanger   = (*StubExchanger)(nil)
	_ ports.IdentityResolver = (*StubResolver)(nil)
	_ ports.AccountStore     = (*MemoryAccountStore)(nil)
	_ ports.UserDirectory    = (*MemoryAccountStore)(nil)
	_ ports.SessionStore     = (*MemorySessionStore)(nil)
)

// StubExchanger simulates the provider token endpoint with deterministic state values.
type StubExchanger struct {
	AuthorizeFunc func(ctx context.Context, flow domainauth.FlowKind) (string, string, error)
	ExchangeFunc  func(ctx context.Context, code string) (domainauth.TokenSet, error)

	AuthURL string
	Tokens  domainauth.TokenSet

	mu        sync.Mutex
	callCount int
	codes     []string
}

// NewStubExchanger creates a StubExchanger that issues a complete token set for any code.
func NewStubExchanger() *StubExchanger {
	return &StubExchanger{
		AuthURL: "https://mock-idp/authorize",
		Tokens: domainauth.TokenSet{
			AccessToken:  "access-1",
			RefreshToken: "refresh-1",
			ExpiresIn:    time.Hour,
			Scope:        "openid offline_access Mail.Read",
		},
	}
}

func (s *StubExchanger) AuthorizeURL(ctx context.Context, flow domainauth.FlowKind) (string, string, error) {
	if s.AuthorizeFunc != nil {
		return s.AuthorizeFunc(ctx, flow)
	}
	s.mu.Lock()
	s.callCount++
	n := s.callCount
	s.mu.Unlock()

	state := domainauth.EncodeState(flow, fmt.Sprintf("nonce-%d", n))
	authURL := s.AuthURL
	if authURL == "" {
		authURL = "https://mock-idp/authorize"
	}
	return authURL + "?state=" + state, state, nil
}

func (s *StubExchanger) Exchange(ctx context.Context, code string) (domainauth.TokenSet, error) {
	s.mu.Lock()
	s.codes = append(s.codes, code)
	s.mu.Unlock()
	if s.ExchangeFunc != nil {
		return s.ExchangeFunc(ctx, code)
	}
	return s.Tokens, nil
}

// Codes returns the authorization codes redeemed so far.
func (s *StubExchanger) Codes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.codes...)
}

// StubResolver returns a fixed identity, or the placeholder when Err is set.
type StubResolver struct {
	Identity domainauth.Identity
	Err      error
}

func (s StubResolver) Resolve(_ context.Context, _ string) (domainauth.Identity, error) {
	if s.Err != nil {
		return domainauth.PlaceholderIdentity(), fmt.Errorf("%w: %w", domainauth.ErrIdentityUnavailable, s.Err)
	}
	return s.Identity, nil
}

// MemoryAccountStore is an in-memory AccountStore keyed by email.
type MemoryAccountStore struct {
	mu       sync.Mutex
	users    map[string]domainauth.User            // by email
	accounts map[string]domainauth.ProviderAccount // by owner email
	tokens   map[string]domainauth.ProviderToken   // by account id

	// Err, when set, is returned by every write.
	Err error
}

// NewMemoryAccountStore creates an empty store.
func NewMemoryAccountStore() *MemoryAccountStore {
	return &MemoryAccountStore{
		users:    make(map[string]domainauth.User),
		accounts: make(map[string]domainauth.ProviderAccount),
		tokens:   make(map[string]domainauth.ProviderToken),
	}
}

func (m *MemoryAccountStore) UpsertIdentity(_ context.Context, email string, tenantID *string) (domainauth.LoginResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return domainauth.LoginResult{}, m.Err
	}
	return m.upsertIdentityLocked(email, tenantID), nil
}

func (m *MemoryAccountStore) upsertIdentityLocked(email string, tenantID *string) domainauth.LoginResult {
	now := time.Now()
	u, ok := m.users[email]
	if !ok {
		u = domainauth.User{ID: uuid.NewString(), Email: email, CreatedAt: now}
		m.users[email] = u
	}
	acct, ok := m.accounts[email]
	if !ok {
		acct = domainauth.ProviderAccount{ID: uuid.NewString(), OwnerEmail: email, CreatedAt: now}
	}
	if tenantID != nil {
		acct.TenantID = tenantID
	}
	acct.UpdatedAt = now
	m.accounts[email] = acct
	return domainauth.LoginResult{UserID: u.ID, AccountID: acct.ID}
}

func (m *MemoryAccountStore) UpsertToken(_ context.Context, tok domainauth.ProviderToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.putTokenLocked(tok)
	return nil
}

func (m *MemoryAccountStore) putTokenLocked(tok domainauth.ProviderToken) {
	if prev, ok := m.tokens[tok.AccountID]; ok {
		tok.ID = prev.ID
	} else if tok.ID == "" {
		tok.ID = uuid.NewString()
	}
	tok.UpdatedAt = time.Now()
	m.tokens[tok.AccountID] = tok
}

func (m *MemoryAccountStore) RecordLogin(_ context.Context, rec domainauth.LoginRecord) (domainauth.LoginResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return domainauth.LoginResult{}, m.Err
	}
	res := m.upsertIdentityLocked(rec.Email, rec.TenantID)
	tok := rec.Token
	tok.AccountID = res.AccountID
	m.putTokenLocked(tok)
	return res, nil
}

func (m *MemoryAccountStore) UpdateAccountEmail(_ context.Context, accountID, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	for key, acct := range m.accounts {
		if acct.ID != accountID {
			continue
		}
		delete(m.accounts, key)
		acct.OwnerEmail = email
		acct.UpdatedAt = time.Now()
		m.accounts[email] = acct
		return nil
	}
	return domainauth.ErrNotFound
}

func (m *MemoryAccountStore) GetToken(_ context.Context, accountID string) (domainauth.ProviderToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tok, ok := m.tokens[accountID]
	if !ok {
		return domainauth.ProviderToken{}, domainauth.ErrNotFound
	}
	return tok, nil
}

func (m *MemoryAccountStore) LatestToken(_ context.Context) (domainauth.ProviderToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.tokens) == 0 {
		return domainauth.ProviderToken{}, domainauth.ErrNoStoredToken
	}
	all := make([]domainauth.ProviderToken, 0, len(m.tokens))
	for _, t := range m.tokens {
		all = append(all, t)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].UpdatedAt.After(all[j].UpdatedAt) })
	return all[0], nil
}

func (m *MemoryAccountStore) CountAccounts(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.accounts)), nil
}

func (m *MemoryAccountStore) EmailForUser(_ context.Context, userID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID == userID {
			return u.Email, nil
		}
	}
	return "", domainauth.ErrNotFound
}

// Account returns the stored account for email.
func (m *MemoryAccountStore) Account(email string) (domainauth.ProviderAccount, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[email]
	return a, ok
}

// UserCount returns the number of stored users.
func (m *MemoryAccountStore) UserCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users)
}

// TokenCount returns the number of stored provider tokens.
func (m *MemoryAccountStore) TokenCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tokens)
}

// MemorySessionStore is an in-memory session store for unit tests.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]domainauth.Session // by token
}

// NewMemorySessionStore creates a new in-memory session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]domainauth.Session),
	}
}

func (m *MemorySessionStore) Create(_ context.Context, sess domainauth.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[sess.Token]; ok {
		return domainauth.ErrTokenCollision
	}
	m.sessions[sess.Token] = sess
	return nil
}

func (m *MemorySessionStore) FindByToken(_ context.Context, token string) (domainauth.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[token]
	if !ok || token == "" {
		return domainauth.Session{}, domainauth.ErrNotFound
	}
	return sess, nil
}

func (m *MemorySessionStore) DeleteByToken(_ context.Context, token string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[token]; !ok {
		return 0, nil
	}
	delete(m.sessions, token)
	return 1, nil
}

func (m *MemorySessionStore) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for tok, sess := range m.sessions {
		if !before.Before(sess.ExpiresAt) {
			delete(m.sessions, tok)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored sessions.
func (m *MemorySessionStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
