package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/commandcenter/inboxauth/internal/domain/auth"
)

func TestStubExchanger_AuthorizeURL_Defaults(t *testing.T) {
	ex := NewStubExchanger()
	ctx := context.Background()

	url, state, err := ex.AuthorizeURL(ctx, domainauth.FlowConnect)
	require.NoError(t, err)
	assert.Equal(t, "connect_nonce-1", state)
	assert.Equal(t, "https://mock-idp/authorize?state=connect_nonce-1", url)

	_, state2, err := ex.AuthorizeURL(ctx, domainauth.FlowLogin)
	require.NoError(t, err)
	assert.Equal(t, "login_nonce-2", state2)
}

func TestStubExchanger_ExchangeRecordsCodes(t *testing.T) {
	ex := NewStubExchanger()
	tokens, err := ex.Exchange(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "access-1", tokens.AccessToken)
	assert.Equal(t, []string{"abc"}, ex.Codes())
}

func TestStubResolver_ErrorYieldsPlaceholder(t *testing.T) {
	r := StubResolver{Err: errors.New("offline")}
	id, err := r.Resolve(context.Background(), "tok")
	require.ErrorIs(t, err, domainauth.ErrIdentityUnavailable)
	assert.True(t, id.Placeholder)
	assert.Equal(t, domainauth.PlaceholderEmail, id.Email)
}

func TestMemoryAccountStore_RecordLoginIsIdempotentPerEmail(t *testing.T) {
	store := NewMemoryAccountStore()
	ctx := context.Background()

	first, err := store.RecordLogin(ctx, domainauth.LoginRecord{
		Email: "a@x.com",
		Token: domainauth.ProviderToken{AccessToken: "A1", RefreshToken: "R1"},
	})
	require.NoError(t, err)
	second, err := store.RecordLogin(ctx, domainauth.LoginRecord{
		Email: "a@x.com",
		Token: domainauth.ProviderToken{AccessToken: "A2", RefreshToken: "R2"},
	})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, store.UserCount())
	assert.Equal(t, 1, store.TokenCount())

	tok, err := store.GetToken(ctx, first.AccountID)
	require.NoError(t, err)
	assert.Equal(t, "A2", tok.AccessToken)
	assert.Equal(t, "R2", tok.RefreshToken)
}

func TestMemorySessionStore_Lifecycle(t *testing.T) {
	store := NewMemorySessionStore()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.Create(ctx, domainauth.Session{ID: "1", Token: "t1", ExpiresAt: now.Add(time.Hour)}))
	require.ErrorIs(t, store.Create(ctx, domainauth.Session{ID: "2", Token: "t1"}), domainauth.ErrTokenCollision)
	require.NoError(t, store.Create(ctx, domainauth.Session{ID: "3", Token: "t2", ExpiresAt: now.Add(-time.Hour)}))

	got, err := store.FindByToken(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "1", got.ID)

	_, err = store.FindByToken(ctx, "missing")
	require.ErrorIs(t, err, domainauth.ErrNotFound)

	n, err := store.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	n, err = store.DeleteByToken(ctx, "t1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	n, err = store.DeleteByToken(ctx, "t1")
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)
	assert.Equal(t, 0, store.Len())
}
