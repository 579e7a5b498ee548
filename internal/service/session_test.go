package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	domainauth "github.com/commandcenter/inboxauth/internal/domain/auth"
	"github.com/commandcenter/inboxauth/internal/mocks"
	authmocks "github.com/commandcenter/inboxauth/internal/mocks/auth"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type sessionFixture struct {
	svc      *SessionService
	store    *authmocks.MemorySessionStore
	accounts *authmocks.MemoryAccountStore
	now      time.Time
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()
	f := &sessionFixture{
		store:    authmocks.NewMemorySessionStore(),
		accounts: authmocks.NewMemoryAccountStore(),
		now:      testNow,
	}
	svc, err := NewSessionService(SessionServiceOptions{
		Store: f.store,
		Users: f.accounts,
		Clock: func() time.Time { return f.now },
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func (f *sessionFixture) userID(t *testing.T, email string) string {
	t.Helper()
	res, err := f.accounts.UpsertIdentity(context.Background(), email, nil)
	require.NoError(t, err)
	return res.UserID
}

func TestNewSessionService_RequiresDependencies(t *testing.T) {
	_, err := NewSessionService(SessionServiceOptions{Users: authmocks.NewMemoryAccountStore()})
	require.Error(t, err)
	_, err = NewSessionService(SessionServiceOptions{Store: authmocks.NewMemorySessionStore()})
	require.Error(t, err)

	svc, err := NewSessionService(SessionServiceOptions{
		Store: authmocks.NewMemorySessionStore(),
		Users: authmocks.NewMemoryAccountStore(),
	})
	require.NoError(t, err)
	assert.Equal(t, domainauth.SessionLifetime, svc.TTL())
}

func TestNewSessionToken(t *testing.T) {
	a, err := NewSessionToken()
	require.NoError(t, err)
	b, err := NewSessionToken()
	require.NoError(t, err)

	assert.Len(t, a, 43)
	assert.NotEqual(t, a, b)
	assert.NotContains(t, a, "=")
}

func TestSessionService_Issue(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	sess, err := f.svc.Issue(ctx, "user-1")
	require.NoError(t, err)

	assert.Equal(t, "user-1", sess.UserID)
	assert.NotEmpty(t, sess.ID)
	assert.Len(t, sess.Token, 43)
	assert.Equal(t, testNow, sess.CreatedAt)
	assert.Equal(t, testNow.Add(7*24*time.Hour), sess.ExpiresAt)
	assert.True(t, sess.ExpiresAt.After(sess.CreatedAt))

	stored, err := f.store.FindByToken(ctx, sess.Token)
	require.NoError(t, err)
	assert.Equal(t, sess, stored)
}

func TestSessionService_Issue_RequiresUser(t *testing.T) {
	f := newSessionFixture(t)
	_, err := f.svc.Issue(context.Background(), "")
	require.Error(t, err)
	assert.Equal(t, 0, f.store.Len())
}

func TestSessionService_Issue_RetriesOnCollision(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.Create(ctx, domainauth.Session{ID: "old", Token: "taken", ExpiresAt: testNow.Add(time.Hour)}))

	tokens := []string{"taken", "fresh"}
	f.svc.token = func() (string, error) {
		tok := tokens[0]
		tokens = tokens[1:]
		return tok, nil
	}

	sess, err := f.svc.Issue(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "fresh", sess.Token)
	assert.Equal(t, 2, f.store.Len())
}

func TestSessionService_Issue_GivesUpAfterRepeatedCollisions(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockSessionStore(ctrl)
	store.EXPECT().Create(gomock.Any(), gomock.Any()).Return(domainauth.ErrTokenCollision).Times(issueAttempts)

	svc, err := NewSessionService(SessionServiceOptions{Store: store, Users: mocks.NewMockUserDirectory(ctrl)})
	require.NoError(t, err)

	_, err = svc.Issue(context.Background(), "user-1")
	require.ErrorIs(t, err, domainauth.ErrPersistenceFailed)
	require.ErrorIs(t, err, domainauth.ErrTokenCollision)
}

func TestSessionService_Validate(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	uid := f.userID(t, "ada@example.com")

	sess, err := f.svc.Issue(ctx, uid)
	require.NoError(t, err)

	t.Run("valid", func(t *testing.T) {
		p, err := f.svc.Validate(ctx, sess.Token)
		require.NoError(t, err)
		assert.Equal(t, uid, p.UserID)
		assert.Equal(t, "ada@example.com", p.Email)
		assert.Equal(t, sess.ID, p.SessionID)
		assert.Equal(t, sess.ExpiresAt, p.ExpiresAt)
	})

	t.Run("missing token", func(t *testing.T) {
		_, err := f.svc.Validate(ctx, "")
		require.ErrorIs(t, err, domainauth.ErrMissingToken)
	})

	t.Run("unknown token", func(t *testing.T) {
		_, err := f.svc.Validate(ctx, "nope")
		require.ErrorIs(t, err, domainauth.ErrInvalidSession)
	})
}

func TestSessionService_Validate_ExpiresAtBoundary(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	sess, err := f.svc.Issue(ctx, f.userID(t, "ada@example.com"))
	require.NoError(t, err)

	f.now = sess.ExpiresAt.Add(-time.Nanosecond)
	_, err = f.svc.Validate(ctx, sess.Token)
	require.NoError(t, err)

	f.now = sess.ExpiresAt
	_, err = f.svc.Validate(ctx, sess.Token)
	require.ErrorIs(t, err, domainauth.ErrSessionExpired)
}

func TestSessionService_Validate_UnknownUserIsInvalid(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	sess, err := f.svc.Issue(ctx, "ghost")
	require.NoError(t, err)

	_, err = f.svc.Validate(ctx, sess.Token)
	require.ErrorIs(t, err, domainauth.ErrInvalidSession)
}

func TestSessionService_Validate_StoreFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockSessionStore(ctrl)
	store.EXPECT().FindByToken(gomock.Any(), "tok").Return(domainauth.Session{}, errors.New("connection reset"))

	svc, err := NewSessionService(SessionServiceOptions{Store: store, Users: mocks.NewMockUserDirectory(ctrl)})
	require.NoError(t, err)

	_, err = svc.Validate(context.Background(), "tok")
	require.ErrorIs(t, err, domainauth.ErrPersistenceFailed)
	assert.Equal(t, domainauth.CategoryPersistence, domainauth.Classify(err))
}

func TestSessionService_Revoke(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	uid := f.userID(t, "ada@example.com")

	keep, err := f.svc.Issue(ctx, uid)
	require.NoError(t, err)
	drop, err := f.svc.Issue(ctx, uid)
	require.NoError(t, err)

	require.NoError(t, f.svc.Revoke(ctx, drop.Token))
	_, err = f.svc.Validate(ctx, drop.Token)
	require.ErrorIs(t, err, domainauth.ErrInvalidSession)

	_, err = f.svc.Validate(ctx, keep.Token)
	require.NoError(t, err)

	require.NoError(t, f.svc.Revoke(ctx, drop.Token))
	require.NoError(t, f.svc.Revoke(ctx, "never-issued"))
}

func TestSessionService_Revoke_EmptyTokenSkipsStore(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc, err := NewSessionService(SessionServiceOptions{
		Store: mocks.NewMockSessionStore(ctrl),
		Users: mocks.NewMockUserDirectory(ctrl),
	})
	require.NoError(t, err)
	require.NoError(t, svc.Revoke(context.Background(), ""))
}

func TestSessionService_PurgeExpired(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	old, err := f.svc.Issue(ctx, "u1")
	require.NoError(t, err)
	f.now = testNow.Add(8 * 24 * time.Hour)
	fresh, err := f.svc.Issue(ctx, "u1")
	require.NoError(t, err)

	n, err := f.svc.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = f.store.FindByToken(ctx, old.Token)
	require.ErrorIs(t, err, domainauth.ErrNotFound)
	_, err = f.store.FindByToken(ctx, fresh.Token)
	require.NoError(t, err)
}
