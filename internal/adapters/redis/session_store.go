package redis

// Package redis provides Redis-based adapters for session storage.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	domainauth "github.com/commandcenter/inboxauth/internal/domain/auth"
	"github.com/commandcenter/inboxauth/internal/ports"
)

// DefaultGrace keeps expired sessions readable long enough to report them as expired
// rather than unknown.
const DefaultGrace = 24 * time.Hour

var _ ports.SessionStore = (*SessionStore)(nil)

// SessionStore is a Redis-based session store keyed by session token.
// Keys live for the session's remaining lifetime plus a grace window.
type SessionStore struct {
	client redis.UniversalClient
	prefix string
	grace  time.Duration
}

// SessionStoreOptions configures a SessionStore.
type SessionStoreOptions struct {
	Prefix string        // default "session:"
	Grace  time.Duration // default DefaultGrace; negative disables the grace window
}

// NewSessionStore creates a new Redis-based session store with default options.
func NewSessionStore(client redis.UniversalClient) *SessionStore {
	return NewSessionStoreWithOptions(client, SessionStoreOptions{})
}

// NewSessionStoreWithOptions creates a Redis session store with a custom key prefix and grace window.
func NewSessionStoreWithOptions(client redis.UniversalClient, opts SessionStoreOptions) *SessionStore {
	prefix := opts.Prefix
	if prefix == "" {
		prefix = "session:"
	}
	grace := opts.Grace
	switch {
	case grace == 0:
		grace = DefaultGrace
	case grace < 0:
		grace = 0
	}
	return &SessionStore{client: client, prefix: prefix, grace: grace}
}

func (s *SessionStore) key(token string) string { return s.prefix + token }

// lifetime is measured from the session's own CreatedAt so the issuer's clock decides expiry.
// Sessions without a creation time fall back to the wall clock.
func lifetime(sess domainauth.Session) time.Duration {
	if sess.CreatedAt.IsZero() {
		return time.Until(sess.ExpiresAt)
	}
	return sess.ExpiresAt.Sub(sess.CreatedAt)
}

// Create stores sess under its token; it fails with ErrTokenCollision when the key exists.
func (s *SessionStore) Create(ctx context.Context, sess domainauth.Session) error {
	if sess.Token == "" {
		return errors.New("session token cannot be empty")
	}
	ttl := lifetime(sess)
	if ttl <= 0 {
		return errors.New("session is expired")
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	ok, err := s.client.SetNX(ctx, s.key(sess.Token), data, ttl+s.grace).Result()
	if err != nil {
		return fmt.Errorf("redis setnx: %w", err)
	}
	if !ok {
		return domainauth.ErrTokenCollision
	}
	return nil
}

// FindByToken returns the stored session even when it has expired; expiry is judged by the caller.
func (s *SessionStore) FindByToken(ctx context.Context, token string) (domainauth.Session, error) {
	if token == "" {
		return domainauth.Session{}, domainauth.ErrNotFound
	}

	data, err := s.client.Get(ctx, s.key(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domainauth.Session{}, domainauth.ErrNotFound
		}
		return domainauth.Session{}, fmt.Errorf("redis get: %w", err)
	}

	var sess domainauth.Session
	if unmarshalErr := json.Unmarshal(data, &sess); unmarshalErr != nil {
		return domainauth.Session{}, fmt.Errorf("unmarshal session: %w", unmarshalErr)
	}
	return sess, nil
}

// DeleteByToken removes the session key and reports whether it existed.
func (s *SessionStore) DeleteByToken(ctx context.Context, token string) (int64, error) {
	if token == "" {
		return 0, nil
	}
	n, err := s.client.Del(ctx, s.key(token)).Result()
	if err != nil {
		return 0, fmt.Errorf("redis del: %w", err)
	}
	return n, nil
}

// DeleteExpired is a no-op: Redis evicts keys once their TTL lapses.
func (s *SessionStore) DeleteExpired(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}
