package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	domainauth "github.com/commandcenter/inboxauth/internal/domain/auth"
	"github.com/commandcenter/inboxauth/internal/observability/metrics"
	"github.com/commandcenter/inboxauth/internal/observability/statsd"
	"github.com/commandcenter/inboxauth/internal/ports"
)

const (
	sessionTokenBytes = 32
	// issueAttempts bounds retries on a token collision, which 256 random bits make practically unreachable.
	issueAttempts = 3
)

// SessionServiceOptions groups dependencies for SessionService.
type SessionServiceOptions struct {
	Store   ports.SessionStore     // Required
	Users   ports.UserDirectory    // Required: resolves the principal's email
	TTL     time.Duration          // Optional: defaults to domainauth.SessionLifetime
	Clock   func() time.Time       // Optional: defaults to time.Now
	Token   func() (string, error) // Optional: session token generator
	Metrics statsd.Sink            // Optional
	Logger  *slog.Logger           // Optional
}

// SessionService issues, validates and revokes first-party sessions.
type SessionService struct {
	store   ports.SessionStore
	users   ports.UserDirectory
	ttl     time.Duration
	now     func() time.Time
	token   func() (string, error)
	metrics statsd.Sink
	logger  *slog.Logger
}

// NewSessionService constructs a SessionService.
func NewSessionService(opts SessionServiceOptions) (*SessionService, error) {
	if opts.Store == nil {
		return nil, errors.New("session store is required")
	}
	if opts.Users == nil {
		return nil, errors.New("user directory is required")
	}
	svc := &SessionService{
		store:   opts.Store,
		users:   opts.Users,
		ttl:     opts.TTL,
		now:     opts.Clock,
		token:   opts.Token,
		metrics: opts.Metrics,
		logger:  opts.Logger,
	}
	if svc.ttl <= 0 {
		svc.ttl = domainauth.SessionLifetime
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	if svc.token == nil {
		svc.token = NewSessionToken
	}
	if svc.logger == nil {
		svc.logger = slog.Default()
	}
	svc.logger = svc.logger.With("component", "session_service")
	return svc, nil
}

// NewSessionToken returns 32 bytes from crypto/rand, base64url encoded without padding.
func NewSessionToken() (string, error) {
	b := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// TTL reports the lifetime given to new sessions.
func (s *SessionService) TTL() time.Duration { return s.ttl }

// Issue creates a session for userID that expires after the configured TTL.
func (s *SessionService) Issue(ctx context.Context, userID string) (domainauth.Session, error) {
	if userID == "" {
		return domainauth.Session{}, errors.New("user id is required")
	}
	for attempt := 1; ; attempt++ {
		tok, err := s.token()
		if err != nil {
			return domainauth.Session{}, fmt.Errorf("generate session token: %w", err)
		}
		now := s.now().UTC()
		sess := domainauth.Session{
			ID:        uuid.NewString(),
			UserID:    userID,
			Token:     tok,
			ExpiresAt: now.Add(s.ttl),
			CreatedAt: now,
		}
		err = s.store.Create(ctx, sess)
		if err == nil {
			return sess, nil
		}
		if !errors.Is(err, domainauth.ErrTokenCollision) || attempt == issueAttempts {
			return domainauth.Session{}, persistenceError("create session", err)
		}
		s.logger.WarnContext(ctx, "session token collision, retrying", "attempt", attempt)
	}
}

// Validate resolves a presented session token to its principal.
func (s *SessionService) Validate(ctx context.Context, token string) (p domainauth.Principal, err error) {
	defer func() { metrics.EmitSessionValidate(s.metrics, err) }()

	if token == "" {
		return domainauth.Principal{}, domainauth.ErrMissingToken
	}
	sess, err := s.store.FindByToken(ctx, token)
	if errors.Is(err, domainauth.ErrNotFound) {
		return domainauth.Principal{}, domainauth.ErrInvalidSession
	}
	if err != nil {
		return domainauth.Principal{}, persistenceError("find session", err)
	}
	if sess.Expired(s.now()) {
		return domainauth.Principal{}, domainauth.ErrSessionExpired
	}

	email, err := s.users.EmailForUser(ctx, sess.UserID)
	if errors.Is(err, domainauth.ErrNotFound) {
		return domainauth.Principal{}, domainauth.ErrInvalidSession
	}
	if err != nil {
		return domainauth.Principal{}, persistenceError("load session user", err)
	}
	return domainauth.Principal{
		UserID:    sess.UserID,
		Email:     email,
		SessionID: sess.ID,
		ExpiresAt: sess.ExpiresAt,
	}, nil
}

// Revoke deletes every session carrying token. Unknown and empty tokens are a no-op.
func (s *SessionService) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	n, err := s.store.DeleteByToken(ctx, token)
	if err != nil {
		return persistenceError("delete session", err)
	}
	s.logger.DebugContext(ctx, "sessions revoked", "count", n)
	return nil
}

// PurgeExpired removes sessions whose expiry has passed and returns how many were removed.
func (s *SessionService) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := s.store.DeleteExpired(ctx, s.now().UTC())
	if err != nil {
		return 0, persistenceError("purge expired sessions", err)
	}
	return n, nil
}

// persistenceError tags err with ErrPersistenceFailed unless a store already did.
func persistenceError(op string, err error) error {
	if errors.Is(err, domainauth.ErrPersistenceFailed) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, domainauth.ErrPersistenceFailed, err)
}
