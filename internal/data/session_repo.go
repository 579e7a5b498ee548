package data

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/commandcenter/inboxauth/internal/data/pgxutil"
	domainauth "github.com/commandcenter/inboxauth/internal/domain/auth"
	apperrors "github.com/commandcenter/inboxauth/internal/errors"
	"github.com/commandcenter/inboxauth/internal/ports"
)

var _ ports.SessionStore = (*SessionRepo)(nil)

// SessionRepo provides database operations for first-party sessions.
type SessionRepo struct {
	DB *sql.DB
}

// NewSessionRepo creates a new SessionRepo.
func NewSessionRepo(db *sql.DB) *SessionRepo {
	return &SessionRepo{DB: db}
}

// Create inserts sess. A duplicate token yields ErrTokenCollision.
func (r *SessionRepo) Create(ctx context.Context, sess domainauth.Session) error {
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		_, err := conn.Exec(ctx, `
			INSERT INTO sessions (id, user_id, token, expires_at, created_at)
			VALUES ($1, $2, $3, $4, $5)
		`, sess.ID, sess.UserID, sess.Token, sess.ExpiresAt.UTC(), sess.CreatedAt.UTC())
		return err
	})
	if err == nil {
		return nil
	}
	if mapped := apperrors.MapDBError(err); apperrors.HasCode(mapped, apperrors.ErrCodeConflict) &&
		apperrors.FieldOf(mapped) == "token" {
		return domainauth.ErrTokenCollision
	}
	return storeError("create session", err)
}

// FindByToken returns the session carrying token, expired or not.
func (r *SessionRepo) FindByToken(ctx context.Context, token string) (domainauth.Session, error) {
	if token == "" {
		return domainauth.Session{}, domainauth.ErrNotFound
	}
	var sess domainauth.Session
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			SELECT id, user_id, token, expires_at, created_at
			FROM sessions WHERE token = $1
		`, token)
		if err != nil {
			return err
		}
		sess, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[domainauth.Session])
		return err
	})
	if err != nil {
		return domainauth.Session{}, storeError("find session", err)
	}
	return sess, nil
}

// DeleteByToken removes every session carrying token.
func (r *SessionRepo) DeleteByToken(ctx context.Context, token string) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM sessions WHERE token = $1`, token)
	if err != nil {
		return 0, storeError("delete session", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete session rows affected: %w", err)
	}
	return n, nil
}

// DeleteExpired removes sessions that expired at or before the cutoff.
func (r *SessionRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, before.UTC())
	if err != nil {
		return 0, storeError("delete expired sessions", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions rows affected: %w", err)
	}
	return n, nil
}
