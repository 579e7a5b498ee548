package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/commandcenter/inboxauth/internal/data/cryptoutil"
	"github.com/commandcenter/inboxauth/internal/data/pgxutil"
	domainauth "github.com/commandcenter/inboxauth/internal/domain/auth"
	"github.com/commandcenter/inboxauth/internal/ports"
)

var (
	_ ports.AccountStore  = (*AccountRepo)(nil)
	_ ports.UserDirectory = (*AccountRepo)(nil)
)

// querier is satisfied by both *pgx.Conn and pgx.Tx.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// AccountRepo persists users, provider accounts, and provider tokens.
// Token secrets are sealed with the configured Encryptor, bound to their account id.
type AccountRepo struct {
	DB  *sql.DB
	enc cryptoutil.Encryptor
	now func() time.Time
}

// AccountRepoOptions configures an AccountRepo.
type AccountRepoOptions struct {
	Encryptor cryptoutil.Encryptor // default NoopEncryptor
	Clock     func() time.Time     // default time.Now
}

// NewAccountRepo creates a new AccountRepo.
func NewAccountRepo(db *sql.DB, opts AccountRepoOptions) *AccountRepo {
	enc := opts.Encryptor
	if enc == nil {
		enc = cryptoutil.NoopEncryptor{}
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	return &AccountRepo{DB: db, enc: enc, now: clock}
}

// tokenRow mirrors provider_tokens with sealed secrets.
type tokenRow struct {
	ID           string    `db:"id"`
	AccountID    string    `db:"account_id"`
	AccessToken  string    `db:"access_token"`
	RefreshToken string    `db:"refresh_token"`
	ExpiresAt    time.Time `db:"expires_at"`
	Scope        string    `db:"scope"`
	UpdatedAt    time.Time `db:"updated_at"`
}

const tokenColumns = `id, account_id, access_token, refresh_token, expires_at, scope, updated_at`

// UpsertIdentity creates or refreshes the User and ProviderAccount for email.
func (r *AccountRepo) UpsertIdentity(ctx context.Context, email string, tenantID *string) (domainauth.LoginResult, error) {
	if email == "" {
		return domainauth.LoginResult{}, errors.New("email is required")
	}
	var res domainauth.LoginResult
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		var err error
		res, err = r.upsertIdentity(ctx, conn, email, tenantID)
		return err
	})
	if err != nil {
		return domainauth.LoginResult{}, storeError("upsert identity", err)
	}
	return res, nil
}

// UpsertToken replaces the full token record for tok.AccountID.
func (r *AccountRepo) UpsertToken(ctx context.Context, tok domainauth.ProviderToken) error {
	if tok.AccountID == "" {
		return errors.New("account id is required")
	}
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		return r.upsertToken(ctx, conn, tok)
	})
	if err != nil {
		return storeError("upsert token", err)
	}
	return nil
}

// RecordLogin writes identity and token in a single transaction.
func (r *AccountRepo) RecordLogin(ctx context.Context, rec domainauth.LoginRecord) (domainauth.LoginResult, error) {
	if rec.Email == "" {
		return domainauth.LoginResult{}, errors.New("email is required")
	}
	var res domainauth.LoginResult
	err := pgxutil.WithPgxTx(ctx, r.DB, func(tx pgx.Tx) error {
		var err error
		if res, err = r.upsertIdentity(ctx, tx, rec.Email, rec.TenantID); err != nil {
			return err
		}
		tok := rec.Token
		tok.AccountID = res.AccountID
		return r.upsertToken(ctx, tx, tok)
	})
	if err != nil {
		return domainauth.LoginResult{}, storeError("record login", err)
	}
	return res, nil
}

func (r *AccountRepo) upsertIdentity(ctx context.Context, q querier, email string, tenantID *string) (domainauth.LoginResult, error) {
	now := r.now().UTC()
	var res domainauth.LoginResult

	// The no-op DO UPDATE makes RETURNING yield the existing row on conflict.
	if err := q.QueryRow(ctx, `
		INSERT INTO users (id, email, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (email) DO UPDATE SET email = EXCLUDED.email
		RETURNING id
	`, uuid.NewString(), email, now).Scan(&res.UserID); err != nil {
		return res, fmt.Errorf("upsert user: %w", err)
	}

	if err := q.QueryRow(ctx, `
		INSERT INTO provider_accounts (id, owner_email, tenant_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (owner_email) DO UPDATE
		SET tenant_id  = COALESCE(EXCLUDED.tenant_id, provider_accounts.tenant_id),
		    updated_at = EXCLUDED.updated_at
		RETURNING id
	`, uuid.NewString(), email, tenantID, now).Scan(&res.AccountID); err != nil {
		return res, fmt.Errorf("upsert provider account: %w", err)
	}
	return res, nil
}

func (r *AccountRepo) upsertToken(ctx context.Context, q querier, tok domainauth.ProviderToken) error {
	aad := []byte(tok.AccountID)
	access, err := r.enc.Encrypt([]byte(tok.AccessToken), aad)
	if err != nil {
		return fmt.Errorf("seal access token: %w", err)
	}
	refresh, err := r.enc.Encrypt([]byte(tok.RefreshToken), aad)
	if err != nil {
		return fmt.Errorf("seal refresh token: %w", err)
	}

	_, err = q.Exec(ctx, `
		INSERT INTO provider_tokens (id, account_id, access_token, refresh_token, expires_at, scope, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (account_id) DO UPDATE
		SET access_token  = EXCLUDED.access_token,
		    refresh_token = EXCLUDED.refresh_token,
		    expires_at    = EXCLUDED.expires_at,
		    scope         = EXCLUDED.scope,
		    updated_at    = EXCLUDED.updated_at
	`, uuid.NewString(), tok.AccountID, access, refresh, tok.ExpiresAt.UTC(), tok.Scope, r.now().UTC())
	if err != nil {
		return fmt.Errorf("upsert provider token: %w", err)
	}
	return nil
}

// UpdateAccountEmail re-keys an account after an out-of-band identity refresh. Empty and placeholder
// addresses are ignored so a failed lookup never overwrites a known identity.
func (r *AccountRepo) UpdateAccountEmail(ctx context.Context, accountID, email string) error {
	if email == "" || email == domainauth.PlaceholderEmail {
		return nil
	}
	now := r.now().UTC()
	err := pgxutil.WithPgxTx(ctx, r.DB, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE provider_accounts SET owner_email = $2, updated_at = $3 WHERE id = $1
		`, accountID, email, now)
		if err != nil {
			return fmt.Errorf("update provider account: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return pgx.ErrNoRows
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO users (id, email, created_at) VALUES ($1, $2, $3)
			ON CONFLICT (email) DO NOTHING
		`, uuid.NewString(), email, now); err != nil {
			return fmt.Errorf("ensure user: %w", err)
		}
		return nil
	})
	if err != nil {
		return storeError("update account email", err)
	}
	return nil
}

// GetToken returns the decrypted token stored for accountID.
func (r *AccountRepo) GetToken(ctx context.Context, accountID string) (domainauth.ProviderToken, error) {
	return r.queryToken(ctx, "get token",
		`SELECT `+tokenColumns+` FROM provider_tokens WHERE account_id = $1`, accountID)
}

// LatestToken returns the most recently written token across all accounts.
func (r *AccountRepo) LatestToken(ctx context.Context) (domainauth.ProviderToken, error) {
	tok, err := r.queryToken(ctx, "latest token",
		`SELECT `+tokenColumns+` FROM provider_tokens ORDER BY updated_at DESC LIMIT 1`)
	if errors.Is(err, domainauth.ErrNotFound) {
		return domainauth.ProviderToken{}, domainauth.ErrNoStoredToken
	}
	return tok, err
}

func (r *AccountRepo) queryToken(ctx context.Context, op, query string, args ...any) (domainauth.ProviderToken, error) {
	var row tokenRow
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		row, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[tokenRow])
		return err
	})
	if err != nil {
		return domainauth.ProviderToken{}, storeError(op, err)
	}
	return r.openToken(row)
}

func (r *AccountRepo) openToken(row tokenRow) (domainauth.ProviderToken, error) {
	aad := []byte(row.AccountID)
	access, err := r.enc.Decrypt(row.AccessToken, aad)
	if err != nil {
		return domainauth.ProviderToken{}, fmt.Errorf("%w: open access token: %w", domainauth.ErrPersistenceFailed, err)
	}
	refresh, err := r.enc.Decrypt(row.RefreshToken, aad)
	if err != nil {
		return domainauth.ProviderToken{}, fmt.Errorf("%w: open refresh token: %w", domainauth.ErrPersistenceFailed, err)
	}
	return domainauth.ProviderToken{
		ID:           row.ID,
		AccountID:    row.AccountID,
		AccessToken:  string(access),
		RefreshToken: string(refresh),
		ExpiresAt:    row.ExpiresAt,
		Scope:        row.Scope,
		UpdatedAt:    row.UpdatedAt,
	}, nil
}

// CountAccounts returns the number of provider accounts.
func (r *AccountRepo) CountAccounts(ctx context.Context) (int64, error) {
	var n int64
	if err := r.DB.QueryRowContext(ctx, `SELECT count(*) FROM provider_accounts`).Scan(&n); err != nil {
		return 0, storeError("count accounts", err)
	}
	return n, nil
}

// GetAccount returns the provider account for email.
func (r *AccountRepo) GetAccount(ctx context.Context, email string) (domainauth.ProviderAccount, error) {
	var acct domainauth.ProviderAccount
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			SELECT id, owner_email, tenant_id, created_at, updated_at
			FROM provider_accounts WHERE owner_email = $1
		`, email)
		if err != nil {
			return err
		}
		acct, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[domainauth.ProviderAccount])
		return err
	})
	if err != nil {
		return domainauth.ProviderAccount{}, storeError("get account", err)
	}
	return acct, nil
}

// EmailForUser returns the email of userID.
func (r *AccountRepo) EmailForUser(ctx context.Context, userID string) (string, error) {
	var email string
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		return conn.QueryRow(ctx, `SELECT email FROM users WHERE id = $1`, userID).Scan(&email)
	})
	if err != nil {
		return "", storeError("email for user", err)
	}
	return email, nil
}
