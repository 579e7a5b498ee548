// Package testutil provides Postgres and Redis fixtures for integration tests.
// Both are skipped unless reachable; set TEST_REQUIRE_INFRA=1 to fail instead.
package testutil

import (
	"context"
	"database/sql"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	"github.com/commandcenter/inboxauth/internal/migrate"
)

// TestingTB is the subset of testing.TB the fixtures need.
type TestingTB interface {
	Helper()
	Skip(args ...any)
	Skipf(format string, args ...any)
	Fatal(args ...any)
	Fatalf(format string, args ...any)
	Logf(format string, args ...any)
}

// tables in delete order; children before parents.
var tables = []string{"sessions", "provider_tokens", "provider_accounts", "users"}

// TestDBConfig locates the integration database.
type TestDBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

// DefaultTestDBConfig reads TEST_DB_* and falls back to the docker-compose test profile on port 55432.
func DefaultTestDBConfig() TestDBConfig {
	return TestDBConfig{
		Host:     envOr("TEST_DB_HOST", "localhost"),
		Port:     envOr("TEST_DB_PORT", "55432"),
		User:     envOr("TEST_DB_USER", "inboxauth"),
		Password: envOr("TEST_DB_PASSWORD", "inboxauth"),
		DBName:   envOr("TEST_DB_NAME", "inboxauth"),
	}
}

// DSN renders the config as a postgres URL.
func (c TestDBConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, c.Port),
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

// SkipIfNoTestDB skips t when the integration database cannot be pinged.
func SkipIfNoTestDB(t TestingTB) {
	t.Helper()
	db, err := openAndPing(2 * time.Second)
	if err != nil {
		unavailable(t, requireDB(), "test database not available: %v", err)
		return
	}
	if cerr := db.Close(); cerr != nil {
		t.Logf("test db close: %v", cerr)
	}
}

// SetupTestDB connects, migrates and empties the integration database.
func SetupTestDB(t TestingTB) *sql.DB {
	t.Helper()
	db, err := openAndPing(5 * time.Second)
	if err != nil {
		unavailable(t, requireDB(), "test database not available (docker compose --profile test up -d): %v", err)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := migrate.Run(ctx, db); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	CleanupTestDB(t, db)
	return db
}

// CleanupTestDB deletes every row the service writes.
func CleanupTestDB(t TestingTB, db *sql.DB) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, table := range tables {
		if _, err := db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			t.Fatalf("clean %s: %v", table, err)
		}
	}
}

// TeardownTestDB empties and closes db.
func TeardownTestDB(t TestingTB, db *sql.DB) {
	t.Helper()
	if db == nil {
		return
	}
	CleanupTestDB(t, db)
	if err := db.Close(); err != nil {
		t.Fatalf("close test db: %v", err)
	}
}

// WithTestDB runs fn against a freshly cleaned database.
func WithTestDB(t TestingTB, fn func(*sql.DB)) {
	t.Helper()
	db := SetupTestDB(t)
	defer TeardownTestDB(t, db)
	fn(db)
}

func openAndPing(timeout time.Duration) (*sql.DB, error) {
	db, err := sql.Open("pgx", DefaultTestDBConfig().DSN())
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// TestRedisAddr returns TEST_REDIS_ADDR, or the test profile's localhost:56379.
func TestRedisAddr() string {
	return envOr("TEST_REDIS_ADDR", "localhost:56379")
}

// SetupTestRedis returns a client on a flushed logical database (TEST_REDIS_DB, default 1).
// The client is closed by the caller.
func SetupTestRedis(t TestingTB) *redis.Client {
	t.Helper()
	dbIndex := 1
	if v := os.Getenv("TEST_REDIS_DB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			t.Fatalf("invalid TEST_REDIS_DB=%q", v)
		}
		dbIndex = n
	}

	addr := TestRedisAddr()
	client := redis.NewClient(&redis.Options{Addr: addr, DB: dbIndex})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		unavailable(t, requireRedis(), "redis not available at %s: %v", addr, err)
		return nil
	}
	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("flush redis db %d: %v", dbIndex, err)
	}
	return client
}

func unavailable(t TestingTB, required bool, format string, args ...any) {
	t.Helper()
	if required {
		t.Fatalf(format, args...)
	}
	t.Skipf(format, args...)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envBool(key string) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes", "y":
		return true
	}
	return false
}

func requireDB() bool    { return envBool("TEST_REQUIRE_DB") || envBool("TEST_REQUIRE_INFRA") }
func requireRedis() bool { return envBool("TEST_REQUIRE_REDIS") || envBool("TEST_REQUIRE_INFRA") }

// StringPtr returns a pointer to s.
func StringPtr(s string) *string { return &s }
