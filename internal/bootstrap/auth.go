package bootstrap

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/commandcenter/inboxauth/config"
	"github.com/commandcenter/inboxauth/internal/adapters/devauth"
	"github.com/commandcenter/inboxauth/internal/adapters/msidentity"
	redisadapter "github.com/commandcenter/inboxauth/internal/adapters/redis"
	"github.com/commandcenter/inboxauth/internal/data"
	"github.com/commandcenter/inboxauth/internal/data/cryptoutil"
	"github.com/commandcenter/inboxauth/internal/observability/statsd"
	"github.com/commandcenter/inboxauth/internal/ports"
	"github.com/commandcenter/inboxauth/internal/service"
)

// AuthDeps groups what BuildAuth needs. Redis is only required for SESSION_STORE=redis.
type AuthDeps struct {
	Config    *config.AppConfig
	DB        *sql.DB
	Redis     redis.UniversalClient
	Encryptor cryptoutil.Encryptor
	Metrics   statsd.Sink
	Logger    *slog.Logger
}

// AuthComponents are the wired sign-in and session services.
type AuthComponents struct {
	Auth     *service.AuthService
	Sessions *service.SessionService
	Accounts *data.AccountRepo
}

// BuildAuth wires the identity provider, stores, and services for the configured mode.
func BuildAuth(deps AuthDeps) (*AuthComponents, error) {
	if deps.Config == nil {
		return nil, errors.New("config is required")
	}
	if deps.DB == nil {
		return nil, errors.New("database is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := deps.Config

	exchanger, resolver, err := buildIdentityProvider(cfg, logger)
	if err != nil {
		return nil, err
	}

	sessionStore, err := BuildSessionStore(cfg.Session, deps.DB, deps.Redis)
	if err != nil {
		return nil, err
	}

	enc := deps.Encryptor
	if enc == nil {
		enc = CreateEncryptor(cfg.TokenEncryptionKey, logger)
	}
	accounts := data.NewAccountRepo(deps.DB, data.AccountRepoOptions{Encryptor: enc})

	sessions, err := service.NewSessionService(service.SessionServiceOptions{
		Store:   sessionStore,
		Users:   accounts,
		TTL:     cfg.Session.TTL,
		Metrics: deps.Metrics,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("session service: %w", err)
	}

	authSvc, err := service.NewAuthService(service.AuthServiceOptions{
		Exchanger: exchanger,
		Resolver:  resolver,
		Accounts:  accounts,
		Sessions:  sessions,
		Tenant:    cfg.Provider.Tenant,
		Scopes:    cfg.Provider.Scopes,
		Fallback:  service.IdentityFallback(cfg.Auth.IdentityFallback),
		Metrics:   deps.Metrics,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("auth service: %w", err)
	}

	logger.Info("auth configured",
		"mode", cfg.Auth.Mode,
		"tenant", cfg.Provider.Tenant,
		"session_store", cfg.Session.Store,
		"identity_fallback", cfg.Auth.IdentityFallback,
	)
	return &AuthComponents{Auth: authSvc, Sessions: sessions, Accounts: accounts}, nil
}

//nolint:ireturn // mode decides the concrete provider.
func buildIdentityProvider(cfg *config.AppConfig, logger *slog.Logger) (ports.TokenExchanger, ports.IdentityResolver, error) {
	switch cfg.Auth.Mode {
	case config.AuthModeMock:
		prov, err := devauth.NewProvider(devauth.Config{
			Email:       cfg.Auth.DevAuth.Email,
			DisplayName: cfg.Auth.DevAuth.DisplayName,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("dev auth provider: %w", err)
		}
		logger.Warn("mock auth enabled; every callback signs in as the dev identity", "email", cfg.Auth.DevAuth.Email)
		return prov, prov, nil

	case config.AuthModeOAuth, "":
		p := cfg.Provider
		msCfg := msidentity.Config{
			ClientID:      p.ClientID,
			ClientSecret:  p.ClientSecret,
			RedirectURI:   p.RedirectURI,
			Tenant:        p.Tenant,
			AuthorityURL:  p.AuthorityURL,
			GraphURL:      p.GraphURL,
			Scopes:        p.Scopes,
			Timeout:       p.HTTPTimeout,
			VerifyIDToken: p.VerifyIDToken,
			JWKSURL:       p.JWKSURL,
			Logger:        logger,
		}
		exchanger, err := msidentity.NewExchanger(msCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("identity provider: %w", err)
		}
		return exchanger, msidentity.NewResolver(msCfg), nil

	default:
		return nil, nil, fmt.Errorf("unsupported auth mode %q", cfg.Auth.Mode)
	}
}

// BuildSessionStore returns the configured session backend.
//
//nolint:ireturn // store kind decides the concrete adapter.
func BuildSessionStore(cfg config.SessionConfig, db *sql.DB, rdb redis.UniversalClient) (ports.SessionStore, error) {
	switch cfg.Store {
	case config.SessionStoreRedis:
		if rdb == nil {
			return nil, errors.New("SESSION_STORE=redis requires a redis client")
		}
		grace := cfg.RedisGrace
		if grace == 0 {
			// Zero means no grace window; the adapter treats negative as disabled.
			grace = -1
		}
		return redisadapter.NewSessionStoreWithOptions(rdb, redisadapter.SessionStoreOptions{Grace: grace}), nil
	case config.SessionStorePostgres, "":
		return data.NewSessionRepo(db), nil
	default:
		return nil, fmt.Errorf("unsupported session store %q", cfg.Store)
	}
}
