package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/commandcenter/inboxauth/config"
	"github.com/commandcenter/inboxauth/internal/bootstrap"
)

// loadConfig reads the environment like the server does, minus the OAuth client checks:
// admin commands only touch the stores.
func loadConfig() (config.AppConfig, error) {
	if err := bootstrap.LoadDotEnv(); err != nil {
		return config.AppConfig{}, err
	}
	return bootstrap.ParseEnv()
}

type infra struct {
	DB    *sql.DB
	Redis redis.UniversalClient
}

// Close releases every connection that was opened.
func (i *infra) Close() error {
	var closeErr error
	if i.DB != nil {
		if err := i.DB.Close(); err != nil {
			closeErr = errors.Join(closeErr, fmt.Errorf("close db: %w", err))
		}
	}
	if i.Redis != nil {
		if err := i.Redis.Close(); err != nil {
			closeErr = errors.Join(closeErr, fmt.Errorf("close redis: %w", err))
		}
	}
	return closeErr
}

// wantsRedis reports whether sessions live in Redis.
func wantsRedis(cfg *config.AppConfig) bool {
	return cfg.Session.Store == config.SessionStoreRedis
}

func connectDB(ctx context.Context, cmdCtx *commandContext) (*sql.DB, error) {
	db, err := bootstrap.ConnectDB(ctx, cmdCtx.Config.Postgres, cmdCtx.Logger)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	return db, nil
}

func closeDB(cmdCtx *commandContext, db *sql.DB) {
	if closeErr := db.Close(); closeErr != nil {
		cmdCtx.Logger.Warn("db close failed", "error", closeErr)
	}
}

// connectInfra opens Postgres and, when the session store needs it, Redis.
func connectInfra(ctx context.Context, cmdCtx *commandContext) (*infra, error) {
	db, err := connectDB(ctx, cmdCtx)
	if err != nil {
		return nil, err
	}
	out := &infra{DB: db}
	if !wantsRedis(&cmdCtx.Config) {
		return out, nil
	}

	client, err := bootstrap.ConnectRedis(ctx, cmdCtx.Config.Redis, cmdCtx.Logger)
	if err != nil {
		if closeErr := out.Close(); closeErr != nil {
			err = errors.Join(err, closeErr)
		}
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	out.Redis = client
	return out, nil
}
