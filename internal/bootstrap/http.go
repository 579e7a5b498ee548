package bootstrap

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/commandcenter/inboxauth/config"
	httpx "github.com/commandcenter/inboxauth/internal/http"
)

// HTTPDeps contains what the HTTP surface is built from.
type HTTPDeps struct {
	Config *config.AppConfig
	Auth   *AuthComponents
	Logger *slog.Logger
}

// BuildHTTPHandler mounts the router behind Recover -> Logging -> CORS.
func BuildHTTPHandler(deps HTTPDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := deps.Config
	if cfg == nil {
		cfg = &config.AppConfig{}
	}

	services := httpx.RouterServices{
		Auth:     deps.Auth.Auth,
		Sessions: deps.Auth.Sessions,
		Redirects: httpx.Redirects{
			FrontendURL: cfg.HTTP.FrontendURL,
			ConnectPath: cfg.HTTP.ConnectLandingPath,
			LoginPath:   cfg.HTTP.LoginLandingPath,
		},
		SetSessionCookie: cfg.Auth.SetSessionCookie,
		CookieDomain:     cfg.HTTP.CookieDomain,
		Logger:           logger,
	}
	if cfg.HTTP.DebugRoutesEnabled {
		logger.Warn("debug routes enabled")
		services.Debug = &httpx.DebugHandlers{
			Svc:         deps.Auth.Auth,
			FrontendURL: cfg.HTTP.FrontendURL,
			RedirectURI: cfg.Provider.RedirectURI,
			Logger:      logger,
		}
	}

	return httpx.Chain(httpx.NewRouter(services),
		httpx.Recover(logger),
		httpx.Logging(logger),
		httpx.CORS(),
	)
}

// NewHTTPServer returns a server for handler. It is not started.
func NewHTTPServer(addr string, handler http.Handler) *http.Server {
	if addr == "" {
		addr = ":3005"
	}
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

const shutdownTimeout = 10 * time.Second

// ShutdownHTTPServer drains in-flight requests.
func ShutdownHTTPServer(ctx context.Context, server *http.Server, logger *slog.Logger) error {
	if server == nil {
		return nil
	}
	if logger != nil {
		logger.Info("shutting down HTTP server")
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if logger != nil {
		logger.Info("HTTP server stopped")
	}
	return nil
}
