package httpx

import (
	"log/slog"
	"net/http"
)

// RouterServices holds everything the router mounts.
type RouterServices struct {
	Auth     AuthFlow
	Sessions SessionManager

	Redirects        Redirects
	SetSessionCookie bool
	CookieDomain     string

	// Debug is nil unless debug routes are enabled.
	Debug *DebugHandlers

	Logger *slog.Logger
}

// NewRouter registers all routes. Auth and Sessions are required.
func NewRouter(services RouterServices) http.Handler {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", healthz)
	mux.HandleFunc("HEAD /healthz", healthz)

	registerAuthRoutes(mux, &AuthHandlers{
		Svc:              services.Auth,
		Sessions:         services.Sessions,
		Redirects:        services.Redirects,
		SetSessionCookie: services.SetSessionCookie,
		CookieDomain:     services.CookieDomain,
		Logger:           logger,
	})

	me := RequireSession(services.Sessions, logger)(http.HandlerFunc(meHandler))
	mux.Handle("GET /identity/me", me)
	mux.Handle("GET /api/me", me)

	if services.Debug != nil {
		registerDebugRoutes(mux, services.Debug)
	}
	return mux
}

func registerAuthRoutes(mux *http.ServeMux, h *AuthHandlers) {
	for _, prefix := range []string{"/auth/provider", "/auth/outlook"} {
		mux.HandleFunc("GET "+prefix+"/start", h.Start)
		mux.HandleFunc("GET "+prefix+"/connect", h.Connect)
		mux.HandleFunc("GET "+prefix+"/callback", h.Callback)
	}
	mux.HandleFunc("POST /auth/logout", h.Logout)
}

func registerDebugRoutes(mux *http.ServeMux, h *DebugHandlers) {
	mux.HandleFunc("GET /debug/db", h.DB)
	mux.HandleFunc("GET /debug/env", h.Env)
	mux.HandleFunc("GET /debug/frontend", h.Frontend)
	mux.HandleFunc("GET /debug/provider/me", h.ProviderMe)
	mux.HandleFunc("GET /debug/outlook/me", h.ProviderMe)
}

// Chain wraps h so that the first middleware is the outermost.
func Chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
