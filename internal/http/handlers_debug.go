package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	domainauth "github.com/commandcenter/inboxauth/internal/domain/auth"
	"github.com/commandcenter/inboxauth/internal/service"
)

// DebugService backs the operator-only debug endpoints. *service.AuthService satisfies it.
type DebugService interface {
	CountAccounts(ctx context.Context) (int64, error)
	RefreshLatestIdentity(ctx context.Context) (*service.IdentityRefresh, error)
}

// DebugHandlers serve /debug/*. Only mounted when debug routes are enabled.
type DebugHandlers struct {
	Svc         DebugService
	FrontendURL string
	RedirectURI string
	Logger      *slog.Logger
}

func (h *DebugHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// DB reports how many provider accounts are stored.
func (h *DebugHandlers) DB(w http.ResponseWriter, r *http.Request) {
	n, err := h.Svc.CountAccounts(r.Context())
	if err != nil {
		h.logger().ErrorContext(r.Context(), "count accounts failed", "error", err)
		WriteFailure(w, http.StatusInternalServerError, "Database unavailable")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "providerAccounts": n})
}

// Frontend echoes the configured frontend URL.
func (h *DebugHandlers) Frontend(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]*string{"FRONTEND_URL": nullable(h.FrontendURL)})
}

// Env echoes the non-secret redirect configuration.
func (h *DebugHandlers) Env(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]*string{
		"FRONTEND_URL":         nullable(h.FrontendURL),
		"OUTLOOK_REDIRECT_URI": nullable(h.RedirectURI),
	})
}

// ProviderMe re-reads the identity behind the most recent stored token and refreshes the
// account email when a real address comes back.
func (h *DebugHandlers) ProviderMe(w http.ResponseWriter, r *http.Request) {
	res, err := h.Svc.RefreshLatestIdentity(r.Context())
	switch {
	case errors.Is(err, domainauth.ErrNoStoredToken):
		WriteFailure(w, http.StatusBadRequest, "No stored provider token yet")
		return
	case errors.Is(err, domainauth.ErrIdentityUnavailable):
		h.logger().WarnContext(r.Context(), "identity refresh failed", "error", err)
		status := http.StatusBadGateway
		var upstream *domainauth.UpstreamStatusError
		if errors.As(err, &upstream) {
			status = upstream.Status
		}
		WriteFailure(w, status, "Graph /me failed")
		return
	case err != nil:
		h.logger().ErrorContext(r.Context(), "identity refresh failed", "error", err)
		WriteFailure(w, http.StatusInternalServerError, "Identity refresh failed")
		return
	}
	var email *string
	if !res.Identity.Placeholder {
		email = nullable(res.Identity.Email)
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"ok":          true,
		"email":       email,
		"displayName": nullable(res.Identity.DisplayName),
		"updated":     res.Updated,
	})
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
