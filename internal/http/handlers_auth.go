package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	domainauth "github.com/commandcenter/inboxauth/internal/domain/auth"
	"github.com/commandcenter/inboxauth/internal/service"
)

// AuthFlow is the sign-in surface the handlers depend on. *service.AuthService satisfies it.
type AuthFlow interface {
	Begin(ctx context.Context, flow domainauth.FlowKind) (*service.BeginResult, error)
	Callback(ctx context.Context, in service.CallbackInput) (*service.CallbackResult, error)
}

// SessionManager validates and revokes sessions. *service.SessionService satisfies it.
type SessionManager interface {
	Validate(ctx context.Context, token string) (domainauth.Principal, error)
	Revoke(ctx context.Context, token string) error
}

// Redirects decides where a finished flow lands in the frontend.
type Redirects struct {
	FrontendURL string
	ConnectPath string
	LoginPath   string
}

// Target returns {frontend}{path}#token={token} for the given flow.
func (r Redirects) Target(flow domainauth.FlowKind, token string) string {
	path := r.LoginPath
	if flow == domainauth.FlowConnect {
		path = r.ConnectPath
	}
	return r.FrontendURL + path + "#token=" + token
}

// AuthHandlers serves the provider sign-in endpoints.
type AuthHandlers struct {
	Svc       AuthFlow
	Sessions  SessionManager
	Redirects Redirects

	// SetSessionCookie also delivers the session token as a cookie on callback.
	SetSessionCookie bool
	CookieDomain     string
	Logger           *slog.Logger
}

func (h *AuthHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

func (h *AuthHandlers) cookies() cookieWriter { return cookieWriter{domain: h.CookieDomain} }

// Start begins a login flow.
// GET /auth/provider/start.
func (h *AuthHandlers) Start(w http.ResponseWriter, r *http.Request) {
	h.begin(w, r, domainauth.FlowLogin)
}

// Connect begins a connect-inbox flow.
// GET /auth/provider/connect.
func (h *AuthHandlers) Connect(w http.ResponseWriter, r *http.Request) {
	h.begin(w, r, domainauth.FlowConnect)
}

func (h *AuthHandlers) begin(w http.ResponseWriter, r *http.Request, flow domainauth.FlowKind) {
	res, err := h.Svc.Begin(r.Context(), flow)
	if err != nil {
		h.logger().ErrorContext(r.Context(), "begin sign-in failed", "flow", flow, "error", err)
		WriteFailure(w, http.StatusInternalServerError, "Login failed")
		return
	}
	http.Redirect(w, r, res.AuthURL, http.StatusFound)
}

// Callback completes a flow and hands the session token to the frontend in the URL fragment.
// GET /auth/provider/callback?code=<code>&state=<state>.
func (h *AuthHandlers) Callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := h.Svc.Callback(r.Context(), service.CallbackInput{
		Code:  q.Get("code"),
		State: q.Get("state"),
	})
	if err != nil {
		code, msg := callbackFailure(err)
		if code >= http.StatusInternalServerError {
			h.logger().ErrorContext(r.Context(), "provider callback failed", "status", code, "error", err)
		}
		WriteFailure(w, code, msg)
		return
	}

	if h.SetSessionCookie {
		h.cookies().setSession(w, r, res.Session.Token, res.Session.ExpiresAt)
	}
	http.Redirect(w, r, h.Redirects.Target(res.Flow, res.Session.Token), http.StatusFound)
}

func callbackFailure(err error) (int, string) {
	switch {
	case errors.Is(err, domainauth.ErrMissingCode):
		return http.StatusBadRequest, "Missing code"
	case errors.Is(err, domainauth.ErrExchangeFailed):
		return http.StatusInternalServerError, "Token exchange failed"
	case errors.Is(err, domainauth.ErrIdentityUnavailable):
		return http.StatusBadGateway, "Identity resolution failed"
	default:
		return http.StatusInternalServerError, "Login failed"
	}
}

// Logout revokes the presented session and clears the cookie. It always succeeds for the caller.
// POST /auth/logout.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	if tok := SessionTokenFromRequest(r); tok != "" {
		if err := h.Sessions.Revoke(r.Context(), tok); err != nil {
			h.logger().WarnContext(r.Context(), "logout failed", "error", err)
		}
	}
	h.cookies().clearSession(w, r)
	WriteJSON(w, http.StatusOK, okResponse{OK: true})
}
