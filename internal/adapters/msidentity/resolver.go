package msidentity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	domainauth "github.com/commandcenter/inboxauth/internal/domain/auth"
	"github.com/commandcenter/inboxauth/internal/ports"
)

const meSelect = "/v1.0/me?$select=displayName,mail,userPrincipalName"

// maxProfileBytes bounds the /me body we are willing to decode.
const maxProfileBytes = 1 << 20

var _ ports.IdentityResolver = (*Resolver)(nil)

// Resolver implements ports.IdentityResolver using the Microsoft Graph /me endpoint.
type Resolver struct {
	meURL      string
	httpClient *http.Client
	timeout    time.Duration
	logger     *slog.Logger
}

// graphProfile is the subset of the Graph user resource we select.
type graphProfile struct {
	DisplayName       string `json:"displayName"`
	Mail              string `json:"mail"`
	UserPrincipalName string `json:"userPrincipalName"`
}

// NewResolver creates a Resolver. Credentials are not required; only Graph and timeout settings are read.
func NewResolver(cfg Config) *Resolver {
	cfg = cfg.withDefaults()
	return &Resolver{
		meURL:      cfg.GraphURL + meSelect,
		httpClient: cfg.HTTPClient,
		timeout:    cfg.Timeout,
		logger:     cfg.Logger,
	}
}

// Resolve fetches the caller's profile. Any failure yields the placeholder identity and an error
// wrapping ErrIdentityUnavailable.
func (r *Resolver) Resolve(ctx context.Context, accessToken string) (domainauth.Identity, error) {
	prof, err := r.fetchProfile(ctx, accessToken)
	if err != nil {
		r.logger.WarnContext(ctx, "identity resolution failed, using placeholder", "error", err)
		return domainauth.PlaceholderIdentity(), fmt.Errorf("%w: %w", domainauth.ErrIdentityUnavailable, err)
	}

	email := firstNonEmpty(prof.Mail, prof.UserPrincipalName)
	if email == "" {
		r.logger.WarnContext(ctx, "identity resolution returned no address, using placeholder")
		id := domainauth.PlaceholderIdentity()
		id.DisplayName = prof.DisplayName
		return id, fmt.Errorf("%w: %w", domainauth.ErrIdentityUnavailable, domainauth.ErrProfileWithoutAddress)
	}
	return domainauth.Identity{Email: email, DisplayName: prof.DisplayName}, nil
}

func (r *Resolver) fetchProfile(ctx context.Context, accessToken string) (graphProfile, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	client := oauth2.NewClient(
		context.WithValue(ctx, oauth2.HTTPClient, r.httpClient),
		oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.meURL, nil)
	if err != nil {
		return graphProfile{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return graphProfile{}, fmt.Errorf("request profile: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxProfileBytes))
		return graphProfile{}, fmt.Errorf("profile request: %w", &domainauth.UpstreamStatusError{Status: resp.StatusCode})
	}

	var prof graphProfile
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxProfileBytes)).Decode(&prof); err != nil {
		return graphProfile{}, fmt.Errorf("decode profile: %w", err)
	}
	return prof, nil
}
