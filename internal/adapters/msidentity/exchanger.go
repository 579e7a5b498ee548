package msidentity

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	domainauth "github.com/commandcenter/inboxauth/internal/domain/auth"
	"github.com/commandcenter/inboxauth/internal/ports"
)

// defaultTokenLifetime applies when the token endpoint omits expires_in.
const defaultTokenLifetime = 3600 * time.Second

var _ ports.TokenExchanger = (*Exchanger)(nil)

// Exchanger implements ports.TokenExchanger against the v2.0 authorize and token endpoints.
type Exchanger struct {
	oauth      *oauth2.Config
	httpClient *http.Client
	tenants    *tenantReader
	logger     *slog.Logger
}

// NewExchanger creates an Exchanger. It performs no network I/O.
func NewExchanger(cfg Config) (*Exchanger, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	return &Exchanger{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthorizeEndpoint(),
				TokenURL:  cfg.TokenEndpoint(),
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		httpClient: cfg.HTTPClient,
		tenants:    newTenantReader(cfg),
		logger:     cfg.Logger,
	}, nil
}

// AuthorizeURL builds the browser redirect for flow. The returned state is "<flow>_<nonce>".
func (e *Exchanger) AuthorizeURL(_ context.Context, flow domainauth.FlowKind) (string, string, error) {
	nonce, err := randomString(stateNonceBytes)
	if err != nil {
		return "", "", fmt.Errorf("generate state: %w", err)
	}
	state := domainauth.EncodeState(flow, nonce)

	// AuthCodeURL already sets client_id, redirect_uri, scope, response_type=code and state.
	authURL := e.oauth.AuthCodeURL(state, oauth2.SetAuthURLParam("response_mode", "query"))
	return authURL, state, nil
}

// Exchange redeems code at the token endpoint using the registered redirect URI and scopes.
func (e *Exchanger) Exchange(ctx context.Context, code string) (domainauth.TokenSet, error) {
	if code == "" {
		return domainauth.TokenSet{}, domainauth.ErrMissingCode
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, e.httpClient)
	tok, err := e.oauth.Exchange(ctx, code, oauth2.SetAuthURLParam("scope", strings.Join(e.oauth.Scopes, " ")))
	if err != nil {
		return domainauth.TokenSet{}, fmt.Errorf("%w: %w", domainauth.ErrExchangeFailed, err)
	}
	if tok.AccessToken == "" {
		return domainauth.TokenSet{}, fmt.Errorf("%w: response has no access token", domainauth.ErrExchangeFailed)
	}
	if tok.RefreshToken == "" {
		return domainauth.TokenSet{}, fmt.Errorf("%w: response has no refresh token", domainauth.ErrExchangeFailed)
	}

	set := domainauth.TokenSet{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresIn:    expiresIn(tok, time.Now()),
		Scope:        stringExtra(tok, "scope"),
		IDToken:      stringExtra(tok, "id_token"),
	}
	if set.IDToken != "" {
		tid, tidErr := e.tenants.tenantID(ctx, set.IDToken)
		if tidErr != nil {
			e.logger.WarnContext(ctx, "id_token tenant unavailable", "error", tidErr)
		}
		set.TenantID = tid
	}
	return set, nil
}

func expiresIn(tok *oauth2.Token, now time.Time) time.Duration {
	if tok.Expiry.IsZero() {
		return defaultTokenLifetime
	}
	d := tok.Expiry.Sub(now).Round(time.Second)
	if d <= 0 {
		return defaultTokenLifetime
	}
	return d
}

func stringExtra(tok *oauth2.Token, key string) string {
	s, _ := tok.Extra(key).(string)
	return s
}
