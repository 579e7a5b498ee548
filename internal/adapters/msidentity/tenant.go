package msidentity

import (
	"context"
	"errors"
	"fmt"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
)

// tenantReader reads the tid claim from an id_token, verifying it first when configured.
type tenantReader struct {
	verifier *gooidc.IDTokenVerifier
	parser   *jwt.Parser
}

type tenantClaims struct {
	TenantID string `json:"tid"`
}

func newTenantReader(cfg Config) *tenantReader {
	r := &tenantReader{parser: jwt.NewParser()}
	if !cfg.VerifyIDToken {
		return r
	}
	keys := cfg.KeySet
	if keys == nil {
		keys = gooidc.NewRemoteKeySet(gooidc.ClientContext(context.Background(), cfg.HTTPClient), cfg.JWKSURL)
	}
	// Multi-tenant authorities issue tokens whose iss names the user's own tenant.
	r.verifier = gooidc.NewVerifier("", keys, &gooidc.Config{
		ClientID:        cfg.ClientID,
		SkipIssuerCheck: true,
	})
	return r
}

func (r *tenantReader) tenantID(ctx context.Context, rawIDToken string) (string, error) {
	if r.verifier != nil {
		idTok, err := r.verifier.Verify(ctx, rawIDToken)
		if err != nil {
			return "", fmt.Errorf("verify id_token: %w", err)
		}
		var c tenantClaims
		if err := idTok.Claims(&c); err != nil {
			return "", fmt.Errorf("parse id_token claims: %w", err)
		}
		return c.TenantID, nil
	}

	claims := jwt.MapClaims{}
	if _, _, err := r.parser.ParseUnverified(rawIDToken, claims); err != nil {
		return "", fmt.Errorf("parse id_token: %w", err)
	}
	tid, ok := claims["tid"].(string)
	if !ok {
		return "", errors.New("id_token has no tid claim")
	}
	return tid, nil
}
