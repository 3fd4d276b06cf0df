// Package middleware provides the HTTP middleware chain: request ids,
// request logging, session cookies, and per-request user context
// construction from the session's dual-provider claims.
package middleware

import (
	"context"
	"fmt"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"

	"github.com/turner-mzeller/GitHubPortal/pkg/config"
	"github.com/turner-mzeller/GitHubPortal/pkg/usercontext"
)

// DirectoryVerifier validates inbound directory id tokens and extracts
// directory claims from them. The OAuth authorization-code exchange that
// produced the token happens elsewhere.
type DirectoryVerifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewDirectoryVerifier discovers the directory tenant's OIDC metadata
// and prepares an id token verifier.
func NewDirectoryVerifier(ctx context.Context, cfg config.ActiveDirectoryConfig) (*DirectoryVerifier, error) {
	provider, err := oidc.NewProvider(ctx, cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to discover directory OIDC provider: %w", err)
	}
	verifier := provider.Verifier(&oidc.Config{ClientID: cfg.ClientID})
	return &DirectoryVerifier{verifier: verifier}, nil
}

// Verify checks an id token and returns the directory claims it carries.
func (v *DirectoryVerifier) Verify(ctx context.Context, rawIDToken string) (*usercontext.DirectoryClaims, error) {
	idToken, err := v.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("failed to verify directory id token: %w", err)
	}
	var payload struct {
		OID               string `json:"oid"`
		UPN               string `json:"upn"`
		PreferredUsername string `json:"preferred_username"`
		Name              string `json:"name"`
	}
	if err := idToken.Claims(&payload); err != nil {
		return nil, fmt.Errorf("failed to read directory id token claims: %w", err)
	}
	username := payload.UPN
	if username == "" {
		username = payload.PreferredUsername
	}
	if payload.OID == "" {
		return nil, fmt.Errorf("directory id token carries no object id")
	}
	return &usercontext.DirectoryClaims{
		ObjectID:    payload.OID,
		Username:    username,
		DisplayName: payload.Name,
	}, nil
}

// bearerToken extracts a bearer credential from an Authorization header.
func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}
