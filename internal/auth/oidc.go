package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// OIDCClaims are the JWT claims we extract for authentication. The local
// user record (looked up by email) is the source of truth for roles and
// super-admin status — OIDC only vouches for identity.
type OIDCClaims struct {
	Subject string `json:"sub"`
	Email   string `json:"email"`
}

// OIDCAuthenticator validates OIDC JWTs and extracts claims. It also holds
// an oauth2.Config so the admin UI can drive a full authorization-code
// login (see OIDCLoginHandler) rather than requiring the caller to obtain
// an ID token out of band.
type OIDCAuthenticator struct {
	Verifier *oidc.IDTokenVerifier
	OAuth2   oauth2.Config
}

// NewOIDCAuthenticator creates an authenticator by performing OIDC discovery
// against the issuer URL. This makes a network call to fetch the provider's
// public keys.
func NewOIDCAuthenticator(ctx context.Context, issuerURL, clientID, clientSecret, redirectURL string) (*OIDCAuthenticator, error) {
	provider, err := oidc.NewProvider(ctx, issuerURL)
	if err != nil {
		return nil, fmt.Errorf("discovering OIDC provider %s: %w", issuerURL, err)
	}

	verifier := provider.Verifier(&oidc.Config{ClientID: clientID})

	return &OIDCAuthenticator{
		Verifier: verifier,
		OAuth2: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
		},
	}, nil
}

// Authenticate validates a Bearer token and returns the extracted claims.
func (a *OIDCAuthenticator) Authenticate(ctx context.Context, bearerToken string) (*OIDCClaims, error) {
	token := strings.TrimPrefix(bearerToken, "Bearer ")
	token = strings.TrimPrefix(token, "bearer ")
	token = strings.TrimSpace(token)

	if token == "" {
		return nil, fmt.Errorf("empty bearer token")
	}

	idToken, err := a.Verifier.Verify(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("verifying token: %w", err)
	}

	var claims OIDCClaims
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("extracting claims: %w", err)
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("token missing sub claim")
	}
	if claims.Email == "" {
		return nil, fmt.Errorf("token missing email claim")
	}

	return &claims, nil
}

// AuthenticateRawIDToken verifies a raw (non-Bearer-prefixed) ID token, the
// shape returned in an oauth2.Token's id_token extra field after a
// code-exchange callback.
func (a *OIDCAuthenticator) AuthenticateRawIDToken(ctx context.Context, rawIDToken string) (*OIDCClaims, error) {
	return a.Authenticate(ctx, rawIDToken)
}
