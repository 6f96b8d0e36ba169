package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"

	"github.com/zeroclaw-labs/platform/internal/store"
)

// SessionClaims are the custom claims embedded in a self-issued session
// JWT: {subject, email, tenant_roles_snapshot, iat, exp} per the platform's
// auth contract. tenant_roles_snapshot is advisory only — every RBAC check
// re-reads the member table fresh.
type SessionClaims struct {
	Subject            string             `json:"sub"`
	Email              string             `json:"email"`
	TenantRolesSnapshot []store.TenantRole `json:"tenant_roles_snapshot"`
	TokenID            string             `json:"jti"`
}

// SessionManager issues and validates self-signed session JWTs using HMAC-SHA256.
type SessionManager struct {
	signingKey []byte
	maxAge     time.Duration
}

// NewSessionManager creates a session manager. The secret must be at least 32 bytes.
func NewSessionManager(secret string, maxAge time.Duration) (*SessionManager, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("session secret must be at least 32 bytes, got %d", len(secret))
	}
	return &SessionManager{signingKey: []byte(secret), maxAge: maxAge}, nil
}

// GenerateDevSecret generates a random 32-byte hex-encoded secret for dev mode.
func GenerateDevSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("reading random bytes: %v", err))
	}
	return hex.EncodeToString(b)
}

func newTokenID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating token id: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// IssueToken creates a signed JWT for subject/email carrying an advisory
// snapshot of the user's tenant roles at issuance time.
func (sm *SessionManager) IssueToken(userID, email string, tenantRoles []store.TenantRole) (string, string, error) {
	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.HS256, Key: sm.signingKey},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		return "", "", fmt.Errorf("creating signer: %w", err)
	}

	jti, err := newTokenID()
	if err != nil {
		return "", "", err
	}

	now := time.Now()
	registered := jwt.Claims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		Expiry:    jwt.NewNumericDate(now.Add(sm.maxAge)),
		NotBefore: jwt.NewNumericDate(now),
		Issuer:    "platform",
		ID:        jti,
	}

	custom := SessionClaims{
		Subject:             userID,
		Email:               email,
		TenantRolesSnapshot: tenantRoles,
		TokenID:             jti,
	}

	token, err := jwt.Signed(signer).Claims(registered).Claims(custom).Serialize()
	if err != nil {
		return "", "", fmt.Errorf("signing token: %w", err)
	}
	return token, jti, nil
}

// ValidateToken verifies the JWT signature and expiry and returns the claims.
func (sm *SessionManager) ValidateToken(raw string) (*SessionClaims, time.Time, error) {
	tok, err := jwt.ParseSigned(raw, []jose.SignatureAlgorithm{jose.HS256})
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("parsing token: %w", err)
	}

	var registered jwt.Claims
	var custom SessionClaims
	if err := tok.Claims(sm.signingKey, &registered, &custom); err != nil {
		return nil, time.Time{}, fmt.Errorf("verifying token: %w", err)
	}

	if err := registered.ValidateWithLeeway(jwt.Expected{
		Issuer: "platform",
		Time:   time.Now(),
	}, 5*time.Second); err != nil {
		return nil, time.Time{}, fmt.Errorf("validating claims: %w", err)
	}

	var exp time.Time
	if registered.Expiry != nil {
		exp = registered.Expiry.Time()
	}
	return &custom, exp, nil
}
