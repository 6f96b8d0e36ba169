package auth

import (
	"context"

	"github.com/google/uuid"
)

// Role is a tenant-scoped privilege level. The ordering Viewer < Contributor
// < Manager < Owner is total and every comparison in this package goes
// through Level(), never string equality, so new roles can only be inserted
// by extending roleLevel.
type Role string

const (
	RoleViewer      Role = "viewer"
	RoleContributor Role = "contributor"
	RoleManager     Role = "manager"
	RoleOwner       Role = "owner"
)

var roleLevel = map[Role]int{
	RoleViewer:      0,
	RoleContributor: 1,
	RoleManager:     2,
	RoleOwner:       3,
}

// Level returns the role's position in the hierarchy, or -1 for an unknown role.
func (r Role) Level() int {
	if lvl, ok := roleLevel[r]; ok {
		return lvl
	}
	return -1
}

// AtLeast reports whether r meets or exceeds the required role.
func (r Role) AtLeast(required Role) bool {
	return r.Level() >= 0 && r.Level() >= required.Level()
}

func IsValidRole(r Role) bool {
	_, ok := roleLevel[r]
	return ok
}

// Methods describing how a request was authenticated.
const (
	MethodOTP  = "otp"
	MethodOIDC = "oidc"
	MethodLocal = "local"
)

// Identity is the authenticated caller for the current request. It never
// carries a role directly — roles are tenant-scoped and are re-read fresh
// from the member table by RequireTenantRole on every request.
type Identity struct {
	UserID       uuid.UUID
	Email        string
	DisplayName  string
	IsSuperAdmin bool
	Method       string
	TokenID      string // jti, used for revocation checks
}

type ctxKey string

const identityKey ctxKey = "auth_identity"

func NewContext(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// FromContext extracts the identity from the context, or nil if unauthenticated.
func FromContext(ctx context.Context) *Identity {
	v, _ := ctx.Value(identityKey).(*Identity)
	return v
}
