package auth

import (
	"context"

	"github.com/google/uuid"

	"github.com/zeroclaw-labs/platform/internal/apperr"
	"github.com/zeroclaw-labs/platform/internal/store"
)

// RequireTenantRole implements spec.md §4.3's RBAC evaluation: super-admins
// bypass the member-table check entirely; everyone else must hold a member
// row for tenantID with a role at least `required`. The super-admin bit and
// the member row are both re-read fresh on every call — never cached, never
// taken from token claims.
func RequireTenantRole(ctx context.Context, q *store.Queries, id *Identity, tenantID uuid.UUID, required Role) error {
	if id == nil {
		return apperr.Unauthorized("authentication required")
	}

	isSuperAdmin, err := q.IsSuperAdmin(ctx, id.UserID)
	if err != nil {
		return err
	}
	if isSuperAdmin {
		return nil
	}

	roleStr, err := q.GetMemberRole(ctx, tenantID, id.UserID)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return apperr.Forbidden("not a member")
		}
		return err
	}

	role := Role(roleStr)
	if !role.AtLeast(required) {
		return apperr.Forbidden("insufficient tenant role")
	}
	return nil
}

// RequireSuperAdmin implements the super-admin-only routes (monitoring
// dashboard, admin-wide resource views).
func RequireSuperAdmin(ctx context.Context, q *store.Queries, id *Identity) error {
	if id == nil {
		return apperr.Unauthorized("authentication required")
	}
	isSuperAdmin, err := q.IsSuperAdmin(ctx, id.UserID)
	if err != nil {
		return err
	}
	if !isSuperAdmin {
		return apperr.Forbidden("super-admin required")
	}
	return nil
}
