package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/zeroclaw-labs/platform/internal/apperr"
)

func (q *Queries) ListMembers(ctx context.Context, tenantID uuid.UUID) ([]MemberWithUser, error) {
	rows, err := q.db.Query(ctx, `
		SELECT m.id, m.tenant_id, m.user_id, m.role, m.created_at, u.email, u.display_name
		FROM members m
		JOIN users u ON u.id = m.user_id
		WHERE m.tenant_id = $1
		ORDER BY m.created_at ASC`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("listing members: %w", err)
	}
	defer rows.Close()

	var out []MemberWithUser
	for rows.Next() {
		var m MemberWithUser
		if err := rows.Scan(&m.ID, &m.TenantID, &m.UserID, &m.Role, &m.CreatedAt, &m.Email, &m.DisplayName); err != nil {
			return nil, fmt.Errorf("scanning member row: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (q *Queries) CountMembers(ctx context.Context, tenantID uuid.UUID) (int, error) {
	var n int
	err := q.db.QueryRow(ctx, `SELECT COUNT(*) FROM members WHERE tenant_id = $1`, tenantID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting members: %w", err)
	}
	return n, nil
}

func (q *Queries) CountOwners(ctx context.Context, tenantID uuid.UUID) (int, error) {
	var n int
	err := q.db.QueryRow(ctx, `SELECT COUNT(*) FROM members WHERE tenant_id = $1 AND role = 'owner'`, tenantID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting owners: %w", err)
	}
	return n, nil
}

func (q *Queries) AddMember(ctx context.Context, tenantID, userID uuid.UUID, role string) (Member, error) {
	var m Member
	err := q.db.QueryRow(ctx, `
		INSERT INTO members (id, tenant_id, user_id, role, created_at)
		VALUES (gen_random_uuid(), $1, $2, $3, now())
		RETURNING id, tenant_id, user_id, role, created_at`,
		tenantID, userID, role).Scan(&m.ID, &m.TenantID, &m.UserID, &m.Role, &m.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return Member{}, apperr.Conflict("user is already a member of this tenant")
		}
		return Member{}, fmt.Errorf("inserting member: %w", err)
	}
	return m, nil
}

func (q *Queries) GetMember(ctx context.Context, memberID uuid.UUID) (Member, error) {
	var m Member
	err := q.db.QueryRow(ctx, `
		SELECT id, tenant_id, user_id, role, created_at FROM members WHERE id = $1`, memberID).
		Scan(&m.ID, &m.TenantID, &m.UserID, &m.Role, &m.CreatedAt)
	if err != nil {
		if isNoRows(err) {
			return Member{}, apperr.NotFound("member not found")
		}
		return Member{}, fmt.Errorf("querying member: %w", err)
	}
	return m, nil
}

// GetMemberRole is the authoritative RBAC lookup: (user_id, tenant_id) -> role.
// Returns apperr.NotFound if the user is not a member (callers translate that
// to Forbidden("not a member")).
func (q *Queries) GetMemberRole(ctx context.Context, tenantID, userID uuid.UUID) (string, error) {
	var role string
	err := q.db.QueryRow(ctx, `
		SELECT role FROM members WHERE tenant_id = $1 AND user_id = $2`, tenantID, userID).Scan(&role)
	if err != nil {
		if isNoRows(err) {
			return "", apperr.NotFound("not a member")
		}
		return "", fmt.Errorf("querying member role: %w", err)
	}
	return role, nil
}

func (q *Queries) UpdateMemberRole(ctx context.Context, memberID uuid.UUID, role string) error {
	tag, err := q.db.Exec(ctx, `UPDATE members SET role = $1 WHERE id = $2`, role, memberID)
	if err != nil {
		return fmt.Errorf("updating member role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("member not found")
	}
	return nil
}

func (q *Queries) RemoveMember(ctx context.Context, memberID uuid.UUID) error {
	tag, err := q.db.Exec(ctx, `DELETE FROM members WHERE id = $1`, memberID)
	if err != nil {
		return fmt.Errorf("removing member: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("member not found")
	}
	return nil
}

// TenantRolesForUser loads the advisory tenant_roles_snapshot embedded in a
// freshly-issued session token and returned from /auth/me.
func (q *Queries) TenantRolesForUser(ctx context.Context, userID uuid.UUID) ([]TenantRole, error) {
	rows, err := q.db.Query(ctx, `
		SELECT m.tenant_id, t.name, t.slug, m.role
		FROM members m JOIN tenants t ON t.id = m.tenant_id
		WHERE m.user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing tenant roles: %w", err)
	}
	defer rows.Close()

	var out []TenantRole
	for rows.Next() {
		var tr TenantRole
		if err := rows.Scan(&tr.TenantID, &tr.TenantName, &tr.TenantSlug, &tr.Role); err != nil {
			return nil, fmt.Errorf("scanning tenant role row: %w", err)
		}
		out = append(out, tr)
	}
	return out, rows.Err()
}

func (q *Queries) DeleteMembersForTenant(ctx context.Context, tenantID uuid.UUID) error {
	_, err := q.db.Exec(ctx, `DELETE FROM members WHERE tenant_id = $1`, tenantID)
	if err != nil {
		return fmt.Errorf("deleting members for tenant: %w", err)
	}
	return nil
}
