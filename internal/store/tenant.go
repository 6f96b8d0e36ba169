package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/zeroclaw-labs/platform/internal/apperr"
)

type CreateTenantParams struct {
	Name string
	Slug string
	Plan string
}

// CreateTenant inserts a tenant row in status=draft. Returns apperr.Conflict
// if the slug already exists.
func (q *Queries) CreateTenant(ctx context.Context, p CreateTenantParams) (Tenant, error) {
	var t Tenant
	row := q.db.QueryRow(ctx, `
		INSERT INTO tenants (id, name, slug, status, plan, created_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, now())
		RETURNING id, name, slug, status, plan, port, uid, pairing_code, created_at`,
		p.Name, p.Slug, StatusDraft, p.Plan)

	if err := scanTenant(row, &t); err != nil {
		if isUniqueViolation(err) {
			return Tenant{}, apperr.Conflict(fmt.Sprintf("tenant slug %q already exists", p.Slug))
		}
		return Tenant{}, fmt.Errorf("inserting tenant: %w", err)
	}
	return t, nil
}

func (q *Queries) GetTenant(ctx context.Context, id uuid.UUID) (Tenant, error) {
	var t Tenant
	row := q.db.QueryRow(ctx, `
		SELECT id, name, slug, status, plan, port, uid, pairing_code, created_at
		FROM tenants WHERE id = $1`, id)
	if err := scanTenant(row, &t); err != nil {
		if isNoRows(err) {
			return Tenant{}, apperr.NotFound(fmt.Sprintf("tenant %s not found", id))
		}
		return Tenant{}, fmt.Errorf("querying tenant: %w", err)
	}
	return t, nil
}

func (q *Queries) GetTenantBySlug(ctx context.Context, slug string) (Tenant, error) {
	var t Tenant
	row := q.db.QueryRow(ctx, `
		SELECT id, name, slug, status, plan, port, uid, pairing_code, created_at
		FROM tenants WHERE slug = $1`, slug)
	if err := scanTenant(row, &t); err != nil {
		if isNoRows(err) {
			return Tenant{}, apperr.NotFound(fmt.Sprintf("tenant %q not found", slug))
		}
		return Tenant{}, fmt.Errorf("querying tenant: %w", err)
	}
	return t, nil
}

func (q *Queries) SlugExists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	err := q.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM tenants WHERE slug = $1)`, slug).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking slug existence: %w", err)
	}
	return exists, nil
}

func (q *Queries) ListTenants(ctx context.Context, limit, offset int) ([]Tenant, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, name, slug, status, plan, port, uid, pairing_code, created_at
		FROM tenants ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing tenants: %w", err)
	}
	defer rows.Close()
	return scanTenants(rows)
}

// ListTenantsForUser returns tenants the user is a member of, for non-super-admins.
func (q *Queries) ListTenantsForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Tenant, error) {
	rows, err := q.db.Query(ctx, `
		SELECT t.id, t.name, t.slug, t.status, t.plan, t.port, t.uid, t.pairing_code, t.created_at
		FROM tenants t
		JOIN members m ON m.tenant_id = t.id
		WHERE m.user_id = $1
		ORDER BY t.created_at DESC LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing tenants for user: %w", err)
	}
	defer rows.Close()
	return scanTenants(rows)
}

// MaxAllocatedPort returns the highest port currently allocated, or 0 if none.
func (q *Queries) MaxAllocatedPort(ctx context.Context) (int32, error) {
	var max *int32
	err := q.db.QueryRow(ctx, `SELECT MAX(port) FROM tenants WHERE port IS NOT NULL`).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("querying max port: %w", err)
	}
	if max == nil {
		return 0, nil
	}
	return *max, nil
}

// MaxAllocatedUID returns the highest uid currently allocated, or 0 if none.
func (q *Queries) MaxAllocatedUID(ctx context.Context) (int32, error) {
	var max *int32
	err := q.db.QueryRow(ctx, `SELECT MAX(uid) FROM tenants WHERE uid IS NOT NULL`).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("querying max uid: %w", err)
	}
	if max == nil {
		return 0, nil
	}
	return *max, nil
}

func (q *Queries) AllocateTenantPortAndUID(ctx context.Context, tenantID uuid.UUID, port, uid int32) error {
	tag, err := q.db.Exec(ctx, `UPDATE tenants SET port = $1, uid = $2 WHERE id = $3`, port, uid, tenantID)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.Conflict("port or uid already allocated")
		}
		return fmt.Errorf("allocating port/uid: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(fmt.Sprintf("tenant %s not found", tenantID))
	}
	return nil
}

// ClearTenantAllocation reverts a port/uid allocation when an early deploy
// step (filesystem layout, manifest render) fails before any foreground
// side effect has started — spec.md §9's "steps 1-4 failure reverts
// allocations" rule.
func (q *Queries) ClearTenantAllocation(ctx context.Context, tenantID uuid.UUID) error {
	_, err := q.db.Exec(ctx, `UPDATE tenants SET port = NULL, uid = NULL WHERE id = $1`, tenantID)
	if err != nil {
		return fmt.Errorf("clearing tenant allocation: %w", err)
	}
	return nil
}

func (q *Queries) SetTenantStatus(ctx context.Context, tenantID uuid.UUID, status string) error {
	tag, err := q.db.Exec(ctx, `UPDATE tenants SET status = $1 WHERE id = $2`, status, tenantID)
	if err != nil {
		return fmt.Errorf("setting tenant status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(fmt.Sprintf("tenant %s not found", tenantID))
	}
	return nil
}

func (q *Queries) SetPairingCode(ctx context.Context, tenantID uuid.UUID, code *string) error {
	_, err := q.db.Exec(ctx, `UPDATE tenants SET pairing_code = $1 WHERE id = $2`, code, tenantID)
	if err != nil {
		return fmt.Errorf("setting pairing code: %w", err)
	}
	return nil
}

// DeleteTenant removes the tenant row itself. Dependent rows are deleted
// explicitly by the caller (the Provisioner) in a defined order — see
// DESIGN.md's cascade-style decision.
func (q *Queries) DeleteTenant(ctx context.Context, tenantID uuid.UUID) error {
	_, err := q.db.Exec(ctx, `DELETE FROM tenants WHERE id = $1`, tenantID)
	if err != nil {
		return fmt.Errorf("deleting tenant: %w", err)
	}
	return nil
}

func scanTenant(row pgx.Row, t *Tenant) error {
	return row.Scan(&t.ID, &t.Name, &t.Slug, &t.Status, &t.Plan, &t.Port, &t.UID, &t.PairingCode, &t.CreatedAt)
}

func scanTenants(rows pgx.Rows) ([]Tenant, error) {
	var out []Tenant
	for rows.Next() {
		var t Tenant
		if err := rows.Scan(&t.ID, &t.Name, &t.Slug, &t.Status, &t.Plan, &t.Port, &t.UID, &t.PairingCode, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning tenant row: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tenant rows: %w", err)
	}
	return out, nil
}
