package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type InsertAuditEntryParams struct {
	ActorID      *uuid.UUID
	Action       string
	ResourceKind string
	ResourceID   string
	Details      []byte
}

// InsertAuditEntry writes one audit entry synchronously, inside the
// caller's transaction — entries never carry a tenant schema here since the
// whole platform shares one schema; resource_id identifies the tenant/row
// the action concerned.
func (q *Queries) InsertAuditEntry(ctx context.Context, p InsertAuditEntryParams) error {
	details := p.Details
	if details == nil {
		details = []byte("{}")
	}
	_, err := q.db.Exec(ctx, `
		INSERT INTO audit_log (id, actor_id, action, resource_kind, resource_id, details, created_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, now())`,
		p.ActorID, p.Action, p.ResourceKind, p.ResourceID, details)
	if err != nil {
		return fmt.Errorf("inserting audit entry: %w", err)
	}
	return nil
}

// ListAuditForResource returns the most recent audit entries for a given
// resource (e.g. a tenant id), newest first.
func (q *Queries) ListAuditForResource(ctx context.Context, resourceKind, resourceID string, limit int) ([]AuditEntry, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, actor_id, action, resource_kind, resource_id, details, created_at
		FROM audit_log
		WHERE resource_kind = $1 AND resource_id = $2
		ORDER BY created_at DESC LIMIT $3`, resourceKind, resourceID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing audit entries: %w", err)
	}
	defer rows.Close()

	var out []AuditEntry
	for rows.Next() {
		var a AuditEntry
		if err := rows.Scan(&a.ID, &a.ActorID, &a.Action, &a.ResourceKind, &a.ResourceID, &a.Details, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning audit row: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ListAuditSince supports the global audit feed, bounded by a since-time
// window per SPEC_FULL.md's monitoring rollups.
func (q *Queries) ListAuditSince(ctx context.Context, since time.Time, limit int) ([]AuditEntry, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, actor_id, action, resource_kind, resource_id, details, created_at
		FROM audit_log
		WHERE created_at >= $1
		ORDER BY created_at DESC LIMIT $2`, since, limit)
	if err != nil {
		return nil, fmt.Errorf("listing audit entries since: %w", err)
	}
	defer rows.Close()

	var out []AuditEntry
	for rows.Next() {
		var a AuditEntry
		if err := rows.Scan(&a.ID, &a.ActorID, &a.Action, &a.ResourceKind, &a.ResourceID, &a.Details, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning audit row: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
