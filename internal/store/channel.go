package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/zeroclaw-labs/platform/internal/apperr"
)

// MaxChannelConfigBytes bounds the encrypted channel config blob, mirroring
// the original's 4KiB cap on per-channel settings.
const MaxChannelConfigBytes = 4 * 1024

func (q *Queries) ListChannels(ctx context.Context, tenantID uuid.UUID) ([]Channel, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, tenant_id, kind, enabled, config_enc, created_at, updated_at
		FROM channels WHERE tenant_id = $1 ORDER BY created_at ASC`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("listing channels: %w", err)
	}
	defer rows.Close()

	var out []Channel
	for rows.Next() {
		var c Channel
		if err := rows.Scan(&c.ID, &c.TenantID, &c.Kind, &c.Enabled, &c.ConfigEnc, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning channel row: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (q *Queries) CountChannels(ctx context.Context, tenantID uuid.UUID) (int, error) {
	var n int
	err := q.db.QueryRow(ctx, `SELECT COUNT(*) FROM channels WHERE tenant_id = $1`, tenantID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting channels: %w", err)
	}
	return n, nil
}

type CreateChannelParams struct {
	TenantID  uuid.UUID
	Kind      string
	ConfigEnc string
}

func (q *Queries) CreateChannel(ctx context.Context, p CreateChannelParams) (Channel, error) {
	var c Channel
	err := q.db.QueryRow(ctx, `
		INSERT INTO channels (id, tenant_id, kind, enabled, config_enc, created_at, updated_at)
		VALUES (gen_random_uuid(), $1, $2, true, $3, now(), now())
		RETURNING id, tenant_id, kind, enabled, config_enc, created_at, updated_at`,
		p.TenantID, p.Kind, p.ConfigEnc).
		Scan(&c.ID, &c.TenantID, &c.Kind, &c.Enabled, &c.ConfigEnc, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return Channel{}, apperr.Conflict(fmt.Sprintf("channel of kind %q already exists for this tenant", p.Kind))
		}
		return Channel{}, fmt.Errorf("inserting channel: %w", err)
	}
	return c, nil
}

func (q *Queries) GetChannel(ctx context.Context, channelID uuid.UUID) (Channel, error) {
	var c Channel
	err := q.db.QueryRow(ctx, `
		SELECT id, tenant_id, kind, enabled, config_enc, created_at, updated_at
		FROM channels WHERE id = $1`, channelID).
		Scan(&c.ID, &c.TenantID, &c.Kind, &c.Enabled, &c.ConfigEnc, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if isNoRows(err) {
			return Channel{}, apperr.NotFound("channel not found")
		}
		return Channel{}, fmt.Errorf("querying channel: %w", err)
	}
	return c, nil
}

type UpdateChannelFields struct {
	Enabled   *bool
	ConfigEnc *string
}

func (q *Queries) UpdateChannel(ctx context.Context, channelID uuid.UUID, f UpdateChannelFields) (bool, error) {
	sets := make([]string, 0, 2)
	args := make([]any, 0, 3)
	idx := 1

	add := func(col string, val any) {
		sets = append(sets, fmt.Sprintf("%s = $%d", col, idx))
		args = append(args, val)
		idx++
	}

	if f.Enabled != nil {
		add("enabled", *f.Enabled)
	}
	if f.ConfigEnc != nil {
		add("config_enc", *f.ConfigEnc)
	}
	if len(sets) == 0 {
		return false, nil
	}
	sets = append(sets, "updated_at = now()")

	sql := "UPDATE channels SET "
	for i, s := range sets {
		if i > 0 {
			sql += ", "
		}
		sql += s
	}
	sql += fmt.Sprintf(" WHERE id = $%d", idx)
	args = append(args, channelID)

	tag, err := q.db.Exec(ctx, sql, args...)
	if err != nil {
		return false, fmt.Errorf("updating channel: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, apperr.NotFound("channel not found")
	}
	return true, nil
}

func (q *Queries) DeleteChannel(ctx context.Context, channelID uuid.UUID) error {
	tag, err := q.db.Exec(ctx, `DELETE FROM channels WHERE id = $1`, channelID)
	if err != nil {
		return fmt.Errorf("deleting channel: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("channel not found")
	}
	return nil
}

func (q *Queries) DeleteChannelsForTenant(ctx context.Context, tenantID uuid.UUID) error {
	_, err := q.db.Exec(ctx, `DELETE FROM channels WHERE tenant_id = $1`, tenantID)
	if err != nil {
		return fmt.Errorf("deleting channels for tenant: %w", err)
	}
	return nil
}
