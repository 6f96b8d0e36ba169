package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/zeroclaw-labs/platform/internal/apperr"
)

type CreateTenantConfigParams struct {
	TenantID  uuid.UUID
	APIKeyEnc string
}

// CreateTenantConfig writes the placeholder row created alongside a draft
// tenant: empty provider/model, an encrypted empty-string api key.
func (q *Queries) CreateTenantConfig(ctx context.Context, p CreateTenantConfigParams) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO tenant_configs (tenant_id, provider, model, temperature, autonomy_level, api_key_enc, extra_json)
		VALUES ($1, '', '', 0.7, 'supervised', $2, '{}'::jsonb)`,
		p.TenantID, p.APIKeyEnc)
	if err != nil {
		return fmt.Errorf("inserting tenant config: %w", err)
	}
	return nil
}

func (q *Queries) GetTenantConfig(ctx context.Context, tenantID uuid.UUID) (TenantConfig, error) {
	var c TenantConfig
	c.TenantID = tenantID
	err := q.db.QueryRow(ctx, `
		SELECT provider, model, temperature, autonomy_level, system_prompt, api_key_enc, extra_json
		FROM tenant_configs WHERE tenant_id = $1`, tenantID).
		Scan(&c.Provider, &c.Model, &c.Temperature, &c.AutonomyLevel, &c.SystemPrompt, &c.APIKeyEnc, &c.ExtraJSON)
	if err != nil {
		if isNoRows(err) {
			return TenantConfig{}, apperr.NotFound("tenant config not found")
		}
		return TenantConfig{}, fmt.Errorf("querying tenant config: %w", err)
	}
	return c, nil
}

// UpdateTenantConfigFields applies a PATCH-style partial update: only
// non-nil fields are written. At least one of fields/extraJSON must be set
// by the caller (enforced above this layer per spec.md §9).
type UpdateTenantConfigFields struct {
	Provider      *string
	Model         *string
	Temperature   *float64
	AutonomyLevel *string
	SystemPrompt  *string
	APIKeyEnc     *string
}

func (q *Queries) UpdateTenantConfig(ctx context.Context, tenantID uuid.UUID, f UpdateTenantConfigFields) (bool, error) {
	sets := make([]string, 0, 6)
	args := make([]any, 0, 7)
	idx := 1

	add := func(col string, val any) {
		sets = append(sets, fmt.Sprintf("%s = $%d", col, idx))
		args = append(args, val)
		idx++
	}

	if f.Provider != nil {
		add("provider", *f.Provider)
	}
	if f.Model != nil {
		add("model", *f.Model)
	}
	if f.Temperature != nil {
		add("temperature", *f.Temperature)
	}
	if f.AutonomyLevel != nil {
		add("autonomy_level", *f.AutonomyLevel)
	}
	if f.SystemPrompt != nil {
		add("system_prompt", *f.SystemPrompt)
	}
	if f.APIKeyEnc != nil {
		add("api_key_enc", *f.APIKeyEnc)
	}

	if len(sets) == 0 {
		return false, nil
	}

	sql := "UPDATE tenant_configs SET "
	for i, s := range sets {
		if i > 0 {
			sql += ", "
		}
		sql += s
	}
	sql += fmt.Sprintf(" WHERE tenant_id = $%d", idx)
	args = append(args, tenantID)

	tag, err := q.db.Exec(ctx, sql, args...)
	if err != nil {
		return false, fmt.Errorf("updating tenant config: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (q *Queries) UpdateTenantConfigExtraJSON(ctx context.Context, tenantID uuid.UUID, extraJSON []byte) error {
	tag, err := q.db.Exec(ctx, `UPDATE tenant_configs SET extra_json = $1 WHERE tenant_id = $2`, extraJSON, tenantID)
	if err != nil {
		return fmt.Errorf("updating extra_json: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("tenant config not found")
	}
	return nil
}

func (q *Queries) DeleteTenantConfig(ctx context.Context, tenantID uuid.UUID) error {
	_, err := q.db.Exec(ctx, `DELETE FROM tenant_configs WHERE tenant_id = $1`, tenantID)
	if err != nil {
		return fmt.Errorf("deleting tenant config: %w", err)
	}
	return nil
}

// IsConfigComplete reports whether a tenant config has a non-empty provider
// and a decryptable api key — the precondition deploy_tenant checks for.
func IsConfigComplete(c TenantConfig, decryptable bool) bool {
	return c.Provider != "" && decryptable
}
