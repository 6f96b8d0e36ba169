package provisioner

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/zeroclaw-labs/platform/internal/apperr"
	"github.com/zeroclaw-labs/platform/internal/store"
)

// CreateDraftParams is the input to CreateDraft: a tenant in status=draft
// with an owning member and an empty placeholder config, ready for a later
// config PATCH and Deploy call.
type CreateDraftParams struct {
	Name      string
	Slug      string
	Plan      string
	OwnerID   uuid.UUID
	CustomSlug bool
}

func (p *Provisioner) CreateDraft(ctx context.Context, params CreateDraftParams) (store.Tenant, error) {
	if params.CustomSlug && !IsValidSlug(params.Slug) {
		return store.Tenant{}, apperr.BadRequest(fmt.Sprintf("slug %q is not a valid tenant slug", params.Slug))
	}
	if params.Plan == "" {
		params.Plan = "free"
	}

	var tenant store.Tenant
	err := p.store.Write(ctx, func(ctx context.Context, q *store.Queries) error {
		t, err := q.CreateTenant(ctx, store.CreateTenantParams{
			Name: params.Name,
			Slug: params.Slug,
			Plan: params.Plan,
		})
		if err != nil {
			return err
		}

		if err := q.CreateTenantConfig(ctx, store.CreateTenantConfigParams{TenantID: t.ID}); err != nil {
			return err
		}

		if _, err := q.AddMember(ctx, t.ID, params.OwnerID, string(ownerRole)); err != nil {
			return err
		}

		tenant = t
		p.audit(ctx, q, &params.OwnerID, "tenant_created", t.ID)
		return nil
	})
	if err != nil {
		return store.Tenant{}, err
	}
	return tenant, nil
}

// ownerRole avoids importing internal/auth just for the "owner" literal.
const ownerRole = store.MemberRoleOwner
