package provisioner

import (
	"context"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/zeroclaw-labs/platform/internal/store"
)

// Delete tears down a tenant via explicit ordered statements rather than a
// foreign-key cascade, so each step's failure is individually observable and
// retryable: stop and remove the container, remove the proxy route, then
// delete dependent rows child-first before the tenant row itself.
func (p *Provisioner) Delete(ctx context.Context, tenantID, actorID uuid.UUID) error {
	var tenant store.Tenant
	if err := p.store.Read(ctx, func(ctx context.Context, q *store.Queries) error {
		var err error
		tenant, err = q.GetTenant(ctx, tenantID)
		return err
	}); err != nil {
		return err
	}

	if err := p.store.Write(ctx, func(ctx context.Context, q *store.Queries) error {
		return q.SetTenantStatus(ctx, tenantID, store.StatusDeleting)
	}); err != nil {
		return err
	}

	if err := p.runtime.Stop(ctx, tenant.Slug); err != nil {
		p.logger.Warn("stopping container before delete", "tenant_id", tenantID, "slug", tenant.Slug, "error", err)
	}
	if err := p.runtime.Remove(ctx, tenant.Slug); err != nil {
		p.logger.Warn("removing container", "tenant_id", tenantID, "slug", tenant.Slug, "error", err)
	}
	if err := p.proxy.Remove(ctx, tenant.Slug); err != nil {
		p.logger.Warn("removing proxy route", "tenant_id", tenantID, "slug", tenant.Slug, "error", err)
	}

	dataDir := filepath.Join(p.cfg.DataDir, tenant.Slug)
	if err := os.RemoveAll(dataDir); err != nil {
		p.logger.Warn("removing tenant data directory", "tenant_id", tenantID, "slug", tenant.Slug, "dir", dataDir, "error", err)
	}

	return p.store.Write(ctx, func(ctx context.Context, q *store.Queries) error {
		if err := q.DeleteChannelsForTenant(ctx, tenantID); err != nil {
			return err
		}
		if err := q.DeleteMembersForTenant(ctx, tenantID); err != nil {
			return err
		}
		if err := q.DeleteResourceSnapshotsForTenant(ctx, tenantID); err != nil {
			return err
		}
		if err := q.DeleteTenantConfig(ctx, tenantID); err != nil {
			return err
		}
		if err := q.DeleteTenant(ctx, tenantID); err != nil {
			return err
		}
		p.audit(ctx, q, &actorID, "tenant_deleted", tenantID)
		return nil
	})
}
