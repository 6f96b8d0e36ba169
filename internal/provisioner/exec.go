package provisioner

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/zeroclaw-labs/platform/internal/apperr"
	"github.com/zeroclaw-labs/platform/internal/store"
)

// Exec runs a whitelisted command inside the tenant's running container and
// audits it. argv has already been parsed and whitelist-checked by the
// admin API surface (spec.md §9's exec endpoint design note); this layer
// only enforces that the tenant is actually running.
func (p *Provisioner) Exec(ctx context.Context, tenantID, actorID uuid.UUID, argv []string) (string, error) {
	var tenant store.Tenant
	err := p.store.Read(ctx, func(ctx context.Context, q *store.Queries) error {
		var err error
		tenant, err = q.GetTenant(ctx, tenantID)
		return err
	})
	if err != nil {
		return "", err
	}
	if tenant.Status != store.StatusRunning {
		return "", apperr.Conflict(fmt.Sprintf("tenant is %s, not running", tenant.Status))
	}

	out, err := p.runtime.Exec(ctx, tenant.Slug, argv)
	if err != nil {
		return "", apperr.Internalf("exec in tenant container: %w", err)
	}

	_ = p.store.Write(ctx, func(ctx context.Context, q *store.Queries) error {
		p.audit(ctx, q, &actorID, "tenant_exec", tenantID)
		return nil
	})
	return out, nil
}

// Logs returns what the container runtime's Logs reports for the tenant.
func (p *Provisioner) Logs(ctx context.Context, tenantID uuid.UUID, lines int) (string, error) {
	var tenant store.Tenant
	err := p.store.Read(ctx, func(ctx context.Context, q *store.Queries) error {
		var err error
		tenant, err = q.GetTenant(ctx, tenantID)
		return err
	})
	if err != nil {
		return "", err
	}
	return p.runtime.Logs(ctx, tenant.Slug, lines)
}
