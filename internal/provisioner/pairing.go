package provisioner

import (
	"context"

	"github.com/google/uuid"

	"github.com/zeroclaw-labs/platform/internal/apperr"
	"github.com/zeroclaw-labs/platform/internal/store"
)

// GetPairingCode returns the currently stored pairing code, if any, without
// touching the running container.
func (p *Provisioner) GetPairingCode(ctx context.Context, tenantID uuid.UUID) (*string, error) {
	var tenant store.Tenant
	if err := p.store.Read(ctx, func(ctx context.Context, q *store.Queries) error {
		var err error
		tenant, err = q.GetTenant(ctx, tenantID)
		return err
	}); err != nil {
		return nil, err
	}
	return tenant.PairingCode, nil
}

// ResetPairing is the supplemented pairing-reset operation: strip any
// previously paired client tokens from the on-disk config, fix directory
// ownership (a prior manual edit as root is common), clear the stored
// pairing code, and, for a running tenant, restart the container so it
// re-enters pairing mode, then announce the freshly recorded code through
// the notifier.
func (p *Provisioner) ResetPairing(ctx context.Context, tenantID, actorID uuid.UUID) error {
	var tenant store.Tenant
	if err := p.store.Read(ctx, func(ctx context.Context, q *store.Queries) error {
		var err error
		tenant, err = q.GetTenant(ctx, tenantID)
		return err
	}); err != nil {
		return err
	}

	if tenant.Status != store.StatusRunning && tenant.Status != store.StatusStopped {
		return apperr.BadRequest("tenant must be running or stopped to reset pairing")
	}

	if err := p.renderer.StripPairedTokens(ctx, tenant.Slug); err != nil {
		return apperr.Internalf("stripping paired tokens: %w", err)
	}
	if tenant.UID != nil {
		if err := p.renderer.EnsureOwnership(ctx, tenant.Slug, *tenant.UID); err != nil {
			return apperr.Internalf("fixing ownership after pairing reset: %w", err)
		}
	}

	if err := p.store.Write(ctx, func(ctx context.Context, q *store.Queries) error {
		if err := q.SetPairingCode(ctx, tenantID, nil); err != nil {
			return err
		}
		p.audit(ctx, q, &actorID, "tenant_pairing_reset", tenantID)
		return nil
	}); err != nil {
		return err
	}

	if tenant.Status == store.StatusRunning {
		if err := p.Restart(ctx, tenantID, actorID); err != nil {
			return err
		}
		if code, err := p.GetPairingCode(ctx, tenantID); err == nil && code != nil && p.notify != nil {
			_ = p.notify.NotifyPairingCode(ctx, tenant.Name, tenant.Slug, *code)
		}
	}
	return nil
}
