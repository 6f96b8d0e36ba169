package provisioner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/zeroclaw-labs/platform/internal/apperr"
	"github.com/zeroclaw-labs/platform/internal/store"
)

const maxAllocationAttempts = 16

// allocate picks the next free port and uid within the configured ranges
// and persists them, retrying past unique-constraint conflicts from
// concurrent deploys.
func (p *Provisioner) allocate(ctx context.Context, tenantID uuid.UUID) (port, uid int32, err error) {
	for attempt := 0; attempt < maxAllocationAttempts; attempt++ {
		var maxPort, maxUID int32
		txErr := p.store.Read(ctx, func(ctx context.Context, q *store.Queries) error {
			var err error
			if maxPort, err = q.MaxAllocatedPort(ctx); err != nil {
				return err
			}
			maxUID, err = q.MaxAllocatedUID(ctx)
			return err
		})
		if txErr != nil {
			return 0, 0, txErr
		}

		port = maxPort + 1
		if port < p.cfg.PortRangeLow {
			port = p.cfg.PortRangeLow
		}
		uid = maxUID + 1
		if uid < p.cfg.UIDRangeLow {
			uid = p.cfg.UIDRangeLow
		}
		if port > p.cfg.PortRangeHigh || uid > p.cfg.UIDRangeHigh {
			return 0, 0, apperr.Internal(fmt.Errorf("port or uid range exhausted"))
		}

		writeErr := p.store.Write(ctx, func(ctx context.Context, q *store.Queries) error {
			return q.AllocateTenantPortAndUID(ctx, tenantID, port, uid)
		})
		if writeErr == nil {
			return port, uid, nil
		}
		if apperr.KindOf(writeErr) != apperr.KindConflict {
			return 0, 0, writeErr
		}
		// Lost the race to another deploy; retry with freshly-read maxima.
	}
	return 0, 0, apperr.Internal(fmt.Errorf("could not allocate port/uid after %d attempts", maxAllocationAttempts))
}

// Deploy runs the nine-step ordered sequence spec.md §4.4 and §9 define.
// Steps 1-4 (allocate port, allocate uid, create filesystem layout, render
// manifest) revert the allocation on failure and leave the tenant's status
// unchanged. Step 5 onward (status=provisioning through status=running)
// leaves the tenant in status=error on failure, with side effects left in
// place for operator inspection rather than torn down automatically.
func (p *Provisioner) Deploy(ctx context.Context, tenantID uuid.UUID, actorID uuid.UUID) error {
	var tenant store.Tenant
	var cfg store.TenantConfig
	err := p.store.Read(ctx, func(ctx context.Context, q *store.Queries) error {
		var err error
		if tenant, err = q.GetTenant(ctx, tenantID); err != nil {
			return err
		}
		cfg, err = q.GetTenantConfig(ctx, tenantID)
		return err
	})
	if err != nil {
		return err
	}

	if tenant.Status != store.StatusDraft && tenant.Status != store.StatusStopped && tenant.Status != store.StatusError {
		return apperr.BadRequest(fmt.Sprintf("tenant is not in a deployable state (status=%s)", tenant.Status))
	}

	apiKeyPlain, err := p.vault.DecryptTenantAPIKey(tenantID, cfg.APIKeyEnc)
	if err != nil || cfg.Provider == "" {
		return apperr.BadRequest("tenant config is incomplete: provider and api key must be set before deploy")
	}

	// Steps 1-2: allocate port + uid (no-op if already allocated from a
	// prior failed attempt at status=error/stopped).
	port, uid := tenant.Port, tenant.UID
	if port == nil || uid == nil {
		p32, u32, err := p.allocate(ctx, tenantID)
		if err != nil {
			return err
		}
		port, uid = &p32, &u32
	}

	dataDir := filepath.Join(p.cfg.DataDir, tenant.Slug)

	// Step 3: create filesystem layout.
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		_ = p.store.Write(ctx, func(ctx context.Context, q *store.Queries) error {
			return q.ClearTenantAllocation(ctx, tenantID)
		})
		return apperr.Internalf("creating tenant data directory: %w", err)
	}
	if err := p.renderer.EnsureOwnership(ctx, tenant.Slug, *uid); err != nil {
		_ = p.store.Write(ctx, func(ctx context.Context, q *store.Queries) error {
			return q.ClearTenantAllocation(ctx, tenantID)
		})
		return apperr.Internalf("fixing tenant directory ownership: %w", err)
	}

	// Step 4: render manifest.
	if err := p.renderer.Render(ctx, tenant, cfg, apiKeyPlain); err != nil {
		_ = p.store.Write(ctx, func(ctx context.Context, q *store.Queries) error {
			return q.ClearTenantAllocation(ctx, tenantID)
		})
		return apperr.Internalf("rendering tenant manifest: %w", err)
	}

	// Step 5: mark provisioning. From here on, failure sets status=error
	// rather than reverting — the operator inspects what's left in place.
	if err := p.store.Write(ctx, func(ctx context.Context, q *store.Queries) error {
		return q.SetTenantStatus(ctx, tenantID, store.StatusProvisioning)
	}); err != nil {
		return err
	}

	fail := func(stepErr error) error {
		_ = p.store.Write(ctx, func(ctx context.Context, q *store.Queries) error {
			if err := q.SetTenantStatus(ctx, tenantID, store.StatusError); err != nil {
				return err
			}
			p.audit(ctx, q, &actorID, "tenant_deploy_failed", tenantID)
			return nil
		})
		if p.notify != nil {
			_ = p.notify.NotifyDeployFailure(ctx, tenant.Name, tenant.Slug, stepErr.Error())
		}
		return apperr.Internalf("deploying tenant: %w", stepErr)
	}

	// Step 6: create and start the container.
	if err := p.runtime.Create(ctx, ContainerSpec{
		Slug: tenant.Slug, UID: *uid, Port: *port, Image: p.cfg.Image, DataDir: dataDir,
	}); err != nil {
		return fail(err)
	}
	if err := p.runtime.Start(ctx, tenant.Slug); err != nil {
		return fail(err)
	}

	// Step 7: wait for health.
	if err := p.runtime.WaitHealthy(ctx, tenant.Slug, p.cfg.HealthTimeout); err != nil {
		return fail(err)
	}

	// Step 8: register the proxy route.
	if err := p.proxy.Upsert(ctx, tenant.Slug, *port); err != nil {
		return fail(err)
	}

	// Step 9: status=running, record pairing code, audit.
	pairingCode, err := p.renderer.ReadPairingCode(ctx, tenant.Slug)
	if err != nil {
		p.logger.Warn("reading pairing code after deploy", "tenant_id", tenantID, "error", err)
	}

	err = p.store.Write(ctx, func(ctx context.Context, q *store.Queries) error {
		if err := q.SetTenantStatus(ctx, tenantID, store.StatusRunning); err != nil {
			return err
		}
		if pairingCode != "" {
			if err := q.SetPairingCode(ctx, tenantID, &pairingCode); err != nil {
				return err
			}
		}
		p.audit(ctx, q, &actorID, "tenant_deployed", tenantID)
		return nil
	})
	if err != nil {
		return err
	}

	if pairingCode != "" && p.notify != nil {
		_ = p.notify.NotifyPairingCode(ctx, tenant.Name, tenant.Slug, pairingCode)
	}
	return nil
}

func (p *Provisioner) Stop(ctx context.Context, tenantID, actorID uuid.UUID) error {
	var tenant store.Tenant
	if err := p.store.Read(ctx, func(ctx context.Context, q *store.Queries) error {
		var err error
		tenant, err = q.GetTenant(ctx, tenantID)
		return err
	}); err != nil {
		return err
	}

	if err := p.runtime.Stop(ctx, tenant.Slug); err != nil {
		return apperr.Internalf("stopping tenant container: %w", err)
	}

	return p.store.Write(ctx, func(ctx context.Context, q *store.Queries) error {
		if err := q.SetTenantStatus(ctx, tenantID, store.StatusStopped); err != nil {
			return err
		}
		p.audit(ctx, q, &actorID, "tenant_stopped", tenantID)
		return nil
	})
}

// Restart re-renders the manifest from the tenant's current configuration
// and recreates the container (remove + create, not just stop + start) so
// that mount and environment changes since the last deploy actually take
// effect, per spec.md §4.4's restart_tenant semantics.
func (p *Provisioner) Restart(ctx context.Context, tenantID, actorID uuid.UUID) error {
	var tenant store.Tenant
	var cfg store.TenantConfig
	if err := p.store.Read(ctx, func(ctx context.Context, q *store.Queries) error {
		var err error
		if tenant, err = q.GetTenant(ctx, tenantID); err != nil {
			return err
		}
		cfg, err = q.GetTenantConfig(ctx, tenantID)
		return err
	}); err != nil {
		return err
	}
	if tenant.Port == nil || tenant.UID == nil {
		return apperr.BadRequest("tenant has not been deployed yet")
	}

	apiKeyPlain, err := p.vault.DecryptTenantAPIKey(tenantID, cfg.APIKeyEnc)
	if err != nil {
		return apperr.Internalf("decrypting tenant api key: %w", err)
	}
	if err := p.renderer.Render(ctx, tenant, cfg, apiKeyPlain); err != nil {
		return apperr.Internalf("rendering tenant manifest: %w", err)
	}

	if err := p.runtime.Stop(ctx, tenant.Slug); err != nil {
		p.logger.Warn("stopping tenant before restart", "tenant_id", tenantID, "error", err)
	}
	if err := p.runtime.Remove(ctx, tenant.Slug); err != nil {
		p.logger.Warn("removing tenant container before restart", "tenant_id", tenantID, "error", err)
	}

	dataDir := filepath.Join(p.cfg.DataDir, tenant.Slug)
	if err := p.runtime.Create(ctx, ContainerSpec{
		Slug: tenant.Slug, UID: *tenant.UID, Port: *tenant.Port, Image: p.cfg.Image, DataDir: dataDir,
	}); err != nil {
		return apperr.Internalf("recreating tenant container: %w", err)
	}
	if err := p.runtime.Start(ctx, tenant.Slug); err != nil {
		return apperr.Internalf("restarting tenant container: %w", err)
	}
	if err := p.runtime.WaitHealthy(ctx, tenant.Slug, p.cfg.HealthTimeout); err != nil {
		_ = p.store.Write(ctx, func(ctx context.Context, q *store.Queries) error {
			return q.SetTenantStatus(ctx, tenantID, store.StatusError)
		})
		return apperr.Internalf("tenant did not become healthy after restart: %w", err)
	}

	pairingCode, err := p.renderer.ReadPairingCode(ctx, tenant.Slug)
	if err != nil {
		p.logger.Warn("reading pairing code after restart", "tenant_id", tenantID, "error", err)
	}

	return p.store.Write(ctx, func(ctx context.Context, q *store.Queries) error {
		if err := q.SetTenantStatus(ctx, tenantID, store.StatusRunning); err != nil {
			return err
		}
		if pairingCode != "" {
			if err := q.SetPairingCode(ctx, tenantID, &pairingCode); err != nil {
				return err
			}
		}
		p.audit(ctx, q, &actorID, "tenant_restarted", tenantID)
		return nil
	})
}

// SyncAndRestart is the fire-and-forget background job a config PATCH
// spawns after a successful update (spec.md §9's reconcile-job design
// note): re-render the manifest and restart so the tenant picks up the
// new configuration.
func (p *Provisioner) SyncAndRestart(ctx context.Context, tenantID, actorID uuid.UUID) {
	var tenant store.Tenant
	err := p.store.Read(ctx, func(ctx context.Context, q *store.Queries) error {
		var err error
		tenant, err = q.GetTenant(ctx, tenantID)
		return err
	})
	if err != nil {
		p.logger.Error("sync_and_restart: loading tenant", "tenant_id", tenantID, "error", err)
		return
	}
	if tenant.Status != store.StatusRunning {
		return
	}

	if err := p.Restart(ctx, tenantID, actorID); err != nil {
		p.logger.Error("sync_and_restart: restarting tenant", "tenant_id", tenantID, "error", err)
	}
}
