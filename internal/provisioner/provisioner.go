// Package provisioner implements the tenant lifecycle state machine:
// allocate → render → create → start → health-check → register proxy route,
// with rollback on early failure and status=error on late failure, following
// the teacher's schema-provisioning shape generalized from provisioning a
// Postgres schema to provisioning a container workload.
package provisioner

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/zeroclaw-labs/platform/internal/store"
	"github.com/zeroclaw-labs/platform/internal/vault"
)

// ResourceStats is the point-in-time usage sample the container runtime
// reports for a single tenant container.
type ResourceStats struct {
	CPUPercent  float64
	MemBytes    int64
	MemLimit    int64
	DiskBytes   int64
	NetInBytes  int64
	NetOutBytes int64
	PIDs        int32
}

// ContainerSpec describes the workload the runtime adapter must create.
type ContainerSpec struct {
	Slug   string
	UID    int32
	Port   int32
	Image  string
	DataDir string
}

// ContainerRuntime is the Container Runtime Adapter's interface (spec.md
// §4.6): create/start/stop/remove the tenant's container, probe health,
// fetch logs, run whitelisted exec commands, and sample resource stats.
type ContainerRuntime interface {
	Create(ctx context.Context, spec ContainerSpec) error
	Start(ctx context.Context, slug string) error
	Stop(ctx context.Context, slug string) error
	Remove(ctx context.Context, slug string) error
	Running(ctx context.Context, slug string) (bool, error)
	WaitHealthy(ctx context.Context, slug string, timeout time.Duration) error
	Logs(ctx context.Context, slug string, lines int) (string, error)
	Exec(ctx context.Context, slug string, args []string) (string, error)
	Stats(ctx context.Context, slug string) (ResourceStats, error)
}

// ProxySyncer is the Reverse-Proxy Route Synchronizer's interface (spec.md §4.7).
type ProxySyncer interface {
	Upsert(ctx context.Context, slug string, port int32) error
	Remove(ctx context.Context, slug string) error
}

// ConfigRenderer is the Config Renderer's interface (spec.md §4.5): writes
// the on-disk manifest a tenant container reads at startup, and performs the
// pairing-reset's surgical strip of a previously paired token.
type ConfigRenderer interface {
	Render(ctx context.Context, tenant store.Tenant, cfg store.TenantConfig, apiKeyPlain string) error
	StripPairedTokens(ctx context.Context, slug string) error
	ReadPairingCode(ctx context.Context, slug string) (string, error)
	EnsureOwnership(ctx context.Context, slug string, uid int32) error
}

// Notifier delivers operational notifications about pairing codes and
// deploy failures to whoever is watching the control plane (spec.md §11's
// supplemented pairing-reset notification).
type Notifier interface {
	NotifyPairingCode(ctx context.Context, tenantName, slug, code string) error
	NotifyDeployFailure(ctx context.Context, tenantName, slug, reason string) error
}

// Config holds the operational parameters governing allocation and health checks.
type Config struct {
	Image            string
	DataDir          string
	DomainSuffix     string
	PortRangeLow     int32
	PortRangeHigh    int32
	UIDRangeLow      int32
	UIDRangeHigh     int32
	HealthTimeout    time.Duration
}

// Provisioner composes the Vault, Config Renderer, Container Runtime
// Adapter, and Proxy Synchronizer under the ordering spec.md §4.4 and §9
// define, mutating tenant status/port/uid as the sole owner of those fields.
type Provisioner struct {
	store    *store.Store
	vault    *vault.Vault
	runtime  ContainerRuntime
	renderer ConfigRenderer
	proxy    ProxySyncer
	notify   Notifier
	cfg      Config
	logger   *slog.Logger
}

func New(st *store.Store, v *vault.Vault, rt ContainerRuntime, renderer ConfigRenderer, proxy ProxySyncer, notifier Notifier, cfg Config, logger *slog.Logger) *Provisioner {
	return &Provisioner{
		store:    st,
		vault:    v,
		runtime:  rt,
		renderer: renderer,
		proxy:    proxy,
		notify:   notifier,
		cfg:      cfg,
		logger:   logger,
	}
}

func (p *Provisioner) audit(ctx context.Context, q *store.Queries, actorID *uuid.UUID, action string, tenantID uuid.UUID) {
	if err := q.InsertAuditEntry(ctx, store.InsertAuditEntryParams{
		ActorID:      actorID,
		Action:       action,
		ResourceKind: "tenant",
		ResourceID:   tenantID.String(),
	}); err != nil {
		p.logger.Error("writing audit entry", "action", action, "tenant_id", tenantID, "error", err)
	}
}
