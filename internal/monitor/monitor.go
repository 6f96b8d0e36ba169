// Package monitor runs the Resource Monitor: a periodic task that samples
// every live tenant's container stats and records a ResourceSnapshot,
// pruning old snapshots past a retention horizon. Scheduling follows
// robfig/cron/v3 (as the R3E Network service-layer example uses for its
// periodic jobs); the background-goroutine-with-graceful-drain shape is
// grounded on the teacher's internal/audit.Writer.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/zeroclaw-labs/platform/internal/provisioner"
	"github.com/zeroclaw-labs/platform/internal/store"
	"github.com/zeroclaw-labs/platform/internal/telemetry"
)

// liveStatuses is the set of tenant states the monitor samples; a tenant
// in draft or deleting has no running container to observe.
var liveStatuses = map[string]bool{
	store.StatusRunning:      true,
	store.StatusError:        true,
	store.StatusProvisioning: true,
}

type Monitor struct {
	store     *store.Store
	runtime   provisioner.ContainerRuntime
	cron      *cron.Cron
	interval  time.Duration
	retention time.Duration
	logger    *slog.Logger
}

func New(st *store.Store, runtime provisioner.ContainerRuntime, interval, retention time.Duration, logger *slog.Logger) *Monitor {
	return &Monitor{
		store:     st,
		runtime:   runtime,
		cron:      cron.New(),
		interval:  interval,
		retention: retention,
		logger:    logger,
	}
}

// Start schedules the scrape-and-prune job and begins running it. It
// returns once the cron scheduler has started; call Stop to drain.
func (m *Monitor) Start(ctx context.Context) error {
	spec := fmt.Sprintf("@every %s", m.interval)
	_, err := m.cron.AddFunc(spec, func() { m.scrapeOnce(ctx) })
	if err != nil {
		return fmt.Errorf("monitor: scheduling scrape job: %w", err)
	}
	m.cron.Start()
	return nil
}

func (m *Monitor) Stop() {
	stopCtx := m.cron.Stop()
	<-stopCtx.Done()
}

func (m *Monitor) scrapeOnce(ctx context.Context) {
	start := time.Now()
	defer func() {
		telemetry.MonitorScrapeDuration.Observe(time.Since(start).Seconds())
	}()

	var tenants []store.Tenant
	err := m.store.Read(ctx, func(ctx context.Context, q *store.Queries) error {
		var err error
		tenants, err = q.ListTenants(ctx, 10_000, 0)
		return err
	})
	if err != nil {
		telemetry.MonitorScrapeErrorsTotal.Inc()
		m.logger.Error("monitor: listing tenants", "error", err)
		return
	}

	for _, t := range tenants {
		if !liveStatuses[t.Status] {
			continue
		}
		m.scrapeTenant(ctx, t)
	}

	if err := m.store.Write(ctx, func(ctx context.Context, q *store.Queries) error {
		cutoff := time.Now().Add(-m.retention)
		_, err := q.PruneResourceSnapshots(ctx, cutoff)
		return err
	}); err != nil {
		m.logger.Error("monitor: pruning snapshots", "error", err)
	}
}

func (m *Monitor) scrapeTenant(ctx context.Context, t store.Tenant) {
	stats, err := m.runtime.Stats(ctx, t.Slug)
	if err != nil {
		telemetry.MonitorScrapeErrorsTotal.Inc()
		m.logger.Warn("monitor: fetching stats", "tenant_id", t.ID, "slug", t.Slug, "error", err)
		return
	}

	err = m.store.Write(ctx, func(ctx context.Context, q *store.Queries) error {
		return q.InsertResourceSnapshot(ctx, store.InsertResourceSnapshotParams{
			TenantID:    t.ID,
			CPUPercent:  stats.CPUPercent,
			MemBytes:    stats.MemBytes,
			MemLimit:    stats.MemLimit,
			DiskBytes:   stats.DiskBytes,
			NetInBytes:  stats.NetInBytes,
			NetOutBytes: stats.NetOutBytes,
			PIDs:        stats.PIDs,
		})
	})
	if err != nil {
		telemetry.MonitorScrapeErrorsTotal.Inc()
		m.logger.Error("monitor: writing snapshot", "tenant_id", t.ID, "error", err)
	}
}
