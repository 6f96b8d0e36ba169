// Package monitoring implements the super-admin monitoring surface:
// dashboard rollup, health, usage, audit feed, and resource totals
// (spec.md §6, §11). Every route is super-admin-only except usage, which
// also accepts a tenant-scoped Viewer form.
package monitoring

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/zeroclaw-labs/platform/internal/apperr"
	"github.com/zeroclaw-labs/platform/internal/auth"
	"github.com/zeroclaw-labs/platform/internal/store"
	"github.com/zeroclaw-labs/platform/internal/web"
)

type Handler struct {
	store  *store.Store
	logger *slog.Logger
}

func NewHandler(st *store.Store, logger *slog.Logger) *Handler {
	return &Handler{store: st, logger: logger}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/dashboard", h.dashboard)
	r.Get("/health", h.health)
	r.Get("/usage", h.usage)
	r.Get("/audit", h.audit)
	r.Get("/resources", h.resources)
	return r
}

func (h *Handler) requireSuperAdmin(ctx context.Context, id *auth.Identity) error {
	return h.store.Read(ctx, func(ctx context.Context, q *store.Queries) error {
		return auth.RequireSuperAdmin(ctx, q, id)
	})
}

// dashboard aggregates tenant counts by status, total allocated ports/uids,
// and recent audit volume, per spec.md §11's supplemented feature.
func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())
	if err := h.requireSuperAdmin(r.Context(), id); err != nil {
		web.RespondAppError(w, h.logger, err)
		return
	}

	var tenants []store.Tenant
	var maxPort, maxUID int32
	var recentAudit []store.AuditEntry
	err := h.store.Read(r.Context(), func(ctx context.Context, q *store.Queries) error {
		var err error
		tenants, err = q.ListTenants(ctx, 10000, 0)
		if err != nil {
			return err
		}
		maxPort, err = q.MaxAllocatedPort(ctx)
		if err != nil {
			return err
		}
		maxUID, err = q.MaxAllocatedUID(ctx)
		if err != nil {
			return err
		}
		recentAudit, err = q.ListAuditSince(ctx, time.Now().Add(-24*time.Hour), 1000)
		return err
	})
	if err != nil {
		web.RespondAppError(w, h.logger, err)
		return
	}

	byStatus := map[string]int{}
	for _, t := range tenants {
		byStatus[t.Status]++
	}

	web.Respond(w, http.StatusOK, map[string]any{
		"tenants_by_status":  byStatus,
		"tenants_total":      len(tenants),
		"max_allocated_port": maxPort,
		"max_allocated_uid":  maxUID,
		"audit_entries_24h":  len(recentAudit),
	})
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())
	if err := h.requireSuperAdmin(r.Context(), id); err != nil {
		web.RespondAppError(w, h.logger, err)
		return
	}

	var tenants []store.Tenant
	err := h.store.Read(r.Context(), func(ctx context.Context, q *store.Queries) error {
		var err error
		tenants, err = q.ListTenants(ctx, 10000, 0)
		return err
	})
	if err != nil {
		web.RespondAppError(w, h.logger, err)
		return
	}

	errored := 0
	for _, t := range tenants {
		if t.Status == store.StatusError {
			errored++
		}
	}
	web.Respond(w, http.StatusOK, map[string]any{
		"status":          "ok",
		"tenants_total":   len(tenants),
		"tenants_errored": errored,
	})
}

func (h *Handler) usage(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())
	if id == nil {
		web.RespondAppError(w, h.logger, apperr.Unauthorized("authentication required"))
		return
	}

	if tenantIDParam := r.URL.Query().Get("tenant_id"); tenantIDParam != "" {
		tenantID, err := uuid.Parse(tenantIDParam)
		if err != nil {
			web.RespondAppError(w, h.logger, apperr.BadRequest("invalid tenant_id"))
			return
		}
		if err := h.store.Read(r.Context(), func(ctx context.Context, q *store.Queries) error {
			return auth.RequireTenantRole(ctx, q, id, tenantID, auth.RoleViewer)
		}); err != nil {
			web.RespondAppError(w, h.logger, err)
			return
		}

		var snapshot store.ResourceSnapshot
		err = h.store.Read(r.Context(), func(ctx context.Context, q *store.Queries) error {
			var err error
			snapshot, err = q.LatestResourceSnapshot(ctx, tenantID)
			return err
		})
		if err != nil {
			web.RespondAppError(w, h.logger, err)
			return
		}
		web.Respond(w, http.StatusOK, snapshot)
		return
	}

	if err := h.requireSuperAdmin(r.Context(), id); err != nil {
		web.RespondAppError(w, h.logger, err)
		return
	}

	var tenants []store.Tenant
	err := h.store.Read(r.Context(), func(ctx context.Context, q *store.Queries) error {
		var err error
		tenants, err = q.ListTenants(ctx, 10000, 0)
		return err
	})
	if err != nil {
		web.RespondAppError(w, h.logger, err)
		return
	}

	var totalCPU float64
	var totalMem int64
	count := 0
	_ = h.store.Read(r.Context(), func(ctx context.Context, q *store.Queries) error {
		for _, t := range tenants {
			if t.Status != store.StatusRunning {
				continue
			}
			snap, err := q.LatestResourceSnapshot(ctx, t.ID)
			if err != nil {
				continue
			}
			totalCPU += snap.CPUPercent
			totalMem += snap.MemBytes
			count++
		}
		return nil
	})

	web.Respond(w, http.StatusOK, map[string]any{
		"running_tenants":   count,
		"total_cpu_percent": totalCPU,
		"total_mem_bytes":   totalMem,
	})
}

func (h *Handler) audit(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())
	if err := h.requireSuperAdmin(r.Context(), id); err != nil {
		web.RespondAppError(w, h.logger, err)
		return
	}

	since := time.Now().Add(-24 * time.Hour)
	var entries []store.AuditEntry
	err := h.store.Read(r.Context(), func(ctx context.Context, q *store.Queries) error {
		var err error
		entries, err = q.ListAuditSince(ctx, since, 500)
		return err
	})
	if err != nil {
		web.RespondAppError(w, h.logger, err)
		return
	}
	web.Respond(w, http.StatusOK, map[string]any{"entries": entries})
}

func (h *Handler) resources(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())
	if err := h.requireSuperAdmin(r.Context(), id); err != nil {
		web.RespondAppError(w, h.logger, err)
		return
	}

	var tenants []store.Tenant
	err := h.store.Read(r.Context(), func(ctx context.Context, q *store.Queries) error {
		var err error
		tenants, err = q.ListTenants(ctx, 10000, 0)
		return err
	})
	if err != nil {
		web.RespondAppError(w, h.logger, err)
		return
	}

	type tenantSnapshot struct {
		TenantID uuid.UUID               `json:"tenant_id"`
		Slug     string                  `json:"slug"`
		Snapshot *store.ResourceSnapshot `json:"snapshot,omitempty"`
	}
	out := make([]tenantSnapshot, 0, len(tenants))
	_ = h.store.Read(r.Context(), func(ctx context.Context, q *store.Queries) error {
		for _, t := range tenants {
			snap, err := q.LatestResourceSnapshot(ctx, t.ID)
			entry := tenantSnapshot{TenantID: t.ID, Slug: t.Slug}
			if err == nil {
				entry.Snapshot = &snap
			}
			out = append(out, entry)
		}
		return nil
	})
	web.Respond(w, http.StatusOK, map[string]any{"tenants": out})
}
