// Package channel implements the tenant channel routes: list, create,
// update, and delete, guarded by spec.md §4.3's RBAC rules and validated
// against the recognized-kind closed set and the 4KiB config size cap
// spec.md §9 specifies. Channel config is encrypted at rest the same way
// the tenant API key is, scoped per-tenant via internal/vault.
package channel

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/zeroclaw-labs/platform/internal/apperr"
	"github.com/zeroclaw-labs/platform/internal/auth"
	"github.com/zeroclaw-labs/platform/internal/provisioner"
	"github.com/zeroclaw-labs/platform/internal/store"
	"github.com/zeroclaw-labs/platform/internal/vault"
	"github.com/zeroclaw-labs/platform/internal/web"
)

type Handler struct {
	store  *store.Store
	prov   *provisioner.Provisioner
	vault  *vault.Vault
	logger *slog.Logger
}

func NewHandler(st *store.Store, prov *provisioner.Provisioner, v *vault.Vault, logger *slog.Logger) *Handler {
	return &Handler{store: st, prov: prov, vault: v, logger: logger}
}

// Routes mounts under a parent router that has already captured {id} as the
// tenant id, e.g. tenant.Handler's own /{id}/channels mount.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Patch("/{channelID}", h.update)
	r.Delete("/{channelID}", h.delete)
	return r
}

func tenantIDParam(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.UUID{}, apperr.BadRequest("invalid tenant id")
	}
	return id, nil
}

func channelIDParam(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "channelID"))
	if err != nil {
		return uuid.UUID{}, apperr.BadRequest("invalid channel id")
	}
	return id, nil
}

func (h *Handler) requireRole(ctx context.Context, id *auth.Identity, tenantID uuid.UUID, role auth.Role) error {
	return h.store.Read(ctx, func(ctx context.Context, q *store.Queries) error {
		return auth.RequireTenantRole(ctx, q, id, tenantID, role)
	})
}

// checkChannelQuota rejects adding a channel once the tenant's plan limit
// is reached. Returns Forbidden, not Conflict — a plan-entitlement
// rejection rather than a concurrent-write conflict, matching spec.md's
// scenario S2 and the original's channel_routes.rs.
func checkChannelQuota(count int, plan string) error {
	if count >= store.PlanMaxChannels(plan) {
		return apperr.Forbidden("tenant has reached its channel quota")
	}
	return nil
}

type channelResponse struct {
	ID        uuid.UUID `json:"id"`
	TenantID  uuid.UUID `json:"tenant_id"`
	Kind      string    `json:"kind"`
	Enabled   bool      `json:"enabled"`
	HasConfig bool      `json:"has_config"`
}

func toChannelResponse(c store.Channel) channelResponse {
	return channelResponse{ID: c.ID, TenantID: c.TenantID, Kind: c.Kind, Enabled: c.Enabled, HasConfig: c.ConfigEnc != ""}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())
	tenantID, err := tenantIDParam(r)
	if err != nil {
		web.RespondAppError(w, h.logger, err)
		return
	}
	if err := h.requireRole(r.Context(), id, tenantID, auth.RoleViewer); err != nil {
		web.RespondAppError(w, h.logger, err)
		return
	}

	var channels []store.Channel
	err = h.store.Read(r.Context(), func(ctx context.Context, q *store.Queries) error {
		var err error
		channels, err = q.ListChannels(ctx, tenantID)
		return err
	})
	if err != nil {
		web.RespondAppError(w, h.logger, err)
		return
	}

	out := make([]channelResponse, 0, len(channels))
	for _, c := range channels {
		out = append(out, toChannelResponse(c))
	}
	web.Respond(w, http.StatusOK, map[string]any{"channels": out})
}

type createChannelRequest struct {
	Kind   string          `json:"kind" validate:"required"`
	Config json.RawMessage `json:"config"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())
	tenantID, err := tenantIDParam(r)
	if err != nil {
		web.RespondAppError(w, h.logger, err)
		return
	}
	if err := h.requireRole(r.Context(), id, tenantID, auth.RoleManager); err != nil {
		web.RespondAppError(w, h.logger, err)
		return
	}

	var req createChannelRequest
	if !web.DecodeAndValidate(w, r, &req) {
		return
	}
	if !store.RecognizedChannelKinds[req.Kind] {
		web.RespondAppError(w, h.logger, apperr.BadRequest("unrecognized channel kind"))
		return
	}
	if len(req.Config) > store.MaxChannelConfigBytes {
		web.RespondAppError(w, h.logger, apperr.BadRequest("channel config exceeds size limit"))
		return
	}

	configEnc, err := h.encryptConfig(tenantID, req.Kind, req.Config)
	if err != nil {
		web.RespondAppError(w, h.logger, err)
		return
	}

	var channel store.Channel
	var tenant store.Tenant
	err = h.store.Write(r.Context(), func(ctx context.Context, q *store.Queries) error {
		t, err := q.GetTenant(ctx, tenantID)
		if err != nil {
			return err
		}
		tenant = t

		count, err := q.CountChannels(ctx, tenantID)
		if err != nil {
			return err
		}
		if err := checkChannelQuota(count, tenant.Plan); err != nil {
			return err
		}

		channel, err = q.CreateChannel(ctx, store.CreateChannelParams{
			TenantID: tenantID, Kind: req.Kind, ConfigEnc: configEnc,
		})
		if err != nil {
			return err
		}
		if auditErr := q.InsertAuditEntry(ctx, store.InsertAuditEntryParams{
			ActorID: &id.UserID, Action: "channel_created",
			ResourceKind: "channel", ResourceID: channel.ID.String(),
		}); auditErr != nil {
			h.logger.Error("writing audit entry", "action", "channel_created", "error", auditErr)
		}
		return nil
	})
	if err != nil {
		web.RespondAppError(w, h.logger, err)
		return
	}

	if tenant.Status == store.StatusRunning {
		go h.prov.SyncAndRestart(context.Background(), tenantID, id.UserID)
	}
	web.Respond(w, http.StatusCreated, toChannelResponse(channel))
}

func (h *Handler) encryptConfig(tenantID uuid.UUID, kind string, config json.RawMessage) (string, error) {
	if len(config) == 0 {
		return "", nil
	}
	enc, err := h.vault.Encrypt(tenantID[:], "channel_config."+kind, string(config))
	if err != nil {
		return "", apperr.Internalf("encrypting channel config: %w", err)
	}
	return enc, nil
}

type updateChannelRequest struct {
	Enabled *bool           `json:"enabled"`
	Config  json.RawMessage `json:"config"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())
	tenantID, err := tenantIDParam(r)
	if err != nil {
		web.RespondAppError(w, h.logger, err)
		return
	}
	channelID, err := channelIDParam(r)
	if err != nil {
		web.RespondAppError(w, h.logger, err)
		return
	}
	if err := h.requireRole(r.Context(), id, tenantID, auth.RoleManager); err != nil {
		web.RespondAppError(w, h.logger, err)
		return
	}

	var req updateChannelRequest
	if !web.DecodeAndValidate(w, r, &req) {
		return
	}
	if req.Enabled == nil && req.Config == nil {
		web.RespondAppError(w, h.logger, apperr.BadRequest("at least one field must be present"))
		return
	}
	if len(req.Config) > store.MaxChannelConfigBytes {
		web.RespondAppError(w, h.logger, apperr.BadRequest("channel config exceeds size limit"))
		return
	}

	fields := store.UpdateChannelFields{Enabled: req.Enabled}
	var tenant store.Tenant
	err = h.store.Write(r.Context(), func(ctx context.Context, q *store.Queries) error {
		existing, err := q.GetChannel(ctx, channelID)
		if err != nil {
			return err
		}
		if existing.TenantID != tenantID {
			return apperr.NotFound("channel not found")
		}

		if req.Config != nil {
			enc, err := h.encryptConfig(tenantID, existing.Kind, req.Config)
			if err != nil {
				return err
			}
			fields.ConfigEnc = &enc
		}

		if _, err := q.UpdateChannel(ctx, channelID, fields); err != nil {
			return err
		}

		t, err := q.GetTenant(ctx, tenantID)
		if err != nil {
			return err
		}
		tenant = t

		if auditErr := q.InsertAuditEntry(ctx, store.InsertAuditEntryParams{
			ActorID: &id.UserID, Action: "channel_updated",
			ResourceKind: "channel", ResourceID: channelID.String(),
		}); auditErr != nil {
			h.logger.Error("writing audit entry", "action", "channel_updated", "error", auditErr)
		}
		return nil
	})
	if err != nil {
		web.RespondAppError(w, h.logger, err)
		return
	}

	if tenant.Status == store.StatusRunning {
		go h.prov.SyncAndRestart(context.Background(), tenantID, id.UserID)
	}
	web.Respond(w, http.StatusOK, map[string]bool{"updated": true})
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())
	tenantID, err := tenantIDParam(r)
	if err != nil {
		web.RespondAppError(w, h.logger, err)
		return
	}
	channelID, err := channelIDParam(r)
	if err != nil {
		web.RespondAppError(w, h.logger, err)
		return
	}
	if err := h.requireRole(r.Context(), id, tenantID, auth.RoleManager); err != nil {
		web.RespondAppError(w, h.logger, err)
		return
	}

	var tenant store.Tenant
	err = h.store.Write(r.Context(), func(ctx context.Context, q *store.Queries) error {
		existing, err := q.GetChannel(ctx, channelID)
		if err != nil {
			return err
		}
		if existing.TenantID != tenantID {
			return apperr.NotFound("channel not found")
		}

		if err := q.DeleteChannel(ctx, channelID); err != nil {
			return err
		}

		t, err := q.GetTenant(ctx, tenantID)
		if err != nil {
			return err
		}
		tenant = t

		if auditErr := q.InsertAuditEntry(ctx, store.InsertAuditEntryParams{
			ActorID: &id.UserID, Action: "channel_deleted",
			ResourceKind: "channel", ResourceID: channelID.String(),
		}); auditErr != nil {
			h.logger.Error("writing audit entry", "action", "channel_deleted", "error", auditErr)
		}
		return nil
	})
	if err != nil {
		web.RespondAppError(w, h.logger, err)
		return
	}

	if tenant.Status == store.StatusRunning {
		go h.prov.SyncAndRestart(context.Background(), tenantID, id.UserID)
	}
	web.Respond(w, http.StatusOK, map[string]bool{"deleted": true})
}
