// Package tenant implements the Admin API Surface's tenant lifecycle
// routes: list/create/delete, deploy/restart/stop, status/logs/config/exec,
// resource history, and pairing — each following spec.md §4.9's uniform
// authenticate → RBAC → validate → dispatch → audit pattern.
package tenant

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/zeroclaw-labs/platform/internal/apperr"
	"github.com/zeroclaw-labs/platform/internal/auth"
	"github.com/zeroclaw-labs/platform/internal/provisioner"
	"github.com/zeroclaw-labs/platform/internal/store"
	"github.com/zeroclaw-labs/platform/internal/vault"
	"github.com/zeroclaw-labs/platform/internal/web"
)

// Handler serves the tenant lifecycle routes. memberRoutes and
// channelRoutes are mounted under /{id}/members and /{id}/channels —
// nested here rather than mounted separately by the caller, since chi
// disallows two independent top-level mounts sharing the /tenants prefix.
type Handler struct {
	store         *store.Store
	prov          *provisioner.Provisioner
	vault         *vault.Vault
	logger        *slog.Logger
	memberRoutes  http.Handler
	channelRoutes http.Handler
}

func NewHandler(st *store.Store, prov *provisioner.Provisioner, v *vault.Vault, logger *slog.Logger, memberRoutes, channelRoutes http.Handler) *Handler {
	return &Handler{store: st, prov: prov, vault: v, logger: logger, memberRoutes: memberRoutes, channelRoutes: channelRoutes}
}

// Routes mounts every /tenants/... route.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.list)
	r.Post("/", h.create)

	r.Route("/{id}", func(r chi.Router) {
		r.Delete("/", h.delete)
		r.Post("/deploy", h.deploy)
		r.Post("/restart", h.restart)
		r.Post("/stop", h.stop)
		r.Get("/status", h.status)
		r.Get("/logs", h.logs)
		r.Get("/config", h.getConfig)
		r.Patch("/config", h.patchConfig)
		r.Post("/exec", h.exec)
		r.Get("/resources", h.resources)
		r.Get("/pairing", h.getPairing)
		r.Post("/pairing/reset", h.resetPairing)
		r.Mount("/members", h.memberRoutes)
		r.Mount("/channels", h.channelRoutes)
	})
	return r
}

func (h *Handler) requireRole(ctx context.Context, id *auth.Identity, tenantID uuid.UUID, role auth.Role) error {
	return h.store.Read(ctx, func(ctx context.Context, q *store.Queries) error {
		return auth.RequireTenantRole(ctx, q, id, tenantID, role)
	})
}

func (h *Handler) requireSuperAdmin(ctx context.Context, id *auth.Identity) error {
	return h.store.Read(ctx, func(ctx context.Context, q *store.Queries) error {
		return auth.RequireSuperAdmin(ctx, q, id)
	})
}

func tenantIDParam(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.UUID{}, apperr.BadRequest("invalid tenant id")
	}
	return id, nil
}

type tenantResponse struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Status      string    `json:"status"`
	Plan        string    `json:"plan"`
	Port        *int32    `json:"port,omitempty"`
	PairingCode *string   `json:"pairing_code,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func toTenantResponse(t store.Tenant) tenantResponse {
	return tenantResponse{
		ID: t.ID, Name: t.Name, Slug: t.Slug, Status: t.Status, Plan: t.Plan,
		Port: t.Port, PairingCode: t.PairingCode, CreatedAt: t.CreatedAt,
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())
	if id == nil {
		web.RespondAppError(w, h.logger, apperr.Unauthorized("authentication required"))
		return
	}

	const limit = 200
	var tenants []store.Tenant
	err := h.store.Read(r.Context(), func(ctx context.Context, q *store.Queries) error {
		isSuperAdmin, err := q.IsSuperAdmin(ctx, id.UserID)
		if err != nil {
			return err
		}
		if isSuperAdmin {
			tenants, err = q.ListTenants(ctx, limit, 0)
			return err
		}
		tenants, err = q.ListTenantsForUser(ctx, id.UserID, limit, 0)
		return err
	})
	if err != nil {
		web.RespondAppError(w, h.logger, err)
		return
	}

	out := make([]tenantResponse, 0, len(tenants))
	for _, t := range tenants {
		out = append(out, toTenantResponse(t))
	}
	web.Respond(w, http.StatusOK, map[string]any{"tenants": out})
}

type createTenantRequest struct {
	Name string `json:"name" validate:"required,min=1,max=100"`
	Plan string `json:"plan"`
	Slug string `json:"slug"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())
	if err := h.requireSuperAdmin(r.Context(), id); err != nil {
		web.RespondAppError(w, h.logger, err)
		return
	}

	var req createTenantRequest
	if !web.DecodeAndValidate(w, r, &req) {
		return
	}

	params := provisioner.CreateDraftParams{
		Name:    req.Name,
		Plan:    req.Plan,
		OwnerID: id.UserID,
	}

	var tenant store.Tenant
	var err error
	if req.Slug != "" {
		params.Slug = req.Slug
		params.CustomSlug = true
		tenant, err = h.prov.CreateDraft(r.Context(), params)
	} else {
		slug := slugify(req.Name)
		for attempt := 0; attempt < 5; attempt++ {
			params.Slug = slug
			params.CustomSlug = false
			tenant, err = h.prov.CreateDraft(r.Context(), params)
			if err == nil || apperr.KindOf(err) != apperr.KindConflict {
				break
			}
			slug = withSuffix(slugify(req.Name))
		}
	}
	if err != nil {
		web.RespondAppError(w, h.logger, err)
		return
	}

	web.Respond(w, http.StatusCreated, toTenantResponse(tenant))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())
	tenantID, err := tenantIDParam(r)
	if err != nil {
		web.RespondAppError(w, h.logger, err)
		return
	}
	if err := h.requireRole(r.Context(), id, tenantID, auth.RoleOwner); err != nil {
		web.RespondAppError(w, h.logger, err)
		return
	}

	if err := h.prov.Delete(r.Context(), tenantID, id.UserID); err != nil {
		web.RespondAppError(w, h.logger, err)
		return
	}
	web.Respond(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (h *Handler) deploy(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, auth.RoleManager, func(ctx context.Context, tenantID, actorID uuid.UUID) error {
		return h.prov.Deploy(ctx, tenantID, actorID)
	}, "deployed")
}

func (h *Handler) restart(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, auth.RoleManager, func(ctx context.Context, tenantID, actorID uuid.UUID) error {
		return h.prov.Restart(ctx, tenantID, actorID)
	}, "restarted")
}

func (h *Handler) stop(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, auth.RoleManager, func(ctx context.Context, tenantID, actorID uuid.UUID) error {
		return h.prov.Stop(ctx, tenantID, actorID)
	}, "stopped")
}

// dispatch is the shared authenticate→RBAC→dispatch→respond shape behind
// deploy/restart/stop: each returns the tenant's resulting status alongside
// the verb flag spec.md §6 specifies for successful mutations.
func (h *Handler) dispatch(w http.ResponseWriter, r *http.Request, role auth.Role, op func(ctx context.Context, tenantID, actorID uuid.UUID) error, verb string) {
	id := auth.FromContext(r.Context())
	tenantID, err := tenantIDParam(r)
	if err != nil {
		web.RespondAppError(w, h.logger, err)
		return
	}
	if err := h.requireRole(r.Context(), id, tenantID, role); err != nil {
		web.RespondAppError(w, h.logger, err)
		return
	}

	if err := op(r.Context(), tenantID, id.UserID); err != nil {
		web.RespondAppError(w, h.logger, err)
		return
	}

	var tenant store.Tenant
	_ = h.store.Read(r.Context(), func(ctx context.Context, q *store.Queries) error {
		var err error
		tenant, err = q.GetTenant(ctx, tenantID)
		return err
	})
	web.Respond(w, http.StatusOK, map[string]any{verb: true, "status": tenant.Status})
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
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

	var tenant store.Tenant
	err = h.store.Read(r.Context(), func(ctx context.Context, q *store.Queries) error {
		var err error
		tenant, err = q.GetTenant(ctx, tenantID)
		return err
	})
	if err != nil {
		web.RespondAppError(w, h.logger, err)
		return
	}
	web.Respond(w, http.StatusOK, toTenantResponse(tenant))
}

func (h *Handler) logs(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())
	tenantID, err := tenantIDParam(r)
	if err != nil {
		web.RespondAppError(w, h.logger, err)
		return
	}
	if err := h.requireRole(r.Context(), id, tenantID, auth.RoleContributor); err != nil {
		web.RespondAppError(w, h.logger, err)
		return
	}

	lines := 200
	if v := r.URL.Query().Get("lines"); v != "" {
		if n, convErr := strconv.Atoi(v); convErr == nil && n > 0 {
			lines = n
		}
	}

	out, err := h.prov.Logs(r.Context(), tenantID, lines)
	if err != nil {
		web.RespondAppError(w, h.logger, err)
		return
	}
	web.Respond(w, http.StatusOK, map[string]string{"logs": out})
}

type configResponse struct {
	Provider      string  `json:"provider"`
	Model         string  `json:"model"`
	Temperature   float64 `json:"temperature"`
	AutonomyLevel string  `json:"autonomy_level"`
	SystemPrompt  *string `json:"system_prompt,omitempty"`
	APIKeyMasked  string  `json:"api_key_masked"`
}

func (h *Handler) getConfig(w http.ResponseWriter, r *http.Request) {
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

	var cfg store.TenantConfig
	err = h.store.Read(r.Context(), func(ctx context.Context, q *store.Queries) error {
		var err error
		cfg, err = q.GetTenantConfig(ctx, tenantID)
		return err
	})
	if err != nil {
		web.RespondAppError(w, h.logger, err)
		return
	}

	plain, _ := h.vault.DecryptTenantAPIKey(tenantID, cfg.APIKeyEnc)
	web.Respond(w, http.StatusOK, configResponse{
		Provider: cfg.Provider, Model: cfg.Model, Temperature: cfg.Temperature,
		AutonomyLevel: cfg.AutonomyLevel, SystemPrompt: cfg.SystemPrompt,
		APIKeyMasked: vault.MaskAPIKey(plain),
	})
}

type patchConfigRequest struct {
	Provider      *string  `json:"provider"`
	Model         *string  `json:"model"`
	Temperature   *float64 `json:"temperature"`
	AutonomyLevel *string  `json:"autonomy_level"`
	SystemPrompt  *string  `json:"system_prompt"`
	APIKey        *string  `json:"api_key"`
}

func (h *Handler) patchConfig(w http.ResponseWriter, r *http.Request) {
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

	var req patchConfigRequest
	if !web.DecodeAndValidate(w, r, &req) {
		return
	}
	if req.Provider == nil && req.Model == nil && req.Temperature == nil &&
		req.AutonomyLevel == nil && req.SystemPrompt == nil && req.APIKey == nil {
		web.RespondAppError(w, h.logger, apperr.BadRequest("at least one field must be present"))
		return
	}

	fields := store.UpdateTenantConfigFields{
		Provider: req.Provider, Model: req.Model, Temperature: req.Temperature,
		AutonomyLevel: req.AutonomyLevel, SystemPrompt: req.SystemPrompt,
	}
	if req.APIKey != nil {
		enc, encErr := h.vault.EncryptTenantAPIKey(tenantID, *req.APIKey)
		if encErr != nil {
			web.RespondAppError(w, h.logger, apperr.Internalf("encrypting api key: %w", encErr))
			return
		}
		fields.APIKeyEnc = &enc
	}

	err = h.store.Write(r.Context(), func(ctx context.Context, q *store.Queries) error {
		changed, err := q.UpdateTenantConfig(ctx, tenantID, fields)
		if err != nil {
			return err
		}
		if !changed {
			return apperr.NotFound("tenant config not found")
		}
		if auditErr := q.InsertAuditEntry(ctx, store.InsertAuditEntryParams{
			ActorID: &id.UserID, Action: "tenant_config_updated",
			ResourceKind: "tenant", ResourceID: tenantID.String(),
		}); auditErr != nil {
			h.logger.Error("writing audit entry", "action", "tenant_config_updated", "error", auditErr)
		}
		return nil
	})
	if err != nil {
		web.RespondAppError(w, h.logger, err)
		return
	}

	// Reconcile job: re-render and restart a running tenant to pick up the
	// new config. Detached from the request per spec.md §9's design note.
	go h.prov.SyncAndRestart(context.Background(), tenantID, id.UserID)

	web.Respond(w, http.StatusOK, map[string]bool{"updated": true})
}

// execWhitelistPrefixes is the closed set of first-two-token prefixes the
// exec endpoint accepts, per spec.md §9/§9-design-notes and the original's
// channel bind-* whitelist (user_routes.rs has no analog; this mirrors
// tenant_routes.rs's exec_in_tenant allowed_prefixes).
var execWhitelistPrefixes = [][]string{
	{"channel", "bind-telegram"},
	{"channel", "bind-discord"},
	{"channel", "bind-slack"},
	{"channel", "bind-whatsapp"},
}

const shellMetacharacters = ";|&$`"

type execRequest struct {
	Command string `json:"command" validate:"required"`
}

func (h *Handler) exec(w http.ResponseWriter, r *http.Request) {
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

	var req execRequest
	if !web.DecodeAndValidate(w, r, &req) {
		return
	}

	argv, err := parseExecCommand(req.Command)
	if err != nil {
		web.RespondAppError(w, h.logger, err)
		return
	}

	out, err := h.prov.Exec(r.Context(), tenantID, id.UserID, argv)
	if err != nil {
		web.RespondAppError(w, h.logger, err)
		return
	}
	web.Respond(w, http.StatusOK, map[string]string{"output": out})
}

func parseExecCommand(command string) ([]string, error) {
	argv := strings.Fields(command)
	if len(argv) < 2 {
		return nil, apperr.BadRequest("command must have at least two tokens")
	}
	for _, tok := range argv {
		if strings.ContainsAny(tok, shellMetacharacters) {
			return nil, apperr.BadRequest("command contains disallowed shell metacharacters")
		}
	}

	allowed := false
	for _, prefix := range execWhitelistPrefixes {
		if argv[0] == prefix[0] && argv[1] == prefix[1] {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, apperr.BadRequest("command does not match any whitelisted prefix")
	}
	return argv, nil
}

func (h *Handler) resources(w http.ResponseWriter, r *http.Request) {
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

	since := time.Now().Add(-resourceRangeWindow(r.URL.Query().Get("range")))

	var snapshots []store.ResourceSnapshot
	err = h.store.Read(r.Context(), func(ctx context.Context, q *store.Queries) error {
		var err error
		snapshots, err = q.ResourceSnapshotHistory(ctx, tenantID, since)
		return err
	})
	if err != nil {
		web.RespondAppError(w, h.logger, err)
		return
	}
	web.Respond(w, http.StatusOK, map[string]any{"snapshots": snapshots})
}

func resourceRangeWindow(rangeParam string) time.Duration {
	switch rangeParam {
	case "6h":
		return 6 * time.Hour
	case "24h":
		return 24 * time.Hour
	case "7d":
		return 7 * 24 * time.Hour
	default:
		return time.Hour
	}
}

func (h *Handler) getPairing(w http.ResponseWriter, r *http.Request) {
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

	code, err := h.prov.GetPairingCode(r.Context(), tenantID)
	if err != nil {
		web.RespondAppError(w, h.logger, err)
		return
	}
	web.Respond(w, http.StatusOK, map[string]*string{"pairing_code": code})
}

func (h *Handler) resetPairing(w http.ResponseWriter, r *http.Request) {
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

	if err := h.prov.ResetPairing(r.Context(), tenantID, id.UserID); err != nil {
		web.RespondAppError(w, h.logger, err)
		return
	}
	web.Respond(w, http.StatusOK, map[string]bool{"reset": true})
}
