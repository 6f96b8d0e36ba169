// Package member implements the tenant membership routes: list, add,
// role-change, and remove, guarded by spec.md §4.3's RBAC rules and the
// owner-protections spec.md §9 calls out (last owner cannot be demoted or
// removed; only a super-admin can promote a member to owner).
package member

import (
	"context"
	"log/slog"
	"net/http"

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

// Routes mounts under a parent router that has already captured {id} as the
// tenant id, e.g. tenant.Handler's own /{id}/members mount.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.list)
	r.Post("/", h.add)
	r.Patch("/{memberID}", h.updateRole)
	r.Delete("/{memberID}", h.remove)
	return r
}

func tenantIDParam(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.UUID{}, apperr.BadRequest("invalid tenant id")
	}
	return id, nil
}

func memberIDParam(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "memberID"))
	if err != nil {
		return uuid.UUID{}, apperr.BadRequest("invalid member id")
	}
	return id, nil
}

func (h *Handler) requireRole(ctx context.Context, id *auth.Identity, tenantID uuid.UUID, role auth.Role) error {
	return h.store.Read(ctx, func(ctx context.Context, q *store.Queries) error {
		return auth.RequireTenantRole(ctx, q, id, tenantID, role)
	})
}

// checkMemberQuota rejects adding a member once the tenant's plan limit is
// reached. Returns Forbidden, not Conflict — this is a plan-entitlement
// rejection, not a concurrent-write conflict (spec.md's scenario S2, and
// the original's member_routes.rs, both treat quota as a 403).
func checkMemberQuota(count int, plan string) error {
	if count >= store.PlanMaxMembers(plan) {
		return apperr.Forbidden("tenant has reached its member quota")
	}
	return nil
}

// checkNotLastOwner rejects demoting or removing the tenant's sole
// remaining owner. BadRequest, not Conflict: this is a validation failure
// on the request shape (spec.md's scenario S3 and member_routes.rs agree).
func checkNotLastOwner(owners int, message string) error {
	if owners <= 1 {
		return apperr.BadRequest(message)
	}
	return nil
}

// checkNotSelf rejects a member removing their own membership. BadRequest,
// matching the original's member_routes.rs and spec.md §4.9's grouping of
// self-removal with its other input-validation rejections.
func checkNotSelf(targetUserID, callerUserID uuid.UUID) error {
	if targetUserID == callerUserID {
		return apperr.BadRequest("cannot remove yourself")
	}
	return nil
}

type memberResponse struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	Role        string    `json:"role"`
}

func toMemberResponse(m store.MemberWithUser) memberResponse {
	return memberResponse{ID: m.ID, UserID: m.UserID, Email: m.Email, DisplayName: m.DisplayName, Role: m.Role}
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

	var members []store.MemberWithUser
	err = h.store.Read(r.Context(), func(ctx context.Context, q *store.Queries) error {
		var err error
		members, err = q.ListMembers(ctx, tenantID)
		return err
	})
	if err != nil {
		web.RespondAppError(w, h.logger, err)
		return
	}

	out := make([]memberResponse, 0, len(members))
	for _, m := range members {
		out = append(out, toMemberResponse(m))
	}
	web.Respond(w, http.StatusOK, map[string]any{"members": out})
}

type addMemberRequest struct {
	UserID uuid.UUID `json:"user_id" validate:"required"`
	Role   string    `json:"role" validate:"required"`
}

func (h *Handler) add(w http.ResponseWriter, r *http.Request) {
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

	var req addMemberRequest
	if !web.DecodeAndValidate(w, r, &req) {
		return
	}
	role := auth.Role(req.Role)
	if !auth.IsValidRole(role) {
		web.RespondAppError(w, h.logger, apperr.BadRequest("unknown role"))
		return
	}
	if role == auth.RoleOwner {
		if err := h.requireSuperAdminPromotion(r.Context(), id); err != nil {
			web.RespondAppError(w, h.logger, err)
			return
		}
	}

	var member store.Member
	var tenant store.Tenant
	err = h.store.Write(r.Context(), func(ctx context.Context, q *store.Queries) error {
		t, err := q.GetTenant(ctx, tenantID)
		if err != nil {
			return err
		}
		tenant = t

		count, err := q.CountMembers(ctx, tenantID)
		if err != nil {
			return err
		}
		if err := checkMemberQuota(count, tenant.Plan); err != nil {
			return err
		}

		member, err = q.AddMember(ctx, tenantID, req.UserID, string(role))
		if err != nil {
			return err
		}
		if auditErr := q.InsertAuditEntry(ctx, store.InsertAuditEntryParams{
			ActorID: &id.UserID, Action: "member_added",
			ResourceKind: "member", ResourceID: member.ID.String(),
		}); auditErr != nil {
			h.logger.Error("writing audit entry", "action", "member_added", "error", auditErr)
		}
		return nil
	})
	if err != nil {
		web.RespondAppError(w, h.logger, err)
		return
	}
	web.Respond(w, http.StatusCreated, map[string]any{
		"id": member.ID, "user_id": member.UserID, "role": member.Role,
	})
}

// requireSuperAdminPromotion is the extra check spec.md §9 lists alongside
// RBAC: promoting a member to owner requires a super-admin caller, not just
// an owner of the tenant.
func (h *Handler) requireSuperAdminPromotion(ctx context.Context, id *auth.Identity) error {
	return h.store.Read(ctx, func(ctx context.Context, q *store.Queries) error {
		return auth.RequireSuperAdmin(ctx, q, id)
	})
}

type updateRoleRequest struct {
	Role string `json:"role" validate:"required"`
}

func (h *Handler) updateRole(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())
	tenantID, err := tenantIDParam(r)
	if err != nil {
		web.RespondAppError(w, h.logger, err)
		return
	}
	memberID, err := memberIDParam(r)
	if err != nil {
		web.RespondAppError(w, h.logger, err)
		return
	}
	if err := h.requireRole(r.Context(), id, tenantID, auth.RoleOwner); err != nil {
		web.RespondAppError(w, h.logger, err)
		return
	}

	var req updateRoleRequest
	if !web.DecodeAndValidate(w, r, &req) {
		return
	}
	newRole := auth.Role(req.Role)
	if !auth.IsValidRole(newRole) {
		web.RespondAppError(w, h.logger, apperr.BadRequest("unknown role"))
		return
	}
	if newRole == auth.RoleOwner {
		if err := h.requireSuperAdminPromotion(r.Context(), id); err != nil {
			web.RespondAppError(w, h.logger, err)
			return
		}
	}

	err = h.store.Write(r.Context(), func(ctx context.Context, q *store.Queries) error {
		existing, err := q.GetMember(ctx, memberID)
		if err != nil {
			return err
		}
		if existing.TenantID != tenantID {
			return apperr.NotFound("member not found")
		}

		if existing.Role == store.MemberRoleOwner && newRole != auth.RoleOwner {
			owners, err := q.CountOwners(ctx, tenantID)
			if err != nil {
				return err
			}
			if err := checkNotLastOwner(owners, "cannot demote the last owner"); err != nil {
				return err
			}
		}

		if err := q.UpdateMemberRole(ctx, memberID, string(newRole)); err != nil {
			return err
		}
		if auditErr := q.InsertAuditEntry(ctx, store.InsertAuditEntryParams{
			ActorID: &id.UserID, Action: "member_role_updated",
			ResourceKind: "member", ResourceID: memberID.String(),
		}); auditErr != nil {
			h.logger.Error("writing audit entry", "action", "member_role_updated", "error", auditErr)
		}
		return nil
	})
	if err != nil {
		web.RespondAppError(w, h.logger, err)
		return
	}
	web.Respond(w, http.StatusOK, map[string]bool{"updated": true})
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())
	tenantID, err := tenantIDParam(r)
	if err != nil {
		web.RespondAppError(w, h.logger, err)
		return
	}
	memberID, err := memberIDParam(r)
	if err != nil {
		web.RespondAppError(w, h.logger, err)
		return
	}
	if err := h.requireRole(r.Context(), id, tenantID, auth.RoleOwner); err != nil {
		web.RespondAppError(w, h.logger, err)
		return
	}

	err = h.store.Write(r.Context(), func(ctx context.Context, q *store.Queries) error {
		existing, err := q.GetMember(ctx, memberID)
		if err != nil {
			return err
		}
		if existing.TenantID != tenantID {
			return apperr.NotFound("member not found")
		}
		if err := checkNotSelf(existing.UserID, id.UserID); err != nil {
			return err
		}
		if existing.Role == store.MemberRoleOwner {
			owners, err := q.CountOwners(ctx, tenantID)
			if err != nil {
				return err
			}
			if err := checkNotLastOwner(owners, "cannot remove the last owner"); err != nil {
				return err
			}
		}

		if err := q.RemoveMember(ctx, memberID); err != nil {
			return err
		}
		if auditErr := q.InsertAuditEntry(ctx, store.InsertAuditEntryParams{
			ActorID: &id.UserID, Action: "member_removed",
			ResourceKind: "member", ResourceID: memberID.String(),
		}); auditErr != nil {
			h.logger.Error("writing audit entry", "action", "member_removed", "error", auditErr)
		}
		return nil
	})
	if err != nil {
		web.RespondAppError(w, h.logger, err)
		return
	}
	web.Respond(w, http.StatusOK, map[string]bool{"removed": true})
}
