// Package user implements the caller's own profile (GET/PATCH /users/me,
// email immutable once verified by OTP per spec.md §4.2's identity model)
// and the super-admin user-management surface (list/create/patch/delete),
// grounded on the original's user_routes.rs.
package user

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

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/me", h.me)
	r.Patch("/me", h.update)
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Patch("/{id}", h.updateUser)
	r.Delete("/{id}", h.deleteUser)
	return r
}

func (h *Handler) requireSuperAdmin(ctx context.Context, id *auth.Identity) error {
	return h.store.Read(ctx, func(ctx context.Context, q *store.Queries) error {
		return auth.RequireSuperAdmin(ctx, q, id)
	})
}

func userIDParam(r *http.Request) (uuid.UUID, error) {
	v, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.UUID{}, apperr.BadRequest("invalid user id")
	}
	return v, nil
}

// checkNotSelfRevocation enforces spec.md §4.9's explicit "self-revocation
// of super-admin" validation rule: a super-admin may never use this
// endpoint to flip their own is_super_admin flag to false.
func checkNotSelfRevocation(targetID, callerID uuid.UUID, wantSuperAdmin *bool) error {
	if targetID == callerID && wantSuperAdmin != nil && !*wantSuperAdmin {
		return apperr.BadRequest("cannot revoke your own super_admin status")
	}
	return nil
}

// checkNotSelfDelete mirrors the original's delete_user self-deletion guard.
func checkNotSelfDelete(targetID, callerID uuid.UUID) error {
	if targetID == callerID {
		return apperr.BadRequest("cannot delete yourself")
	}
	return nil
}

type meResponse struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	DisplayName  string `json:"display_name"`
	IsSuperAdmin bool   `json:"is_super_admin"`
}

func toMeResponse(u store.User) meResponse {
	return meResponse{ID: u.ID.String(), Email: u.Email, DisplayName: u.DisplayName, IsSuperAdmin: u.IsSuperAdmin}
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())
	if id == nil {
		web.RespondAppError(w, h.logger, apperr.Unauthorized("authentication required"))
		return
	}

	var u store.User
	err := h.store.Read(r.Context(), func(ctx context.Context, q *store.Queries) error {
		var err error
		u, err = q.GetUser(ctx, id.UserID)
		return err
	})
	if err != nil {
		web.RespondAppError(w, h.logger, err)
		return
	}
	web.Respond(w, http.StatusOK, toMeResponse(u))
}

type updateMeRequest struct {
	DisplayName string `json:"display_name" validate:"required,min=1,max=100"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())
	if id == nil {
		web.RespondAppError(w, h.logger, apperr.Unauthorized("authentication required"))
		return
	}

	var req updateMeRequest
	if !web.DecodeAndValidate(w, r, &req) {
		return
	}

	var u store.User
	err := h.store.Write(r.Context(), func(ctx context.Context, q *store.Queries) error {
		if err := q.UpdateDisplayName(ctx, id.UserID, req.DisplayName); err != nil {
			return err
		}
		var err error
		u, err = q.GetUser(ctx, id.UserID)
		return err
	})
	if err != nil {
		web.RespondAppError(w, h.logger, err)
		return
	}
	web.Respond(w, http.StatusOK, toMeResponse(u))
}

// list returns every platform user — super-admin only.
func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())
	if err := h.requireSuperAdmin(r.Context(), id); err != nil {
		web.RespondAppError(w, h.logger, err)
		return
	}

	var users []store.User
	err := h.store.Read(r.Context(), func(ctx context.Context, q *store.Queries) error {
		var err error
		users, err = q.ListUsers(ctx)
		return err
	})
	if err != nil {
		web.RespondAppError(w, h.logger, err)
		return
	}
	out := make([]meResponse, len(users))
	for i, u := range users {
		out[i] = toMeResponse(u)
	}
	web.Respond(w, http.StatusOK, out)
}

type createUserRequest struct {
	Email       string `json:"email" validate:"required,email"`
	DisplayName string `json:"display_name" validate:"max=100"`
}

// create provisions a user account directly (no OTP round-trip) — the
// super-admin's out-of-band onboarding path, mirroring the original's
// create_user. The new account is never super-admin; use updateUser to
// promote it afterward.
func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())
	if err := h.requireSuperAdmin(r.Context(), id); err != nil {
		web.RespondAppError(w, h.logger, err)
		return
	}

	var req createUserRequest
	if !web.DecodeAndValidate(w, r, &req) {
		return
	}

	var u store.User
	err := h.store.Write(r.Context(), func(ctx context.Context, q *store.Queries) error {
		var err error
		u, err = q.CreateUser(ctx, req.Email, req.DisplayName)
		if err != nil {
			return err
		}
		return q.InsertAuditEntry(ctx, store.InsertAuditEntryParams{
			ActorID: &id.UserID, Action: "user_created",
			ResourceKind: "user", ResourceID: u.ID.String(),
		})
	})
	if err != nil {
		web.RespondAppError(w, h.logger, err)
		return
	}
	web.Respond(w, http.StatusCreated, toMeResponse(u))
}

type updateUserRequest struct {
	DisplayName  *string `json:"display_name" validate:"omitempty,min=1,max=100"`
	IsSuperAdmin *bool   `json:"is_super_admin"`
}

// updateUser is the super-admin-only PATCH /users/{id}: it can rename a
// user and flip their is_super_admin flag. Per spec.md §4.9's explicit
// "self-revocation of super-admin" validation rule, a super-admin may
// never use this endpoint to strip their own super-admin status.
func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())
	if err := h.requireSuperAdmin(r.Context(), id); err != nil {
		web.RespondAppError(w, h.logger, err)
		return
	}
	targetID, err := userIDParam(r)
	if err != nil {
		web.RespondAppError(w, h.logger, err)
		return
	}

	var req updateUserRequest
	if !web.DecodeAndValidate(w, r, &req) {
		return
	}
	if req.DisplayName == nil && req.IsSuperAdmin == nil {
		web.RespondAppError(w, h.logger, apperr.BadRequest("no fields to update"))
		return
	}
	if err := checkNotSelfRevocation(targetID, id.UserID, req.IsSuperAdmin); err != nil {
		web.RespondAppError(w, h.logger, err)
		return
	}

	err = h.store.Write(r.Context(), func(ctx context.Context, q *store.Queries) error {
		if err := q.UpdateUserAdminFields(ctx, targetID, req.DisplayName, req.IsSuperAdmin); err != nil {
			return err
		}
		return q.InsertAuditEntry(ctx, store.InsertAuditEntryParams{
			ActorID: &id.UserID, Action: "user_updated",
			ResourceKind: "user", ResourceID: targetID.String(),
		})
	})
	if err != nil {
		web.RespondAppError(w, h.logger, err)
		return
	}
	web.Respond(w, http.StatusOK, map[string]bool{"updated": true})
}

// deleteUser is the super-admin-only DELETE /users/{id}. A super-admin may
// never delete their own account through this endpoint.
func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())
	if err := h.requireSuperAdmin(r.Context(), id); err != nil {
		web.RespondAppError(w, h.logger, err)
		return
	}
	targetID, err := userIDParam(r)
	if err != nil {
		web.RespondAppError(w, h.logger, err)
		return
	}
	if err := checkNotSelfDelete(targetID, id.UserID); err != nil {
		web.RespondAppError(w, h.logger, err)
		return
	}

	err = h.store.Write(r.Context(), func(ctx context.Context, q *store.Queries) error {
		if err := q.DeleteUser(ctx, targetID); err != nil {
			return err
		}
		return q.InsertAuditEntry(ctx, store.InsertAuditEntryParams{
			ActorID: &id.UserID, Action: "user_deleted",
			ResourceKind: "user", ResourceID: targetID.String(),
		})
	})
	if err != nil {
		web.RespondAppError(w, h.logger, err)
		return
	}
	web.Respond(w, http.StatusOK, map[string]bool{"deleted": true})
}
