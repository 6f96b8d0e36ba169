package auth

import (
	"context"
	"log/slog"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/zeroclaw-labs/platform/internal/apperr"
	"github.com/zeroclaw-labs/platform/internal/store"
	"github.com/zeroclaw-labs/platform/internal/web"
)

// LoginHandler serves POST /auth/login, the bootstrap local-admin password
// path kept alongside OTP for the single seeded super-admin account (see
// store.EnsureSuperAdmin) — every other user authenticates via OTP or OIDC.
type LoginHandler struct {
	store      *store.Store
	sessionMgr *SessionManager
	logger     *slog.Logger
}

func NewLoginHandler(st *store.Store, sm *SessionManager, logger *slog.Logger) *LoginHandler {
	return &LoginHandler{store: st, sessionMgr: sm, logger: logger}
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token string           `json:"token"`
	User  userInfoResponse `json:"user"`
}

func (h *LoginHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !web.DecodeAndValidate(w, r, &req) {
		return
	}

	var user store.User
	err := h.store.Read(r.Context(), func(ctx context.Context, q *store.Queries) error {
		var err error
		user, err = q.GetUserByEmail(ctx, req.Email)
		return err
	})
	if err != nil || user.PasswordHash == nil {
		h.logger.Warn("local login: no password set for account", "email", req.Email)
		web.RespondAppError(w, h.logger, apperr.Unauthorized("invalid email or password"))
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(req.Password)); err != nil {
		web.RespondAppError(w, h.logger, apperr.Unauthorized("invalid email or password"))
		return
	}

	var token string
	err = h.store.Read(r.Context(), func(ctx context.Context, q *store.Queries) error {
		tenantRoles, err := q.TenantRolesForUser(ctx, user.ID)
		if err != nil {
			return err
		}
		var issueErr error
		token, _, issueErr = h.sessionMgr.IssueToken(user.ID.String(), user.Email, tenantRoles)
		return issueErr
	})
	if err != nil {
		web.RespondAppError(w, h.logger, apperr.Internalf("issuing session token: %w", err))
		return
	}

	web.Respond(w, http.StatusOK, loginResponse{
		Token: token,
		User: userInfoResponse{
			ID: user.ID.String(), Email: user.Email,
			DisplayName: user.DisplayName, IsSuperAdmin: user.IsSuperAdmin,
		},
	})
}
