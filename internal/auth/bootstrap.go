package auth

import (
	"context"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/zeroclaw-labs/platform/internal/apperr"
	"github.com/zeroclaw-labs/platform/internal/web"
	"github.com/zeroclaw-labs/platform/internal/store"
)

// BootstrapLoginBody is the JSON body BootstrapLogin decodes — the
// legacy local-admin password path kept for operators who haven't yet
// configured SMTP/OIDC, mirroring the teacher's bcrypt local-login flow.
type BootstrapLoginBody struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// BootstrapLogin authenticates against the single seeded super-admin
// account's password_hash. Every other account must use OTP or OIDC.
func (h *Handler) BootstrapLogin(w http.ResponseWriter, r *http.Request) {
	var body BootstrapLoginBody
	if !web.DecodeAndValidate(w, r, &body) {
		return
	}

	var user store.User
	err := h.store.Read(r.Context(), func(ctx context.Context, q *store.Queries) error {
		var lookupErr error
		user, lookupErr = q.GetUserByEmail(ctx, body.Email)
		return lookupErr
	})
	if err != nil || user.PasswordHash == nil {
		web.RespondAppError(w, h.logger, apperr.Unauthorized("invalid email or password"))
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(body.Password)) != nil {
		web.RespondAppError(w, h.logger, apperr.Unauthorized("invalid email or password"))
		return
	}

	var tenantRoles []store.TenantRole
	err = h.store.Read(r.Context(), func(ctx context.Context, q *store.Queries) error {
		var lookupErr error
		tenantRoles, lookupErr = q.TenantRolesForUser(ctx, user.ID)
		return lookupErr
	})
	if err != nil {
		web.RespondAppError(w, h.logger, err)
		return
	}

	token, _, err := h.sessionMgr.IssueToken(user.ID.String(), user.Email, tenantRoles)
	if err != nil {
		web.RespondAppError(w, h.logger, apperr.Internalf("issuing token: %w", err))
		return
	}

	h.audit(r.Context(), &user.ID, "login_success", "user", user.ID.String())
	web.Respond(w, http.StatusOK, verifyOTPResponse{
		Token: token,
		User: userInfoResponse{
			ID:           user.ID.String(),
			Email:        user.Email,
			DisplayName:  user.DisplayName,
			IsSuperAdmin: user.IsSuperAdmin,
		},
	})
}

// HashBootstrapPassword hashes a plaintext password for seeding into
// EnsureSuperAdmin.
func HashBootstrapPassword(plaintext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
