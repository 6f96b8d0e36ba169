package auth

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/zeroclaw-labs/platform/internal/apperr"
	"github.com/zeroclaw-labs/platform/internal/web"
	"github.com/zeroclaw-labs/platform/internal/store"
)

// OTPSender delivers a one-time code to a user. SMTP is the default; tests
// and local dev use a logging sender.
type OTPSender interface {
	Send(ctx context.Context, email, code string) error
}

// LogSender writes the code to the application log instead of sending it —
// used when no SMTP relay is configured.
type LogSender struct{ Logger *slog.Logger }

func (s LogSender) Send(_ context.Context, email, code string) error {
	s.Logger.Info("otp code (no SMTP configured, logging instead)", "email", email, "code", code)
	return nil
}

// Handler wires the OTP request/verify/logout/me HTTP endpoints.
type Handler struct {
	store       *store.Store
	sessionMgr  *SessionManager
	revocation  *RevocationSet
	rateLimiter *RateLimiter
	sender      OTPSender
	otpTTL      time.Duration
	maxAttempts int
	logger      *slog.Logger
}

func NewHandler(st *store.Store, sm *SessionManager, rev *RevocationSet, rl *RateLimiter, sender OTPSender, otpTTL time.Duration, maxAttempts int, logger *slog.Logger) *Handler {
	return &Handler{
		store:       st,
		sessionMgr:  sm,
		revocation:  rev,
		rateLimiter: rl,
		sender:      sender,
		otpTTL:      otpTTL,
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

type requestOTPBody struct {
	Email string `json:"email" validate:"required,email"`
}

// genericOTPResponse is returned for every request_otp call regardless of
// whether the account exists, per spec.md §4.3's anti-enumeration requirement.
var genericOTPResponse = map[string]any{"requested": true}

func (h *Handler) RequestOTP(w http.ResponseWriter, r *http.Request) {
	var body requestOTPBody
	if !web.DecodeAndValidate(w, r, &body) {
		return
	}

	result, err := h.rateLimiter.Check(r.Context(), body.Email)
	if err != nil {
		web.RespondAppError(w, h.logger, err)
		return
	}
	if !result.Allowed {
		web.RespondAppError(w, h.logger, apperr.RateLimited("too many OTP requests, try again later"))
		return
	}
	if err := h.rateLimiter.Record(r.Context(), body.Email); err != nil {
		web.RespondAppError(w, h.logger, err)
		return
	}

	var user store.User
	err = h.store.Read(r.Context(), func(ctx context.Context, q *store.Queries) error {
		var lookupErr error
		user, lookupErr = q.GetUserByEmail(ctx, body.Email)
		return lookupErr
	})
	if err != nil {
		// Anti-enumeration: account-not-found looks identical to success.
		web.Respond(w, http.StatusOK, genericOTPResponse)
		return
	}

	code, err := GenerateOTPCode()
	if err != nil {
		web.RespondAppError(w, h.logger, apperr.Internalf("generating otp: %w", err))
		return
	}
	salt, err := GenerateOTPSalt()
	if err != nil {
		web.RespondAppError(w, h.logger, apperr.Internalf("generating otp salt: %w", err))
		return
	}
	hash := HashOTPCode(salt, code)

	err = h.store.Write(r.Context(), func(ctx context.Context, q *store.Queries) error {
		_, createErr := q.CreateOTP(ctx, user.ID, hash, salt, h.otpTTL)
		return createErr
	})
	if err != nil {
		web.RespondAppError(w, h.logger, err)
		return
	}

	if err := h.sender.Send(r.Context(), user.Email, code); err != nil {
		h.logger.Error("sending otp code", "error", err, "email", user.Email)
	}

	h.audit(r.Context(), &user.ID, "otp_requested", "user", user.ID.String())
	web.Respond(w, http.StatusOK, genericOTPResponse)
}

type verifyOTPBody struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,len=6"`
}

type verifyOTPResponse struct {
	Token string            `json:"token"`
	User  userInfoResponse  `json:"user"`
}

type userInfoResponse struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	DisplayName  string `json:"display_name"`
	IsSuperAdmin bool   `json:"is_super_admin"`
}

func (h *Handler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var body verifyOTPBody
	if !web.DecodeAndValidate(w, r, &body) {
		return
	}

	var user store.User
	err := h.store.Read(r.Context(), func(ctx context.Context, q *store.Queries) error {
		var lookupErr error
		user, lookupErr = q.GetUserByEmail(ctx, body.Email)
		return lookupErr
	})
	if err != nil {
		web.RespondAppError(w, h.logger, apperr.Unauthorized("invalid email or code"))
		return
	}

	var token string
	badCode := false
	err = h.store.Write(r.Context(), func(ctx context.Context, q *store.Queries) error {
		otp, err := q.LatestValidOTP(ctx, user.ID, h.maxAttempts)
		if err != nil {
			return err
		}

		if !VerifyOTPCode(otp.Salt, otp.Hash, body.Code) {
			// Return nil so the increment commits; an error here would roll it back.
			badCode = true
			return q.IncrementOTPAttempts(ctx, otp.ID)
		}

		if err := q.MarkOTPUsed(ctx, otp.ID); err != nil {
			return err
		}

		tenantRoles, err := q.TenantRolesForUser(ctx, user.ID)
		if err != nil {
			return err
		}

		var issueErr error
		token, _, issueErr = h.sessionMgr.IssueToken(user.ID.String(), user.Email, tenantRoles)
		return issueErr
	})
	if err != nil {
		web.RespondAppError(w, h.logger, err)
		return
	}
	if badCode {
		web.RespondAppError(w, h.logger, apperr.Unauthorized("invalid email or code"))
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

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	id := FromContext(r.Context())
	if id == nil {
		web.RespondAppError(w, h.logger, apperr.Unauthorized("authentication required"))
		return
	}

	if id.TokenID != "" {
		if err := h.revocation.Revoke(r.Context(), id.TokenID, time.Now().Add(24*time.Hour)); err != nil {
			web.RespondAppError(w, h.logger, err)
			return
		}
	}

	h.audit(r.Context(), &id.UserID, "logout", "user", id.UserID.String())
	web.Respond(w, http.StatusOK, map[string]bool{"logout": true})
}

// Me returns the caller's profile with a fresh tenant-role listing and
// is_super_admin bit — never values taken from the presented token.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	id := FromContext(r.Context())
	if id == nil {
		web.RespondAppError(w, h.logger, apperr.Unauthorized("authentication required"))
		return
	}

	var user store.User
	var tenantRoles []store.TenantRole
	err := h.store.Read(r.Context(), func(ctx context.Context, q *store.Queries) error {
		var lookupErr error
		user, lookupErr = q.GetUser(ctx, id.UserID)
		if lookupErr != nil {
			return lookupErr
		}
		tenantRoles, lookupErr = q.TenantRolesForUser(ctx, id.UserID)
		return lookupErr
	})
	if err != nil {
		web.RespondAppError(w, h.logger, err)
		return
	}

	web.Respond(w, http.StatusOK, map[string]any{
		"id":                    user.ID.String(),
		"email":                 user.Email,
		"display_name":          user.DisplayName,
		"is_super_admin":        user.IsSuperAdmin,
		"tenant_roles_snapshot": tenantRoles,
	})
}

func (h *Handler) audit(ctx context.Context, actorID *uuid.UUID, action, resourceKind, resourceID string) {
	_ = h.store.Write(ctx, func(ctx context.Context, q *store.Queries) error {
		return q.InsertAuditEntry(ctx, store.InsertAuditEntryParams{
			ActorID:      actorID,
			Action:       action,
			ResourceKind: resourceKind,
			ResourceID:   resourceID,
		})
	})
}
