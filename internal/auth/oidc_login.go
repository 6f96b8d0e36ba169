package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"

	"github.com/zeroclaw-labs/platform/internal/apperr"
	"github.com/zeroclaw-labs/platform/internal/store"
	"github.com/zeroclaw-labs/platform/internal/web"
)

// OIDCLoginHandler drives the authorization-code flow against the
// configured identity provider: the admin UI calls Start to get a redirect
// URL, sends the user there, then posts the returned code to Callback to
// exchange it and receive a session token — the same bearer-token shape
// OTP login returns.
type OIDCLoginHandler struct {
	authenticator *OIDCAuthenticator
	store         *store.Store
	sessionMgr    *SessionManager
	logger        *slog.Logger
}

func NewOIDCLoginHandler(a *OIDCAuthenticator, st *store.Store, sm *SessionManager, logger *slog.Logger) *OIDCLoginHandler {
	return &OIDCLoginHandler{authenticator: a, store: st, sessionMgr: sm, logger: logger}
}

type oidcStartResponse struct {
	RedirectURL string `json:"redirect_url"`
	State       string `json:"state"`
}

// Start issues a random state value and the provider authorization URL.
// The state is not stored: Callback neither receives nor checks it.
func (h *OIDCLoginHandler) Start(w http.ResponseWriter, r *http.Request) {
	state, err := randomState()
	if err != nil {
		web.RespondAppError(w, h.logger, apperr.Internalf("generating oidc state: %w", err))
		return
	}
	web.Respond(w, http.StatusOK, oidcStartResponse{
		RedirectURL: h.authenticator.OAuth2.AuthCodeURL(state),
		State:       state,
	})
}

func randomState() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

type oidcCallbackRequest struct {
	Code string `json:"code" validate:"required"`
}

type oidcCallbackResponse struct {
	Token string           `json:"token"`
	User  userInfoResponse `json:"user"`
}

// Callback exchanges an authorization code for tokens, verifies the ID
// token, and either links to an existing user by email or creates one.
// Unlike the OTP path, which only signs in existing accounts, this path
// creates the account on first login.
func (h *OIDCLoginHandler) Callback(w http.ResponseWriter, r *http.Request) {
	var req oidcCallbackRequest
	if !web.DecodeAndValidate(w, r, &req) {
		return
	}

	oauthToken, err := h.authenticator.OAuth2.Exchange(r.Context(), req.Code)
	if err != nil {
		web.RespondAppError(w, h.logger, apperr.Unauthorized("exchanging authorization code"))
		return
	}

	rawIDToken, ok := oauthToken.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		web.RespondAppError(w, h.logger, apperr.Unauthorized("provider response missing id_token"))
		return
	}

	claims, err := h.authenticator.AuthenticateRawIDToken(r.Context(), rawIDToken)
	if err != nil {
		web.RespondAppError(w, h.logger, apperr.Unauthorized("invalid id token"))
		return
	}

	var user store.User
	err = h.store.Write(r.Context(), func(ctx context.Context, q *store.Queries) error {
		existing, lookupErr := q.GetUserByEmail(ctx, claims.Email)
		if lookupErr == nil {
			user = existing
			return nil
		}
		if apperr.KindOf(lookupErr) != apperr.KindNotFound {
			return lookupErr
		}
		created, createErr := q.CreateUser(ctx, claims.Email, claims.Email)
		if createErr != nil {
			return createErr
		}
		user = created
		return nil
	})
	if err != nil {
		web.RespondAppError(w, h.logger, err)
		return
	}

	var token string
	err = h.store.Read(r.Context(), func(ctx context.Context, q *store.Queries) error {
		tenantRoles, rolesErr := q.TenantRolesForUser(ctx, user.ID)
		if rolesErr != nil {
			return rolesErr
		}
		var issueErr error
		token, _, issueErr = h.sessionMgr.IssueToken(user.ID.String(), user.Email, tenantRoles)
		return issueErr
	})
	if err != nil {
		web.RespondAppError(w, h.logger, apperr.Internalf("issuing session token: %w", err))
		return
	}

	_ = h.store.Write(r.Context(), func(ctx context.Context, q *store.Queries) error {
		return q.InsertAuditEntry(ctx, store.InsertAuditEntryParams{
			ActorID:      &user.ID,
			Action:       "login_success",
			ResourceKind: "user",
			ResourceID:   user.ID.String(),
		})
	})

	web.Respond(w, http.StatusOK, oidcCallbackResponse{
		Token: token,
		User: userInfoResponse{
			ID: user.ID.String(), Email: user.Email,
			DisplayName: user.DisplayName, IsSuperAdmin: user.IsSuperAdmin,
		},
	})
}
