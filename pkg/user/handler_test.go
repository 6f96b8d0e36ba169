package user

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/zeroclaw-labs/platform/internal/auth"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRouter() chi.Router {
	h := NewHandler(nil, testLogger())
	r := chi.NewRouter()
	r.Mount("/users", h.Routes())
	return r
}

func TestMe_Unauthenticated(t *testing.T) {
	router := newTestRouter()
	req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestUpdateMe_Unauthenticated(t *testing.T) {
	router := newTestRouter()
	req := httptest.NewRequest(http.MethodPatch, "/users/me", strings.NewReader(`{"display_name":"Alice"}`))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func boolPtr(b bool) *bool { return &b }

func TestCheckNotSelfRevocation(t *testing.T) {
	self, other := uuid.New(), uuid.New()

	tests := []struct {
		name           string
		target, caller uuid.UUID
		wantSuperAdmin *bool
		wantErr        bool
	}{
		{"revoking someone else is fine", other, self, boolPtr(false), false},
		{"granting yourself is fine", self, self, boolPtr(true), false},
		{"renaming yourself without touching the flag is fine", self, self, nil, false},
		{"revoking your own flag is rejected", self, self, boolPtr(false), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkNotSelfRevocation(tt.target, tt.caller, tt.wantSuperAdmin)
			if tt.wantErr && err == nil {
				t.Fatal("expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestCheckNotSelfDelete(t *testing.T) {
	self, other := uuid.New(), uuid.New()
	if err := checkNotSelfDelete(other, self); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := checkNotSelfDelete(self, self); err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestUpdateMe_ValidationFailsBeforeStoreAccess(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"empty display name", `{"display_name":""}`, http.StatusBadRequest},
		{"display name too long", `{"display_name":"` + strings.Repeat("a", 101) + `"}`, http.StatusBadRequest},
		{"invalid json", `{bad}`, http.StatusBadRequest},
		{"empty body", ``, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter()
			req := httptest.NewRequest(http.MethodPatch, "/users/me", strings.NewReader(tt.body))
			ctx := auth.NewContext(req.Context(), &auth.Identity{UserID: uuid.New()})
			req = req.WithContext(ctx)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}
