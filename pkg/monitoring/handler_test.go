package monitoring

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
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
	r.Mount("/monitoring", h.Routes())
	return r
}

func TestUsage_Unauthenticated(t *testing.T) {
	// usage is the one monitoring route that checks for an identity before
	// touching the store, so it's the only one exercisable without a live
	// database backing this handler.
	router := newTestRouter()
	req := httptest.NewRequest(http.MethodGet, "/monitoring/usage", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestUsage_InvalidTenantIDQueryParam(t *testing.T) {
	router := newTestRouter()
	req := httptest.NewRequest(http.MethodGet, "/monitoring/usage?tenant_id=not-a-uuid", nil)
	ctx := auth.NewContext(req.Context(), &auth.Identity{UserID: uuid.New()})
	req = req.WithContext(ctx)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}
