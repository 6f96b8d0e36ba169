package channel

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestRouter mounts channel routes the way tenant.Handler nests them in
// production: under a parent route that has already captured {id}.
func newTestRouter() chi.Router {
	h := NewHandler(nil, nil, nil, testLogger())
	r := chi.NewRouter()
	r.Route("/tenants/{id}", func(r chi.Router) {
		r.Mount("/channels", h.Routes())
	})
	return r
}

func TestChannelRoutes_InvalidTenantID(t *testing.T) {
	router := newTestRouter()
	req := httptest.NewRequest(http.MethodGet, "/tenants/not-a-uuid/channels", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}
