package tenant

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

func newTestRouter() chi.Router {
	h := NewHandler(nil, nil, nil, testLogger(), http.NotFoundHandler(), http.NotFoundHandler())
	r := chi.NewRouter()
	r.Mount("/tenants", h.Routes())
	return r
}

func TestTenantRoutes_InvalidTenantID(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
	}{
		{"delete", http.MethodDelete, "/tenants/not-a-uuid"},
		{"deploy", http.MethodPost, "/tenants/not-a-uuid/deploy"},
		{"restart", http.MethodPost, "/tenants/not-a-uuid/restart"},
		{"stop", http.MethodPost, "/tenants/not-a-uuid/stop"},
		{"status", http.MethodGet, "/tenants/not-a-uuid/status"},
		{"logs", http.MethodGet, "/tenants/not-a-uuid/logs"},
		{"get config", http.MethodGet, "/tenants/not-a-uuid/config"},
		{"resources", http.MethodGet, "/tenants/not-a-uuid/resources"},
		{"pairing", http.MethodGet, "/tenants/not-a-uuid/pairing"},
	}

	router := newTestRouter()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
			}
		})
	}
}
