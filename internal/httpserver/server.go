package httpserver

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/zeroclaw-labs/platform/internal/auth"
	"github.com/zeroclaw-labs/platform/internal/config"
	"github.com/zeroclaw-labs/platform/internal/store"
	"github.com/zeroclaw-labs/platform/internal/web"
)

// Server holds the HTTP server dependencies.
type Server struct {
	Router     *chi.Mux
	PublicAPI  chi.Router // unauthenticated /api/v1 routes (OTP login)
	APIRouter  chi.Router // authenticated /api/v1 routes
	Logger     *slog.Logger
	DB         *pgxpool.Pool
	Redis      *redis.Client
	Metrics    *prometheus.Registry
	startedAt  time.Time
}

// NewServer creates an HTTP server with middleware and health/metrics
// endpoints, and splits /api/v1 into a public sub-router (mount OTP
// login/verify here) and an authenticated sub-router guarded by
// auth.Authenticate (mount every other domain handler here). oidcAuth may be
// nil when OIDC is not configured.
func NewServer(cfg *config.Config, logger *slog.Logger, db *pgxpool.Pool, rdb *redis.Client, metricsReg *prometheus.Registry, st *store.Store, sessionMgr *auth.SessionManager, revocation *auth.RevocationSet, oidcAuth *auth.OIDCAuthenticator) *Server {
	s := &Server{
		Router:    chi.NewRouter(),
		Logger:    logger,
		DB:        db,
		Redis:     rdb,
		Metrics:   metricsReg,
		startedAt: time.Now(),
	}

	s.Router.Use(RequestID)
	s.Router.Use(Logger(logger))
	s.Router.Use(Metrics)
	s.Router.Use(middleware.Recoverer)
	s.Router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	s.Router.Get("/healthz", s.handleHealthz)
	s.Router.Get("/readyz", s.handleReadyz)
	s.Router.Handle("/metrics", promhttp.HandlerFor(metricsReg, promhttp.HandlerOpts{}))

	s.Router.Route("/api/v1", func(r chi.Router) {
		r.Group(func(pub chi.Router) {
			s.PublicAPI = pub
		})

		r.Group(func(priv chi.Router) {
			priv.Use(auth.Authenticate(sessionMgr, revocation, oidcAuth, st.Queries(), logger))
			s.APIRouter = priv
		})
	})

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	web.Respond(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := s.DB.Ping(ctx); err != nil {
		s.Logger.Error("readiness check: database ping failed", "error", err)
		web.RespondError(w, http.StatusServiceUnavailable, "unavailable", "database not ready")
		return
	}

	if err := s.Redis.Ping(ctx).Err(); err != nil {
		s.Logger.Error("readiness check: redis ping failed", "error", err)
		web.RespondError(w, http.StatusServiceUnavailable, "unavailable", "redis not ready")
		return
	}

	web.Respond(w, http.StatusOK, map[string]string{"status": "ready"})
}
