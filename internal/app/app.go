// Package app wires the platform's dependencies together and runs one of
// its three modes: api (HTTP server), worker (resource monitor), or migrate
// (run schema migrations and exit).
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/zeroclaw-labs/platform/internal/auth"
	"github.com/zeroclaw-labs/platform/internal/config"
	"github.com/zeroclaw-labs/platform/internal/configrender"
	"github.com/zeroclaw-labs/platform/internal/containerrt"
	"github.com/zeroclaw-labs/platform/internal/httpserver"
	"github.com/zeroclaw-labs/platform/internal/monitor"
	"github.com/zeroclaw-labs/platform/internal/notify"
	"github.com/zeroclaw-labs/platform/internal/platform"
	"github.com/zeroclaw-labs/platform/internal/provisioner"
	"github.com/zeroclaw-labs/platform/internal/proxysync"
	"github.com/zeroclaw-labs/platform/internal/store"
	"github.com/zeroclaw-labs/platform/internal/telemetry"
	"github.com/zeroclaw-labs/platform/internal/vault"
)

// Run is the main application entry point. It reads config, connects to
// infrastructure, and starts the mode selected by cfg.Mode.
func Run(ctx context.Context, cfg *config.Config) error {
	logger := telemetry.NewLogger(cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(logger)

	logger.Info("starting platform", "mode", cfg.Mode, "listen", cfg.ListenAddr())

	if cfg.Mode == "migrate" {
		if err := platform.RunMigrations(cfg.DatabaseURL, cfg.MigrationsDir); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
		logger.Info("migrations applied")
		return nil
	}

	db, err := platform.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()

	rdb, err := platform.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Error("closing redis", "error", err)
		}
	}()

	if err := platform.RunMigrations(cfg.DatabaseURL, cfg.MigrationsDir); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("migrations applied")

	metricsReg := telemetry.NewMetricsRegistry(telemetry.All()...)

	switch cfg.Mode {
	case "api":
		return runAPI(ctx, cfg, logger, db, rdb, metricsReg)
	case "worker":
		return runWorker(ctx, cfg, logger, db, rdb)
	default:
		return fmt.Errorf("unknown mode: %s", cfg.Mode)
	}
}

// buildProvisioner assembles the Tenant Provisioning Engine and its adapters,
// shared by both the api and worker processes (the worker uses only the
// container runtime it returns, for the resource monitor).
func buildProvisioner(cfg *config.Config, logger *slog.Logger, st *store.Store) (*provisioner.Provisioner, provisioner.ContainerRuntime, *vault.Vault, error) {
	masterKey, err := vault.LoadOrGenerateKey(cfg.VaultKeyPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("loading vault key: %w", err)
	}
	v, err := vault.New(masterKey)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("initializing vault: %w", err)
	}

	runtime, err := containerrt.New(cfg.ContainerdSocket)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connecting to containerd: %w", err)
	}

	renderer := configrender.New(cfg.DataDir, v)
	proxy := proxysync.New(cfg.ProxyAdminURL, cfg.DomainSuffix)
	notifier := notify.New(cfg.SlackBotToken, cfg.SlackOpsChannel, logger)

	healthTimeout, err := time.ParseDuration(cfg.HealthTimeout)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("parsing health timeout %q: %w", cfg.HealthTimeout, err)
	}

	provCfg := provisioner.Config{
		Image:         cfg.TenantImage,
		DataDir:       cfg.DataDir,
		DomainSuffix:  cfg.DomainSuffix,
		PortRangeLow:  int32(cfg.PortRangeLow),
		PortRangeHigh: int32(cfg.PortRangeHigh),
		UIDRangeLow:   int32(cfg.UIDRangeLow),
		UIDRangeHigh:  int32(cfg.UIDRangeHigh),
		HealthTimeout: healthTimeout,
	}

	prov := provisioner.New(st, v, runtime, renderer, proxy, notifier, provCfg, logger)
	return prov, runtime, v, nil
}

func runAPI(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *pgxpool.Pool, rdb *redis.Client, metricsReg *prometheus.Registry) error {
	st := store.New(db)

	prov, _, v, err := buildProvisioner(cfg, logger, st)
	if err != nil {
		return err
	}

	sessionSecret := cfg.SessionSecret
	if sessionSecret == "" {
		sessionSecret = auth.GenerateDevSecret()
		logger.Info("session: using auto-generated dev secret (set PLATFORM_SESSION_SECRET in production)")
	}
	sessionMaxAge, err := time.ParseDuration(cfg.SessionMaxAge)
	if err != nil {
		return fmt.Errorf("parsing session max age %q: %w", cfg.SessionMaxAge, err)
	}
	sessionMgr, err := auth.NewSessionManager(sessionSecret, sessionMaxAge)
	if err != nil {
		return fmt.Errorf("creating session manager: %w", err)
	}

	revocation := auth.NewRevocationSet(rdb)

	var oidcAuth *auth.OIDCAuthenticator
	if cfg.OIDCIssuerURL != "" && cfg.OIDCClientID != "" {
		oidcAuth, err = auth.NewOIDCAuthenticator(ctx, cfg.OIDCIssuerURL, cfg.OIDCClientID, cfg.OIDCClientSecret, cfg.OIDCRedirectURL)
		if err != nil {
			return fmt.Errorf("initializing OIDC authenticator: %w", err)
		}
		logger.Info("OIDC authentication enabled", "issuer", cfg.OIDCIssuerURL)
	} else {
		logger.Info("OIDC authentication disabled (OIDC_ISSUER_URL not set)")
	}

	srv := httpserver.NewServer(cfg, logger, db, rdb, metricsReg, st, sessionMgr, revocation, oidcAuth)

	if oidcAuth != nil {
		oidcLogin := auth.NewOIDCLoginHandler(oidcAuth, st, sessionMgr, logger)
		srv.PublicAPI.Get("/auth/oidc/login", oidcLogin.Start)
		srv.PublicAPI.Post("/auth/oidc/callback", oidcLogin.Callback)
	}

	otpRateWindow, err := time.ParseDuration(cfg.OTPRateLimitWindow)
	if err != nil {
		return fmt.Errorf("parsing otp rate window %q: %w", cfg.OTPRateLimitWindow, err)
	}
	otpTTL, err := time.ParseDuration(cfg.OTPTTL)
	if err != nil {
		return fmt.Errorf("parsing otp ttl %q: %w", cfg.OTPTTL, err)
	}
	rateLimiter := auth.NewRateLimiter(rdb, "otp", cfg.OTPRateLimitMax, otpRateWindow)

	var sender auth.OTPSender
	if cfg.SMTPAddr != "" && cfg.SMTPFrom != "" {
		sender = auth.SMTPSender{Addr: cfg.SMTPAddr, From: cfg.SMTPFrom}
		logger.Info("otp delivery via smtp", "addr", cfg.SMTPAddr)
	} else {
		sender = auth.LogSender{Logger: logger}
		logger.Info("otp delivery disabled (SMTP_ADDR not set), logging codes instead")
	}

	authHandler := auth.NewHandler(st, sessionMgr, revocation, rateLimiter, sender, otpTTL, cfg.OTPMaxAttempts, logger)
	srv.PublicAPI.Post("/auth/otp/request", authHandler.RequestOTP)
	srv.PublicAPI.Post("/auth/otp/verify", authHandler.VerifyOTP)
	srv.APIRouter.Post("/auth/logout", authHandler.Logout)
	srv.APIRouter.Get("/auth/me", authHandler.Me)

	loginHandler := auth.NewLoginHandler(st, sessionMgr, logger)
	srv.PublicAPI.Post("/auth/login", loginHandler.HandleLogin)

	mountDomainHandlers(srv, st, prov, v, logger)

	httpSrv := &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      srv,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server listening", "addr", cfg.ListenAddr())
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func runWorker(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *pgxpool.Pool, _ *redis.Client) error {
	st := store.New(db)

	_, runtime, _, err := buildProvisioner(cfg, logger, st)
	if err != nil {
		return err
	}

	interval, err := time.ParseDuration(cfg.MonitorInterval)
	if err != nil {
		return fmt.Errorf("parsing monitor interval %q: %w", cfg.MonitorInterval, err)
	}
	retention, err := time.ParseDuration(cfg.SnapshotRetention)
	if err != nil {
		return fmt.Errorf("parsing snapshot retention %q: %w", cfg.SnapshotRetention, err)
	}

	mon := monitor.New(st, runtime, interval, retention, logger)
	if err := mon.Start(ctx); err != nil {
		return fmt.Errorf("starting monitor: %w", err)
	}
	logger.Info("worker started", "monitor_interval", interval, "snapshot_retention", retention)

	<-ctx.Done()
	logger.Info("shutting down worker")
	mon.Stop()
	return nil
}
