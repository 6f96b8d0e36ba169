package app

import (
	"log/slog"

	"github.com/zeroclaw-labs/platform/internal/httpserver"
	"github.com/zeroclaw-labs/platform/internal/provisioner"
	"github.com/zeroclaw-labs/platform/internal/store"
	"github.com/zeroclaw-labs/platform/internal/vault"
	"github.com/zeroclaw-labs/platform/pkg/channel"
	"github.com/zeroclaw-labs/platform/pkg/member"
	"github.com/zeroclaw-labs/platform/pkg/monitoring"
	"github.com/zeroclaw-labs/platform/pkg/tenant"
	"github.com/zeroclaw-labs/platform/pkg/user"
)

// mountDomainHandlers wires every authenticated domain route onto the
// server's APIRouter: tenants (with members/channels nested underneath),
// the caller's own profile, and the super-admin monitoring surface.
func mountDomainHandlers(srv *httpserver.Server, st *store.Store, prov *provisioner.Provisioner, v *vault.Vault, logger *slog.Logger) {
	memberHandler := member.NewHandler(st, logger)
	channelHandler := channel.NewHandler(st, prov, v, logger)
	tenantHandler := tenant.NewHandler(st, prov, v, logger, memberHandler.Routes(), channelHandler.Routes())
	userHandler := user.NewHandler(st, logger)
	monitoringHandler := monitoring.NewHandler(st, logger)

	srv.APIRouter.Mount("/tenants", tenantHandler.Routes())
	srv.APIRouter.Mount("/users", userHandler.Routes())
	srv.APIRouter.Mount("/monitoring", monitoringHandler.Routes())
}
