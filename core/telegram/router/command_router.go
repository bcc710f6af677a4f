package router

import (
	"log/slog"
	"maps"
	"slices"

	"github.com/m3rciful/guideshop/core/logger"
	tg "github.com/m3rciful/guideshop/core/telegram"
	"github.com/m3rciful/guideshop/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CommandRouteOptions decides who may run admin-only commands.
type CommandRouteOptions struct {
	IsAdmin       func(userID int64) bool
	OnAdminReject tele.HandlerFunc
}

// CommandRoutes returns one route per registered slash command, sorted by name.
// Aliases typed as plain text are resolved by MessageRoutes.
func CommandRoutes(reg *tg.Registry, opts CommandRouteOptions) []tg.Route {
	if reg == nil {
		return nil
	}
	cmds := reg.Commands()
	routes := make([]tg.Route, 0, len(cmds))
	for _, name := range slices.Sorted(maps.Keys(cmds)) {
		def := cmds[name]
		h := def.Handler
		if def.AdminOnly {
			h = AdminGuard(opts, h)
		}
		handler := normalizeHandlerName(name)
		routes = append(routes, tg.Route{
			Endpoint: name,
			Handler: func(c tele.Context) error {
				return handleWithSummary(c, handler, summary{}, func() error { return h(c) })
			},
		})
	}

	logger.TWire.Info("tg.wire",
		slog.String("event", "commands.bound"),
		slog.Int("commands", len(cmds)),
		slog.Int("callbacks", len(reg.ListCallbacks())),
	)
	return routes
}

// AdminGuard applies the admin check of opts to a single handler.
func AdminGuard(opts CommandRouteOptions, h tele.HandlerFunc) tele.HandlerFunc {
	return middleware.RequireAdmin(middleware.AdminOptions{
		IsAdmin:  opts.IsAdmin,
		OnReject: opts.OnAdminReject,
	})(h)
}
