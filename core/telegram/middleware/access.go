package middleware

import (
	"log/slog"

	"github.com/m3rciful/guideshop/core/logger"
	tghelpers "github.com/m3rciful/guideshop/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// AdminOptions configures RequireAdmin.
type AdminOptions struct {
	// IsAdmin must be set; without it nobody passes.
	IsAdmin func(userID int64) bool
	// OnReject answers senders that are not admins. nil drops the update silently.
	OnReject tele.HandlerFunc
}

// RequireAdmin passes updates from admins and hands everything else to OnReject.
func RequireAdmin(opts AdminOptions) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			var uid int64
			if u := c.Sender(); u != nil {
				uid = u.ID
			}
			if uid != 0 && opts.IsAdmin != nil && opts.IsAdmin(uid) {
				return next(c)
			}
			logger.Debug(tghelpers.BuildContext(c), "tg", "access.denied",
				slog.String("status", "skip"),
				slog.Int64("user_id", uid),
			)
			if opts.OnReject == nil {
				return nil
			}
			return opts.OnReject(c)
		}
	}
}
