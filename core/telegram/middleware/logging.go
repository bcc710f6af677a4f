package middleware

import (
	"log/slog"
	"time"

	"github.com/m3rciful/guideshop/core/logger"
	"github.com/m3rciful/guideshop/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/guideshop/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// LoggerMiddleware assigns the update rid, builds the update context and, when
// the debug sampler allows, logs update.received.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		var userID, chatID int64
		if u := c.Sender(); u != nil {
			userID = u.ID
		}
		if ch := c.Chat(); ch != nil {
			chatID = ch.ID
		}
		c.Set("rid", logger.BuildRID(c.Update().ID, chatID, userID))
		c.Set("update_start", time.Now())
		ctx := tghelpers.BuildContext(c)

		if logger.ShouldSampleDebug() {
			logger.LogEvent(ctx, nil, slog.LevelDebug, "update.received", receivedAttrs(c)...)
		}
		return next(c)
	}
}

func receivedAttrs(c tele.Context) []slog.Attr {
	attrs := []slog.Attr{slog.String("status", "ok")}
	if ch := c.Chat(); ch != nil {
		attrs = append(attrs, slog.String("chat_type", string(ch.Type)))
	}
	if u := c.Sender(); u != nil && u.Username != "" {
		attrs = append(attrs, slog.String("username", logger.SanitizeLimit(u.Username, 64)))
	}

	upd := c.Update()
	var payload string
	switch {
	case upd.Callback != nil:
		var key string
		key, payload = callbacks.Parse(upd.Callback)
		attrs = append(attrs, slog.String("cb_key", logger.SanitizeLimit(key, 64)))
	case upd.PreCheckoutQuery != nil:
		payload = upd.PreCheckoutQuery.Payload
	case upd.Message != nil && upd.Message.Payment != nil:
		payload = upd.Message.Payment.Payload
	case upd.Message != nil:
		payload = c.Text()
	}
	return append(attrs, slog.String("payload", logger.SanitizeLimit(payload, 128)))
}
