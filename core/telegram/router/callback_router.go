package router

import (
	"log/slog"

	tg "github.com/m3rciful/guideshop/core/telegram"
	"github.com/m3rciful/guideshop/core/telegram/callbacks"

	tele "gopkg.in/telebot.v4"
)

// CallbackOptions customises fallback behaviour for callbacks.
type CallbackOptions struct {
	// NotFound overrides the registry fallback for unknown uniques.
	NotFound tele.HandlerFunc
}

// CallbackRoute routes every callback query through the registry by its unique.
// Handlers may answer the query with callbacks.Answer; otherwise it gets an empty answer.
func CallbackRoute(reg *tg.Registry, opts CallbackOptions) tg.Route {
	handler := func(c tele.Context) error {
		if c.Callback() == nil {
			return nil
		}
		key, _ := callbacks.Parse(c.Callback())
		name := "callback." + normalizeHandlerName(key)
		s := summary{extras: []slog.Attr{slog.String("cb_key", key)}}

		run, ok := reg.Callback(key)
		if !ok {
			if opts.NotFound != nil {
				run = opts.NotFound
			}
			s.status = "skip"
			s.extras = append(s.extras, slog.String("reason", "not_found"))
		}

		return handleWithSummary(c, name, s, func() error {
			var err error
			if run != nil {
				err = run(c)
			}
			if !callbacks.Answered(c) {
				_ = callbacks.Answer(c, "")
			}
			return err
		})
	}
	return tg.Route{Endpoint: tele.OnCallback, Handler: handler}
}
