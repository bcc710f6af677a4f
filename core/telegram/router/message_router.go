package router

import (
	"time"

	tg "github.com/m3rciful/guideshop/core/telegram"
	tghelpers "github.com/m3rciful/guideshop/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// Flow takes messages that belong to a conversation in progress.
type Flow interface {
	Name() string
	// HandleMessage reports false when the sender has nothing in progress in this flow.
	HandleMessage(c tele.Context) (bool, error)
}

// MessageOptions controls message routing.
type MessageOptions struct {
	Admin CommandRouteOptions
	// Flows are asked in order; the first that handles the message wins.
	Flows   []Flow
	Unknown tele.HandlerFunc
}

// messageEndpoints are the message kinds a flow may need to see.
var messageEndpoints = []string{
	tele.OnText,
	tele.OnPhoto,
	tele.OnDocument,
	tele.OnVoice,
	tele.OnAudio,
	tele.OnVideo,
	tele.OnVideoNote,
	tele.OnAnimation,
	tele.OnSticker,
}

// MessageRoutes builds one handler for every message endpoint. Text matching a
// command alias runs the command, other messages go to the flows and then to
// Unknown.
func MessageRoutes(reg *tg.Registry, opts MessageOptions) []tg.Route {
	handler := func(c tele.Context) error {
		start := time.Now()
		msg := c.Message()
		if msg == nil {
			return nil
		}

		if reg != nil && msg.Text != "" {
			if key, cmd, ok := reg.LookupCommand(msg.Text); ok && cmd.Handler != nil {
				h := cmd.Handler
				if cmd.AdminOnly {
					h = AdminGuard(opts.Admin, h)
				}
				return handleWithSummary(c, normalizeHandlerName(key), summary{}, func() error { return h(c) })
			}
		}

		for _, f := range opts.Flows {
			handled, err := f.HandleMessage(c)
			if !handled && err == nil {
				continue
			}
			tghelpers.WithHandler(c, "flow."+f.Name())
			tghelpers.WithFlow(c, f.Name())
			logSummary(c, "flow."+f.Name(), start, summary{}, err)
			return err
		}

		if opts.Unknown != nil {
			return handleWithSummary(c, "unknown_message", summary{}, func() error { return opts.Unknown(c) })
		}
		logSummary(c, "unknown_message", start, summary{status: "skip"}, nil)
		return nil
	}

	routes := make([]tg.Route, 0, len(messageEndpoints))
	for _, ep := range messageEndpoints {
		routes = append(routes, tg.Route{Endpoint: ep, Handler: handler})
	}
	return routes
}
