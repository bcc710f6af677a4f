// Package helpers carries the per-update logging context on tele.Context.
package helpers

import (
	"context"

	"github.com/m3rciful/guideshop/core/logger"

	tele "gopkg.in/telebot.v4"
)

// ctxKey is the tele.Context slot that holds the update context.
const ctxKey = "update_ctx"

// StoreContext replaces the update context kept on c.
func StoreContext(c tele.Context, ctx context.Context) {
	if c != nil && ctx != nil {
		c.Set(ctxKey, ctx)
	}
}

// ContextFrom returns the update context kept on c, if one was stored.
func ContextFrom(c tele.Context) (context.Context, bool) {
	if c == nil {
		return nil, false
	}
	ctx, _ := c.Get(ctxKey).(context.Context)
	return ctx, ctx != nil
}

// BuildContext returns the update context of c. The first call derives it from
// the update (rid, update/user/chat ids, the tg component logger) and stores it.
func BuildContext(c tele.Context) context.Context {
	if ctx, ok := ContextFrom(c); ok {
		return ctx
	}
	updateID := c.Update().ID
	userID, chatID := actor(c)

	rid, _ := c.Get("rid").(string)
	if rid == "" {
		rid = logger.BuildRID(updateID, chatID, userID)
	}
	ctx := logger.WithLogger(
		logger.WithUpdateMeta(logger.WithRID(context.Background(), rid), updateID, userID, chatID),
		logger.Component("tg"),
	)
	StoreContext(c, ctx)
	return ctx
}

func actor(c tele.Context) (userID, chatID int64) {
	if u := c.Sender(); u != nil {
		userID = u.ID
	}
	if ch := c.Chat(); ch != nil {
		chatID = ch.ID
	}
	return userID, chatID
}

// WithHandler tags the update context with the handler name. An empty name leaves it unchanged.
func WithHandler(c tele.Context, handler string) context.Context {
	return annotate(c, handler, logger.WithHandler)
}

// WithFlow tags the update context with the flow (submission, payment) that took the update.
func WithFlow(c tele.Context, flow string) context.Context {
	return annotate(c, flow, logger.WithFlow)
}

func annotate(c tele.Context, v string, with func(context.Context, string) context.Context) context.Context {
	ctx := BuildContext(c)
	if v == "" {
		return ctx
	}
	ctx = with(ctx, v)
	StoreContext(c, ctx)
	return ctx
}
