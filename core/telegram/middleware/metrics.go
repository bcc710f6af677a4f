package middleware

import (
	"context"
	"sync/atomic"

	tghelpers "github.com/m3rciful/guideshop/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// sendCounter tallies outbound messages produced while handling one update.
type sendCounter struct {
	messages atomic.Int32
	keyboard atomic.Bool
}

type counterKey struct{}

// CountSend records one outbound message against the update ctx was built for.
// Contexts without a counter are ignored.
func CountSend(ctx context.Context, withKeyboard bool) {
	if ctx == nil {
		return
	}
	sc, _ := ctx.Value(counterKey{}).(*sendCounter)
	if sc == nil {
		return
	}
	sc.messages.Add(1)
	if withKeyboard {
		sc.keyboard.Store(true)
	}
}

// MessageMetricsMiddleware attaches a send counter to the update context.
func MessageMetricsMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx := context.WithValue(tghelpers.BuildContext(c), counterKey{}, &sendCounter{})
		tghelpers.StoreContext(c, ctx)
		return next(c)
	}
}

// GetCounters returns how many messages the update sent and whether any carried a keyboard.
func GetCounters(c tele.Context) (int, bool) {
	ctx, ok := tghelpers.ContextFrom(c)
	if !ok {
		return 0, false
	}
	sc, _ := ctx.Value(counterKey{}).(*sendCounter)
	if sc == nil {
		return 0, false
	}
	return int(sc.messages.Load()), sc.keyboard.Load()
}
