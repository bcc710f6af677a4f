package middleware

import (
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/guideshop/core/logger"
	tghelpers "github.com/m3rciful/guideshop/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// DedupMiddleware drops updates whose id was already seen within window.
// Telegram redelivers updates after webhook timeouts and poller restarts.
func DedupMiddleware(window time.Duration) tele.MiddlewareFunc {
	if window <= 0 {
		window = 10 * time.Minute
	}
	var (
		mu     sync.Mutex
		seen   = make(map[int]time.Time)
		lastGC time.Time
	)
	duplicate := func(id int, now time.Time) bool {
		mu.Lock()
		defer mu.Unlock()
		if now.Sub(lastGC) > window/4 {
			for k, ts := range seen {
				if now.Sub(ts) > window {
					delete(seen, k)
				}
			}
			lastGC = now
		}
		if ts, ok := seen[id]; ok && now.Sub(ts) <= window {
			return true
		}
		seen[id] = now
		return false
	}
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			id := c.Update().ID
			if id == 0 || !duplicate(id, time.Now()) {
				return next(c)
			}
			logger.Debug(tghelpers.BuildContext(c), "tg", "update.duplicate",
				slog.String("status", "skip"),
			)
			return nil
		}
	}
}
