package telegram

import (
	"strings"
	"time"

	coreconfig "github.com/m3rciful/guideshop/core/config"
	"github.com/m3rciful/guideshop/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// ChainOptions configures DefaultMiddlewares.
type ChainOptions struct {
	// Serializer, when set, runs first so that everything below it executes
	// in per-sender arrival order.
	Serializer  *middleware.Serializer
	DedupWindow time.Duration
	OnLimited   tele.HandlerFunc
}

// DefaultMiddlewares builds the shared middleware chain in registration order.
func DefaultMiddlewares(cfg *coreconfig.Config, opts ChainOptions) []Middleware {
	var mws []Middleware
	if opts.Serializer != nil {
		mws = append(mws, Middleware{Name: "serializer", Use: opts.Serializer.Middleware})
	}
	mws = append(mws,
		Middleware{Name: "dedup", Use: middleware.DedupMiddleware(opts.DedupWindow)},
		Middleware{Name: "recover", Use: middleware.RecoverMiddleware},
	)

	if cfg != nil {
		interval := time.Duration(cfg.RateLimit.IntervalMS) * time.Millisecond
		if interval > 0 {
			ex := make(map[string]struct{}, len(cfg.RateLimit.ExcludeUpdates))
			for _, t := range cfg.RateLimit.ExcludeUpdates {
				ex[strings.ToLower(t)] = struct{}{}
			}
			mws = append(mws, Middleware{
				Name: "rate_limit",
				Use: middleware.RateLimitMiddleware(middleware.RateLimitOptions{
					Interval:  interval,
					Exclude:   ex,
					OnLimited: opts.OnLimited,
				}),
			})
		}
	}

	return append(mws,
		Middleware{Name: "logger", Use: middleware.LoggerMiddleware},
		Middleware{Name: "metrics", Use: middleware.MessageMetricsMiddleware},
	)
}
