package state

import (
	"context"
	"log/slog"
	"time"

	"github.com/m3rciful/guideshop/core/logger"
)

// Action tells Update what to do with the value returned by the callback.
type Action int

const (
	// Keep leaves the stored value untouched.
	Keep Action = iota
	// Save stores the returned value and refreshes its TTL.
	Save
	// Delete removes the value.
	Delete
)

// UpdateFunc receives the current value (zero and false when absent) and
// returns the next value with the action to apply.
type UpdateFunc[S any] func(cur S, ok bool) (S, Action, error)

// Store is a keyed session store with per-key serialization.
type Store[S any] interface {
	Get(ctx context.Context, key int64) (S, bool, error)
	// Update applies fn atomically for key. If fn returns an error nothing is written.
	Update(ctx context.Context, key int64, fn UpdateFunc[S]) error
	Clear(ctx context.Context, key int64) error
}

// EvictFunc observes values dropped because their TTL elapsed.
type EvictFunc[S any] func(ctx context.Context, key int64, value S)

// Sweeper removes expired values.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// RunJanitor calls Sweep every interval until ctx is done.
func RunJanitor(ctx context.Context, sw Sweeper, interval time.Duration) {
	if sw == nil || interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := sw.Sweep(ctx)
			if err != nil {
				logger.Warn(ctx, "session", "session.sweep",
					slog.String("status", "fail"),
					slog.String("err", err.Error()),
				)
				continue
			}
			if n > 0 {
				logger.Info(ctx, "session", "session.sweep",
					slog.String("status", "ok"),
					slog.Int("evicted", n),
				)
			}
		}
	}
}
