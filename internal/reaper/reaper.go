// Package reaper deletes ephemeral bot messages after a delay.
package reaper

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/guideshop/core/logger"
	"github.com/m3rciful/guideshop/internal/shop"
)

// DefaultDelay is how long admin prompts stay visible.
const DefaultDelay = 15 * time.Minute

// Deleter removes a sent message. Deleting an already deleted message must be harmless.
type Deleter interface {
	Delete(ctx context.Context, ref shop.MessageRef) error
}

// Reaper schedules fire-and-forget deletions. Failures are logged and never returned.
type Reaper struct {
	del     Deleter
	timeout time.Duration

	mu     sync.Mutex
	timers map[*time.Timer]struct{}
	closed bool
	wg     sync.WaitGroup
}

// New returns a Reaper deleting through del.
func New(del Deleter) *Reaper {
	return &Reaper{del: del, timeout: 10 * time.Second, timers: make(map[*time.Timer]struct{})}
}

// Schedule deletes ref after delay. It never blocks on the deletion itself.
func (r *Reaper) Schedule(ctx context.Context, ref shop.MessageRef, delay time.Duration, reason string) {
	if ref.IsZero() {
		return
	}
	// keep correlation fields, drop cancellation of the originating update
	base := context.WithoutCancel(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.wg.Add(1)
	var t *time.Timer
	t = time.AfterFunc(delay, func() {
		defer r.wg.Done()
		r.mu.Lock()
		delete(r.timers, t)
		r.mu.Unlock()
		r.run(base, ref, reason)
	})
	r.timers[t] = struct{}{}

	logger.Debug(ctx, "reaper", "reaper.scheduled",
		slog.Int64("chat_id", ref.ChatID),
		slog.Int("message_id", ref.MessageID),
		slog.Duration("delay", delay),
		slog.String("cause", reason),
	)
}

func (r *Reaper) run(ctx context.Context, ref shop.MessageRef, reason string) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	start := time.Now()
	err := r.del.Delete(ctx, ref)
	attrs := []slog.Attr{
		slog.String("status", logger.Status(err)),
		slog.Int64("chat_id", ref.ChatID),
		slog.Int("message_id", ref.MessageID),
		slog.String("cause", reason),
		slog.Duration("duration", time.Since(start)),
	}
	if err != nil {
		logger.Warn(ctx, "reaper", "reaper.delete", append(attrs, logger.ErrAttrs(err)...)...)
		return
	}
	logger.Debug(ctx, "reaper", "reaper.delete", attrs...)
}

// Pending reports how many deletions are still waiting.
func (r *Reaper) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.timers)
}

// Close cancels waiting deletions and waits for running ones.
func (r *Reaper) Close() {
	r.mu.Lock()
	r.closed = true
	for t := range r.timers {
		if t.Stop() {
			r.wg.Done()
		}
		delete(r.timers, t)
	}
	r.mu.Unlock()
	r.wg.Wait()
}
