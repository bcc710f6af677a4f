// Package sender runs outbound Bot API calls with retries, either inline (Do)
// or on a bounded worker pool (Enqueue).
package sender

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/m3rciful/guideshop/core/logger"
	"github.com/m3rciful/guideshop/core/telegram/netutil"
)

const component = "tg.sender"

var (
	// ErrQueueClosed is returned by Enqueue after Close.
	ErrQueueClosed = errors.New("telegram sender: queue closed")
	// ErrQueueFull is returned by Enqueue when every slot is taken.
	ErrQueueFull = errors.New("telegram sender: queue full")

	errNilRun = errors.New("telegram sender: nil run function")
)

// Options tunes the dispatcher. Zero values get defaults.
type Options struct {
	QueueSize    int
	Workers      int
	MaxRetries   int
	RetryBackoff time.Duration
	// MaxDuration bounds one call including every retry.
	MaxDuration time.Duration
}

func (o Options) withDefaults() Options {
	if o.QueueSize <= 0 {
		o.QueueSize = 256
	}
	if o.Workers <= 0 {
		o.Workers = 4
	}
	o.MaxRetries = max(o.MaxRetries, 0)
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 2 * time.Second
	}
	if o.MaxDuration <= 0 {
		o.MaxDuration = 12 * time.Second
	}
	return o
}

type call struct {
	ctx      context.Context
	action   string
	endpoint string
	run      func() error
}

// Dispatcher executes Bot API calls and counts the ones that failed for good.
type Dispatcher struct {
	opts  Options
	queue chan call

	mu     sync.RWMutex
	closed bool

	stop     sync.Once
	workers  sync.WaitGroup
	failures atomic.Uint64
}

// NewDispatcher starts Options.Workers workers.
func NewDispatcher(opts Options) *Dispatcher {
	opts = opts.withDefaults()
	d := &Dispatcher{opts: opts, queue: make(chan call, opts.QueueSize)}
	d.workers.Add(opts.Workers)
	for range opts.Workers {
		go func() {
			defer d.workers.Done()
			for c := range d.queue {
				_ = d.exec(c)
			}
		}()
	}
	return d
}

// Do runs fn on the calling goroutine. Use it when the result matters, e.g. a sent message id.
func (d *Dispatcher) Do(ctx context.Context, action, endpoint string, run func() error) error {
	if run == nil {
		return errNilRun
	}
	return d.exec(call{ctx: ctx, action: action, endpoint: endpoint, run: run})
}

// Enqueue hands run to the pool without waiting. run may execute more than once.
func (d *Dispatcher) Enqueue(ctx context.Context, action, endpoint string, run func() error) error {
	if run == nil {
		return errNilRun
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrQueueClosed
	}
	select {
	case d.queue <- call{ctx: ctx, action: action, endpoint: endpoint, run: run}:
		return nil
	default:
		return ErrQueueFull
	}
}

// ErrorCount returns how many calls failed after all retries.
func (d *Dispatcher) ErrorCount() uint64 {
	return d.failures.Load()
}

// Close rejects new work, then waits until the queue is drained.
func (d *Dispatcher) Close() {
	d.stop.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.queue)
		d.mu.Unlock()
		d.workers.Wait()
	})
}

func (d *Dispatcher) exec(c call) error {
	ctx := c.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	budget, cancel := context.WithTimeout(ctx, d.opts.MaxDuration)
	defer cancel()

	start := time.Now()
	limit := d.opts.MaxRetries + 1
	var (
		err     error
		attempt int
	)
	for attempt = 1; attempt <= limit; attempt++ {
		if err = budget.Err(); err != nil {
			break
		}
		if err = c.run(); err == nil {
			logger.Debug(ctx, component, "send.success", c.attrs(attempt, start)...)
			return nil
		}
		if attempt == limit || !netutil.ShouldRetry(err) {
			break
		}
		delay := d.backoff(attempt, err)
		logger.Debug(ctx, component, "send.retry.backoff",
			append(c.attrs(attempt, start), slog.Duration("delay", delay))...)
		if werr := sleep(budget, delay); werr != nil {
			err = errors.Join(err, werr)
			break
		}
	}

	d.failures.Add(1)
	logger.Error(ctx, component, "send.fail", append(c.attrs(min(attempt, limit), start),
		slog.String("status", "fail"),
		slog.String("err", redact(err)),
		slog.String("err_code", classify(err)),
	)...)
	return err
}

// backoff grows linearly with the attempt and honours flood-control waits.
func (d *Dispatcher) backoff(attempt int, err error) time.Duration {
	return max(d.opts.RetryBackoff*time.Duration(attempt), netutil.RetryAfter(err))
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// attrs lists the call identity; rid and update ids come from the context handler.
func (c call) attrs(attempt int, start time.Time) []slog.Attr {
	attrs := []slog.Attr{slog.String("action", c.action)}
	if c.endpoint != "" {
		attrs = append(attrs, slog.String("endpoint", c.endpoint))
	}
	if attempt > 1 {
		attrs = append(attrs, slog.Int("attempt", attempt))
	}
	return append(attrs, slog.Duration("elapsed", logger.Took(start)))
}
