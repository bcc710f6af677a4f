package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/m3rciful/guideshop/core/logger"
	tghelpers "github.com/m3rciful/guideshop/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// Serializer runs the updates of one sender strictly in arrival order while
// different senders proceed concurrently. Each active sender gets one
// goroutine that exits once its queue is empty.
//
// The bot must deliver updates synchronously (tele.Settings.Synchronous) so
// that arrival order is the order Serializer sees.
type Serializer struct {
	onError func(c tele.Context, err error)

	mu     sync.Mutex
	queues map[int64][]func()
	wg     sync.WaitGroup
}

// NewSerializer builds a Serializer. onError receives handler errors, which
// can no longer travel back to telebot once the update is queued.
func NewSerializer(onError func(c tele.Context, err error)) *Serializer {
	return &Serializer{
		onError: onError,
		queues:  make(map[int64][]func()),
	}
}

// Middleware queues the downstream chain on the sender's queue and returns immediately.
// Updates without a sender run inline.
func (s *Serializer) Middleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		user := c.Sender()
		if user == nil {
			return next(c)
		}
		s.enqueue(user.ID, func() {
			if err := s.run(next, c); err != nil && s.onError != nil {
				s.onError(c, err)
			}
		})
		return nil
	}
}

func (s *Serializer) run(next tele.HandlerFunc, c tele.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error(tghelpers.BuildContext(c), "tg", "tg.panic",
				slog.String("status", "fail"),
				slog.Any("err", r),
				slog.String("stack", string(debug.Stack())),
			)
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return next(c)
}

func (s *Serializer) enqueue(key int64, job func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, active := s.queues[key]
	s.queues[key] = append(q, job)
	if active {
		return
	}
	s.wg.Add(1)
	go s.drain(key)
}

func (s *Serializer) drain(key int64) {
	defer s.wg.Done()
	for {
		s.mu.Lock()
		q := s.queues[key]
		if len(q) == 0 {
			delete(s.queues, key)
			s.mu.Unlock()
			return
		}
		job := q[0]
		q[0] = nil
		s.queues[key] = q[1:]
		s.mu.Unlock()
		job()
	}
}

// Active returns the number of senders with queued or running updates.
func (s *Serializer) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queues)
}

// Wait blocks until every queued update has run or ctx is done.
func (s *Serializer) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
