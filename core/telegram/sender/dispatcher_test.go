package sender

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"
)

func TestDoRetriesTransientErrors(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, MaxRetries: 2, RetryBackoff: time.Millisecond})
	defer d.Close()

	calls := 0
	err := d.Do(context.Background(), "send.photo", "sendPhoto", func() error {
		calls++
		if calls < 3 {
			return &net.OpError{Op: "dial", Err: errors.New("refused")}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Zero(t, d.ErrorCount())
}

func TestDoStopsOnPermanentError(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, MaxRetries: 5, RetryBackoff: time.Millisecond})
	defer d.Close()

	calls := 0
	permanent := errors.New("telegram: bad request: wrong file identifier (400)")
	err := d.Do(context.Background(), "send.document", "sendDocument", func() error {
		calls++
		return permanent
	})
	require.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
	assert.Equal(t, uint64(1), d.ErrorCount())
	assert.Equal(t, "http_4xx", classify(permanent))
}

func TestEnqueueRunsAndCloseDrains(t *testing.T) {
	d := NewDispatcher(Options{Workers: 2, QueueSize: 8})
	var ran atomic.Int32
	for i := 0; i < 5; i++ {
		require.NoError(t, d.Enqueue(context.Background(), "send.text", "sendMessage", func() error {
			ran.Add(1)
			return nil
		}))
	}
	d.Close()
	assert.Equal(t, int32(5), ran.Load())
	assert.ErrorIs(t, d.Enqueue(context.Background(), "send.text", "sendMessage", func() error { return nil }), ErrQueueClosed)
}

func TestEnqueueFull(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, QueueSize: 1})
	release := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, d.Enqueue(context.Background(), "block", "", func() error {
		close(started)
		<-release
		return nil
	}))
	<-started
	require.NoError(t, d.Enqueue(context.Background(), "queued", "", func() error { return nil }))
	assert.ErrorIs(t, d.Enqueue(context.Background(), "overflow", "", func() error { return nil }), ErrQueueFull)
	close(release)
	d.Close()
}

func TestDoHonoursContext(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, MaxRetries: 3, RetryBackoff: time.Hour})
	defer d.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := d.Do(ctx, "send.text", "sendMessage", func() error {
		return &net.OpError{Op: "dial", Err: errors.New("refused")}
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, uint64(1), d.ErrorCount())
}

func TestRedactAndClassify(t *testing.T) {
	err := errors.New(`Post "https://api.telegram.org/bot123:AA-bb_cc/sendMessage": timeout`)
	assert.NotContains(t, redact(err), "AA-bb_cc")
	assert.Contains(t, redact(err), "bot<redacted>")

	assert.Equal(t, "", classify(nil))
	assert.Equal(t, "dial", classify(&net.OpError{Op: "dial", Err: errors.New("refused")}))
	assert.Equal(t, "flood", classify(tele.FloodError{RetryAfter: 1}))
	assert.Equal(t, "http_5xx", classify(errors.New("telegram: internal (502)")))
	assert.Equal(t, "unknown", classify(errors.New("odd")))
}
