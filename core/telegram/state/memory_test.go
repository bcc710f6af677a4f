package state

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func set(v int) UpdateFunc[int] {
	return func(int, bool) (int, Action, error) { return v, Save, nil }
}

func TestMemoryStoreActions(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore[int](0)

	_, ok, err := st.Get(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, st.Update(ctx, 1, set(5)))
	v, ok, _ := st.Get(ctx, 1)
	assert.True(t, ok)
	assert.Equal(t, 5, v)

	require.NoError(t, st.Update(ctx, 1, func(cur int, ok bool) (int, Action, error) {
		assert.True(t, ok)
		return cur + 100, Keep, nil
	}))
	v, _, _ = st.Get(ctx, 1)
	assert.Equal(t, 5, v)

	require.NoError(t, st.Update(ctx, 1, func(cur int, _ bool) (int, Action, error) {
		return cur, Delete, nil
	}))
	_, ok, _ = st.Get(ctx, 1)
	assert.False(t, ok)
	assert.Equal(t, 0, st.Len())
}

func TestMemoryStoreErrorWritesNothing(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore[int](0)
	require.NoError(t, st.Update(ctx, 1, set(1)))

	boom := errors.New("boom")
	err := st.Update(ctx, 1, func(int, bool) (int, Action, error) { return 2, Save, boom })
	assert.ErrorIs(t, err, boom)

	v, ok, _ := st.Get(ctx, 1)
	assert.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestMemoryStoreTTLEvicts(t *testing.T) {
	ctx := context.Background()
	clk := &fakeClock{now: time.Unix(1000, 0)}
	var evicted []int
	st := NewMemoryStore[int](time.Minute,
		WithClock[int](clk.Now),
		WithEvict[int](func(_ context.Context, key int64, v int) { evicted = append(evicted, v) }),
	)

	require.NoError(t, st.Update(ctx, 1, set(7)))
	clk.Advance(30 * time.Second)
	_, ok, _ := st.Get(ctx, 1)
	assert.True(t, ok)

	clk.Advance(31 * time.Second)
	_, ok, _ = st.Get(ctx, 1)
	assert.False(t, ok)
	assert.Equal(t, []int{7}, evicted)

	// the update callback sees an expired value as absent
	require.NoError(t, st.Update(ctx, 2, set(8)))
	clk.Advance(2 * time.Minute)
	require.NoError(t, st.Update(ctx, 2, func(cur int, ok bool) (int, Action, error) {
		assert.False(t, ok)
		assert.Zero(t, cur)
		return 0, Keep, nil
	}))
	assert.Equal(t, []int{7, 8}, evicted)
}

func TestMemoryStoreSweep(t *testing.T) {
	ctx := context.Background()
	clk := &fakeClock{now: time.Unix(1000, 0)}
	var keys []int64
	st := NewMemoryStore[int](time.Minute,
		WithClock[int](clk.Now),
		WithEvict[int](func(_ context.Context, key int64, _ int) { keys = append(keys, key) }),
	)

	require.NoError(t, st.Update(ctx, 1, set(1)))
	clk.Advance(2 * time.Minute)
	require.NoError(t, st.Update(ctx, 2, set(2)))

	n, err := st.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []int64{1}, keys)
	assert.Equal(t, 1, st.Len())
}

func TestMemoryStoreSerializesPerKey(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore[int](0)

	const workers = 50
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = st.Update(ctx, 9, func(cur int, _ bool) (int, Action, error) {
				n := cur
				time.Sleep(time.Microsecond)
				return n + 1, Save, nil
			})
		}()
	}
	wg.Wait()

	v, _, _ := st.Get(ctx, 9)
	assert.Equal(t, workers, v)
}

// A holder that found nothing must not drop the slot once a waiter behind it saved.
func TestMemoryStoreReleaseKeepsSaveFromWaiter(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore[int](0)

	held := st.acquire(4)
	saved := make(chan error, 1)
	go func() { saved <- st.Update(ctx, 4, set(7)) }()
	require.Eventually(t, func() bool {
		st.mu.Lock()
		defer st.mu.Unlock()
		return held.refs == 2
	}, time.Second, time.Millisecond)

	// Park both releases on the map lock until the waiter has written its value.
	st.mu.Lock()
	released := make(chan struct{})
	go func() {
		st.release(4, held)
		close(released)
	}()
	require.Eventually(t, func() bool {
		if !held.mu.TryLock() {
			return false
		}
		defer held.mu.Unlock()
		return held.present
	}, time.Second, time.Millisecond)
	st.mu.Unlock()

	<-released
	require.NoError(t, <-saved)
	v, ok, err := st.Get(ctx, 4)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 7, v)
	assert.Equal(t, 1, st.Len())
}

type countingSweeper struct {
	mu sync.Mutex
	n  int
}

func (c *countingSweeper) Sweep(context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
	return 0, nil
}

func (c *countingSweeper) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

func TestRunJanitor(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sw := &countingSweeper{}
	done := make(chan struct{})
	go func() {
		RunJanitor(ctx, sw, 5*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool { return sw.calls() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop")
	}
}
