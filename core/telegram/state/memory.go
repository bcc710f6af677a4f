package state

import (
	"context"
	"sync"
	"time"
)

type slot[S any] struct {
	mu      sync.Mutex
	value   S
	present bool
	touched time.Time
	refs    int // guarded by MemoryStore.mu
}

// MemoryStore keeps sessions in process memory.
type MemoryStore[S any] struct {
	ttl     time.Duration
	onEvict EvictFunc[S]
	now     func() time.Time

	mu    sync.Mutex
	slots map[int64]*slot[S]
}

// MemoryOption customizes a MemoryStore.
type MemoryOption[S any] func(*MemoryStore[S])

// WithClock replaces time.Now, mainly for tests.
func WithClock[S any](now func() time.Time) MemoryOption[S] {
	return func(m *MemoryStore[S]) { m.now = now }
}

// WithEvict registers a hook for values dropped by TTL.
func WithEvict[S any](fn EvictFunc[S]) MemoryOption[S] {
	return func(m *MemoryStore[S]) { m.onEvict = fn }
}

// NewMemoryStore returns an empty store. ttl <= 0 disables expiry.
func NewMemoryStore[S any](ttl time.Duration, opts ...MemoryOption[S]) *MemoryStore[S] {
	m := &MemoryStore[S]{
		ttl:   ttl,
		now:   time.Now,
		slots: make(map[int64]*slot[S]),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

func (m *MemoryStore[S]) acquire(key int64) *slot[S] {
	m.mu.Lock()
	s, ok := m.slots[key]
	if !ok {
		s = &slot[S]{}
		m.slots[key] = s
	}
	s.refs++
	m.mu.Unlock()
	s.mu.Lock()
	return s
}

func (m *MemoryStore[S]) release(key int64, s *slot[S]) {
	s.mu.Unlock()
	m.mu.Lock()
	s.refs--
	// refs == 0 means nobody holds s.mu, so present is stable here.
	if s.refs == 0 && !s.present {
		delete(m.slots, key)
	}
	m.mu.Unlock()
}

func (m *MemoryStore[S]) expired(s *slot[S], now time.Time) bool {
	return m.ttl > 0 && s.present && now.Sub(s.touched) > m.ttl
}

// expireLocked drops an expired value, calling the evict hook. s.mu must be held.
func (m *MemoryStore[S]) expireLocked(ctx context.Context, key int64, s *slot[S]) {
	if !m.expired(s, m.now()) {
		return
	}
	old := s.value
	var zero S
	s.value, s.present = zero, false
	if m.onEvict != nil {
		m.onEvict(ctx, key, old)
	}
}

// Get returns the live value for key.
func (m *MemoryStore[S]) Get(ctx context.Context, key int64) (S, bool, error) {
	s := m.acquire(key)
	defer m.release(key, s)
	m.expireLocked(ctx, key, s)
	return s.value, s.present, nil
}

// Update applies fn while holding key.
func (m *MemoryStore[S]) Update(ctx context.Context, key int64, fn UpdateFunc[S]) error {
	s := m.acquire(key)
	defer m.release(key, s)
	m.expireLocked(ctx, key, s)

	next, action, err := fn(s.value, s.present)
	if err != nil {
		return err
	}
	switch action {
	case Save:
		s.value, s.present, s.touched = next, true, m.now()
	case Delete:
		var zero S
		s.value, s.present = zero, false
	}
	return nil
}

// Clear removes the value for key.
func (m *MemoryStore[S]) Clear(ctx context.Context, key int64) error {
	return m.Update(ctx, key, func(cur S, _ bool) (S, Action, error) {
		return cur, Delete, nil
	})
}

// Len returns the number of stored values not currently held by Update. Expired
// values count until swept.
func (m *MemoryStore[S]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.slots {
		if s.refs == 0 && s.present {
			n++
		}
	}
	return n
}

// Sweep drops expired values that nobody is holding.
func (m *MemoryStore[S]) Sweep(ctx context.Context) (int, error) {
	now := m.now()
	type evicted struct {
		key   int64
		value S
	}
	var out []evicted

	m.mu.Lock()
	for key, s := range m.slots {
		// refs == 0 means no goroutine holds or waits for s.mu.
		if s.refs == 0 && m.expired(s, now) {
			out = append(out, evicted{key, s.value})
			delete(m.slots, key)
		}
	}
	m.mu.Unlock()

	if m.onEvict != nil {
		for _, e := range out {
			m.onEvict(ctx, e.key, e.value)
		}
	}
	return len(out), nil
}
