// Package catalog stores sellable items and the view log.
package catalog

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/m3rciful/guideshop/internal/shop"
)

type itemKey struct {
	kind shop.Kind
	name string
}

// Memory is an in-process Catalog.
type Memory struct {
	mu     sync.RWMutex
	nextID int64
	items  map[itemKey]shop.Item
	now    func() time.Time
}

// NewMemory returns an empty catalog.
func NewMemory() *Memory {
	return &Memory{items: make(map[itemKey]shop.Item), now: time.Now}
}

func (m *Memory) FindByName(_ context.Context, kind shop.Kind, name string) (shop.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	it, ok := m.items[itemKey{kind, name}]
	if !ok {
		return shop.Item{}, shop.ErrNotFound
	}
	return it, nil
}

func (m *Memory) Create(_ context.Context, item shop.Item) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := itemKey{item.Kind, item.Name}
	if _, ok := m.items[k]; ok {
		return 0, shop.ErrConflict
	}
	m.nextID++
	item.ID = m.nextID
	item.CreatedAt = m.now().UTC()
	m.items[k] = item
	return item.ID, nil
}

func (m *Memory) Delete(_ context.Context, kind shop.Kind, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := itemKey{kind, name}
	if _, ok := m.items[k]; !ok {
		return shop.ErrNotFound
	}
	delete(m.items, k)
	return nil
}

// List returns items of kind in creation order.
func (m *Memory) List(_ context.Context, kind shop.Kind) ([]shop.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []shop.Item
	for k, it := range m.items {
		if k.kind == kind {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// MemoryViewLog is an in-process ViewLog.
type MemoryViewLog struct {
	mu    sync.Mutex
	views []shop.View
}

func NewMemoryViewLog() *MemoryViewLog { return &MemoryViewLog{} }

func (l *MemoryViewLog) RecordView(_ context.Context, v shop.View) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if v.ViewedAt.IsZero() {
		v.ViewedAt = time.Now().UTC()
	}
	l.views = append(l.views, v)
	return nil
}

func (l *MemoryViewLog) Views(context.Context) ([]shop.View, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]shop.View(nil), l.views...), nil
}
