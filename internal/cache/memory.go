// internal/cache/memory.go
package cache

import (
	"context"
	"sync"
	"time"
)

var _ Cache = (*Memory)(nil)

type entry struct {
	value     []byte
	expiresAt time.Time
}

// Memory is a process-local TTL cache.
type Memory struct {
	mu    sync.RWMutex
	items map[string]entry
	gen   uint64
	now   func() time.Time
}

func NewMemory() *Memory {
	return &Memory{items: make(map[string]entry), now: time.Now}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	e, ok := m.items[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !m.now().Before(e.expiresAt) {
		m.mu.Lock()
		if cur, ok := m.items[key]; ok && cur.expiresAt.Equal(e.expiresAt) {
			delete(m.items, key)
		}
		m.mu.Unlock()
		return nil, false, nil
	}
	return e.value, true, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	buf := make([]byte, len(value))
	copy(buf, value)

	m.mu.Lock()
	m.items[key] = entry{value: buf, expiresAt: m.now().Add(ttl)}
	m.mu.Unlock()
	return nil
}

func (m *Memory) Generation(_ context.Context) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.gen, nil
}

func (m *Memory) SetIfGeneration(_ context.Context, gen uint64, key string, value []byte, ttl time.Duration) (bool, error) {
	buf := make([]byte, len(value))
	copy(buf, value)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen != gen {
		return false, nil
	}
	m.items[key] = entry{value: buf, expiresAt: m.now().Add(ttl)}
	return true, nil
}

func (m *Memory) Purge(_ context.Context) error {
	m.mu.Lock()
	m.items = make(map[string]entry)
	m.gen++
	m.mu.Unlock()
	return nil
}
