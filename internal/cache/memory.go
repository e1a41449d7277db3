package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryProvider is an in-process Provider with per-key expiry, used by tests
// and deployments that run without a Valkey instance.
type MemoryProvider struct {
	mu   sync.RWMutex
	data map[string]memoryItem
}

type memoryItem struct {
	value     []byte
	expiresAt time.Time
}

// NewMemoryProvider creates an empty in-memory provider.
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{data: make(map[string]memoryItem)}
}

// Get returns the stored bytes, or ErrCacheMiss when absent or expired.
func (m *MemoryProvider) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	item, ok := m.data[key]
	m.mu.RUnlock()

	if !ok {
		return nil, ErrCacheMiss
	}
	if !item.expiresAt.IsZero() && time.Now().After(item.expiresAt) {
		m.mu.Lock()
		delete(m.data, key)
		m.mu.Unlock()
		return nil, ErrCacheMiss
	}
	return append([]byte(nil), item.value...), nil
}

// Set stores a copy of value with an optional TTL.
func (m *MemoryProvider) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	var expires time.Time
	if ttl > 0 {
		expires = time.Now().Add(ttl)
	}

	m.mu.Lock()
	m.data[key] = memoryItem{value: append([]byte(nil), value...), expiresAt: expires}
	m.mu.Unlock()
	return nil
}

// Del removes an entry.
func (m *MemoryProvider) Del(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()
	return nil
}

// Close is a no-op.
func (m *MemoryProvider) Close() error { return nil }

// Len reports the number of live entries, for tests.
func (m *MemoryProvider) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
