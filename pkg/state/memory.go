package state

import (
	"context"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store with per-key expiry. Suitable for a
// single node and for tests.
type MemoryStore struct {
	mu       sync.RWMutex
	items    map[string]memoryItem
	closed   bool
	now      func() time.Time
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
}

type memoryItem struct {
	value     []byte
	expiresAt time.Time
}

func (it memoryItem) expired(now time.Time) bool {
	return !it.expiresAt.IsZero() && now.After(it.expiresAt)
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithCleanupInterval sets how often expired items are purged.
func WithCleanupInterval(d time.Duration) MemoryOption {
	return func(ms *MemoryStore) {
		ms.interval = d
	}
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) MemoryOption {
	return func(ms *MemoryStore) {
		ms.now = now
	}
}

// NewMemoryStore creates a new in-memory store and starts its cleanup loop.
// Close stops the loop.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	ms := &MemoryStore{
		items:    make(map[string]memoryItem),
		now:      time.Now,
		interval: time.Minute,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(ms)
	}

	go ms.cleanupLoop()
	return ms
}

// Get retrieves a copy of a value.
func (ms *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	if ms.closed {
		return nil, ErrStoreClosed
	}

	item, ok := ms.items[key]
	if !ok || item.expired(ms.now()) {
		return nil, ErrKeyNotFound
	}
	return append([]byte(nil), item.value...), nil
}

// Set stores a copy of value.
func (ms *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if ms.closed {
		return ErrStoreClosed
	}

	item := memoryItem{value: append([]byte(nil), value...)}
	if ttl > 0 {
		item.expiresAt = ms.now().Add(ttl)
	}
	ms.items[key] = item
	return nil
}

// Delete removes a key.
func (ms *MemoryStore) Delete(_ context.Context, key string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if ms.closed {
		return ErrStoreClosed
	}
	delete(ms.items, key)
	return nil
}

// Keys returns live keys matching a glob pattern, sorted.
func (ms *MemoryStore) Keys(_ context.Context, pattern string) ([]string, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	if ms.closed {
		return nil, ErrStoreClosed
	}

	now := ms.now()
	var keys []string
	for key, item := range ms.items {
		if item.expired(now) {
			continue
		}
		if matched, err := filepath.Match(pattern, key); err == nil && matched {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Close stops the cleanup loop. Further calls fail with ErrStoreClosed.
func (ms *MemoryStore) Close() error {
	ms.mu.Lock()
	if ms.closed {
		ms.mu.Unlock()
		return nil
	}
	ms.closed = true
	close(ms.stop)
	ms.mu.Unlock()

	<-ms.done
	return nil
}

func (ms *MemoryStore) cleanupLoop() {
	defer close(ms.done)

	ticker := time.NewTicker(ms.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ms.Cleanup()
		case <-ms.stop:
			return
		}
	}
}

// Cleanup removes expired items and returns how many were removed.
func (ms *MemoryStore) Cleanup() int {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := ms.now()
	removed := 0
	for key, item := range ms.items {
		if item.expired(now) {
			delete(ms.items, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of items, expired ones included.
func (ms *MemoryStore) Len() int {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return len(ms.items)
}
