package cachebackend

import (
	"sync"
	"time"
)

type memoryEntry struct {
	entry     Entry
	expiresAt time.Time // zero means no expiry
}

// Memory is an in-process LRU-free map-backed Backend. No LRU library
// appears anywhere in the retrieved example pack, so eviction here is
// TTL-only; unbounded growth is bounded by the caller's TTL policy, which
// is the same tradeoff original_source/flux/cache_backends.py's
// FileCacheBackend makes (no size-based eviction either).
type Memory struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

func NewMemory() *Memory {
	return &Memory{entries: make(map[string]memoryEntry)}
}

func (m *Memory) Get(key string) (Entry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return Entry{}, false, nil
	}
	if !e.expiresAt.IsZero() && time.Now().After(e.expiresAt) {
		delete(m.entries, key)
		return Entry{}, false, nil
	}
	return e.entry, true, nil
}

func (m *Memory) Set(key string, entry Entry, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}
	m.entries[key] = memoryEntry{entry: entry, expiresAt: expiresAt}
	return nil
}

func (m *Memory) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}
