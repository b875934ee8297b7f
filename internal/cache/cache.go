// Package cache implements the Task Runtime's cache shortcut (spec
// §4.3.1: on start, consult the cache at the stable task id; on hit,
// bypass execution and emit TASK_COMPLETED directly), plus tag-based
// invalidation, grounded on original_source/flux/cache.py's CacheManager
// and CacheInvalidator.
package cache

import (
	"sync"
	"time"

	"go.fluxrun.dev/flux/internal/cachebackend"
)

// Invalidator maps tags to the set of cache keys stored under them,
// grounded on original_source/flux/cache.py's CacheInvalidator.
type Invalidator struct {
	mu   sync.Mutex
	tags map[string]map[string]bool
}

func newInvalidator() *Invalidator {
	return &Invalidator{tags: make(map[string]map[string]bool)}
}

func (i *Invalidator) tagKey(key string, tags []string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	for _, tag := range tags {
		set, ok := i.tags[tag]
		if !ok {
			set = make(map[string]bool)
			i.tags[tag] = set
		}
		set[key] = true
	}
}

func (i *Invalidator) keysForTag(tag string) []string {
	i.mu.Lock()
	defer i.mu.Unlock()
	set := i.tags[tag]
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	delete(i.tags, tag)
	return keys
}

// Manager fronts a Backend with version-aware validation and tag-based
// invalidation, grounded on original_source/flux/cache.py's CacheManager.
// It keeps no in-memory layer of its own: every Get and Set goes to the
// backend.
type Manager struct {
	backend cachebackend.Backend
	invalid *Invalidator
}

func NewManager(backend cachebackend.Backend) *Manager {
	return &Manager{backend: backend, invalid: newInvalidator()}
}

// Get returns the cached value for key if present and its stored version
// matches (or no version was requested).
func (m *Manager) Get(key string, version string) (any, bool) {
	entry, ok, err := m.backend.Get(key)
	if err != nil || !ok {
		return nil, false
	}
	if version != "" && entry.Version != version {
		return nil, false
	}
	return entry.Value, true
}

// Set stores value under key with an optional ttl, version, and
// invalidation tags.
func (m *Manager) Set(key string, value any, ttl time.Duration, version string, tags []string) error {
	if err := m.backend.Set(key, cachebackend.Entry{Value: value, Version: version}, ttl); err != nil {
		return err
	}
	if len(tags) > 0 {
		m.invalid.tagKey(key, tags)
	}
	return nil
}

// Delete removes key from the cache.
func (m *Manager) Delete(key string) error { return m.backend.Delete(key) }

// InvalidateByTag evicts every key ever stored under tag.
func (m *Manager) InvalidateByTag(tag string) error {
	for _, key := range m.invalid.keysForTag(tag) {
		if err := m.backend.Delete(key); err != nil {
			return err
		}
	}
	return nil
}
