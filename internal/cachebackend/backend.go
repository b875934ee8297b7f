// Package cachebackend defines the persistent-tier backend contract for
// the Task Runtime's cache option (spec §4.3.1), grounded on
// original_source/flux/cache_backends.py's CacheBackend protocol.
package cachebackend

import "time"

// Entry is one stored cache value with its version tag, for validation
// against a requested cache_version (spec §4.3.1).
type Entry struct {
	Value   any
	Version string
}

// Backend is the storage tier behind cache.Manager.
type Backend interface {
	Get(key string) (Entry, bool, error)
	Set(key string, entry Entry, ttl time.Duration) error
	Delete(key string) error
}
