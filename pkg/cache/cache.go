// Package cache provides the versioned result cache used by the
// analysis phases.
//
// Entries are stamped with the dataset version (the history log line
// count) at the time they were computed. A lookup hits only when the
// stored stamp equals the caller's current version, so any mutation of
// the dataset invalidates every derived result without bookkeeping.
package cache

import (
	"encoding/json"
	"strings"
	"sync"
)

// Cache is a versioned key-value cache for JSON-serializable payloads.
type Cache interface {
	// Get unmarshals the payload stored under key into out and returns
	// true, provided an entry exists and its stamp equals version.
	// Stale, missing or unreadable entries report a miss.
	Get(key string, version int, out any) (bool, error)

	// Put stores value under key with the given version stamp,
	// replacing any previous entry.
	Put(key string, version int, value any) error
}

// envelope is the stored form: the version stamp wraps the payload.
type envelope struct {
	Version int             `json:"version"`
	Payload json.RawMessage `json:"payload"`
}

// SanitizeKey turns an arbitrary string (typically an IRI) into a key
// safe to use as a file name: angle brackets and colons are stripped,
// path separators become underscores.
func SanitizeKey(s string) string {
	r := strings.NewReplacer("<", "", ">", "", ":", "", "/", "_", "\\", "_")
	return r.Replace(s)
}

// MemoryCache is an in-memory Cache for tests and one-shot runs.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]envelope
}

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]envelope)}
}

func (c *MemoryCache) Get(key string, version int, out any) (bool, error) {
	c.mu.RLock()
	env, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || env.Version != version {
		return false, nil
	}
	if err := json.Unmarshal(env.Payload, out); err != nil {
		return false, nil
	}
	return true, nil
}

func (c *MemoryCache) Put(key string, version int, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.entries[key] = envelope{Version: version, Payload: payload}
	c.mu.Unlock()
	return nil
}
