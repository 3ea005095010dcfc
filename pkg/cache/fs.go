package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// FSCache stores each entry as a JSON file under a directory. Corrupt
// or unreadable files are treated as misses rather than errors: a
// damaged cache costs a recomputation, never a failed analysis.
type FSCache struct {
	dir string
}

// NewFSCache creates the cache directory if needed.
func NewFSCache(dir string) (*FSCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cache: creating %s: %w", dir, err)
	}
	return &FSCache{dir: dir}, nil
}

func (c *FSCache) entryPath(key string) string {
	return filepath.Join(c.dir, SanitizeKey(key)+".json")
}

func (c *FSCache) Get(key string, version int, out any) (bool, error) {
	data, err := os.ReadFile(c.entryPath(key))
	if err != nil {
		return false, nil
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return false, nil
	}
	if env.Version != version {
		return false, nil
	}
	if err := json.Unmarshal(env.Payload, out); err != nil {
		return false, nil
	}
	return true, nil
}

func (c *FSCache) Put(key string, version int, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache: marshal %s: %w", key, err)
	}
	data, err := json.Marshal(envelope{Version: version, Payload: payload})
	if err != nil {
		return fmt.Errorf("cache: marshal envelope %s: %w", key, err)
	}
	// Write-then-rename keeps readers from seeing partial entries.
	path := c.entryPath(key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("cache: write %s: %w", key, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("cache: rename %s: %w", key, err)
	}
	return nil
}
