package cache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Classes []string `json:"classes"`
}

func caches(t *testing.T) map[string]Cache {
	t.Helper()
	fs, err := NewFSCache(t.TempDir())
	require.NoError(t, err)
	return map[string]Cache{
		"memory": NewMemoryCache(),
		"fs":     fs,
	}
}

func TestRoundTrip(t *testing.T) {
	for name, c := range caches(t) {
		t.Run(name, func(t *testing.T) {
			in := payload{Classes: []string{"book", "person"}}
			require.NoError(t, c.Put("relations <http://schema.org/book>", 5, in))

			var out payload
			hit, err := c.Get("relations <http://schema.org/book>", 5, &out)
			require.NoError(t, err)
			assert.True(t, hit)
			assert.Equal(t, in, out)
		})
	}
}

func TestVersionMismatchIsMiss(t *testing.T) {
	for name, c := range caches(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, c.Put("k", 5, payload{Classes: []string{"a"}}))

			var out payload
			hit, err := c.Get("k", 6, &out)
			require.NoError(t, err)
			assert.False(t, hit)
		})
	}
}

func TestMissingKey(t *testing.T) {
	for name, c := range caches(t) {
		t.Run(name, func(t *testing.T) {
			var out payload
			hit, err := c.Get("absent", 1, &out)
			require.NoError(t, err)
			assert.False(t, hit)
		})
	}
}

func TestCorruptEntryIsMiss(t *testing.T) {
	dir := t.TempDir()
	c, err := NewFSCache(dir)
	require.NoError(t, err)

	require.NoError(t, c.Put("k", 1, payload{Classes: []string{"a"}}))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "k.json"), []byte("{not json"), 0o644))

	var out payload
	hit, err := c.Get("k", 1, &out)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestSanitizeKey(t *testing.T) {
	assert.Equal(t, "http__schema.org_book", SanitizeKey("<http://schema.org/book>"))
	assert.Equal(t, "plain", SanitizeKey("plain"))
}
