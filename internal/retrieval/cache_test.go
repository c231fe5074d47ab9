package retrieval

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheRoundTrip(t *testing.T) {
	dir := t.TempDir()

	cache, err := OpenCache(dir)
	require.NoError(t, err)

	_, ok := cache.Get("text-embedding-3-large", "hello")
	assert.False(t, ok)

	require.NoError(t, cache.Put("text-embedding-3-large", "hello", []float32{0.1, 0.2}))
	embedding, ok := cache.Get("text-embedding-3-large", "hello")
	require.True(t, ok)
	assert.Equal(t, []float32{0.1, 0.2}, embedding)

	// The same text under another model is a different entry.
	_, ok = cache.Get("text-embedding-ada-002", "hello")
	assert.False(t, ok)

	require.NoError(t, cache.Close())

	// Entries survive a reopen.
	cache, err = OpenCache(dir)
	require.NoError(t, err)
	defer cache.Close()

	embedding, ok = cache.Get("text-embedding-3-large", "hello")
	require.True(t, ok)
	assert.Equal(t, []float32{0.1, 0.2}, embedding)
	assert.Equal(t, 1, cache.Len())
}

func TestCacheSkipsTornLines(t *testing.T) {
	dir := t.TempDir()

	cache, err := OpenCache(dir)
	require.NoError(t, err)
	require.NoError(t, cache.Put("m", "kept", []float32{1}))
	require.NoError(t, cache.Close())

	// Simulate a crash mid-write.
	path := filepath.Join(dir, cacheFileName)
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	require.NoError(t, err)
	_, err = file.WriteString(`{"model":"m","hash":"beef","embed`)
	require.NoError(t, err)
	require.NoError(t, file.Close())

	cache, err = OpenCache(dir)
	require.NoError(t, err)
	defer cache.Close()

	assert.Equal(t, 1, cache.Len())
	_, ok := cache.Get("m", "kept")
	assert.True(t, ok)
}
