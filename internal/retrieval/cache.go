package retrieval

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const cacheFileName = "embedding_cache.jsonl"

type cacheEntry struct {
	Model     string    `json:"model"`
	Hash      string    `json:"hash"`
	Embedding []float32 `json:"embedding"`
}

// Cache is an append-only embedding cache backed by a JSONL file in the
// working directory. Re-ingesting a document after a restart reuses the
// stored vectors instead of calling the embedding API again.
type Cache struct {
	mu      sync.Mutex
	file    *os.File
	entries map[string][]float32
}

// OpenCache loads the cache file from workingDir, creating it if needed.
func OpenCache(workingDir string) (*Cache, error) {
	path := filepath.Join(workingDir, cacheFileName)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("could not open embedding cache %v: %w", path, err)
	}

	cache := &Cache{file: file, entries: map[string][]float32{}}

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var entry cacheEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			// Torn write from a previous crash; skip the line.
			continue
		}
		cache.entries[entry.Model+":"+entry.Hash] = entry.Embedding
	}
	if err := scanner.Err(); err != nil {
		file.Close()
		return nil, fmt.Errorf("could not read embedding cache %v: %w", path, err)
	}

	return cache, nil
}

func (c *Cache) Get(model, text string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	embedding, ok := c.entries[model+":"+hashText(text)]
	return embedding, ok
}

func (c *Cache) Put(model, text string, embedding []float32) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := cacheEntry{Model: model, Hash: hashText(text), Embedding: embedding}
	c.entries[entry.Model+":"+entry.Hash] = embedding

	line, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	if _, err := c.file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("could not persist embedding cache entry: %w", err)
	}
	return nil
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}

func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.file.Close()
}

func hashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
