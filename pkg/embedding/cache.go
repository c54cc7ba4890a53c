package embedding

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/afero"
)

// Cache persists aligned vectors keyed by hash of (provider, model,
// normalized text). It survives process restarts and is strictly
// best-effort: I/O failures are logged and never surfaced to callers.
type Cache struct {
	fs     afero.Fs
	path   string
	logger hclog.Logger

	mu      sync.Mutex
	entries map[string][]float32
}

// CacheConfig holds configuration for the embedding cache.
type CacheConfig struct {
	Fs     afero.Fs
	Path   string
	Logger hclog.Logger
}

// NewCache creates a cache, loading any existing file.
func NewCache(config CacheConfig) *Cache {
	if config.Fs == nil {
		config.Fs = afero.NewOsFs()
	}
	if config.Logger == nil {
		config.Logger = hclog.NewNullLogger()
	}

	c := &Cache{
		fs:      config.Fs,
		path:    config.Path,
		logger:  config.Logger.Named("embedding-cache"),
		entries: make(map[string][]float32),
	}
	c.load()
	return c
}

// CacheKey computes the composite cache key.
func CacheKey(provider, model, normalizedText string) string {
	sum := sha256.Sum256([]byte(provider + "|" + model + "|" + normalizedText))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached vector for key, if present.
func (c *Cache) Get(key string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	vec, ok := c.entries[key]
	return vec, ok
}

// Put stores a vector and flushes the file. Failures are logged only.
func (c *Cache) Put(key string, vec []float32) {
	c.mu.Lock()
	c.entries[key] = vec
	data, err := json.Marshal(c.entries)
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn("failed to encode embedding cache", "error", err)
		return
	}
	if err := afero.WriteFile(c.fs, c.path, data, 0o644); err != nil {
		c.logger.Warn("failed to write embedding cache", "path", c.path, "error", err)
	}
}

// Len returns the number of cached vectors.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// load reads the cache file if it exists. Corrupt or missing files start
// an empty cache.
func (c *Cache) load() {
	data, err := afero.ReadFile(c.fs, c.path)
	if err != nil {
		return
	}
	if err := json.Unmarshal(data, &c.entries); err != nil {
		c.logger.Warn("ignoring corrupt embedding cache", "path", c.path, "error", err)
		c.entries = make(map[string][]float32)
	}
}
