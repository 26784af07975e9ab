package render

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Cache stores render service responses so repeated renders of identical
// text do not hit the network
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte)
}

// Key generates a cache key for a text snapshot and section scope
func Key(text, section string) string {
	h := sha256.New()
	h.Write([]byte(text))
	h.Write([]byte{0})
	h.Write([]byte(section))
	return "claimtrack:render:v1:" + hex.EncodeToString(h.Sum(nil))
}

// MemoryCache implements in-memory TTL caching
type MemoryCache struct {
	cache *gocache.Cache
}

// NewMemoryCache creates a new memory cache
func NewMemoryCache(ttl, cleanupInterval time.Duration) *MemoryCache {
	return &MemoryCache{
		cache: gocache.New(ttl, cleanupInterval),
	}
}

// Get retrieves a cached response
func (c *MemoryCache) Get(key string) ([]byte, bool) {
	if val, found := c.cache.Get(key); found {
		return val.([]byte), true
	}
	return nil, false
}

// Set stores a response with the default TTL
func (c *MemoryCache) Set(key string, value []byte) {
	c.cache.Set(key, value, gocache.DefaultExpiration)
}

// nopCache disables caching without branching at call sites
type nopCache struct{}

func (nopCache) Get(string) ([]byte, bool) { return nil, false }
func (nopCache) Set(string, []byte)        {}
