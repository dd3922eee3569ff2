// Package cache provides the byte caches shared by the patient catalog,
// the classifier and the cache-backed conversation store.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Cache defines the interface for caching
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// CacheKey generates a namespaced cache key from arbitrary text
func CacheKey(s string) string {
	hash := sha256.Sum256([]byte(s))
	return "patientsim:v1:" + hex.EncodeToString(hash[:])
}

// New builds the cache for a driver name: "memory", "disk" or "layered"
func New(driver, dir string, ttl time.Duration) Cache {
	switch driver {
	case "disk":
		return NewDiskCache(dir, ttl)
	case "layered":
		return NewLayeredCache(ttl, dir, ttl)
	default:
		return NewMemoryCache(ttl, 10*time.Minute)
	}
}
