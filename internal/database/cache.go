package database

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

const (
	// Cache key prefixes
	CacheKeyUser      = "radiusd:user:"
	CacheKeyBlacklist = "radiusd:blacklist:"

	// Cache TTLs
	CacheTTLUser = 2 * time.Minute
)

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

var (
	memoryCache   = make(map[string]memoryEntry)
	memoryCacheMu sync.RWMutex
)

// CacheGet retrieves a cached value into dest. Redis when available,
// otherwise the in-process map.
func CacheGet(key string, dest interface{}) bool {
	if Redis != nil {
		data, err := Redis.Get(context.Background(), key).Bytes()
		if err != nil {
			return false
		}
		return json.Unmarshal(data, dest) == nil
	}

	memoryCacheMu.RLock()
	entry, ok := memoryCache[key]
	memoryCacheMu.RUnlock()
	if !ok || time.Now().After(entry.expiresAt) {
		return false
	}
	return json.Unmarshal(entry.data, dest) == nil
}

// CacheSet stores a value with a TTL
func CacheSet(key string, value interface{}, ttl time.Duration) {
	data, err := json.Marshal(value)
	if err != nil {
		return
	}

	if Redis != nil {
		Redis.Set(context.Background(), key, data, ttl)
		return
	}

	memoryCacheMu.Lock()
	memoryCache[key] = memoryEntry{data: data, expiresAt: time.Now().Add(ttl)}
	// Opportunistic sweep so revoked tokens don't accumulate forever
	if len(memoryCache) > 4096 {
		now := time.Now()
		for k, e := range memoryCache {
			if now.After(e.expiresAt) {
				delete(memoryCache, k)
			}
		}
	}
	memoryCacheMu.Unlock()
}

// CacheDelete removes keys from the cache
func CacheDelete(keys ...string) {
	if len(keys) == 0 {
		return
	}
	if Redis != nil {
		Redis.Del(context.Background(), keys...)
		return
	}
	memoryCacheMu.Lock()
	for _, k := range keys {
		delete(memoryCache, k)
	}
	memoryCacheMu.Unlock()
}

// BlacklistToken marks a bearer token as revoked until it would have
// expired anyway.
func BlacklistToken(token string, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	CacheSet(CacheKeyBlacklist+token, true, ttl)
}

// IsTokenBlacklisted reports whether a token has been revoked via logout
func IsTokenBlacklisted(token string) bool {
	var revoked bool
	return CacheGet(CacheKeyBlacklist+token, &revoked) && revoked
}

// InvalidateUserCache drops a cached user lookup after a mutation
func InvalidateUserCache(username string) {
	CacheDelete(CacheKeyUser + username)
}
