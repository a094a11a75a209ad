package database

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type cachedThing struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestCacheRoundTrip(t *testing.T) {
	Redis = nil

	CacheSet("test:thing", cachedThing{Name: "x", Count: 3}, time.Minute)

	var got cachedThing
	assert.True(t, CacheGet("test:thing", &got))
	assert.Equal(t, cachedThing{Name: "x", Count: 3}, got)

	CacheDelete("test:thing")
	assert.False(t, CacheGet("test:thing", &got))
}

func TestCacheMiss(t *testing.T) {
	Redis = nil

	var got cachedThing
	assert.False(t, CacheGet("test:absent", &got))
}

func TestCacheExpiry(t *testing.T) {
	Redis = nil

	CacheSet("test:shortlived", cachedThing{Name: "y"}, -time.Second)

	var got cachedThing
	assert.False(t, CacheGet("test:shortlived", &got))
}

func TestTokenBlacklist(t *testing.T) {
	Redis = nil

	assert.False(t, IsTokenBlacklisted("tok-1"))

	BlacklistToken("tok-1", time.Minute)
	assert.True(t, IsTokenBlacklisted("tok-1"))

	// Expired revocation entries stop matching
	BlacklistToken("tok-2", -time.Second)
	assert.False(t, IsTokenBlacklisted("tok-2"))
}

func TestInvalidateUserCache(t *testing.T) {
	Redis = nil

	CacheSet(CacheKeyUser+"alice", cachedThing{Name: "alice"}, time.Minute)
	InvalidateUserCache("alice")

	var got cachedThing
	assert.False(t, CacheGet(CacheKeyUser+"alice", &got))
}
