package client

import (
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// cacheSize bounds the entries; there is one per query key.
const cacheSize = 32

// queryCache holds decoded query results by key until they expire or a
// mutation invalidates them.
type queryCache struct {
	ttl time.Duration
	lru *expirable.LRU[string, any]
}

func newQueryCache(ttl time.Duration) *queryCache {
	return &queryCache{ttl: ttl, lru: expirable.NewLRU[string, any](cacheSize, nil, ttl)}
}

func (q *queryCache) get(key string) (any, bool) { return q.lru.Get(key) }

func (q *queryCache) set(key string, v any) { q.lru.Add(key, v) }

func (q *queryCache) invalidate(keys ...string) {
	for _, k := range keys {
		q.lru.Remove(k)
	}
}

func (q *queryCache) invalidateAll() { q.lru.Purge() }

// cached returns the entry for key or runs fetch and stores its result.
// Errors are not cached.
func cached[T any](q *queryCache, key string, fetch func() (T, error)) (T, error) {
	if v, ok := q.get(key); ok {
		if t, ok := v.(T); ok {
			return t, nil
		}
	}
	v, err := fetch()
	if err != nil {
		return v, err
	}
	q.set(key, v)
	return v, nil
}

func newJar() http.CookieJar {
	// cookiejar.New only fails on a bad PublicSuffixList option
	jar, _ := cookiejar.New(nil)
	return jar
}
