package service

import (
	"strings"
	"time"
	"ucdresults-backend/internal/scrapers/ucd"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/crypto/bcrypt"
)

type CacheConfig struct {
	// Size is the maximum number of cached users, 0 disables the cache.
	Size int `json:"size"`
	// Ttl is how long results are served from the cache, in seconds.
	Ttl int `json:"ttl"`
}

type cacheEntry struct {
	// passwords are only kept hashed, an entry is served only to the same
	// username and password that produced it.
	hash    []byte
	results []ucd.AggregatedResult
}

type resultCache struct {
	lru  *expirable.LRU[string, cacheEntry]
	cost int
}

func newResultCache(cfg CacheConfig) *resultCache {
	if cfg.Size <= 0 {
		return nil
	}
	ttl := time.Duration(cfg.Ttl) * time.Second
	if ttl <= 0 {
		ttl = time.Minute * 10
	}
	return &resultCache{
		lru:  expirable.NewLRU[string, cacheEntry](cfg.Size, nil, ttl),
		cost: bcrypt.DefaultCost,
	}
}

func cacheKey(username string) string {
	return strings.ToLower(username)
}

func (c *resultCache) get(creds ucd.Credentials) ([]ucd.AggregatedResult, bool) {
	if c == nil {
		return nil, false
	}
	entry, ok := c.lru.Get(cacheKey(creds.Username))
	if !ok {
		return nil, false
	}
	err := bcrypt.CompareHashAndPassword(entry.hash, []byte(creds.Password))
	if err != nil {
		return nil, false
	}
	return entry.results, true
}

func (c *resultCache) put(creds ucd.Credentials, results []ucd.AggregatedResult) error {
	if c == nil {
		return nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(creds.Password), c.cost)
	if err != nil {
		return err
	}
	c.lru.Add(cacheKey(creds.Username), cacheEntry{
		hash:    hash,
		results: results,
	})
	return nil
}
