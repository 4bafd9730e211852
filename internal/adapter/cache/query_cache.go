package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/darshil0/DineAI/internal/domain"
	"github.com/darshil0/DineAI/internal/logging"
	"github.com/darshil0/DineAI/internal/metrics"
	"github.com/darshil0/DineAI/internal/port"
)

// ResultCache is an LRU cache of candidate lists with a TTL. Entries
// recorded under an older store generation are treated as misses.
type ResultCache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
	order   []string
	maxSize int
	ttl     time.Duration
	now     func() time.Time
}

type cacheEntry struct {
	candidates []domain.ScoredCandidate
	timestamp  time.Time
	generation uint64
}

func NewResultCache(maxSize int, ttl time.Duration) *ResultCache {
	if maxSize <= 0 {
		maxSize = 100
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &ResultCache{
		entries: make(map[string]*cacheEntry),
		order:   make([]string, 0, maxSize),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
}

func cacheKey(query string) string {
	hash := sha256.Sum256([]byte(query))
	return hex.EncodeToString(hash[:16])
}

func (c *ResultCache) Get(query string, generation uint64) ([]domain.ScoredCandidate, bool) {
	key := cacheKey(query)

	c.mu.RLock()
	entry, exists := c.entries[key]
	c.mu.RUnlock()

	if !exists {
		return nil, false
	}

	if c.now().Sub(entry.timestamp) > c.ttl || entry.generation != generation {
		c.mu.Lock()
		// A Put may have replaced the entry since the read lock was released.
		if cur, ok := c.entries[key]; ok && cur == entry {
			delete(c.entries, key)
			c.removeFromOrder(key)
		}
		c.mu.Unlock()
		return nil, false
	}

	c.mu.Lock()
	if _, ok := c.entries[key]; ok {
		c.moveToEnd(key)
	}
	c.mu.Unlock()

	return cloneCandidates(entry.candidates), true
}

func (c *ResultCache) Put(query string, generation uint64, candidates []domain.ScoredCandidate) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey(query)
	entry := &cacheEntry{
		candidates: cloneCandidates(candidates),
		timestamp:  c.now(),
		generation: generation,
	}

	if _, exists := c.entries[key]; exists {
		c.entries[key] = entry
		c.moveToEnd(key)
		return
	}

	if len(c.entries) >= c.maxSize {
		c.evictOldest()
	}

	c.entries[key] = entry
	c.order = append(c.order, key)
}

func (c *ResultCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*cacheEntry)
	c.order = c.order[:0]
}

func (c *ResultCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *ResultCache) evictOldest() {
	if len(c.order) == 0 {
		return
	}
	oldest := c.order[0]
	c.order = c.order[1:]
	delete(c.entries, oldest)
}

func (c *ResultCache) moveToEnd(key string) {
	c.removeFromOrder(key)
	c.order = append(c.order, key)
}

func (c *ResultCache) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

func cloneCandidates(in []domain.ScoredCandidate) []domain.ScoredCandidate {
	out := make([]domain.ScoredCandidate, len(in))
	copy(out, in)
	return out
}

// Generationer reports a counter that changes whenever stored data changes.
type Generationer interface {
	Generation() uint64
}

// ProfileKey encodes every field of a profile, so two profiles share a key
// only when they would be scored identically.
func ProfileKey(p domain.UserTasteProfile) string {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Sprintf("%#v", p)
	}
	return string(data)
}

// CachedRecommender serves repeated profiles from a ResultCache. Only
// vector-sourced results are cached so a recovered store is used at once.
type CachedRecommender struct {
	recommender port.Recommender
	cache       *ResultCache
	store       Generationer
	keyFunc     func(domain.UserTasteProfile) string
}

func NewCachedRecommender(recommender port.Recommender, cache *ResultCache, store Generationer, keyFunc func(domain.UserTasteProfile) string) *CachedRecommender {
	return &CachedRecommender{
		recommender: recommender,
		cache:       cache,
		store:       store,
		keyFunc:     keyFunc,
	}
}

func (r *CachedRecommender) Recommend(ctx context.Context, profile domain.UserTasteProfile) (*domain.CandidateList, error) {
	key := r.keyFunc(profile)
	gen := r.store.Generation()

	if candidates, hit := r.cache.Get(key, gen); hit {
		metrics.ResultCacheHits.Inc()
		_, requestID := logging.EnsureRequestID(ctx)
		return &domain.CandidateList{RequestID: requestID, Source: domain.SourceVector, Candidates: candidates}, nil
	}
	metrics.ResultCacheMisses.Inc()

	list, err := r.recommender.Recommend(ctx, profile)
	if err != nil {
		return nil, err
	}

	if list.Source == domain.SourceVector {
		r.cache.Put(key, gen, list.Candidates)
	}
	return list, nil
}
