package policy

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"
)

// CacheConfig sizes the decision cache. Zero values fall back to defaults
// suitable for a few thousand distinct (user, model, action, data) keys.
type CacheConfig struct {
	NumCounters int64
	MaxCost     int64
	BufferItems int64
	TTL         time.Duration
}

// CachedEngine memoizes Evaluate decisions in a ristretto cache. The
// wrapped Engine stays pure; caching is safe exactly because the engine is
// deterministic over an immutable rule set, so a rule-set reload must swap
// in a new CachedEngine (or call Invalidate) rather than mutate this one.
type CachedEngine struct {
	*Engine
	cache *ristretto.Cache
	ttl   time.Duration
}

func NewCachedEngine(e *Engine, cfg CacheConfig) (*CachedEngine, error) {
	if cfg.NumCounters <= 0 {
		cfg.NumCounters = 100_000
	}
	if cfg.MaxCost <= 0 {
		cfg.MaxCost = 10_000
	}
	if cfg.BufferItems <= 0 {
		cfg.BufferItems = 64
	}
	if cfg.TTL <= 0 {
		cfg.TTL = time.Second
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
	})
	if err != nil {
		return nil, fmt.Errorf("policy: decision cache: %w", err)
	}
	return &CachedEngine{Engine: e, cache: cache, ttl: cfg.TTL}, nil
}

// Evaluate returns the cached decision for an identical request when
// present, otherwise delegates to the engine and caches the result.
func (c *CachedEngine) Evaluate(req *Request) *Decision {
	key := decisionKey(req)
	if v, ok := c.cache.Get(key); ok {
		if d, ok := v.(*Decision); ok {
			return d
		}
	}
	d := c.Engine.Evaluate(req)
	c.cache.SetWithTTL(key, d, 1, c.ttl)
	return d
}

// CheckAccess reports the boolean outcome of the (cached) Evaluate.
func (c *CachedEngine) CheckAccess(req *Request) bool {
	return c.Evaluate(req).Allowed
}

// Invalidate drops every cached decision.
func (c *CachedEngine) Invalidate() {
	c.cache.Clear()
}

// Wait blocks until pending cache writes are visible. Intended for tests.
func (c *CachedEngine) Wait() {
	c.cache.Wait()
}

// decisionKey hashes the request parts a decision depends on. Cached
// decisions are shared pointers; callers must not mutate them.
func decisionKey(req *Request) string {
	payload, _ := json.Marshal(struct {
		User   *User
		Model  string
		Action Action
		Where  Filter
		Data   map[string]any
	}{req.User, req.Model, req.Action, req.Where, req.Data})
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
