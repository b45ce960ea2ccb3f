package classify

import (
	"sync"

	lru "github.com/hashicorp/golang-lru"
)

const (
	matchCacheSize    = 5000
	negativeCacheSize = 10000
)

// MatchCache holds the classifier's positive-match LRU and negative-match
// set, keyed by MAC. Negative entries are only ever written when both MAC
// and SSID were observed (see CacheNegative, and its caller Classify in
// classify.go): caching a
// negative verdict off MAC alone risks masking a later legitimate match
// from the same device under a new SSID.
type MatchCache struct {
	mu       sync.Mutex
	positive *lru.Cache
	negative *lru.Cache
}

// NewMatchCache builds the two bounded caches. Construction only fails if
// golang-lru is given a non-positive size, which never happens here.
func NewMatchCache() *MatchCache {
	pos, _ := lru.New(matchCacheSize)
	neg, _ := lru.New(negativeCacheSize)
	return &MatchCache{positive: pos, negative: neg}
}

// Positive returns a cached verdict for mac, if any.
func (c *MatchCache) Positive(mac string) (Envelope, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.positive.Get(mac)
	if !ok {
		return Envelope{}, false
	}
	return v.(Envelope), true
}

// Negative reports whether mac is a confirmed non-drone MAC.
func (c *MatchCache) Negative(mac string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.negative.Get(mac)
	return ok
}

// CachePositive records a confirmed match and clears any stale negative
// entry for the same MAC.
func (c *MatchCache) CachePositive(mac string, env Envelope) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.positive.Add(mac, env)
	c.negative.Remove(mac)
}

// CacheNegative records mac as confirmed non-drone. Callers must only call
// this when both MAC and SSID were present on the frame being classified.
func (c *MatchCache) CacheNegative(mac string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.negative.Add(mac, struct{}{})
}

// Len returns (positive, negative) cache occupancy, for heartbeat stats.
func (c *MatchCache) Len() (positive, negative int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.positive.Len(), c.negative.Len()
}
