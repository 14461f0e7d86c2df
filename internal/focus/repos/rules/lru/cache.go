package lru

import (
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/SujathaSimmala2829/Focus-blocker/internal/focus/domain"
	"github.com/SujathaSimmala2829/Focus-blocker/internal/focus/repos/rules"
)

// decisionCache is an LRU-backed implementation of rules.DecisionCache keyed
// by normalized URL.
type decisionCache struct {
	lru       *lru.Cache[string, domain.BlockDecision]
	hits      uint64
	misses    uint64
	evictions uint64
}

// disabledCache always misses.
type disabledCache struct{}

// newLRU is a seam for tests.
var newLRU = func(size int, onEvict func(string, domain.BlockDecision)) (*lru.Cache[string, domain.BlockDecision], error) {
	return lru.NewWithEvict(size, onEvict)
}

// New creates a DecisionCache holding up to size decisions. If size <= 0 a
// disabled cache is returned.
func New(size int) (rules.DecisionCache, error) {
	if size <= 0 {
		return &disabledCache{}, nil
	}
	dc := &decisionCache{}
	cache, err := newLRU(size, func(string, domain.BlockDecision) {
		atomic.AddUint64(&dc.evictions, 1)
	})
	if err != nil {
		return nil, err
	}
	dc.lru = cache
	return dc, nil
}

func (c *decisionCache) Get(url string) (domain.BlockDecision, bool) {
	if val, ok := c.lru.Get(url); ok {
		atomic.AddUint64(&c.hits, 1)
		return val, true
	}
	atomic.AddUint64(&c.misses, 1)
	return domain.BlockDecision{}, false
}

func (c *decisionCache) Put(url string, d domain.BlockDecision) { c.lru.Add(url, d) }

func (c *decisionCache) Len() int { return c.lru.Len() }

// Purge clears all entries. Purged entries count as evictions.
func (c *decisionCache) Purge() { c.lru.Purge() }

func (c *decisionCache) Stats() (hits, misses, evictions uint64) {
	return atomic.LoadUint64(&c.hits), atomic.LoadUint64(&c.misses), atomic.LoadUint64(&c.evictions)
}

func (d *disabledCache) Get(string) (domain.BlockDecision, bool) {
	return domain.BlockDecision{}, false
}
func (d *disabledCache) Put(string, domain.BlockDecision) {}
func (d *disabledCache) Len() int                         { return 0 }
func (d *disabledCache) Purge()                           {}
func (d *disabledCache) Stats() (uint64, uint64, uint64)  { return 0, 0, 0 }

var _ rules.DecisionCache = (*decisionCache)(nil)
var _ rules.DecisionCache = (*disabledCache)(nil)
