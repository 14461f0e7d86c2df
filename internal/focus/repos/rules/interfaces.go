package rules

import (
	"context"

	"github.com/SujathaSimmala2829/Focus-blocker/internal/focus/domain"
)

// HostIndex is a probabilistic set of the hosts that domain-anchored rules
// are pinned to. MayCover reports whether host or one of its parent domains
// may be in the set; it never answers false for a member or its subdomains.
type HostIndex interface {
	MayCover(host string) bool
	Len() int
}

// HostIndexFactory builds a HostIndex over hosts at a false-positive rate.
type HostIndexFactory interface {
	New(hosts []string, fpRate float64) HostIndex
}

// DecisionCache caches block decisions by normalized URL with basic metrics.
type DecisionCache interface {
	Get(url string) (domain.BlockDecision, bool)
	Put(url string, d domain.BlockDecision)
	Len() int
	Purge()
	Stats() (hits, misses, evictions uint64)
}

// Store is the durable rule registry.
// - All: every registered rule, ordered by ID
// - Apply: removes and adds rules in one transaction
// - Stats: counts and metadata; Close: release resources
type Store interface {
	All() ([]domain.BlockRule, error)
	Apply(add []domain.BlockRule, remove []uint32, updatedUnix int64) error
	Stats() StoreStats
	Close() error
}

// Repository is the blocking engine: a durable rule registry that decides
// whether a top-level navigation is redirected.
// - UpdateRules: validates and applies one atomic add/remove batch
// - Rules: the live rule set, ordered by ID
// - Decide: evaluates a URL against the live rule set
type Repository interface {
	UpdateRules(ctx context.Context, add []domain.BlockRule, remove []uint32) error
	Rules(ctx context.Context) ([]domain.BlockRule, error)
	Decide(url string) domain.BlockDecision
	Stats() EngineStats
}
