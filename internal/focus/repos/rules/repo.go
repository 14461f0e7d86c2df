package rules

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/SujathaSimmala2829/Focus-blocker/internal/focus/common/clock"
	"github.com/SujathaSimmala2829/Focus-blocker/internal/focus/common/log"
	"github.com/SujathaSimmala2829/Focus-blocker/internal/focus/common/urlfilter"
	"github.com/SujathaSimmala2829/Focus-blocker/internal/focus/common/utils"
	"github.com/SujathaSimmala2829/Focus-blocker/internal/focus/domain"
)

// DefaultFPRate is the bloom false-positive rate used when none is given.
const DefaultFPRate = 0.01

// RepositoryOptions configures NewRepository.
type RepositoryOptions struct {
	Store   Store
	Cache   DecisionCache
	Factory HostIndexFactory
	FPRate  float64
	Clock   clock.Clock
	Logger  log.Logger
}

type compiledRule struct {
	rule   domain.BlockRule
	filter *urlfilter.Filter
}

// index is an immutable snapshot of the live rule set.
type index struct {
	byID     map[uint32]compiledRule
	ordered  []compiledRule
	hosts    HostIndex
	anchored int
	floating int
}

// repository composes a Store, a host index prefilter and a DecisionCache.
// Reads run host index → cache → evaluate; writes persist the batch and then swap in a
// fresh index and purge the cache under one lock.
type repository struct {
	mu      sync.RWMutex // guards idx and cache coherence
	writeMu sync.Mutex   // serializes batches
	idx     *index

	store   Store
	cache   DecisionCache
	factory HostIndexFactory
	fpRate  float64
	clock   clock.Clock
	logger  log.Logger
}

// NewRepository loads the persisted rules and builds the first index. A
// persisted rule whose pattern no longer compiles is skipped with a warning.
func NewRepository(opts RepositoryOptions) (Repository, error) {
	if opts.Store == nil || opts.Cache == nil || opts.Factory == nil {
		return nil, fmt.Errorf("rules repository requires store, cache and host index factory")
	}
	if opts.FPRate <= 0 || opts.FPRate >= 1 {
		opts.FPRate = DefaultFPRate
	}
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	if opts.Logger == nil {
		opts.Logger = log.NewNoopLogger()
	}
	r := &repository{
		store:   opts.Store,
		cache:   opts.Cache,
		factory: opts.Factory,
		fpRate:  opts.FPRate,
		clock:   opts.Clock,
		logger:  opts.Logger,
	}

	persisted, err := r.store.All()
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}
	byID := make(map[uint32]compiledRule, len(persisted))
	for _, ru := range persisted {
		f, err := urlfilter.Compile(ru.Pattern)
		if err != nil {
			r.logger.Warn(map[string]any{"id": ru.ID, "pattern": ru.Pattern, "error": err}, "skipping persisted rule")
			continue
		}
		byID[ru.ID] = compiledRule{rule: ru, filter: f}
	}
	r.idx = r.buildIndex(byID)
	return r, nil
}

// UpdateRules validates the whole batch before touching the store. Any
// invalid rule, duplicate ID within add, or collision with a registered ID
// that is not also being removed rejects the batch with ErrEngineRejected
// and leaves the registry unchanged. Removing an unknown ID is ignored.
func (r *repository) UpdateRules(ctx context.Context, add []domain.BlockRule, remove []uint32) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	r.mu.RLock()
	current := r.idx.byID
	r.mu.RUnlock()

	removing := make(map[uint32]struct{}, len(remove))
	for _, id := range remove {
		removing[id] = struct{}{}
	}

	compiled := make([]compiledRule, 0, len(add))
	seen := make(map[uint32]struct{}, len(add))
	for _, ru := range add {
		if err := ru.Validate(); err != nil {
			return fmt.Errorf("%w: rule %d: %v", domain.ErrEngineRejected, ru.ID, err)
		}
		if _, dup := seen[ru.ID]; dup {
			return fmt.Errorf("%w: duplicate rule id %d in batch", domain.ErrEngineRejected, ru.ID)
		}
		seen[ru.ID] = struct{}{}
		if _, live := current[ru.ID]; live {
			if _, freed := removing[ru.ID]; !freed {
				return fmt.Errorf("%w: rule id %d already registered", domain.ErrEngineRejected, ru.ID)
			}
		}
		f, err := urlfilter.Compile(ru.Pattern)
		if err != nil {
			return fmt.Errorf("%w: rule %d pattern %q: %v", domain.ErrEngineRejected, ru.ID, ru.Pattern, err)
		}
		compiled = append(compiled, compiledRule{rule: ru, filter: f})
	}

	if err := r.store.Apply(add, remove, r.clock.Now().Unix()); err != nil {
		return fmt.Errorf("%w: apply batch: %v", domain.ErrEngineRejected, err)
	}

	next := make(map[uint32]compiledRule, len(current)+len(compiled))
	for id, cr := range current {
		if _, gone := removing[id]; !gone {
			next[id] = cr
		}
	}
	for _, cr := range compiled {
		next[cr.rule.ID] = cr
	}
	idx := r.buildIndex(next)

	r.mu.Lock()
	r.idx = idx
	r.cache.Purge()
	r.mu.Unlock()

	r.logger.Debug(map[string]any{"added": len(add), "removed": len(remove), "live": len(next)}, "rule batch applied")
	return nil
}

// Rules returns the live rule set ordered by ID.
func (r *repository) Rules(ctx context.Context) ([]domain.BlockRule, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	idx := r.idx
	r.mu.RUnlock()
	out := make([]domain.BlockRule, len(idx.ordered))
	for i, cr := range idx.ordered {
		out[i] = cr.rule
	}
	return out, nil
}

// Decide returns the decision for a top-level navigation to rawURL. The
// lowest-ID matching rule wins. Unparseable input is never blocked.
func (r *repository) Decide(rawURL string) domain.BlockDecision {
	u := utils.NormalizeURL(rawURL)
	if u == "" {
		return domain.EmptyDecision()
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.idx.mayMatch(utils.HostOf(u)) {
		return domain.EmptyDecision()
	}
	if d, ok := r.cache.Get(u); ok {
		return d
	}
	dec := r.idx.evaluate(u)
	r.cache.Put(u, dec)
	return dec
}

func (r *repository) Stats() EngineStats {
	hits, misses, evictions := r.cache.Stats()
	r.mu.RLock()
	idx := r.idx
	r.mu.RUnlock()
	return EngineStats{
		Hits:      hits,
		Misses:    misses,
		Evictions: evictions,
		Anchored:  idx.anchored,
		Floating:  idx.floating,
		Hosts:     idx.hosts.Len(),
		Store:     r.store.Stats(),
	}
}

func (r *repository) buildIndex(byID map[uint32]compiledRule) *index {
	idx := &index{byID: byID, ordered: make([]compiledRule, 0, len(byID))}
	var pinned []string
	for _, cr := range byID {
		idx.ordered = append(idx.ordered, cr)
		if h := cr.filter.AnchoredHost(); h != "" {
			pinned = append(pinned, h)
			idx.anchored++
		} else {
			idx.floating++
		}
	}
	sort.Slice(idx.ordered, func(i, j int) bool { return idx.ordered[i].rule.ID < idx.ordered[j].rule.ID })

	idx.hosts = r.factory.New(pinned, r.fpRate)
	return idx
}

// mayMatch reports whether any rule could match host. It is false only when
// every rule is host-anchored and the host index rules out host.
func (idx *index) mayMatch(host string) bool {
	if idx.floating > 0 {
		return true
	}
	if idx.anchored == 0 || host == "" {
		return false
	}
	return idx.hosts.MayCover(host)
}

func (idx *index) evaluate(u string) domain.BlockDecision {
	for _, cr := range idx.ordered {
		if cr.filter.Match(u) {
			return domain.DecisionFor(cr.rule)
		}
	}
	return domain.EmptyDecision()
}
