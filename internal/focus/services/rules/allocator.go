package rules

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"

	"github.com/SujathaSimmala2829/Focus-blocker/internal/focus/common/clock"
	"github.com/SujathaSimmala2829/Focus-blocker/internal/focus/domain"
)

// RuleLister exposes the engine's live rule set.
type RuleLister interface {
	Rules(ctx context.Context) ([]domain.BlockRule, error)
}

// fallbackModulus keeps time-derived bases well below the uint32 ceiling.
const fallbackModulus = 1_000_000_000

// Allocator hands out rule identifiers.
//
// With a RuleLister it is exact: the n lowest positive identifiers that are
// neither reserved nor registered with the engine. Without one it derives
// identifiers from the clock, a monotonic counter and random jitter, which
// makes collisions unlikely but not impossible.
type Allocator struct {
	lister RuleLister
	clock  clock.Clock

	mu      sync.Mutex
	counter uint32
	jitter  func(n uint32) uint32
}

// NewAllocator returns an Allocator. lister may be nil.
func NewAllocator(lister RuleLister, clk clock.Clock) *Allocator {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Allocator{lister: lister, clock: clk, jitter: rand.Uint32N}
}

// Allocate returns n distinct positive identifiers, none of them in reserved.
func (a *Allocator) Allocate(ctx context.Context, n int, reserved map[uint32]struct{}) ([]uint32, error) {
	if n <= 0 {
		return nil, nil
	}
	if a.lister == nil {
		return a.allocateFallback(n, reserved), nil
	}

	live, err := a.lister.Rules(ctx)
	if err != nil {
		return nil, fmt.Errorf("list live rules: %w", err)
	}
	taken := make(map[uint32]struct{}, len(live)+len(reserved))
	for _, r := range live {
		taken[r.ID] = struct{}{}
	}
	for id := range reserved {
		taken[id] = struct{}{}
	}

	ids := make([]uint32, 0, n)
	for id := uint32(1); len(ids) < n; id++ {
		if _, ok := taken[id]; !ok {
			ids = append(ids, id)
		}
		if id == math.MaxUint32 {
			return nil, fmt.Errorf("rule id space exhausted")
		}
	}
	return ids, nil
}

func (a *Allocator) allocateFallback(n int, reserved map[uint32]struct{}) []uint32 {
	a.mu.Lock()
	defer a.mu.Unlock()

	base := uint32(a.clock.Now().UnixMilli() % fallbackModulus)
	seen := make(map[uint32]struct{}, n)
	ids := make([]uint32, 0, n)
	for len(ids) < n {
		a.counter++
		id := base + a.counter + a.jitter(1000)
		if id == 0 {
			continue
		}
		if _, ok := reserved[id]; ok {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}
