package session

import (
	"context"
	"time"

	"github.com/SujathaSimmala2829/Focus-blocker/internal/focus/domain"
)

// SessionStore persists the singleton session. Save must write every field
// in one atomic operation.
type SessionStore interface {
	Load(ctx context.Context) (domain.Session, error)
	Save(ctx context.Context, s domain.Session) error
}

// SiteSource yields the user's configured site specifiers.
type SiteSource interface {
	List(ctx context.Context) ([]string, error)
}

// SiteEditor reads and edits the site list on behalf of control clients.
type SiteEditor interface {
	SiteSource
	Add(ctx context.Context, specifiers ...string) ([]string, error)
	RemoveAt(ctx context.Context, index int) ([]string, error)
	Replace(ctx context.Context, sites []string) error
}

// Engine applies rule batches atomically: either every add and remove takes
// effect or none does.
type Engine interface {
	UpdateRules(ctx context.Context, add []domain.BlockRule, remove []uint32) error
}

// RuleLister is implemented by engines that expose their live rule set.
// Without it the controller cannot reconcile or restore superseded rules.
type RuleLister interface {
	Rules(ctx context.Context) ([]domain.BlockRule, error)
}

// AlarmScheduler manages named fire-once alarms. Scheduling an existing
// name replaces it; cancelling an unknown name is not an error.
type AlarmScheduler interface {
	Schedule(ctx context.Context, name string, at time.Time) error
	Cancel(ctx context.Context, name string) error
}

// Notifier shows a user-visible message. Delivery is fire-and-forget.
type Notifier interface {
	Notify(title, message string)
}

// IDAllocator hands out rule identifiers not present in reserved.
type IDAllocator interface {
	Allocate(ctx context.Context, n int, reserved map[uint32]struct{}) ([]uint32, error)
}

// URLChecker answers whether a navigation would be redirected.
type URLChecker interface {
	Decide(url string) domain.BlockDecision
}
