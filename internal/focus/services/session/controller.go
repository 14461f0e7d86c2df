package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/SujathaSimmala2829/Focus-blocker/internal/focus/common/clock"
	"github.com/SujathaSimmala2829/Focus-blocker/internal/focus/common/log"
	"github.com/SujathaSimmala2829/Focus-blocker/internal/focus/domain"
	"github.com/SujathaSimmala2829/Focus-blocker/internal/focus/services/rules"
)

// RuleSource tags the engine rules owned by focus sessions.
const RuleSource = "focus-session"

const (
	notifyTitle       = "Focus Blocker"
	msgNothingToBlock = "No sites are configured to block. Add some sites first."
	msgStopped        = "Blocking stopped."
	msgEnded          = "Block period ended. You can now access your sites."
)

// Status is the externally visible session state.
type Status struct {
	IsBlocking bool
	BlockEnd   time.Time // zero when not blocking
	SessionID  string
	Rules      int
}

func statusOf(s domain.Session) Status {
	if !s.IsActive() {
		return Status{}
	}
	return Status{IsBlocking: true, BlockEnd: s.EndsAt, SessionID: s.ID, Rules: len(s.RuleIDs)}
}

// Options configures NewController. Store, Sites, Engine, Alarms and
// Notifier are required.
type Options struct {
	Store     SessionStore
	Sites     SiteSource
	Engine    Engine
	Alarms    AlarmScheduler
	Notifier  Notifier
	Allocator IDAllocator // defaults to rules.NewAllocator over Engine
	Clock     clock.Clock
	Logger    log.Logger

	// DefaultMinutes applies when a start request has no usable duration.
	DefaultMinutes float64
	// NewID generates session identifiers; defaults to uuid.NewString.
	NewID func() string
}

// Controller drives the Idle/Active session state machine. Every operation
// runs under one mutex and starts from the persisted state, reconciled
// against the engine; nothing is cached between calls.
type Controller struct {
	mu sync.Mutex

	store    SessionStore
	sites    SiteSource
	engine   Engine
	lister   RuleLister
	alarms   AlarmScheduler
	notifier Notifier
	alloc    IDAllocator
	clock    clock.Clock
	logger   log.Logger

	defaultMinutes float64
	newID          func() string
}

// NewController wires a Controller from opts.
func NewController(opts Options) (*Controller, error) {
	if opts.Store == nil || opts.Sites == nil || opts.Engine == nil || opts.Alarms == nil || opts.Notifier == nil {
		return nil, errors.New("session controller requires store, sites, engine, alarms and notifier")
	}
	c := &Controller{
		store:          opts.Store,
		sites:          opts.Sites,
		engine:         opts.Engine,
		alarms:         opts.Alarms,
		notifier:       opts.Notifier,
		alloc:          opts.Allocator,
		clock:          opts.Clock,
		logger:         opts.Logger,
		defaultMinutes: opts.DefaultMinutes,
		newID:          opts.NewID,
	}
	if l, ok := opts.Engine.(RuleLister); ok {
		c.lister = l
	}
	if c.clock == nil {
		c.clock = clock.RealClock{}
	}
	if c.logger == nil {
		c.logger = log.NewNoopLogger()
	}
	if c.alloc == nil {
		c.alloc = rules.NewAllocator(c.lister, c.clock)
	}
	if c.newID == nil {
		c.newID = uuid.NewString
	}
	if c.defaultMinutes <= 0 {
		c.defaultMinutes = domain.DefaultSessionMinutes
	}
	return c, nil
}

// Start begins a blocking session of the given length over the current
// site list. An Active session is superseded: its rules are swapped out in
// the same engine batch that installs the new ones. An empty site list
// declines with domain.ErrConfigurationEmpty and changes nothing. On any
// failure the previous state stays in effect.
func (c *Controller) Start(ctx context.Context, minutes float64) (Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cur, live, err := c.reconcile(ctx)
	if err != nil {
		return Status{}, err
	}

	sites, err := c.sites.List(ctx)
	if err != nil {
		c.logger.Error(map[string]any{"error": err}, "failed to read site list")
		return statusOf(cur), err
	}
	if len(sites) == 0 {
		c.logger.Info(nil, "start declined, site list is empty")
		c.notifier.Notify(notifyTitle, msgNothingToBlock)
		return statusOf(cur), domain.ErrConfigurationEmpty
	}

	reserved := make(map[uint32]struct{}, len(cur.RuleIDs))
	for _, id := range cur.RuleIDs {
		reserved[id] = struct{}{}
	}
	ids, err := c.alloc.Allocate(ctx, len(sites), reserved)
	if err != nil {
		c.logger.Error(map[string]any{"error": err}, "failed to allocate rule ids")
		return statusOf(cur), fmt.Errorf("allocate rule ids: %w", err)
	}
	add := rules.CompileAll(sites, ids, RuleSource)

	// snapshot of the superseded rules, for rollback
	prev := ownedRules(live, cur)

	if err := c.engine.UpdateRules(ctx, add, cur.RuleIDs); err != nil {
		c.logger.Error(map[string]any{"error": err, "rules": len(add), "superseded": len(cur.RuleIDs)}, "engine rejected session rules")
		return statusOf(cur), engineError(err)
	}

	duration := domain.SessionDuration(minutes, c.defaultMinutes)
	next := domain.Session{
		ID:      c.newID(),
		Status:  domain.SessionActive,
		EndsAt:  c.clock.Now().Add(duration),
		RuleIDs: ids,
	}

	if err := c.alarms.Schedule(ctx, next.AlarmName(), next.EndsAt); err != nil {
		c.logger.Error(map[string]any{"error": err, "alarm": next.AlarmName()}, "failed to schedule end alarm")
		c.rollbackStart(ctx, cur, prev, ids)
		return statusOf(cur), fmt.Errorf("%w: %v", domain.ErrAlarmUnavailable, err)
	}

	if err := c.store.Save(ctx, next); err != nil {
		c.logger.Error(map[string]any{"error": err}, "failed to persist session")
		c.cancelAlarm(ctx, next.AlarmName())
		c.rollbackStart(ctx, cur, prev, ids)
		return statusOf(cur), err
	}

	if cur.IsActive() {
		c.cancelAlarm(ctx, cur.AlarmName())
	}

	c.logger.Info(map[string]any{
		"session":    next.ID,
		"rules":      len(ids),
		"ends_at":    next.EndsAt,
		"superseded": cur.ID,
	}, "blocking started")
	c.notifier.Notify(notifyTitle, startedMessage(duration))
	return statusOf(next), nil
}

// Stop ends the Active session. Stopping while Idle succeeds without
// touching the engine, the alarms, the store or the notifier.
func (c *Controller) Stop(ctx context.Context) (Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cur, live, err := c.reconcile(ctx)
	if err != nil {
		return Status{}, err
	}
	if !cur.IsActive() {
		return Status{}, nil
	}
	if err := c.teardown(ctx, cur, live); err != nil {
		return statusOf(cur), err
	}
	c.logger.Info(map[string]any{"session": cur.ID}, "blocking stopped")
	c.notifier.Notify(notifyTitle, msgStopped)
	return Status{}, nil
}

// Expire handles a fired alarm. Only the current session's alarm ends it;
// a stale or foreign alarm, or any alarm while Idle, is ignored.
func (c *Controller) Expire(ctx context.Context, alarmName string) error {
	if !domain.IsSessionAlarm(alarmName) {
		c.logger.Debug(map[string]any{"alarm": alarmName}, "ignoring foreign alarm")
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	cur, live, err := c.reconcile(ctx)
	if err != nil {
		return err
	}
	if !cur.IsActive() || alarmName != cur.AlarmName() {
		c.logger.Debug(map[string]any{"alarm": alarmName, "session": cur.ID}, "ignoring alarm")
		return nil
	}
	return c.expire(ctx, cur, live)
}

// Status reports the session state. A session past its end time is torn
// down before answering, so a late or lost alarm never leaves a stale
// Active status.
func (c *Controller) Status(ctx context.Context) (Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cur, live, err := c.reconcile(ctx)
	if err != nil {
		return Status{}, err
	}
	if cur.ExpiredAt(c.clock.Now()) {
		if err := c.expire(ctx, cur, live); err != nil {
			return statusOf(cur), err
		}
		return Status{}, nil
	}
	return statusOf(cur), nil
}

// Recover brings persisted state in line after a restart: it reconciles
// with the engine, ends a session whose time has passed and re-arms the
// alarm of a live one.
func (c *Controller) Recover(ctx context.Context) (Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cur, live, err := c.reconcile(ctx)
	if err != nil {
		return Status{}, err
	}
	if !cur.IsActive() {
		return Status{}, nil
	}
	if cur.ExpiredAt(c.clock.Now()) {
		if err := c.expire(ctx, cur, live); err != nil {
			return statusOf(cur), err
		}
		return Status{}, nil
	}
	if err := c.alarms.Schedule(ctx, cur.AlarmName(), cur.EndsAt); err != nil {
		c.logger.Error(map[string]any{"error": err, "alarm": cur.AlarmName()}, "failed to re-arm end alarm")
		return statusOf(cur), fmt.Errorf("%w: %v", domain.ErrAlarmUnavailable, err)
	}
	c.logger.Info(map[string]any{"session": cur.ID, "ends_at": cur.EndsAt, "rules": len(cur.RuleIDs)}, "session recovered")
	return statusOf(cur), nil
}

func (c *Controller) expire(ctx context.Context, cur domain.Session, live []domain.BlockRule) error {
	if err := c.teardown(ctx, cur, live); err != nil {
		return err
	}
	c.logger.Info(map[string]any{"session": cur.ID}, "block period ended")
	c.notifier.Notify(notifyTitle, msgEnded)
	return nil
}

// teardown removes the session's rules, persists Idle and cancels the
// alarm. If the Idle write fails the removed rules are put back so engine
// and store keep agreeing.
func (c *Controller) teardown(ctx context.Context, cur domain.Session, live []domain.BlockRule) error {
	if len(cur.RuleIDs) > 0 {
		if err := c.engine.UpdateRules(ctx, nil, cur.RuleIDs); err != nil {
			c.logger.Error(map[string]any{"error": err, "session": cur.ID}, "engine refused rule removal")
			return engineError(err)
		}
	}
	if err := c.store.Save(ctx, domain.IdleSession()); err != nil {
		c.logger.Error(map[string]any{"error": err, "session": cur.ID}, "failed to persist idle session")
		if restore := ownedRules(live, cur); len(restore) > 0 {
			if rerr := c.engine.UpdateRules(context.WithoutCancel(ctx), restore, nil); rerr != nil {
				c.logger.Error(map[string]any{"error": rerr, "session": cur.ID}, "failed to restore session rules")
			}
		}
		return err
	}
	c.cancelAlarm(ctx, cur.AlarmName())
	return nil
}

// rollbackStart undoes an applied start batch: the new rules go and the
// superseded session's rules come back. When the superseded rules are
// unknown the old session can no longer be honoured and is reset to Idle.
func (c *Controller) rollbackStart(ctx context.Context, prev domain.Session, prevRules []domain.BlockRule, added []uint32) {
	ctx = context.WithoutCancel(ctx)
	if err := c.engine.UpdateRules(ctx, prevRules, added); err != nil {
		c.logger.Error(map[string]any{"error": err, "rules": len(added)}, "failed to roll back session rules")
		return
	}
	if prev.IsActive() && len(prevRules) != len(prev.RuleIDs) {
		c.logger.Warn(map[string]any{"session": prev.ID}, "superseded rules could not be restored, resetting to idle")
		if err := c.store.Save(ctx, domain.IdleSession()); err != nil {
			c.logger.Error(map[string]any{"error": err}, "failed to reset session")
			return
		}
		c.cancelAlarm(ctx, prev.AlarmName())
	}
}

// reconcile loads the session and aligns it with the engine's live set:
// focus rules the session does not own are removed, and owned IDs missing
// from the engine are dropped. A session left with no rules becomes Idle.
// It returns the session and the live set after orphan removal; live is
// nil when the engine cannot list its rules.
func (c *Controller) reconcile(ctx context.Context) (domain.Session, []domain.BlockRule, error) {
	cur, err := c.store.Load(ctx)
	if err != nil {
		c.logger.Error(map[string]any{"error": err}, "failed to load session")
		return domain.Session{}, nil, err
	}
	if c.lister == nil {
		return cur, nil, nil
	}
	live, err := c.lister.Rules(ctx)
	if err != nil {
		c.logger.Warn(map[string]any{"error": err}, "cannot list engine rules, skipping reconciliation")
		return cur, nil, nil
	}

	liveIDs := make(map[uint32]struct{}, len(live))
	var orphans []uint32
	for _, r := range live {
		liveIDs[r.ID] = struct{}{}
		if r.Source == RuleSource && !(cur.IsActive() && cur.Owns(r.ID)) {
			orphans = append(orphans, r.ID)
		}
	}
	if len(orphans) > 0 {
		if err := c.engine.UpdateRules(ctx, nil, orphans); err != nil {
			c.logger.Warn(map[string]any{"error": err, "orphans": orphans}, "failed to remove orphaned rules")
		} else {
			c.logger.Info(map[string]any{"orphans": orphans}, "removed orphaned rules")
			live = withoutIDs(live, orphans)
		}
	}

	if !cur.IsActive() {
		return cur, live, nil
	}
	kept := make([]uint32, 0, len(cur.RuleIDs))
	for _, id := range cur.RuleIDs {
		if _, ok := liveIDs[id]; ok {
			kept = append(kept, id)
		}
	}
	if len(kept) == len(cur.RuleIDs) {
		return cur, live, nil
	}

	fixed := cur
	fixed.RuleIDs = kept
	if len(kept) == 0 {
		fixed = domain.IdleSession()
	}
	if err := c.store.Save(ctx, fixed); err != nil {
		c.logger.Error(map[string]any{"error": err}, "failed to persist reconciled session")
		return domain.Session{}, nil, err
	}
	c.logger.Warn(map[string]any{"session": cur.ID, "missing": len(cur.RuleIDs) - len(kept)}, "session rules missing from engine")
	if !fixed.IsActive() {
		c.cancelAlarm(ctx, cur.AlarmName())
	}
	return fixed, live, nil
}

func (c *Controller) cancelAlarm(ctx context.Context, name string) {
	if name == "" {
		return
	}
	if err := c.alarms.Cancel(context.WithoutCancel(ctx), name); err != nil {
		c.logger.Warn(map[string]any{"error": err, "alarm": name}, "failed to cancel alarm")
	}
}

// ownedRules returns the rules in live that s owns.
func ownedRules(live []domain.BlockRule, s domain.Session) []domain.BlockRule {
	if !s.IsActive() {
		return nil
	}
	var out []domain.BlockRule
	for _, r := range live {
		if s.Owns(r.ID) {
			out = append(out, r)
		}
	}
	return out
}

func withoutIDs(rs []domain.BlockRule, ids []uint32) []domain.BlockRule {
	drop := make(map[uint32]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	out := rs[:0:0]
	for _, r := range rs {
		if _, ok := drop[r.ID]; !ok {
			out = append(out, r)
		}
	}
	return out
}

func engineError(err error) error {
	if errors.Is(err, domain.ErrEngineRejected) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrEngineRejected, err)
}

func startedMessage(d time.Duration) string {
	m := d.Minutes()
	unit := "minutes"
	if m == 1 {
		unit = "minute"
	}
	return "Blocking started for " + strconv.FormatFloat(m, 'f', -1, 64) + " " + unit + "."
}
