package session

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/SujathaSimmala2829/Focus-blocker/internal/focus/common/clock"
	"github.com/SujathaSimmala2829/Focus-blocker/internal/focus/domain"
)

// fakeStore keeps the session in memory and copies on every call.
type fakeStore struct {
	mu      sync.Mutex
	s       domain.Session
	saves   int
	loadErr error
	saveErr func(domain.Session) error
}

func (f *fakeStore) Load(context.Context) (domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr != nil {
		return domain.Session{}, f.loadErr
	}
	return copySession(f.s), nil
}

func (f *fakeStore) Save(_ context.Context, s domain.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		if err := f.saveErr(s); err != nil {
			return err
		}
	}
	f.saves++
	f.s = copySession(s)
	return nil
}

func (f *fakeStore) get() domain.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	return copySession(f.s)
}

func copySession(s domain.Session) domain.Session {
	s.RuleIDs = append([]uint32(nil), s.RuleIDs...)
	return s
}

type fakeSites struct {
	list []string
	err  error
}

func (f *fakeSites) List(context.Context) ([]string, error) {
	return append([]string(nil), f.list...), f.err
}

// fakeEngine applies batches atomically and rejects collisions the way the
// real engine does.
type fakeEngine struct {
	mu      sync.Mutex
	rules   map[uint32]domain.BlockRule
	updates int
	listErr error
	// fail, when set, may veto a batch before it is applied
	fail func(add []domain.BlockRule, remove []uint32) error
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{rules: map[uint32]domain.BlockRule{}}
}

func (e *fakeEngine) UpdateRules(_ context.Context, add []domain.BlockRule, remove []uint32) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.updates++
	if e.fail != nil {
		if err := e.fail(add, remove); err != nil {
			return err
		}
	}
	removing := map[uint32]bool{}
	for _, id := range remove {
		removing[id] = true
	}
	seen := map[uint32]bool{}
	for _, r := range add {
		if _, live := e.rules[r.ID]; (live && !removing[r.ID]) || seen[r.ID] || r.ID == 0 {
			return fmt.Errorf("%w: id %d", domain.ErrEngineRejected, r.ID)
		}
		seen[r.ID] = true
	}
	for _, id := range remove {
		delete(e.rules, id)
	}
	for _, r := range add {
		e.rules[r.ID] = r
	}
	return nil
}

func (e *fakeEngine) Rules(context.Context) ([]domain.BlockRule, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.listErr != nil {
		return nil, e.listErr
	}
	out := make([]domain.BlockRule, 0, len(e.rules))
	for _, r := range e.rules {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ids returns the sorted IDs of rules owned by source.
func (e *fakeEngine) ids(source string) []uint32 {
	rs, _ := e.Rules(context.Background())
	var out []uint32
	for _, r := range rs {
		if r.Source == source {
			out = append(out, r.ID)
		}
	}
	return out
}

func (e *fakeEngine) add(rs ...domain.BlockRule) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range rs {
		e.rules[r.ID] = r
	}
}

func (e *fakeEngine) updateCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.updates
}

// blindEngine hides the RuleLister side of an engine.
type blindEngine struct{ e *fakeEngine }

func (b blindEngine) UpdateRules(ctx context.Context, add []domain.BlockRule, remove []uint32) error {
	return b.e.UpdateRules(ctx, add, remove)
}

type fakeAlarms struct {
	mu          sync.Mutex
	alarms      map[string]time.Time
	calls       int
	cancelled   []string
	scheduleErr error
}

func newFakeAlarms() *fakeAlarms { return &fakeAlarms{alarms: map[string]time.Time{}} }

func (a *fakeAlarms) Schedule(_ context.Context, name string, at time.Time) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	if a.scheduleErr != nil {
		return a.scheduleErr
	}
	a.alarms[name] = at
	return nil
}

func (a *fakeAlarms) Cancel(_ context.Context, name string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	a.cancelled = append(a.cancelled, name)
	delete(a.alarms, name)
	return nil
}

func (a *fakeAlarms) names() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.alarms))
	for n := range a.alarms {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func (a *fakeAlarms) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *recordingNotifier) Notify(_, message string) {
	n.mu.Lock()
	n.messages = append(n.messages, message)
	n.mu.Unlock()
}

func (n *recordingNotifier) all() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.messages...)
}

type testLogger struct{}

func (testLogger) Info(map[string]any, string)  {}
func (testLogger) Error(map[string]any, string) {}
func (testLogger) Debug(map[string]any, string) {}
func (testLogger) Warn(map[string]any, string)  {}
func (testLogger) Panic(map[string]any, string) {}
func (testLogger) Fatal(map[string]any, string) {}

var testStart = time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)

type harness struct {
	ctrl     *Controller
	store    *fakeStore
	sites    *fakeSites
	engine   *fakeEngine
	alarms   *fakeAlarms
	notifier *recordingNotifier
	clock    *clock.MockClock
}

func newHarness(t *testing.T, sites ...string) *harness {
	t.Helper()
	h := &harness{
		store:    &fakeStore{s: domain.IdleSession()},
		sites:    &fakeSites{list: sites},
		engine:   newFakeEngine(),
		alarms:   newFakeAlarms(),
		notifier: &recordingNotifier{},
		clock:    &clock.MockClock{CurrentTime: testStart},
	}
	h.ctrl = h.build(t, h.engine)
	return h
}

func (h *harness) build(t *testing.T, engine Engine) *Controller {
	t.Helper()
	n := 0
	ctrl, err := NewController(Options{
		Store:    h.store,
		Sites:    h.sites,
		Engine:   engine,
		Alarms:   h.alarms,
		Notifier: h.notifier,
		Clock:    h.clock,
		Logger:   testLogger{},
		NewID: func() string {
			n++
			return fmt.Sprintf("s%d", n)
		},
	})
	require.NoError(t, err)
	return ctrl
}
