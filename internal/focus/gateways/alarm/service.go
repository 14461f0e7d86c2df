// Package alarm provides named fire-once alarms that survive restarts.
package alarm

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/SujathaSimmala2829/Focus-blocker/internal/focus/common/clock"
	"github.com/SujathaSimmala2829/Focus-blocker/internal/focus/common/log"
	"github.com/SujathaSimmala2829/Focus-blocker/internal/focus/domain"
	"github.com/SujathaSimmala2829/Focus-blocker/internal/focus/repos/kv"
)

// Handler is called once with the name of each alarm that fires.
type Handler func(ctx context.Context, name string)

type entry struct {
	at    time.Time
	timer clock.Timer
}

// Service keeps alarms in a kv namespace (name -> unix millis) and arms a
// timer for each one after Start. Scheduling before Start only persists.
type Service struct {
	ns     kv.Namespace
	clock  clock.TimerClock
	logger log.Logger

	mu      sync.Mutex
	armed   map[string]*entry
	handler Handler
	ctx     context.Context
}

// New returns a Service storing alarms in ns.
func New(ns kv.Namespace, clk clock.TimerClock, logger log.Logger) *Service {
	if clk == nil {
		clk = clock.RealClock{}
	}
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Service{ns: ns, clock: clk, logger: logger, armed: make(map[string]*entry)}
}

// Start arms every persisted alarm. Alarms already due fire as soon as the
// clock allows. ctx is passed to the handler and bounds the service.
func (s *Service) Start(ctx context.Context, handler Handler) error {
	pending, err := s.Pending(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handler != nil {
		return errors.New("alarm service already started")
	}
	s.handler = handler
	s.ctx = ctx
	for name, at := range pending {
		s.armLocked(name, at)
	}
	s.logger.Info(map[string]any{"alarms": len(pending)}, "alarm service started")
	return nil
}

// Stop disarms all timers. Persisted alarms are kept for the next Start.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, e := range s.armed {
		e.timer.Stop()
		delete(s.armed, name)
	}
	s.handler = nil
}

// Schedule persists an alarm and arms it, replacing any alarm with the same name.
func (s *Service) Schedule(ctx context.Context, name string, at time.Time) error {
	if name == "" {
		return errors.New("alarm name must not be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	val := []byte(strconv.FormatInt(at.UnixMilli(), 10))
	if err := s.ns.Set(ctx, map[string][]byte{name: val}); err != nil {
		return fmt.Errorf("%w: persist alarm %q: %v", domain.ErrAlarmUnavailable, name, err)
	}
	if s.handler != nil {
		s.armLocked(name, at)
	}
	s.logger.Debug(map[string]any{"alarm": name, "at": at}, "alarm scheduled")
	return nil
}

// Cancel removes an alarm. Unknown names are ignored.
func (s *Service) Cancel(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.armed[name]; ok {
		e.timer.Stop()
		delete(s.armed, name)
	}
	if err := s.ns.Delete(ctx, name); err != nil {
		return fmt.Errorf("%w: delete alarm %q: %v", domain.ErrAlarmUnavailable, name, err)
	}
	return nil
}

// Pending returns the persisted alarms.
func (s *Service) Pending(ctx context.Context) (map[string]time.Time, error) {
	keys, err := s.ns.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list alarms: %v", domain.ErrAlarmUnavailable, err)
	}
	if len(keys) == 0 {
		return map[string]time.Time{}, nil
	}
	vals, err := s.ns.Get(ctx, keys...)
	if err != nil {
		return nil, fmt.Errorf("%w: load alarms: %v", domain.ErrAlarmUnavailable, err)
	}
	out := make(map[string]time.Time, len(vals))
	for name, v := range vals {
		ms, err := strconv.ParseInt(string(v), 10, 64)
		if err != nil {
			s.logger.Warn(map[string]any{"alarm": name, "error": err}, "dropping unreadable alarm")
			continue
		}
		out[name] = time.UnixMilli(ms).UTC()
	}
	return out, nil
}

func (s *Service) armLocked(name string, at time.Time) {
	if old, ok := s.armed[name]; ok {
		old.timer.Stop()
	}
	e := &entry{at: at}
	e.timer = s.clock.AfterFunc(at.Sub(s.clock.Now()), func() { s.fire(name, e) })
	s.armed[name] = e
}

// fire runs the handler unless the alarm was cancelled or replaced after
// its timer started.
func (s *Service) fire(name string, e *entry) {
	s.mu.Lock()
	if s.armed[name] != e || s.handler == nil {
		s.mu.Unlock()
		return
	}
	delete(s.armed, name)
	handler, ctx := s.handler, s.ctx
	if err := s.ns.Delete(context.WithoutCancel(ctx), name); err != nil {
		s.logger.Warn(map[string]any{"alarm": name, "error": err}, "failed to clear fired alarm")
	}
	s.mu.Unlock()

	if ctx.Err() != nil {
		return
	}
	s.logger.Debug(map[string]any{"alarm": name, "at": e.at}, "alarm fired")
	handler(ctx, name)
}
