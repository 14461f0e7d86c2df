package alarm

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SujathaSimmala2829/Focus-blocker/internal/focus/common/clock"
	"github.com/SujathaSimmala2829/Focus-blocker/internal/focus/domain"
	"github.com/SujathaSimmala2829/Focus-blocker/internal/focus/repos/kv"
)

var t0 = time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)

func openNS(t *testing.T, path string) (*kv.DB, kv.Namespace) {
	t.Helper()
	db, err := kv.Open(path, "alarms")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, db.Namespace("alarms")
}

type recorder struct {
	mu    sync.Mutex
	names []string
}

func (r *recorder) handle(_ context.Context, name string) {
	r.mu.Lock()
	r.names = append(r.names, name)
	r.mu.Unlock()
}

func (r *recorder) fired() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.names...)
}

func TestService_FiresOnce(t *testing.T) {
	_, ns := openNS(t, filepath.Join(t.TempDir(), "a.db"))
	clk := &clock.MockClock{CurrentTime: t0}
	svc := New(ns, clk, nil)
	rec := &recorder{}
	require.NoError(t, svc.Start(context.Background(), rec.handle))

	require.NoError(t, svc.Schedule(context.Background(), "end_block:s1", t0.Add(25*time.Minute)))
	clk.Advance(24 * time.Minute)
	assert.Empty(t, rec.fired())

	clk.Advance(time.Minute)
	clk.Advance(time.Hour)
	assert.Equal(t, []string{"end_block:s1"}, rec.fired())

	pending, err := svc.Pending(context.Background())
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestService_ScheduleReplaces(t *testing.T) {
	_, ns := openNS(t, filepath.Join(t.TempDir(), "a.db"))
	clk := &clock.MockClock{CurrentTime: t0}
	svc := New(ns, clk, nil)
	rec := &recorder{}
	require.NoError(t, svc.Start(context.Background(), rec.handle))

	ctx := context.Background()
	require.NoError(t, svc.Schedule(ctx, "a", t0.Add(time.Minute)))
	require.NoError(t, svc.Schedule(ctx, "a", t0.Add(10*time.Minute)))

	clk.Advance(5 * time.Minute)
	assert.Empty(t, rec.fired())
	clk.Advance(5 * time.Minute)
	assert.Equal(t, []string{"a"}, rec.fired())
}

func TestService_Cancel(t *testing.T) {
	_, ns := openNS(t, filepath.Join(t.TempDir(), "a.db"))
	clk := &clock.MockClock{CurrentTime: t0}
	svc := New(ns, clk, nil)
	rec := &recorder{}
	require.NoError(t, svc.Start(context.Background(), rec.handle))

	ctx := context.Background()
	require.NoError(t, svc.Schedule(ctx, "a", t0.Add(time.Minute)))
	require.NoError(t, svc.Cancel(ctx, "a"))
	require.NoError(t, svc.Cancel(ctx, "never-scheduled"))

	clk.Advance(time.Hour)
	assert.Empty(t, rec.fired())
	assert.Equal(t, 0, clk.Pending())
}

func TestService_RearmsPersistedAlarmsOnStart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.db")
	ctx := context.Background()
	clk := &clock.MockClock{CurrentTime: t0}

	db, ns := openNS(t, path)
	before := New(ns, clk, nil)
	// scheduled before Start: persisted only
	require.NoError(t, before.Schedule(ctx, "due", t0.Add(time.Minute)))
	require.NoError(t, before.Schedule(ctx, "later", t0.Add(time.Hour)))
	assert.Equal(t, 0, clk.Pending())
	require.NoError(t, db.Close())

	clk.Set(t0.Add(10 * time.Minute))
	_, ns = openNS(t, path)
	svc := New(ns, clk, nil)
	rec := &recorder{}
	require.NoError(t, svc.Start(ctx, rec.handle))

	clk.Advance(0)
	assert.Equal(t, []string{"due"}, rec.fired())
	clk.Advance(time.Hour)
	assert.Equal(t, []string{"due", "later"}, rec.fired())
}

func TestService_StopKeepsPersistedAlarms(t *testing.T) {
	_, ns := openNS(t, filepath.Join(t.TempDir(), "a.db"))
	clk := &clock.MockClock{CurrentTime: t0}
	svc := New(ns, clk, nil)
	rec := &recorder{}
	ctx := context.Background()
	require.NoError(t, svc.Start(ctx, rec.handle))
	require.NoError(t, svc.Schedule(ctx, "a", t0.Add(time.Minute)))

	svc.Stop()
	clk.Advance(time.Hour)
	assert.Empty(t, rec.fired())

	pending, err := svc.Pending(ctx)
	require.NoError(t, err)
	assert.Contains(t, pending, "a")
}

func TestService_StartTwiceFails(t *testing.T) {
	_, ns := openNS(t, filepath.Join(t.TempDir(), "a.db"))
	svc := New(ns, &clock.MockClock{CurrentTime: t0}, nil)
	require.NoError(t, svc.Start(context.Background(), func(context.Context, string) {}))
	assert.Error(t, svc.Start(context.Background(), func(context.Context, string) {}))
}

func TestService_HandlerMayCancelItself(t *testing.T) {
	_, ns := openNS(t, filepath.Join(t.TempDir(), "a.db"))
	clk := &clock.MockClock{CurrentTime: t0}
	svc := New(ns, clk, nil)
	calls := 0
	require.NoError(t, svc.Start(context.Background(), func(ctx context.Context, name string) {
		calls++
		assert.NoError(t, svc.Cancel(ctx, name))
	}))
	require.NoError(t, svc.Schedule(context.Background(), "a", t0.Add(time.Minute)))
	clk.Advance(time.Minute)
	assert.Equal(t, 1, calls)
}

func TestService_StoreErrors(t *testing.T) {
	db, ns := openNS(t, filepath.Join(t.TempDir(), "a.db"))
	svc := New(ns, &clock.MockClock{CurrentTime: t0}, nil)
	require.NoError(t, db.Close())

	err := svc.Schedule(context.Background(), "a", t0)
	assert.ErrorIs(t, err, domain.ErrAlarmUnavailable)
	err = svc.Cancel(context.Background(), "a")
	assert.ErrorIs(t, err, domain.ErrAlarmUnavailable)
	_, err = svc.Pending(context.Background())
	assert.ErrorIs(t, err, domain.ErrAlarmUnavailable)
	assert.Error(t, svc.Schedule(context.Background(), "", t0))
}

func TestService_RealClock(t *testing.T) {
	_, ns := openNS(t, filepath.Join(t.TempDir(), "a.db"))
	svc := New(ns, nil, nil)
	done := make(chan string, 1)
	require.NoError(t, svc.Start(context.Background(), func(_ context.Context, name string) { done <- name }))
	t.Cleanup(svc.Stop)

	require.NoError(t, svc.Schedule(context.Background(), "soon", time.Now().Add(10*time.Millisecond)))
	select {
	case name := <-done:
		assert.Equal(t, "soon", name)
	case <-time.After(2 * time.Second):
		t.Fatal("alarm did not fire")
	}
}
