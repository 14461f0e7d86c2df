package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/SujathaSimmala2829/Focus-blocker/internal/focus/domain"
)

type MockChecker struct {
	mock.Mock
}

func (m *MockChecker) Decide(url string) domain.BlockDecision {
	return m.Called(url).Get(0).(domain.BlockDecision)
}

func TestHandler_StartStopStatus(t *testing.T) {
	h := newHarness(t, "example.com")
	handler := NewHandler(h.ctrl, nil, nil, testLogger{})

	resp := handler.HandleRequest(ctx, domain.ControlRequest{Type: domain.RequestStart, DurationMinutes: 10})
	assert.Equal(t, domain.StatusStarted, resp.Status)
	assert.Equal(t, testStart.Add(10*time.Minute), resp.BlockEnd)

	resp = handler.HandleRequest(ctx, domain.ControlRequest{Type: domain.RequestStatus})
	assert.True(t, resp.IsBlocking)
	assert.False(t, resp.Failed())

	resp = handler.HandleRequest(ctx, domain.ControlRequest{Type: domain.RequestStop})
	assert.Equal(t, domain.StatusStopped, resp.Status)

	resp = handler.HandleRequest(ctx, domain.ControlRequest{Type: domain.RequestStatus})
	assert.False(t, resp.IsBlocking)
	assert.True(t, resp.BlockEnd.IsZero())
}

func TestHandler_StartDeclined(t *testing.T) {
	h := newHarness(t)
	handler := NewHandler(h.ctrl, nil, nil, nil)

	resp := handler.HandleRequest(ctx, domain.ControlRequest{Type: domain.RequestStart})
	assert.Equal(t, domain.StatusDeclined, resp.Status)
	assert.Equal(t, "nothing to block", resp.Error)
	assert.True(t, resp.Failed())
}

func TestHandler_StartError(t *testing.T) {
	h := newHarness(t, "example.com")
	h.store.saveErr = func(domain.Session) error { return domain.ErrStoreUnavailable }
	handler := NewHandler(h.ctrl, nil, nil, nil)

	resp := handler.HandleRequest(ctx, domain.ControlRequest{Type: domain.RequestStart})
	assert.Equal(t, domain.StatusError, resp.Status)
	assert.Contains(t, resp.Error, "store unavailable")
}

func TestHandler_Check(t *testing.T) {
	h := newHarness(t)
	checker := &MockChecker{}
	want := domain.BlockDecision{Blocked: true, RuleID: 3, Pattern: "||example.com^", Source: RuleSource}
	checker.On("Decide", "https://example.com/").Return(want)
	handler := NewHandler(h.ctrl, checker, nil, nil)

	resp := handler.HandleRequest(ctx, domain.ControlRequest{Type: domain.RequestCheck, URL: "https://example.com/"})
	require.False(t, resp.Failed())
	assert.Equal(t, want, resp.Decision)
	checker.AssertExpectations(t)

	resp = handler.HandleRequest(ctx, domain.ControlRequest{Type: domain.RequestCheck})
	assert.Equal(t, domain.StatusError, resp.Status)
}

func TestHandler_CheckWithoutChecker(t *testing.T) {
	h := newHarness(t)
	resp := NewHandler(h.ctrl, nil, nil, nil).HandleRequest(ctx, domain.ControlRequest{Type: domain.RequestCheck, URL: "x.test"})
	assert.Equal(t, domain.StatusError, resp.Status)
}

func TestHandler_UnknownType(t *testing.T) {
	h := newHarness(t)
	resp := NewHandler(h.ctrl, nil, nil, nil).HandleRequest(ctx, domain.ControlRequest{Type: "pause"})
	assert.Equal(t, domain.StatusError, resp.Status)
	assert.Contains(t, resp.Error, "pause")
}

func TestHandler_SitesWithoutEditor(t *testing.T) {
	h := newHarness(t)
	resp := NewHandler(h.ctrl, nil, nil, nil).HandleRequest(ctx, domain.ControlRequest{Type: domain.RequestSitesList})
	assert.Equal(t, domain.StatusError, resp.Status)
	assert.Contains(t, resp.Error, "not available")
}
