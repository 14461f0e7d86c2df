package rules

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/SujathaSimmala2829/Focus-blocker/internal/focus/common/clock"
	"github.com/SujathaSimmala2829/Focus-blocker/internal/focus/domain"
)

type MockLister struct {
	mock.Mock
}

func (m *MockLister) Rules(ctx context.Context) ([]domain.BlockRule, error) {
	args := m.Called(ctx)
	rules, _ := args.Get(0).([]domain.BlockRule)
	return rules, args.Error(1)
}

func liveRules(ids ...uint32) []domain.BlockRule {
	out := make([]domain.BlockRule, len(ids))
	for i, id := range ids {
		out[i] = domain.BlockRule{ID: id, Pattern: "||x.test^"}
	}
	return out
}

func TestAllocator_ExactSkipsLiveAndReserved(t *testing.T) {
	lister := &MockLister{}
	lister.On("Rules", mock.Anything).Return(liveRules(1, 2, 5), nil)
	a := NewAllocator(lister, nil)

	ids, err := a.Allocate(context.Background(), 4, map[uint32]struct{}{3: {}, 6: {}})
	require.NoError(t, err)
	assert.Equal(t, []uint32{4, 7, 8, 9}, ids)
	lister.AssertExpectations(t)
}

func TestAllocator_ExactListerError(t *testing.T) {
	lister := &MockLister{}
	lister.On("Rules", mock.Anything).Return(nil, errors.New("engine down"))
	a := NewAllocator(lister, nil)

	_, err := a.Allocate(context.Background(), 1, nil)
	assert.ErrorContains(t, err, "engine down")
}

func TestAllocator_ZeroRequested(t *testing.T) {
	a := NewAllocator(nil, nil)
	ids, err := a.Allocate(context.Background(), 0, nil)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestAllocator_FallbackDistinctAndPositive(t *testing.T) {
	clk := &clock.MockClock{CurrentTime: time.UnixMilli(1754049600123)}
	a := NewAllocator(nil, clk)

	ids, err := a.Allocate(context.Background(), 50, nil)
	require.NoError(t, err)
	require.Len(t, ids, 50)
	seen := map[uint32]struct{}{}
	for _, id := range ids {
		assert.NotZero(t, id)
		_, dup := seen[id]
		assert.False(t, dup, "duplicate id %d", id)
		seen[id] = struct{}{}
	}
}

func TestAllocator_FallbackSkipsReserved(t *testing.T) {
	clk := &clock.MockClock{CurrentTime: time.UnixMilli(5000)}
	a := NewAllocator(nil, clk)
	a.jitter = func(uint32) uint32 { return 0 }

	// base 5000: counter yields 5001, 5002, ...
	ids, err := a.Allocate(context.Background(), 2, map[uint32]struct{}{5001: {}})
	require.NoError(t, err)
	assert.Equal(t, []uint32{5002, 5003}, ids)

	// counter keeps moving across calls at the same instant
	ids, err = a.Allocate(context.Background(), 1, nil)
	require.NoError(t, err)
	assert.Equal(t, []uint32{5004}, ids)
}
