package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestLedger() *Service {
	return New(Config{Resources: 2, Instances: 2, Slots: 2})
}

func TestAllocateAndRelease(t *testing.T) {
	s := newTestLedger()

	assert.NoError(t, s.Allocate(0, 0, 1))
	assert.Equal(t, 1, s.Available(0))
	assert.Equal(t, 1, s.Allocated(0, 0))
	assert.NoError(t, s.Conservation())

	assert.NoError(t, s.Release(0, 0, 1))
	assert.Equal(t, 2, s.Available(0))
	assert.Equal(t, 0, s.Allocated(0, 0))
	assert.NoError(t, s.Conservation())
}

func TestAllocateGuards(t *testing.T) {
	s := newTestLedger()

	assert.Error(t, s.Allocate(0, 0, 3), "over available")
	assert.Error(t, s.Allocate(0, 0, 0), "zero quantity")
	assert.Error(t, s.Allocate(5, 0, 1), "slot out of range")
	assert.Error(t, s.Allocate(0, 9, 1), "resource out of range")
	assert.NoError(t, s.Conservation())
}

func TestReleaseGuards(t *testing.T) {
	s := newTestLedger()
	assert.NoError(t, s.Allocate(1, 1, 1))

	assert.Error(t, s.Release(1, 1, 2), "over holding")
	assert.Error(t, s.Release(0, 0, 1), "nothing held")
	assert.Equal(t, 1, s.Allocated(1, 1))
	assert.NoError(t, s.Conservation())
}

func TestReleaseAll(t *testing.T) {
	s := newTestLedger()
	assert.NoError(t, s.Allocate(0, 0, 2))
	assert.NoError(t, s.Allocate(0, 1, 1))
	assert.NoError(t, s.AddRequest(0, 1, 1))

	freed := s.ReleaseAll(0)
	assert.Equal(t, []int{2, 1}, freed)
	assert.Equal(t, 2, s.Available(0))
	assert.Equal(t, 2, s.Available(1))
	assert.False(t, s.Holding(0))
	_, _, outstanding := s.OutstandingRequest(0)
	assert.False(t, outstanding)
	assert.NoError(t, s.Conservation())

	// releasing an empty slot is a no-op
	freed = s.ReleaseAll(0)
	assert.Equal(t, []int{0, 0}, freed)
	assert.NoError(t, s.Conservation())
}

func TestFeasible(t *testing.T) {
	s := newTestLedger()
	assert.NoError(t, s.Allocate(0, 0, 1))

	assert.True(t, s.Feasible(0, 0, 1))
	assert.False(t, s.Feasible(0, 0, 2), "holding + request over total")
	assert.False(t, s.Feasible(0, 0, 0))
}

func TestOutstandingRequest(t *testing.T) {
	s := newTestLedger()
	_, _, ok := s.OutstandingRequest(0)
	assert.False(t, ok)

	assert.NoError(t, s.AddRequest(0, 1, 2))
	r, q, ok := s.OutstandingRequest(0)
	assert.True(t, ok)
	assert.Equal(t, 1, r)
	assert.Equal(t, 2, q)

	s.ClearRequest(0, 1)
	_, _, ok = s.OutstandingRequest(0)
	assert.False(t, ok)
}

func TestSnapshotIsACopy(t *testing.T) {
	s := newTestLedger()
	assert.NoError(t, s.Allocate(0, 0, 1))

	snap := s.Snapshot()
	snap.Available[0] = 99
	snap.Allocated[0][0] = 99

	assert.Equal(t, 1, s.Available(0))
	assert.Equal(t, 1, s.Allocated(0, 0))
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	assert.Error(t, Config{Resources: 0, Instances: 1, Slots: 1}.Validate())
	assert.Error(t, Config{Resources: 1, Instances: 0, Slots: 1}.Validate())
	assert.Error(t, Config{Resources: 1, Instances: 1, Slots: 0}.Validate())
}
