package proctable

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/SwatiShah2000/ossim/internal/clock"
)

func TestActivateDeactivate(t *testing.T) {
	table := New(3)
	id := uuid.New()
	now := clock.Time{Seconds: 1, Nanos: 500}

	i, ok := table.FindUnused()
	assert.True(t, ok)
	assert.Equal(t, 0, i)

	assert.NoError(t, table.Activate(i, id, now))
	assert.Equal(t, StateReady, table.State(i))
	assert.Equal(t, id, table.Slot(i).ExternalID)
	assert.Equal(t, now, table.Slot(i).StartTime)
	assert.Equal(t, 1, table.Active())

	// double activation is rejected
	assert.Error(t, table.Activate(i, uuid.New(), now))

	table.Deactivate(i)
	assert.Equal(t, StateUnused, table.State(i))
	assert.Equal(t, uuid.Nil, table.Slot(i).ExternalID)

	// deactivation is idempotent
	table.Deactivate(i)
	assert.Equal(t, StateUnused, table.State(i))
}

func TestFindUnusedExhaustion(t *testing.T) {
	table := New(2)
	now := clock.Time{}
	assert.NoError(t, table.Activate(0, uuid.New(), now))
	assert.NoError(t, table.Activate(1, uuid.New(), now))

	_, ok := table.FindUnused()
	assert.False(t, ok)
}

func TestBlockOrderMonotonic(t *testing.T) {
	table := New(3)
	now := clock.Time{}
	for i := 0; i < 3; i++ {
		assert.NoError(t, table.Activate(i, uuid.New(), now))
	}

	// block 2, 0, 1 in that order and verify the sequence respects it
	first, err := table.Block(2)
	assert.NoError(t, err)
	second, err := table.Block(0)
	assert.NoError(t, err)
	third, err := table.Block(1)
	assert.NoError(t, err)

	assert.Less(t, first, second)
	assert.Less(t, second, third)
	assert.Equal(t, StateBlocked, table.State(2))

	assert.NoError(t, table.Unblock(2))
	assert.Equal(t, StateReady, table.State(2))
	assert.Zero(t, table.Slot(2).BlockOrder)

	// blocking an already blocked slot is rejected
	_, err = table.Block(0)
	assert.Error(t, err)
	// unblocking a ready slot is rejected
	assert.Error(t, table.Unblock(2))
}

func TestOccupiedAndLookup(t *testing.T) {
	table := New(4)
	now := clock.Time{}
	idA, idB := uuid.New(), uuid.New()
	assert.NoError(t, table.Activate(3, idA, now))
	assert.NoError(t, table.Activate(1, idB, now))

	assert.Equal(t, []int{1, 3}, table.Occupied())

	i, ok := table.FindByExternalID(idA)
	assert.True(t, ok)
	assert.Equal(t, 3, i)

	_, ok = table.FindByExternalID(uuid.New())
	assert.False(t, ok)
}
