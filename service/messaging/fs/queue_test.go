package fs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/afs"

	"github.com/SwatiShah2000/ossim/model"
)

func newTestQueue(t *testing.T) *Queue[model.Message] {
	t.Helper()
	queue, err := NewQueue[model.Message](afs.New(), Config{
		BasePath:     t.TempDir(),
		PollInterval: 5 * time.Millisecond,
	})
	require.NoError(t, err)
	return queue
}

func TestPublishPollAck(t *testing.T) {
	queue := newTestQueue(t)
	ctx := context.Background()

	payload := model.Message{Kind: model.KindRequest, Slot: 1, Resource: 2, Quantity: 3}
	require.NoError(t, queue.Publish(ctx, &payload))

	msg, err := queue.Poll(ctx)
	require.NoError(t, err)
	require.NotNil(t, msg)

	got := msg.T()
	assert.Equal(t, model.KindRequest, got.Kind)
	assert.Equal(t, 1, got.Slot)
	assert.Equal(t, 2, got.Resource)
	assert.Equal(t, 3, got.Quantity)

	assert.NoError(t, msg.Ack())
	assert.Error(t, msg.Ack(), "double ack rejected")

	// the queue is drained
	msg, err = queue.Poll(ctx)
	assert.NoError(t, err)
	assert.Nil(t, msg)
}

func TestPollOrderIsArrivalOrder(t *testing.T) {
	queue := newTestQueue(t)
	ctx := context.Background()

	for slot := 0; slot < 3; slot++ {
		payload := model.Message{Kind: model.KindTerminate, Slot: slot}
		require.NoError(t, queue.Publish(ctx, &payload))
		time.Sleep(time.Millisecond)
	}

	for slot := 0; slot < 3; slot++ {
		msg, err := queue.Poll(ctx)
		require.NoError(t, err)
		require.NotNil(t, msg)
		assert.Equal(t, slot, msg.T().Slot)
		require.NoError(t, msg.Ack())
	}
}

func TestNackMovesToFailed(t *testing.T) {
	queue := newTestQueue(t)
	ctx := context.Background()

	payload := model.Message{Kind: model.KindRelease, Slot: 0, Resource: 1, Quantity: 1}
	require.NoError(t, queue.Publish(ctx, &payload))

	msg, err := queue.Poll(ctx)
	require.NoError(t, err)
	require.NotNil(t, msg)
	require.NoError(t, msg.Nack(assert.AnError))

	// failed messages are not redelivered
	msg, err = queue.Poll(ctx)
	assert.NoError(t, err)
	assert.Nil(t, msg)
}

func TestConsumeBlocksUntilPublish(t *testing.T) {
	queue := newTestQueue(t)
	ctx := context.Background()

	go func() {
		time.Sleep(20 * time.Millisecond)
		payload := model.Message{Kind: model.KindGrant, Slot: 4}
		_ = queue.Publish(ctx, &payload)
	}()

	msg, err := queue.Consume(ctx)
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, 4, msg.T().Slot)
}

func TestNewQueueRequiresBasePath(t *testing.T) {
	_, err := NewQueue[model.Message](afs.New(), Config{})
	assert.Error(t, err)
}
