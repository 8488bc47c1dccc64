package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SwatiShah2000/ossim/model"
)

func TestQueuePublishConsume(t *testing.T) {
	queue := NewQueue[model.Message](DefaultConfig())

	ctx := context.Background()
	payload := model.Message{Kind: model.KindRequest, Slot: 3, Resource: 1, Quantity: 2}

	err := queue.Publish(ctx, &payload)
	assert.NoError(t, err)
	assert.Equal(t, 1, queue.Size())

	message, err := queue.Consume(ctx)
	assert.NoError(t, err)
	assert.NotNil(t, message)
	assert.Equal(t, 0, queue.Size())

	got := message.T()
	assert.Equal(t, model.KindRequest, got.Kind)
	assert.Equal(t, 3, got.Slot)
	assert.Equal(t, 1, got.Resource)
	assert.Equal(t, 2, got.Quantity)

	err = message.Ack()
	assert.NoError(t, err)

	// settling twice is rejected
	err = message.Ack()
	assert.Error(t, err)
}

func TestQueuePollEmpty(t *testing.T) {
	queue := NewQueue[model.Message](DefaultConfig())
	ctx := context.Background()

	message, err := queue.Poll(ctx)
	assert.NoError(t, err)
	assert.Nil(t, message)

	payload := model.Message{Kind: model.KindTerminate, Slot: 0}
	assert.NoError(t, queue.Publish(ctx, &payload))

	message, err = queue.Poll(ctx)
	assert.NoError(t, err)
	assert.NotNil(t, message)
	assert.Equal(t, model.KindTerminate, message.T().Kind)
}

func TestQueuePreservesArrivalOrder(t *testing.T) {
	queue := NewQueue[model.Message](DefaultConfig())
	ctx := context.Background()

	for slot := 0; slot < 5; slot++ {
		payload := model.Message{Kind: model.KindRelease, Slot: slot, Resource: 0, Quantity: 1}
		require.NoError(t, queue.Publish(ctx, &payload))
	}

	var lastSeq uint64
	for slot := 0; slot < 5; slot++ {
		message, err := queue.Poll(ctx)
		require.NoError(t, err)
		require.NotNil(t, message)
		assert.Equal(t, slot, message.T().Slot)

		seq := message.(*Message[model.Message]).Seq()
		assert.Greater(t, seq, lastSeq)
		lastSeq = seq
		require.NoError(t, message.Ack())
	}
}

func TestQueueNackDropsWithoutRedelivery(t *testing.T) {
	queue := NewQueue[model.Message](DefaultConfig())
	ctx := context.Background()

	payload := model.Message{Kind: model.KindRelease, Slot: 1, Resource: 0, Quantity: 1}
	require.NoError(t, queue.Publish(ctx, &payload))

	message, err := queue.Consume(ctx)
	require.NoError(t, err)
	assert.NoError(t, message.Nack(assert.AnError))
	assert.Error(t, message.Nack(assert.AnError), "settling twice is rejected")

	// nothing comes back
	assert.Equal(t, 0, queue.Size())
	message, err = queue.Poll(ctx)
	assert.NoError(t, err)
	assert.Nil(t, message)
}

func TestQueueContextCancellation(t *testing.T) {
	queue := NewQueue[model.Message](DefaultConfig())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := queue.Consume(ctx)
	assert.Error(t, err)
}
