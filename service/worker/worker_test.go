package worker

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SwatiShah2000/ossim/internal/clock"
	"github.com/SwatiShah2000/ossim/model"
	"github.com/SwatiShah2000/ossim/service/messaging"
	"github.com/SwatiShah2000/ossim/service/messaging/memory"
)

func testConfig() Config {
	return Config{
		RequestBound:         time.Millisecond,
		TerminateCheck:       time.Millisecond,
		MinRuntime:           2 * time.Millisecond,
		RequestProbability:   1.0,
		TerminateProbability: 1.0,
		PollInterval:         10 * time.Microsecond,
	}
}

// serve plays the master's side: advance the clock, answer every request
// with a grant, and report the messages seen.
func serve(t *testing.T, clk *clock.Clock, queue *memory.Queue[model.Message],
	grants *messaging.Mailbox[model.Message], id uuid.UUID, deadline time.Duration) []model.Message {
	t.Helper()
	var seen []model.Message
	timeout := time.After(deadline)
	for {
		select {
		case <-timeout:
			t.Fatal("worker never terminated")
		default:
		}
		clk.Advance(100_000)
		msg, err := queue.Poll(context.Background())
		require.NoError(t, err)
		if msg == nil {
			time.Sleep(10 * time.Microsecond)
			continue
		}
		payload := *msg.T()
		seen = append(seen, payload)
		require.NoError(t, msg.Ack())
		switch payload.Kind {
		case model.KindRequest:
			grant := model.NewGrant(payload.Slot, payload.ExternalID, payload.Resource, payload.Quantity)
			require.NoError(t, grants.Send(id, grant))
		case model.KindTerminate:
			return seen
		}
	}
}

func TestWorkerWalksAndTerminates(t *testing.T) {
	clk := clock.New()
	queue := memory.NewQueue[model.Message](memory.DefaultConfig())
	grants := messaging.NewMailbox[model.Message](4)
	id := uuid.New()
	grants.Register(id)

	w := New(2, id, clk, 3, 10, queue, grants, 42, testConfig())

	done := make(chan error, 1)
	go func() { done <- w.Run(context.Background()) }()

	seen := serve(t, clk, queue, grants, id, 10*time.Second)
	require.NoError(t, <-done)

	// the walk ends with a terminate and every message carries the identity
	last := seen[len(seen)-1]
	assert.Equal(t, model.KindTerminate, last.Kind)
	assert.Equal(t, 2, last.Slot)
	held := make(map[int]int)
	for _, msg := range seen {
		assert.Equal(t, id, msg.ExternalID)
		switch msg.Kind {
		case model.KindRequest:
			assert.Equal(t, 1, msg.Quantity)
			held[msg.Resource] += msg.Quantity
		case model.KindRelease:
			held[msg.Resource] -= msg.Quantity
			assert.GreaterOrEqual(t, held[msg.Resource], 0, "release never exceeds holdings")
		}
	}
	// everything held was given back before the exit
	for r, n := range held {
		assert.Zero(t, n, "resource %d leaked", r)
	}
}

func TestWorkerStopsOnContextCancel(t *testing.T) {
	clk := clock.New()
	queue := memory.NewQueue[model.Message](memory.DefaultConfig())
	grants := messaging.NewMailbox[model.Message](4)
	id := uuid.New()
	grants.Register(id)

	config := testConfig()
	config.MinRuntime = time.Hour

	w := New(0, id, clk, 2, 10, queue, grants, 1, config)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop on cancellation")
	}
}
