package memory

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/SwatiShah2000/ossim/service/messaging"
)

// Config for memory queue implementation
type Config struct {
	// Buffer is the number of undelivered messages the queue holds before
	// Publish blocks
	Buffer int
}

// DefaultConfig returns a standard configuration for memory queue
func DefaultConfig() Config {
	return Config{Buffer: 128}
}

// Message is one delivered record. The master settles every message exactly
// once: Ack after the arbiter handled it, Nack when handling failed and the
// run is aborting. There is no redelivery; the protocol has no meaningful
// retry for a request, release or terminate, the sender either sees its
// grant or acts again on its own schedule.
type Message[T any] struct {
	payload T
	seq     uint64

	mu      sync.Mutex
	settled bool
}

// T returns the message payload
func (m *Message[T]) T() *T {
	return &m.payload
}

// Seq returns the arrival sequence number, the order the channel presented
// the message to the master.
func (m *Message[T]) Seq() uint64 {
	return m.seq
}

// Ack marks the message handled.
func (m *Message[T]) Ack() error {
	return m.settle()
}

// Nack marks the message failed. The message is dropped, not redelivered.
func (m *Message[T]) Nack(err error) error {
	return m.settle()
}

func (m *Message[T]) settle() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.settled {
		return fmt.Errorf("message already settled")
	}
	m.settled = true
	return nil
}

// Queue is the in-process transport between workers and the master: a
// bounded FIFO that stamps each message with its arrival sequence. Workers
// publish concurrently; the master drains with the non-blocking Poll.
type Queue[T any] struct {
	messages chan *Message[T]
	seq      atomic.Uint64
}

// NewQueue creates a new in-memory queue
func NewQueue[T any](config Config) *Queue[T] {
	if config.Buffer <= 0 {
		config.Buffer = DefaultConfig().Buffer
	}
	return &Queue[T]{
		messages: make(chan *Message[T], config.Buffer),
	}
}

// Publish enqueues a payload, blocking only when the buffer is full.
func (q *Queue[T]) Publish(ctx context.Context, t *T) error {
	msg := &Message[T]{
		payload: *t,
		seq:     q.seq.Add(1),
	}
	select {
	case q.messages <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume retrieves a single item from the queue, blocking until available
func (q *Queue[T]) Consume(ctx context.Context) (messaging.Message[T], error) {
	select {
	case msg := <-q.messages:
		return msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Poll retrieves a single item if one is immediately available
func (q *Queue[T]) Poll(ctx context.Context) (messaging.Message[T], error) {
	select {
	case msg := <-q.messages:
		return msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
		return nil, nil
	}
}

// Size returns the current number of undelivered messages
func (q *Queue[T]) Size() int {
	return len(q.messages)
}

// ensure Queue implements messaging.Queue interface
var _ messaging.Queue[any] = (*Queue[any])(nil)
