package messaging

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Mailbox delivers responses to individual recipients. The master routes a
// grant by the worker's external id; the worker blocks on Receive, which is
// the only cross-party synchronisation point in the system. Send never
// blocks: a full or unknown box is a delivery error the caller reports
// without rolling anything back.
type Mailbox[T any] struct {
	mu     sync.RWMutex
	buffer int
	boxes  map[uuid.UUID]chan *T
}

// NewMailbox returns a mailbox whose per-recipient buffer holds buffer
// undelivered messages.
func NewMailbox[T any](buffer int) *Mailbox[T] {
	if buffer <= 0 {
		buffer = 4
	}
	return &Mailbox[T]{
		buffer: buffer,
		boxes:  make(map[uuid.UUID]chan *T),
	}
}

// Register creates the box for id. Registering an existing id is a no-op.
func (m *Mailbox[T]) Register(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.boxes[id]; !ok {
		m.boxes[id] = make(chan *T, m.buffer)
	}
}

// Unregister drops the box for id and any undelivered messages in it.
func (m *Mailbox[T]) Unregister(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.boxes, id)
}

// Send places t in the recipient's box without blocking.
func (m *Mailbox[T]) Send(id uuid.UUID, t *T) error {
	m.mu.RLock()
	box, ok := m.boxes[id]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("no mailbox registered for %s", id)
	}
	select {
	case box <- t:
		return nil
	default:
		return fmt.Errorf("mailbox for %s is full", id)
	}
}

// TryReceive returns a pending message for id without blocking.
func (m *Mailbox[T]) TryReceive(id uuid.UUID) (*T, bool) {
	m.mu.RLock()
	box, ok := m.boxes[id]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	select {
	case t := <-box:
		return t, true
	default:
		return nil, false
	}
}

// Receive blocks until a message arrives for id or ctx is done.
func (m *Mailbox[T]) Receive(ctx context.Context, id uuid.UUID) (*T, error) {
	m.mu.RLock()
	box, ok := m.boxes[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no mailbox registered for %s", id)
	}
	select {
	case t := <-box:
		return t, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
