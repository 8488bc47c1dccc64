package messaging

import (
	"context"
)

// Vendor names a transport implementation.
type Vendor string

const (
	// VendorMemory is the in-process channel transport.
	VendorMemory Vendor = "memory"
	// VendorFS is the filesystem transport, useful when a run should leave
	// an inspectable message trail behind.
	VendorFS Vendor = "fs"
)

// Queue is an abstract message queue for any payload type. The master polls
// its inbound queue once per loop iteration and must never block on an empty
// queue, hence Poll next to the blocking Consume.
type Queue[T any] interface {
	// Publish adds a new message with payload to the queue
	Publish(ctx context.Context, t *T) error

	// Consume retrieves a single message, blocking until one is available
	Consume(ctx context.Context) (Message[T], error)

	// Poll retrieves a single message if one is immediately available and
	// returns (nil, nil) otherwise
	Poll(ctx context.Context) (Message[T], error)
}

// Message represents a message retrieved from a queue
type Message[T any] interface {
	// T returns the payload of this message
	T() *T

	// Ack acknowledges successful processing of this message
	Ack() error

	// Nack indicates failure in processing this message
	Nack(err error) error
}
