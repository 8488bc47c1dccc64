package model

import (
	"fmt"

	"github.com/google/uuid"
)

// Kind discriminates protocol messages exchanged between workers and the
// master.
type Kind int

const (
	// KindRequest asks the master for Quantity instances of Resource.
	KindRequest Kind = iota + 1
	// KindGrant tells a worker its outstanding request was satisfied.
	KindGrant
	// KindRelease returns Quantity instances of Resource to the master.
	KindRelease
	// KindTerminate announces a worker's voluntary exit.
	KindTerminate
)

// String returns the protocol name of the kind.
func (k Kind) String() string {
	switch k {
	case KindRequest:
		return "request"
	case KindGrant:
		return "grant"
	case KindRelease:
		return "release"
	case KindTerminate:
		return "terminate"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Message is one protocol record. Resource and Quantity are meaningful for
// requests, releases and grants; a terminate carries just the slot identity,
// and a grant echoes the satisfied request's resource and quantity back to
// its owner.
type Message struct {
	Kind       Kind      `json:"kind"`
	Slot       int       `json:"slot"`
	ExternalID uuid.UUID `json:"externalID"`
	Resource   int       `json:"resource,omitempty"`
	Quantity   int       `json:"quantity,omitempty"`
}

// NewRequest builds a request message.
func NewRequest(slot int, id uuid.UUID, resource, quantity int) *Message {
	return &Message{Kind: KindRequest, Slot: slot, ExternalID: id, Resource: resource, Quantity: quantity}
}

// NewRelease builds a release message.
func NewRelease(slot int, id uuid.UUID, resource, quantity int) *Message {
	return &Message{Kind: KindRelease, Slot: slot, ExternalID: id, Resource: resource, Quantity: quantity}
}

// NewTerminate builds a terminate message.
func NewTerminate(slot int, id uuid.UUID) *Message {
	return &Message{Kind: KindTerminate, Slot: slot, ExternalID: id}
}

// NewGrant builds the grant response for a satisfied request.
func NewGrant(slot int, id uuid.UUID, resource, quantity int) *Message {
	return &Message{Kind: KindGrant, Slot: slot, ExternalID: id, Resource: resource, Quantity: quantity}
}
