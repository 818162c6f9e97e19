// Package message defines the envelope type carried through broker
// topics and service calls: routing plus simulated-time delivery
// metadata.
package message

import (
	"github.com/google/uuid"

	"github.com/mescourrou/simkernel/pkg/simtime"
)

// Envelope wraps a typed payload with routing and simulated-time metadata.
// Topic is the hierarchical broker path ("" for direct service calls).
type Envelope[T any] struct {
	ID       string
	Sender   string
	Topic    string
	Payload  T
	SentAt   simtime.Time
	DeliverAt simtime.Time
}

// New creates an envelope with a fresh unique id.
func New[T any](sender, topic string, payload T, sentAt, deliverAt simtime.Time) Envelope[T] {
	return Envelope[T]{
		ID:        uuid.NewString(),
		Sender:    sender,
		Topic:     topic,
		Payload:   payload,
		SentAt:    sentAt,
		DeliverAt: deliverAt,
	}
}

// Less implements the global broker tie-break order: primarily by
// DeliverAt, then lexicographically by Sender name.
func Less[T any](a, b Envelope[T]) bool {
	if !simtime.Equal(a.DeliverAt, b.DeliverAt) {
		return simtime.Less(a.DeliverAt, b.DeliverAt)
	}
	return a.Sender < b.Sender
}
