// Package handler implements the MessageHandler plugin trait and a
// trivial Echo implementation, the simulator's default handler for a
// configured channel that no Provider handler claims.
package handler

import (
	"github.com/mescourrou/simkernel/pkg/message"
	"github.com/mescourrou/simkernel/pkg/simtime"
	"github.com/mescourrou/simkernel/pkg/timeordered"
)

// MessageHandler is invoked by a node's pipeline for each inbound message
// it subscribes to, on topics not already owned by a more specific module.
type MessageHandler interface {
	Topic() string
	Handle(now simtime.Time, sender string, payload any) (reply any, ok bool)
}

// Binding ties a MessageHandler to the broker delivery buffer feeding it,
// so a node's pipeline can fold the buffer into its t_next computation and
// drain every envelope due at the current tick.
type Binding struct {
	h   MessageHandler
	buf *timeordered.Data[message.Envelope[any]]
}

// Bind creates a Binding from a handler and the buffer the broker fills
// for it.
func Bind(h MessageHandler, buf *timeordered.Data[message.Envelope[any]]) Binding {
	return Binding{h: h, buf: buf}
}

// NextTime returns the earliest pending delivery time in the bound
// buffer, the wakeup source folded into the owning node's t_next.
func (b Binding) NextTime() simtime.Time {
	return b.buf.MinTime()
}

// Drain dispatches every envelope due at or before now to the handler, in
// delivery order. The handler's reply is discarded.
func (b Binding) Drain(now simtime.Time) {
	for {
		env, at, ok := b.buf.PopEarliest(now)
		if !ok {
			return
		}
		b.h.Handle(at, env.Sender, env.Payload)
	}
}

// Echo records every message on its topic and returns the same payload it
// received as its reply.
type Echo struct {
	topic    string
	received []EchoRecord
}

// EchoRecord is one observed message, for test/debug inspection.
type EchoRecord struct {
	At      simtime.Time `json:"t"`
	Sender  string       `json:"sender"`
	Payload any          `json:"payload"`
}

// NewEcho creates an Echo handler subscribed to topic.
func NewEcho(topic string) *Echo {
	return &Echo{topic: topic}
}

// Topic returns the handler's subscribed topic path.
func (e *Echo) Topic() string { return e.topic }

// Handle records the message and echoes it back.
func (e *Echo) Handle(now simtime.Time, sender string, payload any) (any, bool) {
	e.received = append(e.received, EchoRecord{At: now, Sender: sender, Payload: payload})
	return payload, true
}

// Received returns every message observed so far, for assertions in
// tests.
func (e *Echo) Received() []EchoRecord {
	return e.received
}
