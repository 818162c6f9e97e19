// Package broker implements the publish/subscribe layer: typed topics,
// per-subscriber delay buffers, a predicate gate evaluated at publish
// time, and the ordering guarantee (FIFO within one (publisher,
// subscriber, topic) triple, globally tie-broken by (deliver_at,
// sender-name)).
package broker

import (
	"sync"

	"github.com/mescourrou/simkernel/pkg/message"
	"github.com/mescourrou/simkernel/pkg/simtime"
	"github.com/mescourrou/simkernel/pkg/timeordered"
)

// Predicate decides, given the publisher's and a subscriber's keys,
// whether a message published on a topic should be delivered to that
// subscriber. A nil predicate delivers to every subscriber.
type Predicate[K any] func(publisherKey, subscriberKey K) bool

// Broker owns every topic in the simulation, keyed by hierarchical path
// string (e.g. "/sensors/landmarks").
type Broker struct {
	mu     sync.RWMutex
	topics map[string]any // path -> *topic[M,K], type-erased
}

// New creates an empty Broker.
func New() *Broker {
	return &Broker{topics: make(map[string]any)}
}

// Topic holds one message type M keyed with subscriber-selection key K.
type Topic[M any, K any] struct {
	mu          sync.Mutex
	subscribers map[string]*subscription[M]
}

type subscription[M any] struct {
	key    any
	buffer *timeordered.Data[message.Envelope[M]]
}

// GetTopic returns (creating if necessary) the typed topic at path. All
// callers of GetTopic for a given path within one Broker must agree on
// (M, K); mismatched types across calls is a programming error and
// panics.
func GetTopic[M any, K any](b *Broker, path string) *Topic[M, K] {
	b.mu.RLock()
	if t, ok := b.topics[path]; ok {
		b.mu.RUnlock()
		return t.(*Topic[M, K])
	}
	b.mu.RUnlock()

	b.mu.Lock()
	defer b.mu.Unlock()
	if t, ok := b.topics[path]; ok {
		return t.(*Topic[M, K])
	}
	t := &Topic[M, K]{subscribers: make(map[string]*subscription[M])}
	b.topics[path] = t
	return t
}

// Subscribe registers subscriberName with the given selection key. The
// returned buffer receives every envelope whose publish-time predicate
// evaluation admits this subscriber.
func (t *Topic[M, K]) Subscribe(subscriberName string, key K) *timeordered.Data[message.Envelope[M]] {
	t.mu.Lock()
	defer t.mu.Unlock()
	buf := timeordered.NewOrdered[message.Envelope[M]](message.Less[M])
	t.subscribers[subscriberName] = &subscription[M]{key: key, buffer: buf}
	return buf
}

// Unsubscribe removes subscriberName from the topic.
func (t *Topic[M, K]) Unsubscribe(subscriberName string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.subscribers, subscriberName)
}

// Publish delivers payload to every subscriber whose key satisfies pred
// against publisherKey, scheduled to arrive at sentAt+delay. A nil pred
// delivers to all current subscribers. Every subscriber's buffer orders
// its entries by message.Less (deliver_at, then sender name), so ordering
// within one (publisher, subscriber, topic) triple is FIFO (same sender
// never reorders) and ties across distinct publishers landing on the same
// subscriber at the same deliver_at resolve deterministically regardless
// of which publishing goroutine's Insert happened to run first.
func (t *Topic[M, K]) Publish(publisherName string, publisherKey K, payload M, sentAt simtime.Time, delay simtime.Time, pred Predicate[K]) {
	deliverAt := simtime.Add(sentAt, delay)
	env := message.New(publisherName, "", payload, sentAt, deliverAt)

	t.mu.Lock()
	defer t.mu.Unlock()
	for name, sub := range t.subscribers {
		if name == publisherName {
			continue
		}
		if pred != nil && !pred(publisherKey, sub.key.(K)) {
			continue
		}
		sub.buffer.Insert(deliverAt, env)
	}
}

// NextDeliveryTime returns the earliest pending delivery time across the
// given subscriber buffers, or simtime.Inf if all are empty. This is the
// helper a node uses to fold its subscribed topics into the scheduler's
// t_next computation.
func NextDeliveryTime[M any](buffers ...*timeordered.Data[message.Envelope[M]]) simtime.Time {
	best := simtime.Inf
	for _, b := range buffers {
		if t := b.MinTime(); simtime.Less(t, best) {
			best = t
		}
	}
	return best
}
