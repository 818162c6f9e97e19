// Package timeordered implements a sorted mapping from simulated time to
// values, used both by broker reception buffers and by per-node record
// stores.
package timeordered

import (
	"sort"
	"sync"

	"github.com/mescourrou/simkernel/pkg/simtime"
)

// entry is one (time, value) pair. Multiple entries may share a time when
// KeepLastAtTime is false.
type entry[T any] struct {
	at    simtime.Time
	value T
}

// Data is a thread-safe sorted multimap from simtime.Time to T.
type Data[T any] struct {
	mu             sync.RWMutex
	entries        []entry[T]
	keepLastAtTime bool
	tieBreak       func(a, b T) bool
}

// New creates an empty TimeOrderedData. When keepLastAtTime is true,
// inserting at a time already present overwrites the prior value instead of
// appending a second entry at that time (used by record stores in
// "keep-last-at-t" mode). Entries sharing a time are ordered
// by arrival (insertion) order.
func New[T any](keepLastAtTime bool) *Data[T] {
	return &Data[T]{keepLastAtTime: keepLastAtTime}
}

// NewOrdered creates an empty TimeOrderedData whose entries sharing a time
// are ordered by less instead of by arrival order. Used by the broker's
// subscriber buffers, where insertion order across concurrent publisher
// goroutines is not deterministic but the delivery order must be.
func NewOrdered[T any](less func(a, b T) bool) *Data[T] {
	return &Data[T]{tieBreak: less}
}

// Insert adds value at time t, maintaining sort order. With
// keepLastAtTime, a pre-existing entry at t (within simtime tolerance) is
// overwritten in place; otherwise the new entry is appended after any
// existing entries at the same time, preserving arrival order, or, for a
// Data built with NewOrdered, placed among them by the comparator.
func (d *Data[T]) Insert(t simtime.Time, value T) {
	d.mu.Lock()
	defer d.mu.Unlock()

	idx := sort.Search(len(d.entries), func(i int) bool {
		return !simtime.Less(d.entries[i].at, t)
	})

	if d.keepLastAtTime && idx < len(d.entries) && simtime.Equal(d.entries[idx].at, t) {
		d.entries[idx] = entry[T]{at: t, value: value}
		return
	}

	// idx now points past every entry strictly before t. Among entries
	// sharing t, order by tieBreak if the caller supplied one, else fall
	// back to FIFO (arrival) order.
	if d.tieBreak != nil {
		for idx < len(d.entries) && simtime.Equal(d.entries[idx].at, t) && !d.tieBreak(value, d.entries[idx].value) {
			idx++
		}
	} else {
		for idx < len(d.entries) && simtime.Equal(d.entries[idx].at, t) {
			idx++
		}
	}

	d.entries = append(d.entries, entry[T]{})
	copy(d.entries[idx+1:], d.entries[idx:])
	d.entries[idx] = entry[T]{at: t, value: value}
}

// MinTime returns the earliest stored time, or simtime.Inf if empty.
func (d *Data[T]) MinTime() simtime.Time {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if len(d.entries) == 0 {
		return simtime.Inf
	}
	return d.entries[0].at
}

// PopEarliest removes and returns the earliest entry if it is due at or
// before now (within tolerance). ok is false if empty or not yet due.
func (d *Data[T]) PopEarliest(now simtime.Time) (value T, at simtime.Time, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.entries) == 0 {
		return value, 0, false
	}
	head := d.entries[0]
	if simtime.Less(now, head.at) {
		return value, 0, false
	}
	d.entries = d.entries[1:]
	return head.value, head.at, true
}

// At returns the most recent value stored at or before t, and whether one
// exists.
func (d *Data[T]) At(t simtime.Time) (value T, ok bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	idx := sort.Search(len(d.entries), func(i int) bool {
		return simtime.Less(t, d.entries[i].at)
	})
	if idx == 0 {
		return value, false
	}
	return d.entries[idx-1].value, true
}

// Len returns the number of stored entries.
func (d *Data[T]) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.entries)
}

// Snapshot returns a copy of all (time, value) pairs in time order.
func (d *Data[T]) Snapshot() []Pair[T] {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Pair[T], len(d.entries))
	for i, e := range d.entries {
		out[i] = Pair[T]{At: e.at, Value: e.value}
	}
	return out
}

// Pair is one exported (time, value) observation from Snapshot.
type Pair[T any] struct {
	At    simtime.Time
	Value T
}
