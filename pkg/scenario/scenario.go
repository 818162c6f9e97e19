// Package scenario implements the spawn/kill/area-enter/area-leave event
// timeline that scripts a run, plus the shared landmark-map cache.
package scenario

import (
	"sort"
	"sync"

	"github.com/mescourrou/simkernel/pkg/simtime"
)

// Kind identifies the type of scenario event.
type Kind string

const (
	Spawn     Kind = "Spawn"
	Kill      Kind = "Kill"
	AreaEnter Kind = "AreaEnter"
	AreaLeave Kind = "AreaLeave"
)

// Event is one scheduled scenario action.
type Event struct {
	At       simtime.Time `yaml:"at" json:"at"`
	Kind     Kind         `yaml:"kind" json:"kind"`
	NodeName string       `yaml:"node" json:"node"`
	AreaName string       `yaml:"area,omitempty" json:"area,omitempty"`

	dispatched bool
}

// Timeline holds every scenario event for a run, sorted ascending by At.
type Timeline struct {
	mu     sync.Mutex
	events []*Event
}

// NewTimeline creates a Timeline from events, which need not be
// pre-sorted.
func NewTimeline(events []Event) *Timeline {
	t := &Timeline{}
	for _, e := range events {
		ev := e
		t.events = append(t.events, &ev)
	}
	sort.Slice(t.events, func(i, j int) bool {
		return simtime.Less(t.events[i].At, t.events[j].At)
	})
	return t
}

// NextEventTime returns the earliest undispatched event time affecting
// nodeName (or "" for run-global events), the wakeup source a node folds
// into its t_next computation. Returns simtime.Inf if none remain.
func (t *Timeline) NextEventTime(nodeName string) simtime.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, e := range t.events {
		if e.dispatched {
			continue
		}
		if e.NodeName == nodeName || e.NodeName == "" {
			return e.At
		}
	}
	return simtime.Inf
}

// Dispatch returns and marks dispatched the earliest undispatched event
// due at or before now for nodeName, or ok=false if none is due.
func (t *Timeline) Dispatch(nodeName string, now simtime.Time) (Event, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, e := range t.events {
		if e.dispatched || (e.NodeName != nodeName && e.NodeName != "") {
			continue
		}
		if simtime.LessOrEqual(e.At, now) {
			e.dispatched = true
			return *e, true
		}
		break
	}
	return Event{}, false
}
