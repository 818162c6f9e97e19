package scenario

import (
	"testing"

	"github.com/mescourrou/simkernel/pkg/simtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatchReturnsEarliestDueEventForNode(t *testing.T) {
	tl := NewTimeline([]Event{
		{At: 5.0, Kind: Kill, NodeName: "r1"},
		{At: 1.0, Kind: Spawn, NodeName: "r1"},
	})

	ev, ok := tl.Dispatch("r1", 1.0)
	require.True(t, ok)
	assert.Equal(t, Spawn, ev.Kind)

	_, ok = tl.Dispatch("r1", 1.0)
	assert.False(t, ok)
}

func TestDispatchNotYetDue(t *testing.T) {
	tl := NewTimeline([]Event{{At: 10.0, Kind: Kill, NodeName: "r1"}})
	_, ok := tl.Dispatch("r1", 5.0)
	assert.False(t, ok)
}

func TestNextEventTimeIgnoresOtherNodes(t *testing.T) {
	tl := NewTimeline([]Event{{At: 3.0, Kind: Kill, NodeName: "r2"}})
	assert.True(t, simtime.IsInf(tl.NextEventTime("r1")))
}

func TestNextEventTimeIncludesGlobalEvents(t *testing.T) {
	tl := NewTimeline([]Event{{At: 2.0, Kind: AreaEnter, NodeName: ""}})
	n := tl.NextEventTime("anything")
	assert.True(t, simtime.Equal(n, 2.0))
}

func TestDispatchMarksEventConsumed(t *testing.T) {
	tl := NewTimeline([]Event{{At: 1.0, Kind: Spawn, NodeName: "r1"}})
	tl.Dispatch("r1", 1.0)
	assert.True(t, simtime.IsInf(tl.NextEventTime("r1")))
}
