package record

import (
	"encoding/json"
	"testing"

	"github.com/mescourrou/simkernel/pkg/simtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pose struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func TestStoreAppendAndSnapshotOrder(t *testing.T) {
	s := NewStore[pose](false)
	s.Append(2.0, pose{X: 2})
	s.Append(1.0, pose{X: 1})

	snap := s.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, 1.0, snap[0].Value.X)
	assert.Equal(t, 2.0, snap[1].Value.X)
}

func TestFlattenProducesValidJSONPerEntry(t *testing.T) {
	s := NewStore[pose](false)
	s.Append(0, pose{X: 1, Y: 2})

	entries, err := Flatten(s)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	var p pose
	require.NoError(t, json.Unmarshal(entries[0].Value, &p))
	assert.Equal(t, pose{X: 1, Y: 2}, p)
}

func TestDocumentRoundTripsThroughJSON(t *testing.T) {
	s := NewStore[pose](false)
	s.Append(0, pose{X: 1, Y: 2})
	entries, err := Flatten(s)
	require.NoError(t, err)

	doc := NewDocument(42)
	doc.AddNode("robot1", NodeRecords{"pose": entries})
	doc.SimulatorMeta.StartedAt = simtime.Time(0)
	doc.SimulatorMeta.EndedAt = simtime.Time(10)

	raw, err := json.Marshal(doc)
	require.NoError(t, err)

	var decoded Document
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, uint64(42), decoded.SimulatorMeta.Seed)
	assert.Contains(t, decoded.PerNode, "robot1")
	assert.Equal(t, []string{"robot1"}, decoded.SimulatorMeta.NodeNames)
}
