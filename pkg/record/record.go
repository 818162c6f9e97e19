// Package record implements the per-node record store and the root
// result document a run serialises to.
package record

import (
	"encoding/json"

	"github.com/mescourrou/simkernel/pkg/simtime"
	"github.com/mescourrou/simkernel/pkg/timeordered"
)

// Recordable is implemented by any module that can snapshot its state into
// a record type R at simulated time t.
type Recordable[R any] interface {
	Record(t simtime.Time) R
}

// Store accumulates one node's records over the run. The keepLastAtTime
// flag given to NewStore controls whether two records at the same simulated time coalesce
// (keeping only the most recent) or both survive.
type Store[T any] struct {
	data *timeordered.Data[T]
}

// NewStore creates a record store.
func NewStore[T any](keepLastAtTime bool) *Store[T] {
	return &Store[T]{data: timeordered.New[T](keepLastAtTime)}
}

// Append stores a record at time t.
func (s *Store[T]) Append(t simtime.Time, r T) {
	s.data.Insert(t, r)
}

// Snapshot returns every stored (time, record) pair in time order.
func (s *Store[T]) Snapshot() []timeordered.Pair[T] {
	return s.data.Snapshot()
}

// Len returns the number of stored records.
func (s *Store[T]) Len() int {
	return s.data.Len()
}

// NodeRecords is the set of flattened record streams for one node, keyed
// by stream label. The simulator stores each node's aggregate per-tick
// records under the single key "node".
type NodeRecords map[string][]RawEntry

// RawEntry is one (time, value) pair flattened to JSON for the result
// document, since Document must serialize a heterogeneous set of node
// record types without reflecting on Store[T] type parameters.
type RawEntry struct {
	At    simtime.Time    `json:"t"`
	Value json.RawMessage `json:"value"`
}

// Flatten converts a typed Store into RawEntry form for inclusion in a
// Document.
func Flatten[T any](s *Store[T]) ([]RawEntry, error) {
	snap := s.Snapshot()
	out := make([]RawEntry, 0, len(snap))
	for _, p := range snap {
		raw, err := json.Marshal(p.Value)
		if err != nil {
			return nil, err
		}
		out = append(out, RawEntry{At: p.At, Value: raw})
	}
	return out, nil
}

// Document is the root result object written at the end of a run: one
// entry per node name, plus simulator-level metadata.
type Document struct {
	PerNode       map[string]NodeRecords `json:"per_node"`
	SimulatorMeta Meta                   `json:"simulator_meta"`
}

// Meta captures the run-level facts needed to interpret a Document:
// the seed that produced it and the simulated-time bounds of the run.
type Meta struct {
	Seed        uint64       `json:"seed"`
	StartedAt   simtime.Time `json:"started_at"`
	EndedAt     simtime.Time `json:"ended_at"`
	NodeNames   []string     `json:"node_names"`
}

// NewDocument creates an empty Document for the given seed.
func NewDocument(seed uint64) *Document {
	return &Document{PerNode: make(map[string]NodeRecords), SimulatorMeta: Meta{Seed: seed}}
}

// AddNode attaches a node's records to the document.
func (d *Document) AddNode(nodeName string, records NodeRecords) {
	d.PerNode[nodeName] = records
	d.SimulatorMeta.NodeNames = append(d.SimulatorMeta.NodeNames, nodeName)
}
