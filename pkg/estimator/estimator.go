// Package estimator implements the StateEstimator plugin trait and a
// minimal Internal implementation. Real filtering algorithms plug in from
// outside; PassThrough exists so the node pipeline is runnable end to end
// without one.
package estimator

import (
	"github.com/mescourrou/simkernel/pkg/sensors"
	"github.com/mescourrou/simkernel/pkg/simtime"
)

// WorldState is the estimator's belief about the world, handed to the
// navigator each tick.
type WorldState struct {
	Observations []sensors.Observation `json:"observations"`
}

// StateEstimator is the plugin interface for a robot's belief-state
// module.
type StateEstimator interface {
	Update(now simtime.Time, obs []sensors.Observation)
	State() WorldState
	Record(t simtime.Time) Record
}

// Record is the per-update snapshot persisted by the record store.
type Record struct {
	At    simtime.Time `json:"t"`
	State WorldState   `json:"state"`
}

// Kind tags which concrete StateEstimator a Config selects.
type Kind string

const (
	KindInternal Kind = "Internal"
	KindExternal Kind = "External"
	KindScripted Kind = "Scripted"
)

// Config is the tagged-union configuration for a node's estimator module.
type Config struct {
	Kind Kind `yaml:"kind" json:"kind"`
}

// PassThrough republishes the latest sensor observations verbatim as the
// WorldState, with no filtering.
type PassThrough struct {
	state WorldState
}

// NewPassThrough creates a PassThrough estimator.
func NewPassThrough() *PassThrough {
	return &PassThrough{}
}

// Update replaces the belief state with the latest observations.
func (p *PassThrough) Update(now simtime.Time, obs []sensors.Observation) {
	p.state = WorldState{Observations: obs}
}

// State returns the current belief.
func (p *PassThrough) State() WorldState { return p.state }

// Record snapshots the current belief.
func (p *PassThrough) Record(t simtime.Time) Record {
	return Record{At: t, State: p.state}
}
