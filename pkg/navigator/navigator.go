// Package navigator implements the Navigator plugin trait and one
// Internal implementation: a proportional go-to-point controller that
// turns a target waypoint and the current pose into a bearing/range error
// for the downstream Controller to act on.
package navigator

import (
	"math"

	"github.com/mescourrou/simkernel/pkg/estimator"
	"github.com/mescourrou/simkernel/pkg/physics"
	"github.com/mescourrou/simkernel/pkg/simtime"
)

// ControllerError is the navigation error handed to the Controller: how
// far off course (bearing, radians) and how far to go (range, meters).
type ControllerError struct {
	BearingError float64 `json:"bearing_error"`
	RangeError   float64 `json:"range_error"`
}

// Navigator is the plugin interface for a robot's path-planning module.
// Compute receives both the robot's own pose and the estimator's current
// world belief; a navigator that plans around observed entities reads
// world, a pure waypoint follower may ignore it.
type Navigator interface {
	SetWaypoint(x, y float64)
	Compute(now simtime.Time, pose physics.State, world estimator.WorldState) ControllerError
	Record(t simtime.Time) Record
}

// Record is the per-tick snapshot persisted by the record store.
type Record struct {
	At    simtime.Time    `json:"t"`
	Error ControllerError `json:"error"`
}

// Kind tags which concrete Navigator a Config selects.
type Kind string

const (
	KindInternal Kind = "Internal"
	KindExternal Kind = "External"
	KindScripted Kind = "Scripted"
)

// Config is the tagged-union configuration for a node's navigator module.
type Config struct {
	Kind     Kind            `yaml:"kind" json:"kind"`
	GoToPoint *GoToPointConfig `yaml:"go_to_point,omitempty" json:"go_to_point,omitempty"`
}

// GoToPointConfig parametrizes the Internal go-to-point navigator.
type GoToPointConfig struct {
	TargetX float64 `yaml:"target_x" json:"target_x"`
	TargetY float64 `yaml:"target_y" json:"target_y"`
}

// GoToPoint computes the bearing/range error toward a single waypoint.
type GoToPoint struct {
	targetX, targetY float64
	last             ControllerError
}

// NewGoToPoint creates a GoToPoint navigator aimed at cfg's target.
func NewGoToPoint(cfg GoToPointConfig) *GoToPoint {
	return &GoToPoint{targetX: cfg.TargetX, targetY: cfg.TargetY}
}

// SetWaypoint retargets the navigator at runtime (e.g. from a scenario
// event or a higher-level mission planner).
func (g *GoToPoint) SetWaypoint(x, y float64) {
	g.targetX, g.targetY = x, y
}

// Compute returns the bearing/range error from pose to the target. The
// world belief is unused; the target is a fixed waypoint, not an observed
// entity.
func (g *GoToPoint) Compute(now simtime.Time, pose physics.State, world estimator.WorldState) ControllerError {
	dx, dy := g.targetX-pose.X, g.targetY-pose.Y
	rng := math.Hypot(dx, dy)
	desiredBearing := math.Atan2(dy, dx)
	bearingErr := wrapToPi(desiredBearing - pose.Theta)

	g.last = ControllerError{BearingError: bearingErr, RangeError: rng}
	return g.last
}

// Record snapshots the last computed error.
func (g *GoToPoint) Record(t simtime.Time) Record {
	return Record{At: t, Error: g.last}
}

func wrapToPi(a float64) float64 {
	for a > math.Pi {
		a -= 2 * math.Pi
	}
	for a < -math.Pi {
		a += 2 * math.Pi
	}
	return a
}
