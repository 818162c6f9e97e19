// Package physics implements the Physics plugin trait and one Internal
// implementation, a unicycle (differential-drive) SE(2) integrator.
package physics

import (
	"math"

	"github.com/mescourrou/simkernel/pkg/failure"
	"github.com/mescourrou/simkernel/pkg/simtime"
)

// State is a robot's pose in the plane.
type State struct {
	X, Y, Theta float64
}

// Command is a wheel-speed command for a differential-drive base.
type Command struct {
	LeftSpeed, RightSpeed float64 // m/s
}

// Physics is the plugin interface every robot body implements. Kind
// string-tags the concrete implementation instead of deep inheritance.
type Physics interface {
	ApplyCommand(cmd Command)
	UpdateState(now simtime.Time) error
	State() State
	NextTimeStep(now simtime.Time) simtime.Time
	Record(t simtime.Time) Record
}

// Record is the per-tick snapshot persisted by the record store.
type Record struct {
	At    simtime.Time `json:"t"`
	State State        `json:"state"`
}

func (s State) recordAt(t simtime.Time) Record { return Record{At: t, State: s} }

// Kind tags which concrete Physics implementation a Config selects.
type Kind string

const (
	KindInternal Kind = "Internal"
	KindExternal Kind = "External"
	KindScripted Kind = "Scripted"
)

// Config is the tagged-union configuration for a node's physics module.
type Config struct {
	Kind     Kind           `yaml:"kind" json:"kind"`
	Unicycle *UnicycleConfig `yaml:"unicycle,omitempty" json:"unicycle,omitempty"`
	// External/Scripted configs (endpoint address, script path, ...) are
	// owned by the plugin Provider, not by this package.
}

// UnicycleConfig parametrizes the Internal unicycle model.
type UnicycleConfig struct {
	WheelSeparation float64  `yaml:"wheel_separation" json:"wheel_separation"`
	Initial         State    `yaml:"initial" json:"initial"`
	TimeStep        simtime.Time `yaml:"time_step" json:"time_step"`
}

// Unicycle integrates a differential-drive base forward in time using the
// standard unicycle kinematic model.
type Unicycle struct {
	separation float64
	timeStep   simtime.Time

	state   State
	lastT   simtime.Time
	cmd     Command
}

// NewUnicycle creates a Unicycle body at t0 from cfg.
func NewUnicycle(cfg UnicycleConfig, t0 simtime.Time) *Unicycle {
	return &Unicycle{
		separation: cfg.WheelSeparation,
		timeStep:   cfg.TimeStep,
		state:      cfg.Initial,
		lastT:      t0,
	}
}

// ApplyCommand sets the current wheel speeds, effective from the next
// UpdateState call onward.
func (u *Unicycle) ApplyCommand(cmd Command) {
	u.cmd = cmd
}

// UpdateState integrates the unicycle model from lastT to now.
func (u *Unicycle) UpdateState(now simtime.Time) error {
	if simtime.Less(now, u.lastT) {
		return failure.New(failure.Implementation, "physics update called with decreasing time")
	}
	dt := float64(now) - float64(u.lastT)
	if dt <= 0 {
		return nil
	}

	v := (u.cmd.LeftSpeed + u.cmd.RightSpeed) / 2
	omega := (u.cmd.RightSpeed - u.cmd.LeftSpeed) / u.separation

	if math.Abs(omega) < 1e-9 {
		u.state.X += v * math.Cos(u.state.Theta) * dt
		u.state.Y += v * math.Sin(u.state.Theta) * dt
	} else {
		theta0 := u.state.Theta
		theta1 := theta0 + omega*dt
		radius := v / omega
		u.state.X += radius * (math.Sin(theta1) - math.Sin(theta0))
		u.state.Y -= radius * (math.Cos(theta1) - math.Cos(theta0))
		u.state.Theta = theta1
	}

	u.lastT = now
	return nil
}

// State returns the current pose.
func (u *Unicycle) State() State { return u.state }

// NextTimeStep returns the next fixed integration tick at or after now.
func (u *Unicycle) NextTimeStep(now simtime.Time) simtime.Time {
	if u.timeStep <= 0 {
		return simtime.Inf
	}
	steps := math.Ceil((float64(now) - float64(u.lastT)) / float64(u.timeStep))
	if steps < 1 {
		steps = 1
	}
	return simtime.Add(u.lastT, simtime.Time(steps)*u.timeStep)
}

// Record snapshots the current state for the record store.
func (u *Unicycle) Record(t simtime.Time) Record {
	return u.state.recordAt(t)
}
