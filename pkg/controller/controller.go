// Package controller implements the Controller plugin trait and one
// Internal implementation: a differential-drive controller converting a
// navigator's bearing/range error into left/right wheel speed commands.
package controller

import (
	"github.com/mescourrou/simkernel/pkg/navigator"
	"github.com/mescourrou/simkernel/pkg/physics"
	"github.com/mescourrou/simkernel/pkg/simtime"
)

// Controller is the plugin interface for a robot's low-level actuation
// module.
type Controller interface {
	Compute(now simtime.Time, err navigator.ControllerError) physics.Command
	Record(t simtime.Time) Record
}

// Record is the per-tick snapshot persisted by the record store.
type Record struct {
	At      simtime.Time    `json:"t"`
	Command physics.Command `json:"command"`
}

// Kind tags which concrete Controller a Config selects.
type Kind string

const (
	KindInternal Kind = "Internal"
	KindExternal Kind = "External"
	KindScripted Kind = "Scripted"
)

// Config is the tagged-union configuration for a node's controller
// module.
type Config struct {
	Kind             Kind                        `yaml:"kind" json:"kind"`
	DifferentialDrive *DifferentialDriveConfig `yaml:"differential_drive,omitempty" json:"differential_drive,omitempty"`
}

// DifferentialDriveConfig parametrizes the Internal differential-drive
// controller.
type DifferentialDriveConfig struct {
	MaxSpeed   float64 `yaml:"max_speed" json:"max_speed"`
	BearingGain float64 `yaml:"bearing_gain" json:"bearing_gain"`
	RangeGain  float64 `yaml:"range_gain" json:"range_gain"`
	WheelSeparation float64 `yaml:"wheel_separation" json:"wheel_separation"`
}

// DifferentialDrive is a simple proportional controller: forward speed is
// proportional to range error, turn rate to bearing error, both clamped to
// MaxSpeed and converted to wheel speeds.
type DifferentialDrive struct {
	cfg  DifferentialDriveConfig
	last physics.Command
}

// NewDifferentialDrive creates a DifferentialDrive controller.
func NewDifferentialDrive(cfg DifferentialDriveConfig) *DifferentialDrive {
	return &DifferentialDrive{cfg: cfg}
}

// Compute converts err into a wheel-speed command.
func (d *DifferentialDrive) Compute(now simtime.Time, err navigator.ControllerError) physics.Command {
	v := clamp(d.cfg.RangeGain*err.RangeError, -d.cfg.MaxSpeed, d.cfg.MaxSpeed)
	omega := d.cfg.BearingGain * err.BearingError

	half := omega * d.cfg.WheelSeparation / 2
	cmd := physics.Command{
		LeftSpeed:  clamp(v-half, -d.cfg.MaxSpeed, d.cfg.MaxSpeed),
		RightSpeed: clamp(v+half, -d.cfg.MaxSpeed, d.cfg.MaxSpeed),
	}
	d.last = cmd
	return cmd
}

// Record snapshots the last computed command.
func (d *DifferentialDrive) Record(t simtime.Time) Record {
	return Record{At: t, Command: d.last}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
