// Package sensors implements the SensorManager plugin trait and one
// Internal implementation: a landmark range/bearing sensor with additive
// Gaussian noise.
package sensors

import (
	"math"

	"github.com/mescourrou/simkernel/pkg/periodicity"
	"github.com/mescourrou/simkernel/pkg/physics"
	"github.com/mescourrou/simkernel/pkg/randvar"
	"github.com/mescourrou/simkernel/pkg/simtime"
)

// Landmark is a fixed point in the world the sensor can observe.
type Landmark struct {
	Name string
	X, Y float64
}

// Observation is one noisy range/bearing reading of a landmark relative to
// the observing robot's current pose.
type Observation struct {
	Landmark string  `json:"landmark"`
	Range    float64 `json:"range"`
	Bearing  float64 `json:"bearing"`
}

// SensorManager is the plugin interface for a robot's perception stack.
type SensorManager interface {
	Sense(now simtime.Time, pose physics.State) []Observation
	NextSampleTime(now simtime.Time) simtime.Time
	Record(t simtime.Time) Record
}

// Record is the per-sample snapshot persisted by the record store.
type Record struct {
	At           simtime.Time  `json:"t"`
	Observations []Observation `json:"observations"`
}

// Kind tags which concrete SensorManager a Config selects.
type Kind string

const (
	KindInternal Kind = "Internal"
	KindExternal Kind = "External"
	KindScripted Kind = "Scripted"
)

// Config is the tagged-union configuration for a node's sensor module.
type Config struct {
	Kind         Kind                  `yaml:"kind" json:"kind"`
	RangeBearing *RangeBearingConfig `yaml:"range_bearing,omitempty" json:"range_bearing,omitempty"`
}

// RangeBearingConfig parametrizes the Internal range/bearing sensor.
// Landmarks may be given inline, via LandmarksFile (a path to a shared
// map loaded once through the process-wide map cache), or both; the
// caller wiring the node merges the two before construction.
type RangeBearingConfig struct {
	Landmarks     []Landmark   `yaml:"landmarks,omitempty" json:"landmarks,omitempty"`
	LandmarksFile string       `yaml:"landmarks_file,omitempty" json:"landmarks_file,omitempty"`
	SamplePeriod  simtime.Time `yaml:"sample_period" json:"sample_period"`
	// SamplePeriodVar, when set, draws each cycle's length from a
	// deterministic stream instead of the fixed SamplePeriod (jittered
	// but reproducible sampling).
	SamplePeriodVar *randvar.Config `yaml:"sample_period_var,omitempty" json:"sample_period_var,omitempty"`
	// SampleTable is an optional sorted list of additive time offsets,
	// in seconds from the start of each sample period; the sensor then
	// fires once per table entry per cycle instead of once per cycle.
	SampleTable  []float64 `yaml:"sample_table,omitempty" json:"sample_table,omitempty"`
	MaxRange     float64   `yaml:"max_range" json:"max_range"`
	RangeSigma   float64   `yaml:"range_sigma" json:"range_sigma"`
	BearingSigma float64   `yaml:"bearing_sigma" json:"bearing_sigma"`
}

// RangeBearing observes nearby landmarks with additive Gaussian noise on
// both range and bearing, each drawn from an independent deterministic
// stream so the noise is reproducible across reruns.
type RangeBearing struct {
	cfg        RangeBearingConfig
	rangeNoise *randvar.Stream
	brgNoise   *randvar.Stream
	sched      *periodicity.Periodicity
	lastSample simtime.Time
	last       []Observation
}

// NewRangeBearing creates a sensor owned by nodeName, drawing noise from
// factory-derived streams unique to this node+sensor instance. Its sample
// schedule is a Periodicity seeded from the same factory, so a jittered
// SamplePeriodVar stays reproducible across reruns. The first cycle begins
// one period after t0.
func NewRangeBearing(cfg RangeBearingConfig, nodeName string, factory *randvar.Factory, t0 simtime.Time) *RangeBearing {
	r := &RangeBearing{
		cfg:        cfg,
		rangeNoise: factory.Make(nodeName+":sensor:range", randvar.Config{Kind: randvar.KindNormal, Sigma: cfg.RangeSigma}),
		brgNoise:   factory.Make(nodeName+":sensor:bearing", randvar.Config{Kind: randvar.KindNormal, Sigma: cfg.BearingSigma}),
		lastSample: t0,
	}
	if cfg.SamplePeriod > 0 || cfg.SamplePeriodVar != nil {
		periodCfg := randvar.Config{Kind: randvar.KindFixed, Values: []float64{float64(cfg.SamplePeriod)}}
		if cfg.SamplePeriodVar != nil {
			periodCfg = *cfg.SamplePeriodVar
		}
		period := factory.Make(nodeName+":sensor:period", periodCfg)
		offset := simtime.Add(t0, simtime.Time(period.Generate(t0)[0]))
		r.sched = periodicity.New(period, offset, cfg.SampleTable)
	}
	return r
}

// Sense returns noisy observations of every landmark within MaxRange of
// pose, as of now.
func (r *RangeBearing) Sense(now simtime.Time, pose physics.State) []Observation {
	var out []Observation
	for _, lm := range r.cfg.Landmarks {
		dx, dy := lm.X-pose.X, lm.Y-pose.Y
		rng := math.Hypot(dx, dy)
		if r.cfg.MaxRange > 0 && rng > r.cfg.MaxRange {
			continue
		}
		bearing := math.Atan2(dy, dx) - pose.Theta

		rng += r.rangeNoise.Generate(now)[0]
		bearing += r.brgNoise.Generate(now)[0]

		out = append(out, Observation{Landmark: lm.Name, Range: rng, Bearing: bearing})
	}
	if r.sched != nil {
		r.sched.Update(now)
	}
	r.lastSample = now
	r.last = out
	return out
}

// NextSampleTime returns the next scheduled sample activation, or
// simtime.Inf for a sensor with no sampling schedule (message-driven
// reads only).
func (r *RangeBearing) NextSampleTime(now simtime.Time) simtime.Time {
	if r.sched == nil {
		return simtime.Inf
	}
	return r.sched.NextTime(now)
}

// Record snapshots the last sense() result.
func (r *RangeBearing) Record(t simtime.Time) Record {
	return Record{At: t, Observations: r.last}
}
