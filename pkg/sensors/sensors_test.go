package sensors

import (
	"testing"

	"github.com/mescourrou/simkernel/pkg/physics"
	"github.com/mescourrou/simkernel/pkg/randvar"
	"github.com/mescourrou/simkernel/pkg/simtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSenseSkipsLandmarksOutOfRange(t *testing.T) {
	cfg := RangeBearingConfig{
		Landmarks: []Landmark{{Name: "near", X: 1, Y: 0}, {Name: "far", X: 100, Y: 0}},
		MaxRange:  10,
	}
	s := NewRangeBearing(cfg, "robot1", randvar.NewFactory(1), 0)

	obs := s.Sense(0, physics.State{})
	require.Len(t, obs, 1)
	assert.Equal(t, "near", obs[0].Landmark)
}

func TestSenseIsDeterministicForSameTime(t *testing.T) {
	cfg := RangeBearingConfig{
		Landmarks:  []Landmark{{Name: "a", X: 1, Y: 1}},
		MaxRange:   10,
		RangeSigma: 0.05,
	}
	s1 := NewRangeBearing(cfg, "robot1", randvar.NewFactory(7), 0)
	s2 := NewRangeBearing(cfg, "robot1", randvar.NewFactory(7), 0)

	o1 := s1.Sense(3.0, physics.State{})
	o2 := s2.Sense(3.0, physics.State{})
	assert.Equal(t, o1, o2)
}

func TestNextSampleTimeAdvancesByPeriod(t *testing.T) {
	s := NewRangeBearing(RangeBearingConfig{SamplePeriod: 0.5}, "r", randvar.NewFactory(1), 0)
	n := s.NextSampleTime(0)
	assert.True(t, simtime.Equal(n, 0.5))
}

func TestSampleTableFiresAtEachOffsetWithinCycle(t *testing.T) {
	s := NewRangeBearing(RangeBearingConfig{
		SamplePeriod: 1.0,
		SampleTable:  []float64{0.0, 0.3, 0.7},
	}, "r", randvar.NewFactory(1), 0)

	want := []simtime.Time{1.0, 1.3, 1.7, 2.0, 2.3, 2.7}
	now := simtime.Time(0)
	for _, w := range want {
		got := s.NextSampleTime(now)
		require.True(t, simtime.Equal(got, w), "expected fire at %v, got %v", w, got)
		s.Sense(got, physics.State{})
		now = got
	}
}

func TestNoScheduleMeansNoPeriodicSampling(t *testing.T) {
	s := NewRangeBearing(RangeBearingConfig{}, "r", randvar.NewFactory(1), 0)
	assert.True(t, simtime.IsInf(s.NextSampleTime(0)))
}

func TestJitteredPeriodIsReproducibleAcrossInstances(t *testing.T) {
	cfg := RangeBearingConfig{
		SamplePeriodVar: &randvar.Config{Kind: randvar.KindUniform, Min: 0.4, Max: 0.6},
	}
	s1 := NewRangeBearing(cfg, "r", randvar.NewFactory(9), 0)
	s2 := NewRangeBearing(cfg, "r", randvar.NewFactory(9), 0)
	assert.True(t, simtime.Equal(s1.NextSampleTime(0), s2.NextSampleTime(0)))
}
