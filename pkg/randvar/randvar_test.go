package randvar

import (
	"testing"

	"github.com/mescourrou/simkernel/pkg/simtime"
	"github.com/stretchr/testify/assert"
)

func TestGenerateIsPureInTime(t *testing.T) {
	f := NewFactory(42)
	s := f.Make("imu:noise", Config{Kind: KindNormal, Mean: 0, Sigma: 0.1})

	a := s.Generate(0.01)
	b := s.Generate(0.01)
	assert.Equal(t, a, b)
}

func TestGenerateDiffersAcrossTime(t *testing.T) {
	f := NewFactory(42)
	s := f.Make("imu:noise", Config{Kind: KindNormal, Mean: 0, Sigma: 0.1})

	a := s.Generate(0.00)
	b := s.Generate(0.01)
	c := s.Generate(0.02)
	assert.NotEqual(t, a, b)
	assert.NotEqual(t, b, c)
}

func TestDifferentGlobalSeedDiffers(t *testing.T) {
	s1 := NewFactory(42).Make("imu:noise", Config{Kind: KindNormal, Sigma: 0.1})
	s2 := NewFactory(43).Make("imu:noise", Config{Kind: KindNormal, Sigma: 0.1})

	assert.NotEqual(t, s1.Generate(1.0), s2.Generate(1.0))
}

func TestDifferentStreamNameDiffersUnderSameSeed(t *testing.T) {
	f := NewFactory(42)
	s1 := f.Make("sensor:a", Config{Kind: KindNormal, Sigma: 1})
	s2 := f.Make("sensor:b", Config{Kind: KindNormal, Sigma: 1})

	assert.NotEqual(t, s1.Generate(0), s2.Generate(0))
}

func TestUniformStaysWithinBounds(t *testing.T) {
	f := NewFactory(7)
	s := f.Make("u", Config{Kind: KindUniform, Min: 2, Max: 5})

	for i := 0; i < 50; i++ {
		v := s.Generate(simtime.Time(float64(i) * simtime.Round))[0]
		assert.GreaterOrEqual(t, v, 2.0)
		assert.Less(t, v, 5.0)
	}
}

func TestBernoulliIsZeroOrOne(t *testing.T) {
	f := NewFactory(1)
	s := f.Make("coin", Config{Kind: KindBernoulli, P: 0.5})

	for i := 0; i < 20; i++ {
		v := s.Generate(simtime.Time(float64(i)))[0]
		assert.Contains(t, []float64{0, 1}, v)
	}
}

func TestPoissonNonNegativeInteger(t *testing.T) {
	f := NewFactory(1)
	s := f.Make("arrivals", Config{Kind: KindPoisson, Lambda: 3})

	for i := 0; i < 20; i++ {
		v := s.Generate(simtime.Time(float64(i)))[0]
		assert.GreaterOrEqual(t, v, 0.0)
		assert.Equal(t, v, float64(int(v)))
	}
}

func TestFixedPicksFromValues(t *testing.T) {
	f := NewFactory(1)
	s := f.Make("choice", Config{Kind: KindFixed, Values: []float64{1, 2, 3}})

	v := s.Generate(0)[0]
	assert.Contains(t, []float64{1, 2, 3}, v)
}

func TestDimensionProducesMultipleValues(t *testing.T) {
	f := NewFactory(1)
	s := f.Make("vec", Config{Kind: KindNormal, Sigma: 1, Dimension: 3})

	assert.Len(t, s.Generate(0), 3)
}
