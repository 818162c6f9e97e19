package simtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEqualWithinTolerance(t *testing.T) {
	assert.True(t, Equal(1.0, 1.0+Round/4))
	assert.False(t, Equal(1.0, 1.0+Round))
}

func TestLessIsStrictOutsideTolerance(t *testing.T) {
	assert.False(t, Less(1.0, 1.0+Round/4))
	assert.True(t, Less(1.0, 1.0+Round*2))
}

func TestMinIgnoresInf(t *testing.T) {
	got := Min(Inf, 4.0, Inf, 2.0, 3.0)
	assert.True(t, Equal(got, 2.0))
}

func TestMinAllInfIsInf(t *testing.T) {
	assert.True(t, IsInf(Min(Inf, Inf)))
}

func TestQuantizeRoundsToNearestMicrosecond(t *testing.T) {
	assert.InDelta(t, 1.000001, float64(Quantize(1.0000009)), 1e-9)
}
