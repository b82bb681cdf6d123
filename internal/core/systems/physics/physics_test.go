package physics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVec3Arithmetic(t *testing.T) {
	a := V3(1, 2, 3)
	b := V3(4, 6, 8)

	assert.Equal(t, V3(5, 8, 11), a.Add(b))
	assert.Equal(t, V3(3, 4, 5), b.Sub(a))
	assert.Equal(t, V3(2, 4, 6), a.Scale(2))
	assert.InDelta(t, 40.0, a.Dot(b), 1e-12)
	assert.InDelta(t, math.Sqrt(50), a.DistanceTo(b), 1e-12)
	assert.Equal(t, V3(2.5, 4, 5.5), a.Lerp(b, 0.5))
	assert.Equal(t, Zero3(), Zero3().Normalize())
	assert.InDelta(t, 1.0, b.Normalize().Len(), 1e-12)
}

func TestHeadingDir(t *testing.T) {
	fwd := HeadingDir(0)
	assert.InDelta(t, 0, fwd.X, 1e-12)
	assert.InDelta(t, 1, fwd.Z, 1e-12)

	right := HeadingDir(math.Pi / 2)
	assert.InDelta(t, 1, right.X, 1e-12)
	assert.InDelta(t, 0, right.Z, 1e-12)

	tr := Transform{Heading: math.Pi}
	assert.InDelta(t, -1, tr.Forward().Z, 1e-12)
}

func TestApproach(t *testing.T) {
	assert.Equal(t, 1.0, Approach(0, 10, 1))
	assert.Equal(t, 10.0, Approach(9.5, 10, 1))
	assert.Equal(t, 9.0, Approach(10, 0, 1))
	assert.Equal(t, 0.0, Approach(0.5, 0, 1))
	assert.Equal(t, 3.0, Approach(3, 3, 1))
}

func TestWrapAngle(t *testing.T) {
	assert.InDelta(t, 0, WrapAngle(2*math.Pi), 1e-12)
	assert.InDelta(t, math.Pi, WrapAngle(-math.Pi), 1e-12)
	assert.InDelta(t, -math.Pi/2, WrapAngle(3*math.Pi/2), 1e-12)
}

func TestIsFinite(t *testing.T) {
	require.True(t, V3(1, 2, 3).IsFinite())
	require.False(t, V3(math.NaN(), 0, 0).IsFinite())
	require.False(t, V3(0, math.Inf(1), 0).IsFinite())
}
