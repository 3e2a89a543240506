package vecmath

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRotateIdentityAngle(t *testing.T) {
	v := Vec3{X: 1, Y: 2, Z: 3}
	out := Rotate(v, ZAxis, 0)
	assert.InDelta(t, v.X, out.X, 1e-9)
	assert.InDelta(t, v.Y, out.Y, 1e-9)
	assert.InDelta(t, v.Z, out.Z, 1e-9)
}

func TestRotateFullTurnReturnsToStart(t *testing.T) {
	v := Vec3{X: 1, Y: 0, Z: 0}
	out := Rotate(v, ZAxis, 2*math.Pi)
	assert.InDelta(t, v.X, out.X, 1e-6)
	assert.InDelta(t, v.Y, out.Y, 1e-6)
	assert.InDelta(t, v.Z, out.Z, 1e-6)
}

func TestRotatePreservesAxisComponent(t *testing.T) {
	v := Vec3{X: 1, Y: 2, Z: 3}
	out := Rotate(v, ZAxis, math.Pi/4)
	assert.InDelta(t, v.Z, out.Z, 1e-9, "rotation about Z must not change the Z component")
}

func TestRotatePreservesNorm(t *testing.T) {
	v := Vec3{X: 3, Y: -4, Z: 1.5}
	axis := Vec3{X: 0.3, Y: 0.6, Z: 0.1}
	out := Rotate(v, axis, 1.234)
	assert.InDelta(t, Norm(v), Norm(out), 1e-9, "rotation must preserve length")
}

func TestRotateZeroAxisIsNoop(t *testing.T) {
	v := Vec3{X: 1, Y: 2, Z: 3}
	out := Rotate(v, Zero, 1.0)
	assert.Equal(t, v, out)
}

func TestRotateNearZAxisSingularityGuard(t *testing.T) {
	v := Vec3{X: 1, Y: 0, Z: 0}
	out := Rotate(v, ZAxis, math.Pi/2)
	require.InDelta(t, 0, out.X, 1e-6)
	require.InDelta(t, 1, out.Y, 1e-6)
	require.InDelta(t, 0, out.Z, 1e-6)
}

func TestNormalizeBelowEpsilonReturnsUnchanged(t *testing.T) {
	v := Vec3{X: 1e-7, Y: 0, Z: 0}
	out, d := Normalize(v)
	assert.Equal(t, v, out)
	assert.InDelta(t, 1e-7, d, 1e-12)
}

func TestNormalizeUnitLength(t *testing.T) {
	v := Vec3{X: 3, Y: 4, Z: 0}
	out, d := Normalize(v)
	assert.InDelta(t, 5.0, d, 1e-9)
	assert.InDelta(t, 1.0, Norm(out), 1e-9)
}

func TestAngleBetweenParallelIsZero(t *testing.T) {
	a := Vec3{X: 1, Y: 2, Z: 3}
	b := Vec3{X: 2, Y: 4, Z: 6}
	assert.InDelta(t, 0, AngleBetween(a, b), 1e-9)
}

func TestAngleBetweenOrthogonalIsHalfPi(t *testing.T) {
	assert.InDelta(t, math.Pi/2, AngleBetween(XAxis, YAxis), 1e-9)
}

func TestAngleBetweenClampsFloatingPointDrift(t *testing.T) {
	// For this vector Dot(v, v)/(Norm(v)*Norm(v)) rounds to just above 1,
	// where an unclamped math.Acos would return NaN.
	v := Vec3{X: 0.8, Y: 0.2, Z: 0.3}
	assert.NotPanics(t, func() { AngleBetween(v, v) })
	assert.Equal(t, 0.0, AngleBetween(v, v))
}

func TestCrossOrthogonality(t *testing.T) {
	c := Cross(XAxis, YAxis)
	assert.InDelta(t, 0, Dot(c, XAxis), 1e-9)
	assert.InDelta(t, 0, Dot(c, YAxis), 1e-9)
	assert.Equal(t, ZAxis, c)
}
