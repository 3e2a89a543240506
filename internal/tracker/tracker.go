// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package tracker implements the complementary-filter sensor fusion:
// it combines gyro-propagated orientation with accelerometer-derived
// gravity into a drift-damped world-frame basis, and dead-reckons
// lateral position via trapezoidal integration of the residual
// (gravity-removed) acceleration.
//
// A Tracker is single-threaded by construction: callers must not share
// one across goroutines without external synchronization (the
// pipeline stage that owns one is always driven by a single producer
// goroutine).
package tracker

import (
	"fmt"

	"github.com/sixaxis-fusion/imud/internal/vecmath"
)

// State is the calibration lifecycle state.
type State int

const (
	Idle State = iota
	Collecting
)

// Tracker is the motion-tracking sensor-fusion filter.
type Tracker struct {
	dt       float64 // nominal sample period, seconds
	rotDecay float64 // hpf weight = timeTerm / (timeTerm + dt)

	accelOffs vecmath.Vec3 // operator-supplied accelerometer bias

	gyroOffs         vecmath.Vec3
	gravityInit      vecmath.Vec3
	gravityMagnitude float64

	basisInitX, basisInitY, basisInitZ vecmath.Vec3
	basisX, basisY, basisZ             vecmath.Vec3

	gravity  vecmath.Vec3
	velocity vecmath.Vec3
	worldPos vecmath.Vec3

	state           State
	calibSums       [6]float64
	calibN          int
}

// New constructs an idle Tracker. timeTerm is the complementary
// filter's time constant (seconds); dt is the nominal sample period
// (seconds); accelOffs is the operator-supplied accelerometer bias.
// Calibration samples are accumulated raw and the bias is subtracted
// once from their mean, in FinishCalibration; every later sample has
// the bias subtracted before the fusion step.
func New(timeTerm, dt float64, accelOffs vecmath.Vec3) *Tracker {
	return &Tracker{
		dt:        dt,
		rotDecay:  timeTerm / (timeTerm + dt),
		accelOffs: accelOffs,
		basisX:    vecmath.XAxis,
		basisY:    vecmath.YAxis,
	}
}

// StartCalibration transitions Idle -> Collecting, zeroing the running
// sums. Calling it while already Collecting restarts the accumulation.
func (t *Tracker) StartCalibration() {
	t.state = Collecting
	t.calibSums = [6]float64{}
	t.calibN = 0
}

// AddSample feeds one raw accel/gyro reading to the tracker. While
// Collecting it only accumulates statistics; otherwise it performs one
// fusion step and updates the basis, gravity, velocity, and position.
//
// When not Collecting, a sample whose residual acceleration
// ‖acc_raw - accelOffs‖ is below 1e-9 cannot be rescaled to the
// calibrated gravity magnitude: it is rejected with an error and the
// tracker state is left unchanged.
func (t *Tracker) AddSample(accRaw, gyroRaw vecmath.Vec3) error {
	if t.state == Collecting {
		t.calibSums[0] += accRaw.X
		t.calibSums[1] += accRaw.Y
		t.calibSums[2] += accRaw.Z
		t.calibSums[3] += gyroRaw.X
		t.calibSums[4] += gyroRaw.Y
		t.calibSums[5] += gyroRaw.Z
		t.calibN++
		return nil
	}

	gyro := vecmath.Sub(gyroRaw, t.gyroOffs)
	acc := vecmath.Sub(accRaw, t.accelOffs)

	accNorm := vecmath.Norm(acc)
	if accNorm < 1e-9 {
		return fmt.Errorf("tracker: zero-norm acceleration sample, cannot rescale gravity")
	}

	// Gyro propagation: deg/s -> rotation vector over dt, then
	// decomposed into (angle, axis). The axis is negated — this looks
	// backwards at a glance but is intentional; flipping it breaks
	// convergence under sustained rotation (see gyroToAngleAxis below).
	gyroMoment := vecmath.Scale(gyro, t.dt*vecmath.Deg2Rad)
	angle, axis := gyroToAngleAxis(gyroMoment)

	basisGX := vecmath.Rotate(t.basisX, axis, angle)
	basisGY := vecmath.Rotate(t.basisY, axis, angle)
	gravityG := vecmath.Rotate(t.gravity, axis, angle)

	gravityA := vecmath.Scale(acc, t.gravityMagnitude/accNorm)

	hpf := t.rotDecay
	lpf := 1 - hpf
	gravityF := vecmath.Add(vecmath.Scale(gravityA, lpf), vecmath.Scale(gravityG, hpf))

	fixAngle := vecmath.AngleBetween(gravityG, gravityF)
	fixAxis := vecmath.Cross(gravityF, gravityG)

	// Deliberately store the unblended accelerometer gravity, not the
	// blended gravityF used for everything else this step — next
	// step's rotation reference is meant to snap straight back to the
	// raw reading rather than carry the blend forward.
	t.gravity = gravityA

	t.basisX = vecmath.Rotate(basisGX, fixAxis, fixAngle)
	t.basisY = vecmath.Rotate(basisGY, fixAxis, fixAngle)
	t.basisZ = vecmath.Cross(t.basisX, t.basisY)

	linAcc := vecmath.Sub(acc, gravityF)
	newVelocity := vecmath.Add(t.velocity, vecmath.Scale(linAcc, t.dt))
	t.worldPos = vecmath.Add(
		t.worldPos,
		vecmath.Scale(t.velocity, t.dt/2),
		vecmath.Scale(newVelocity, t.dt/2),
	)
	t.velocity = vecmath.Scale(newVelocity, 0.99)

	return nil
}

// FinishCalibration computes the gyro bias and reference gravity from
// the accumulated sums, resets the basis to canonical axes, and zeroes
// velocity/position. Requires at least one sample to have been
// accumulated since StartCalibration.
func (t *Tracker) FinishCalibration() error {
	if t.calibN < 1 {
		return fmt.Errorf("tracker: finish_calibration with zero samples")
	}

	n := float64(t.calibN)
	meanAcc := vecmath.Vec3{X: t.calibSums[0] / n, Y: t.calibSums[1] / n, Z: t.calibSums[2] / n}
	meanGyro := vecmath.Vec3{X: t.calibSums[3] / n, Y: t.calibSums[4] / n, Z: t.calibSums[5] / n}

	t.gyroOffs = meanGyro
	t.gravity = vecmath.Sub(meanAcc, t.accelOffs)
	t.gravityInit = t.gravity
	t.gravityMagnitude = vecmath.Norm(t.gravity)

	t.basisInitX = vecmath.XAxis
	t.basisInitY = vecmath.YAxis
	t.basisInitZ = vecmath.Cross(t.basisInitX, t.basisInitY)

	t.basisX = t.basisInitX
	t.basisY = t.basisInitY
	t.basisZ = t.basisInitZ

	t.worldPos = vecmath.Zero
	t.velocity = vecmath.Zero

	t.state = Idle
	return nil
}

// Angles returns the absolute deviation in degrees of each current
// world-frame basis axis from its calibrated reference, always
// non-negative.
func (t *Tracker) Angles() (x, y, z float64) {
	return vecmath.AngleBetween(t.basisX, t.basisInitX) * vecmath.Rad2Deg,
		vecmath.AngleBetween(t.basisY, t.basisInitY) * vecmath.Rad2Deg,
		vecmath.AngleBetween(t.basisZ, t.basisInitZ) * vecmath.Rad2Deg
}

// Position returns the current integrated lateral displacement.
func (t *Tracker) Position() vecmath.Vec3 {
	return t.worldPos
}

// GravityMagnitude exposes the calibrated reference gravity norm,
// mainly for property tests.
func (t *Tracker) GravityMagnitude() float64 {
	return t.gravityMagnitude
}

// Basis exposes the current world-frame basis, mainly for property
// tests checking orthonormality.
func (t *Tracker) Basis() (x, y, z vecmath.Vec3) {
	return t.basisX, t.basisY, t.basisZ
}

// gyroToAngleAxis splits a rotation-vector moment into an angle and a
// unit axis, negating the axis so the angle/axis pair composes
// correctly with Rotate's right-hand convention for this filter.
func gyroToAngleAxis(gyroMoment vecmath.Vec3) (angle float64, axis vecmath.Vec3) {
	d := vecmath.Norm(gyroMoment)
	if d < 1e-5 {
		return 0, vecmath.XAxis
	}
	return d, vecmath.Scale(gyroMoment, -1/d)
}
