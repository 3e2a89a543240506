// Package fusionstage wraps a raw sample source and a motion tracker:
// it performs a one-shot calibration from the first calibrateN
// samples, then annotates every subsequent sample with the tracker's
// fused angles and position.
package fusionstage

import (
	"context"
	"fmt"

	"github.com/sixaxis-fusion/imud/internal/sample"
	"github.com/sixaxis-fusion/imud/internal/source"
	"github.com/sixaxis-fusion/imud/internal/tracker"
	"github.com/sixaxis-fusion/imud/internal/vecmath"
)

// Stage wraps an upstream raw Source and a Tracker, exposing fused
// samples through Next. Calibration runs lazily on the first Next
// call.
type Stage struct {
	upstream   source.Source
	tracker    *tracker.Tracker
	calibrateN int
	calibrated bool
}

// New builds a Stage. If calibrateN > 0, the first calibrateN upstream
// samples are consumed into the tracker's calibration (their
// temperature field is discarded) before any fused sample is produced;
// if calibrateN == 0, the tracker is assumed already calibrated by the
// caller.
func New(upstream source.Source, t *tracker.Tracker, calibrateN int) *Stage {
	return &Stage{upstream: upstream, tracker: t, calibrateN: calibrateN, calibrated: calibrateN == 0}
}

// Next returns the next fused sample, running the one-shot calibration
// first if it hasn't happened yet. Upstream termination propagates
// unchanged; tracker and calibration errors are returned wrapped.
func (s *Stage) Next(ctx context.Context) (sample.Fused, error) {
	if !s.calibrated {
		if err := s.calibrate(ctx); err != nil {
			return sample.Fused{}, err
		}
		s.calibrated = true
	}

	raw, err := s.upstream.Next(ctx)
	if err != nil {
		return sample.Fused{}, err
	}

	acc := vecmath.Vec3{X: raw.Ax, Y: raw.Ay, Z: raw.Az}
	gyro := vecmath.Vec3{X: raw.Gx, Y: raw.Gy, Z: raw.Gz}
	if err := s.tracker.AddSample(acc, gyro); err != nil {
		return sample.Fused{}, fmt.Errorf("fusionstage: %w", err)
	}

	ax, ay, az := s.tracker.Angles()
	pos := s.tracker.Position()

	return sample.Fused{
		Raw:    raw,
		AngleX: ax, AngleY: ay, AngleZ: az,
		PosX: pos.X, PosY: pos.Y, PosZ: pos.Z,
	}, nil
}

func (s *Stage) calibrate(ctx context.Context) error {
	if s.calibrateN <= 0 {
		return nil
	}
	s.tracker.StartCalibration()
	for i := 0; i < s.calibrateN; i++ {
		raw, err := s.upstream.Next(ctx)
		if err != nil {
			return fmt.Errorf("fusionstage: calibration: %w", err)
		}
		acc := vecmath.Vec3{X: raw.Ax, Y: raw.Ay, Z: raw.Az}
		gyro := vecmath.Vec3{X: raw.Gx, Y: raw.Gy, Z: raw.Gz}
		if err := s.tracker.AddSample(acc, gyro); err != nil {
			return fmt.Errorf("fusionstage: calibration: %w", err)
		}
	}
	return s.tracker.FinishCalibration()
}
