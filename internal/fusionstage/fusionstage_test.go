package fusionstage

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sixaxis-fusion/imud/internal/sample"
	"github.com/sixaxis-fusion/imud/internal/tracker"
	"github.com/sixaxis-fusion/imud/internal/vecmath"
)

type fakeSource struct {
	samples []sample.Raw
	next    int
}

func (f *fakeSource) Next(ctx context.Context) (sample.Raw, error) {
	if f.next >= len(f.samples) {
		return sample.Raw{}, fmt.Errorf("fakeSource: exhausted")
	}
	s := f.samples[f.next]
	f.next++
	return s, nil
}

func constantAccelSamples(n int) []sample.Raw {
	out := make([]sample.Raw, n)
	for i := range out {
		out[i] = sample.Raw{Az: 9.8, Temp: 20}
	}
	return out
}

func TestCalibrationConsumesFirstNSamplesBeforeFirstFusedSample(t *testing.T) {
	calib := constantAccelSamples(10)
	post := sample.Raw{Az: 9.8, Temp: 21}
	src := &fakeSource{samples: append(calib, post)}

	tr := tracker.New(1.0, 0.02, vecmath.Zero)
	stage := New(src, tr, 10)

	out, err := stage.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 21.0, out.Temp, "the first Next() after calibration must return the sample after the calibration window")
	assert.Equal(t, 1, src.next-10, "exactly one post-calibration sample must have been consumed")
}

func TestZeroCalibrateNSkipsCalibration(t *testing.T) {
	tr := tracker.New(1.0, 0.02, vecmath.Zero)
	require.NoError(t, func() error {
		tr.StartCalibration()
		if err := tr.AddSample(vecmath.Vec3{Z: 9.8}, vecmath.Zero); err != nil {
			return err
		}
		return tr.FinishCalibration()
	}())

	src := &fakeSource{samples: []sample.Raw{{Az: 9.8, Temp: 5}}}
	stage := New(src, tr, 0)

	out, err := stage.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, src.next, "calibrateN=0 must not consume any sample beyond the one being fused")
	assert.Equal(t, 5.0, out.Temp)
}

func TestFusedSampleCarriesAnglesAndPosition(t *testing.T) {
	calib := constantAccelSamples(5)
	src := &fakeSource{samples: append(calib, sample.Raw{Az: 9.8, Temp: 22})}

	tr := tracker.New(1.0, 0.02, vecmath.Zero)
	stage := New(src, tr, 5)

	out, err := stage.Next(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 0, out.AngleX, 1e-9)
	assert.InDelta(t, 0, out.AngleY, 1e-9)
	assert.InDelta(t, 0, out.AngleZ, 1e-9)
	assert.InDelta(t, 0, out.PosX, 1e-9)
}

func TestNextPropagatesUpstreamTermination(t *testing.T) {
	src := &fakeSource{samples: nil}
	tr := tracker.New(1.0, 0.02, vecmath.Zero)
	stage := New(src, tr, 0)

	_, err := stage.Next(context.Background())
	assert.Error(t, err)
}
