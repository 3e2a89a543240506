package calib

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sixaxis-fusion/imud/internal/vecmath"
)

func TestSaveThenLoadRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calib.json")
	offs := vecmath.Vec3{X: 0.42, Y: -1.11, Z: 0.255}

	require.NoError(t, Save(path, offs))

	got, err := Load(path)
	require.NoError(t, err)
	assert.InDelta(t, offs.X, got.X, 1e-12)
	assert.InDelta(t, offs.Y, got.Y, 1e-12)
	assert.InDelta(t, offs.Z, got.Z, 1e-12)
}

func TestLoadMissingFileReturnsZeroNotError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.json")

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, vecmath.Zero, got)
}
