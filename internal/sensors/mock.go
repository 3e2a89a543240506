package sensors

import (
	"math"
	"time"

	"github.com/sixaxis-fusion/imud/internal/sample"
)

// mockDevice generates a smooth synthetic tilt, grounded on the
// teacher's orientation.NewMockSource (sine/cosine sweep rather than
// fixed values, so downstream consumers see motion during development
// off real hardware).
type mockDevice struct {
	start time.Time
}

// NewMock returns a Device that synthesizes a slowly tilting,
// stationary-in-place reading: accelerometer reports gravity rotated
// through a small sine sweep, gyro reports near-zero noise-free rates,
// temperature is a constant.
func NewMock() Device {
	return &mockDevice{start: time.Now()}
}

func (m *mockDevice) Read() (sample.Raw, error) {
	elapsed := time.Since(m.start).Seconds()
	tilt := 10 * math.Sin(elapsed*0.3) * math.Pi / 180

	return sample.Raw{
		Ax:   math.Sin(tilt),
		Ay:   0,
		Az:   math.Cos(tilt),
		Gx:   0,
		Gy:   0,
		Gz:   0,
		Temp: 22.0,
	}, nil
}
