// Package calib loads and saves the accelerometer calibration offsets:
// a tiny {x_offs,y_offs,z_offs} JSON file that seeds Tracker.New's
// accelOffs so a unit doesn't need to recollect its at-rest bias on
// every restart. A small versionless JSON file read with encoding/json
// rather than the KEY=VALUE scanner internal/config uses for the main
// daemon config.
package calib

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/sixaxis-fusion/imud/internal/vecmath"
)

// Offsets is the on-disk shape of a calibration file.
type Offsets struct {
	XOffs float64 `json:"x_offs"`
	YOffs float64 `json:"y_offs"`
	ZOffs float64 `json:"z_offs"`
}

// Load reads a calibration file at path. A missing file is not an
// error — it returns vecmath.Zero, matching an uncalibrated unit's
// accelOffs of {0,0,0}.
func Load(path string) (vecmath.Vec3, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return vecmath.Zero, nil
		}
		return vecmath.Zero, fmt.Errorf("calib: read %s: %w", path, err)
	}

	var o Offsets
	if err := json.Unmarshal(data, &o); err != nil {
		return vecmath.Zero, fmt.Errorf("calib: parse %s: %w", path, err)
	}
	return vecmath.Vec3{X: o.XOffs, Y: o.YOffs, Z: o.ZOffs}, nil
}

// Save writes offs to path as indented JSON.
func Save(path string, offs vecmath.Vec3) error {
	o := Offsets{XOffs: offs.X, YOffs: offs.Y, ZOffs: offs.Z}
	data, err := json.MarshalIndent(o, "", "  ")
	if err != nil {
		return fmt.Errorf("calib: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("calib: write %s: %w", path, err)
	}
	return nil
}
