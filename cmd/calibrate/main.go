// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// calibrate writes the accelerometer offset file imud loads at
// startup. The three offsets are a small, per-device manufacturing
// bias that has to come from a bench measurement, not a live sample —
// this tool takes the three values the operator already has rather
// than attempting to infer them from an at-rest read, which would
// conflate the bias with gravity itself.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sixaxis-fusion/imud/internal/calib"
	"github.com/sixaxis-fusion/imud/internal/vecmath"
)

func main() {
	x := flag.Float64("x", 0, "accelerometer X-axis offset")
	y := flag.Float64("y", 0, "accelerometer Y-axis offset")
	z := flag.Float64("z", 0, "accelerometer Z-axis offset")
	out := flag.String("out", "./imud_calibration.json", "path to write the calibration file")
	flag.Parse()

	offs := vecmath.Vec3{X: *x, Y: *y, Z: *z}
	if err := calib.Save(*out, offs); err != nil {
		fmt.Fprintf(os.Stderr, "calibrate: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %s: x_offs=%.4f y_offs=%.4f z_offs=%.4f\n", *out, offs.X, offs.Y, offs.Z)
}
