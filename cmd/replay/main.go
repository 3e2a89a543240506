// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// replay is an offline development tool: it replays a dump file
// previously written by imud's dump logger through the fusion pipeline,
// printing every fused sample to stdout. The Epoch Detector is not run,
// so no events are reported. No MQTT broker or hardware is required.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/sixaxis-fusion/imud/internal/fusionstage"
	"github.com/sixaxis-fusion/imud/internal/source"
	"github.com/sixaxis-fusion/imud/internal/tracker"
	"github.com/sixaxis-fusion/imud/internal/vecmath"
)

func main() {
	path := flag.String("dump", "", "path to a dump file written by imud's dump logger")
	dtMillis := flag.Int("dt", 20, "replay sample period, milliseconds")
	timeTerm := flag.Float64("time-term", 1.0, "complementary filter time constant, seconds")
	calibrateN := flag.Int("calibrate-n", 50, "at-rest samples to consume for calibration")
	flag.Parse()

	if *path == "" {
		log.Fatal("replay: -dump is required")
	}

	dt := time.Duration(*dtMillis) * time.Millisecond
	raw, err := source.NewReplay(*path, dt)
	if err != nil {
		log.Fatalf("replay: %v", err)
	}

	t := tracker.New(*timeTerm, dt.Seconds(), vecmath.Zero)
	stage := fusionstage.New(raw, t, *calibrateN)

	ctx := context.Background()
	for {
		s, err := stage.Next(ctx)
		if err != nil {
			log.Printf("replay: stream ended: %v", err)
			return
		}
		fmt.Printf("X=%7.2f Y=%7.2f Z=%7.2f  pos=(%6.3f,%6.3f,%6.3f)  T=%5.1f\n",
			s.AngleX, s.AngleY, s.AngleZ, s.PosX, s.PosY, s.PosZ, s.Temp)
	}
}
