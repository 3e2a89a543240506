// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package epoch implements the epoch detector: three independent
// sub-detectors (orientation, movement, temperature with hysteresis)
// that watch the fused sample stream and emit rising-edge events to an
// external event client.
package epoch

import (
	"log"
	"math"
	"sync"

	"github.com/sixaxis-fusion/imud/internal/sample"
)

// EventClient is the external event-agent transport client: the
// detector hands it a type and a payload on every rising edge.
type EventClient interface {
	SendEvent(eventType string, payload map[string]any) error
}

const (
	EventOrientation   = "ORIENTATION"
	EventMovement      = "MOVEMENT"
	EventTemperature   = "TEMPERATURE"
	EventManualTrigger = "MANUAL_TRIGGER"
)

// Config holds the Epoch Detector's tunable thresholds.
type Config struct {
	MaxAngleDeviation  float64 // deg, default 30
	MaxLateralMovement float64 // m, default 0.2
	MinTemp            float64 // °C, default 15
	MaxTemp            float64 // °C, default 45
	TempBlindZone      float64 // °C, default 1
}

// DefaultConfig returns the detector's out-of-the-box thresholds.
func DefaultConfig() Config {
	return Config{
		MaxAngleDeviation:  30,
		MaxLateralMovement: 0.2,
		MinTemp:            15,
		MaxTemp:            45,
		TempBlindZone:      1,
	}
}

// Detector is a streamer.Consumer that converts the fused sample
// stream into discrete epoch events.
type Detector struct {
	client EventClient

	mu          sync.Mutex
	cfg         Config
	configState bool

	inOrientation bool
	inMovement    bool
	inTemperature bool
	tempHMin      float64
	tempHMax      float64
}

// New constructs a Detector with the given config. It panics if
// 2*TempBlindZone >= MaxTemp-MinTemp — the hysteresis band would never
// close, so the threshold would latch hot or cold forever on the
// first crossing.
func New(client EventClient, cfg Config) *Detector {
	if 2*cfg.TempBlindZone >= cfg.MaxTemp-cfg.MinTemp {
		panic("epoch: 2*temp_blind_zone must be < max_temp-min_temp")
	}
	return &Detector{
		client: client,
		cfg:    cfg,
		// Both hysteresis offsets start at zero (not ±blind_zone) —
		// the first transition is what establishes the band.
		tempHMin: 0,
		tempHMax: 0,
	}
}

// Handle evaluates all three sub-conditions on s atomically (it is
// always invoked single-threaded, by the streamer's one worker
// goroutine for this consumer).
func (d *Detector) Handle(s sample.Fused) {
	d.mu.Lock()
	suppressed := d.configState
	d.mu.Unlock()
	if suppressed {
		return
	}

	d.detectMovement(s.PosX, s.PosY, s.PosZ)
	d.detectOrientation(s.AngleX, s.AngleY, s.AngleZ)
	d.detectTemperature(s.Temp)
}

func (d *Detector) detectOrientation(x, y, z float64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	maxDev := math.Max(math.Abs(x), math.Max(math.Abs(y), math.Abs(z)))
	now := maxDev > d.cfg.MaxAngleDeviation
	changed := now != d.inOrientation
	if changed {
		log.Printf("epoch: ORIENTATION condition %s", inOut(now))
		if now {
			d.send(EventOrientation, map[string]any{"x": x, "y": y, "z": z})
		}
	}
	d.inOrientation = now
}

func (d *Detector) detectMovement(x, y, z float64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	movement := math.Sqrt(x*x + y*y + z*z)
	now := movement > d.cfg.MaxLateralMovement
	changed := now != d.inMovement
	if changed {
		log.Printf("epoch: MOVEMENT condition %s", inOut(now))
		if now {
			d.send(EventMovement, map[string]any{"x": x, "y": y, "z": z})
		}
	}
	d.inMovement = now
}

func (d *Detector) detectTemperature(temp float64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	minIn := temp < d.cfg.MinTemp+d.tempHMin
	maxIn := temp > d.cfg.MaxTemp+d.tempHMax
	now := minIn || maxIn
	changed := now != d.inTemperature
	if changed {
		log.Printf("epoch: TEMPERATURE condition %s", inOut(now))
		if now {
			d.send(EventTemperature, map[string]any{"temp": temp})
		}
		switch {
		case maxIn:
			d.tempHMin = -d.cfg.TempBlindZone
			d.tempHMax = -d.cfg.TempBlindZone
		case minIn:
			d.tempHMin = d.cfg.TempBlindZone
			d.tempHMax = d.cfg.TempBlindZone
		default:
			d.tempHMin = -d.cfg.TempBlindZone
			d.tempHMax = d.cfg.TempBlindZone
		}
	}
	d.inTemperature = now
}

// send calls the event client, logging (but not propagating) any
// error — a local transport hiccup must never affect detection state.
func (d *Detector) send(eventType string, payload map[string]any) {
	if err := d.client.SendEvent(eventType, payload); err != nil {
		log.Printf("epoch: send_event(%s) failed: %v", eventType, err)
	}
}

// OnConfigEnabled suppresses all emission and may update
// MaxAngleDeviation from params["max_angle_deviation"]. Only that one
// threshold is adjustable this way — movement and temperature keep
// whatever they were configured with at startup.
func (d *Detector) OnConfigEnabled(eventType string, params map[string]any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.configState = true
	if v, ok := params["max_angle_deviation"].(float64); ok {
		d.cfg.MaxAngleDeviation = v
	}
}

// OnConfigDisabled clears the suppression flag.
func (d *Detector) OnConfigDisabled(eventType string, params map[string]any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.configState = false
}

func inOut(in bool) string {
	if in {
		return "IN"
	}
	return "OUT"
}
