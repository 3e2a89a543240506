// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// imud runs the full 6-axis fusion daemon: it polls the IMU, fuses
// samples into a pose stream, and fans that stream out to the Epoch
// Detector, the debug TCP channel, the web status channel, and the
// status display.
package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/sixaxis-fusion/imud/internal/calib"
	"github.com/sixaxis-fusion/imud/internal/config"
	"github.com/sixaxis-fusion/imud/internal/display"
	"github.com/sixaxis-fusion/imud/internal/epoch"
	"github.com/sixaxis-fusion/imud/internal/eventclient"
	"github.com/sixaxis-fusion/imud/internal/fusionstage"
	"github.com/sixaxis-fusion/imud/internal/sensors"
	"github.com/sixaxis-fusion/imud/internal/source"
	"github.com/sixaxis-fusion/imud/internal/streamer"
	"github.com/sixaxis-fusion/imud/internal/tcpfanout"
	"github.com/sixaxis-fusion/imud/internal/tracker"
	"github.com/sixaxis-fusion/imud/internal/vecmath"
	"github.com/sixaxis-fusion/imud/internal/webfanout"
)

// detectorCallbacks forwards eventclient config-toggle messages to a
// *epoch.Detector assigned after both the client and detector exist.
type detectorCallbacks struct {
	detector *epoch.Detector
}

func (c *detectorCallbacks) OnConfigEnabled(eventType string, params map[string]any) {
	if c.detector != nil {
		c.detector.OnConfigEnabled(eventType, params)
	}
}

func (c *detectorCallbacks) OnConfigDisabled(eventType string, params map[string]any) {
	if c.detector != nil {
		c.detector.OnConfigDisabled(eventType, params)
	}
}

func main() {
	configPath := flag.String("config", "./imud_config.txt", "path to configuration file")
	flag.Parse()

	log.Println("starting imud (6-axis IMU fusion daemon)")

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	cfg := config.Get()

	if err := run(cfg); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(cfg *config.Config) error {
	var dev sensors.Device
	if cfg.UseMockSensor {
		dev = sensors.NewMock()
		log.Println("imud: using mock sensor (USE_MOCK_SENSOR=true)")
	} else {
		d, err := sensors.NewMPU9250(cfg.IMUSPIDevice, cfg.IMUCSPin, sensors.Ranges{
			AccelRange: cfg.IMUAccelRange,
			GyroRange:  cfg.IMUGyroRange,
			DLPFConfig: cfg.IMUDLPFConfig,
		})
		if err != nil {
			return fmt.Errorf("imud: sensor init: %w", err)
		}
		dev = d
	}

	dt := time.Duration(cfg.DtMillis) * time.Millisecond
	raw, err := source.NewPolling(dev, dt)
	if err != nil {
		return fmt.Errorf("imud: source init: %w", err)
	}

	if cfg.DumpLogPath != "" && cfg.DumpLogCount > 0 {
		raw, err = source.NewDumpLogger(raw, cfg.DumpLogPath, cfg.DumpLogCount)
		if err != nil {
			return fmt.Errorf("imud: dump logger init: %w", err)
		}
	}

	accelOffs := vecmath.Vec3{X: cfg.AccelOffsetX, Y: cfg.AccelOffsetY, Z: cfg.AccelOffsetZ}
	if cfg.CalibrationFile != "" {
		loaded, err := calib.Load(cfg.CalibrationFile)
		if err != nil {
			return fmt.Errorf("imud: calibration file: %w", err)
		}
		accelOffs = loaded
	}

	t := tracker.New(cfg.TimeTerm, dt.Seconds(), accelOffs)
	stage := fusionstage.New(raw, t, cfg.CalibrateN)

	s := streamer.New(stage)
	defer s.WaitForEnd()

	// The event client needs the detector as its config-toggle callback
	// target, and the detector needs the client as its event sink —
	// broken via this forwarding shim, wired up once both exist.
	cb := &detectorCallbacks{}
	client, err := eventclient.New(eventclient.Options{
		Broker:      cfg.MQTTBroker,
		ClientID:    cfg.MQTTClientID,
		EventTopic:  cfg.TopicEvents,
		ConfigTopic: cfg.TopicConfigToggle,
	}, cb)
	if err != nil {
		log.Printf("imud: event client unavailable, epoch detection disabled: %v", err)
	} else {
		detector := epoch.New(client, epoch.Config{
			MaxAngleDeviation:  cfg.MaxAngleDeviation,
			MaxLateralMovement: cfg.MaxLateralMovement,
			MinTemp:            cfg.MinTemp,
			MaxTemp:            cfg.MaxTemp,
			TempBlindZone:      cfg.TempBlindZone,
		})
		cb.detector = detector
		s.AddConsumer(detector)
	}

	if cfg.DebugTCPPort != 0 {
		ln, err := tcpfanout.Listen(fmt.Sprintf(":%d", cfg.DebugTCPPort))
		if err != nil {
			log.Printf("imud: debug tcp fan-out disabled: %v", err)
		} else {
			go tcpfanout.Serve(ln, s)
			log.Printf("imud: debug tcp fan-out listening on :%d", cfg.DebugTCPPort)
		}
	}

	if cfg.WebServerPort != 0 {
		wf := webfanout.New(s, s)
		mux := http.NewServeMux()
		mux.Handle(cfg.WebSocketPath, wf.Handler())
		go func() {
			addr := fmt.Sprintf(":%d", cfg.WebServerPort)
			log.Printf("imud: web status fan-out listening on %s%s", addr, cfg.WebSocketPath)
			if err := http.ListenAndServe(addr, mux); err != nil {
				log.Printf("imud: web status fan-out stopped: %v", err)
			}
		}()
	}

	if cfg.DisplayEnabled {
		if _, err := host.Init(); err != nil {
			log.Printf("imud: display disabled, periph host init failed: %v", err)
		} else if bus, err := i2creg.Open(""); err != nil {
			log.Printf("imud: display disabled, i2c open failed: %v", err)
		} else if d, err := display.New(bus, cfg.DisplayI2CAddr); err != nil {
			log.Printf("imud: display disabled: %v", err)
		} else {
			s.AddConsumer(d)
		}
	}

	// The streamer stops on its own when the fusion stage returns an
	// error (sensor read failure, zero-norm acceleration); that ends
	// the daemon as a fatal error.
	ended := make(chan struct{})
	go func() {
		s.WaitForEnd()
		close(ended)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigCh:
	case <-ended:
		return fmt.Errorf("imud: fusion pipeline stopped")
	}

	log.Println("imud: shutting down")
	s.RequestStop()
	return nil
}
