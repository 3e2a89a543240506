// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package display drives a single SSD1306 OLED as a streamer.Consumer
// showing the live fused pose. It renders straight off the streamer
// rather than subscribing to the event bus, since it already runs
// in-process with the fusion pipeline and has no reason to take the
// detour through MQTT.
package display

import (
	"fmt"
	"image"
	"log"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"

	"github.com/sixaxis-fusion/imud/internal/sample"
)

// minRefresh rate-limits panel redraws; the I2C bus and the display's
// own controller are far slower than the fusion loop, so most Handle
// calls should be a no-op.
const minRefresh = 200 * time.Millisecond

// Display is a streamer.Consumer that renders the latest fused pose to
// an SSD1306 panel.
type Display struct {
	dev  *ssd1306.Dev
	last time.Time
}

// New opens an SSD1306 over bus at addr and shows a splash screen.
func New(bus i2c.Bus, addr uint16) (*Display, error) {
	opts := ssd1306.DefaultOpts
	opts.Addr = addr
	dev, err := ssd1306.NewI2C(bus, &opts)
	if err != nil {
		return nil, fmt.Errorf("display: init ssd1306 at 0x%02x: %w", addr, err)
	}
	d := &Display{dev: dev}
	if err := d.splash(); err != nil {
		log.Printf("display: splash draw failed: %v", err)
	}
	return d, nil
}

// Handle renders s's angles and temperature, rate-limited to minRefresh.
func (d *Display) Handle(s sample.Fused) {
	if time.Since(d.last) < minRefresh {
		return
	}
	d.last = time.Now()

	img := blankFrame()
	drawer := textDrawer(img)

	drawer.Dot = fixed.P(0, 13)
	drawer.DrawBytes([]byte(fmt.Sprintf("X:%6.1f", s.AngleX)))
	drawer.Dot = fixed.P(0, 26)
	drawer.DrawBytes([]byte(fmt.Sprintf("Y:%6.1f", s.AngleY)))
	drawer.Dot = fixed.P(0, 39)
	drawer.DrawBytes([]byte(fmt.Sprintf("Z:%6.1f", s.AngleZ)))
	drawer.Dot = fixed.P(0, 52)
	drawer.DrawBytes([]byte(fmt.Sprintf("T:%5.1fC", s.Temp)))

	if err := d.dev.Draw(d.dev.Bounds(), img, image.Point{}); err != nil {
		log.Printf("display: draw failed: %v", err)
	}
}

func (d *Display) splash() error {
	img := blankFrame()
	drawer := textDrawer(img)
	drawer.Dot = fixed.P(10, 26)
	drawer.DrawBytes([]byte("6-axis fusion"))
	drawer.Dot = fixed.P(5, 43)
	drawer.DrawBytes([]byte("calibrating..."))
	return d.dev.Draw(d.dev.Bounds(), img, image.Point{})
}

func blankFrame() *image1bit.VerticalLSB {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, 128, 64))
	for i := range img.Pix {
		img.Pix[i] = 0
	}
	return img
}

func textDrawer(img *image1bit.VerticalLSB) *font.Drawer {
	return &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{C: image1bit.On},
		Face: basicfont.Face7x13,
	}
}
