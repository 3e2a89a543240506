// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package sensors wraps the IMU driver contract (get_accel_data /
// get_gyro_data / get_temp) behind a single Device interface, with a
// periph.io-backed MPU9250 implementation over SPI and a mock device
// for development off hardware.
package sensors

import (
	"fmt"
	"log"

	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/devices/v3/mpu9250"
	"periph.io/x/host/v3"

	"github.com/sixaxis-fusion/imud/internal/sample"
)

// Device reads one raw 7-scalar sample from the physical sensor.
type Device interface {
	Read() (sample.Raw, error)
}

// Ranges configures the accelerometer/gyro full-scale ranges and
// digital low-pass filter, matching the MPU-9250/6050 register map the
// teacher's driver targets.
type Ranges struct {
	AccelRange byte // 0=±2g, 1=±4g, 2=±8g, 3=±16g
	GyroRange  byte // 0=±250°/s, 1=±500°/s, 2=±1000°/s, 3=±2000°/s
	DLPFConfig byte // 0-7
}

type mpuDevice struct {
	imu *mpu9250.MPU9250
}

// NewMPU9250 initializes an MPU9250-class IMU over SPI at spiDev with
// chip-select pin csPin, applies the given ranges, and returns a
// Device. It does not retry internally — the caller's Source owns the
// bring-up retry window.
func NewMPU9250(spiDev, csPin string, r Ranges) (Device, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}

	cs := gpioreg.ByName(csPin)
	if cs == nil {
		return nil, fmt.Errorf("CS pin %q not found", csPin)
	}

	tr, err := mpu9250.NewSpiTransport(spiDev, cs)
	if err != nil {
		return nil, fmt.Errorf("SPI transport (%s): %w", spiDev, err)
	}

	imu, err := mpu9250.New(tr)
	if err != nil {
		return nil, fmt.Errorf("device creation: %w", err)
	}
	if err := imu.Init(); err != nil {
		return nil, fmt.Errorf("initialization: %w", err)
	}

	if err := imu.SetAccelRange(r.AccelRange); err != nil {
		return nil, fmt.Errorf("set accel range: %w", err)
	}
	if err := imu.SetGyroRange(r.GyroRange); err != nil {
		return nil, fmt.Errorf("set gyro range: %w", err)
	}
	if err := imu.SetDLPFMode(r.DLPFConfig); err != nil {
		return nil, fmt.Errorf("set DLPF config: %w", err)
	}

	if result, err := imu.SelfTest(); err != nil {
		log.Printf("sensors: MPU9250 self-test failed: %v", err)
	} else {
		log.Printf("sensors: MPU9250 self-test accel dev X=%.2f%% Y=%.2f%% Z=%.2f%%",
			result.AccelDeviation.X, result.AccelDeviation.Y, result.AccelDeviation.Z)
	}

	return &mpuDevice{imu: imu}, nil
}

func (d *mpuDevice) Read() (sample.Raw, error) {
	ax, err := d.imu.GetAccelerationX()
	if err != nil {
		return sample.Raw{}, fmt.Errorf("accel X: %w", err)
	}
	ay, err := d.imu.GetAccelerationY()
	if err != nil {
		return sample.Raw{}, fmt.Errorf("accel Y: %w", err)
	}
	az, err := d.imu.GetAccelerationZ()
	if err != nil {
		return sample.Raw{}, fmt.Errorf("accel Z: %w", err)
	}
	gx, err := d.imu.GetRotationX()
	if err != nil {
		return sample.Raw{}, fmt.Errorf("gyro X: %w", err)
	}
	gy, err := d.imu.GetRotationY()
	if err != nil {
		return sample.Raw{}, fmt.Errorf("gyro Y: %w", err)
	}
	gz, err := d.imu.GetRotationZ()
	if err != nil {
		return sample.Raw{}, fmt.Errorf("gyro Z: %w", err)
	}
	temp, err := d.imu.GetTemperature()
	if err != nil {
		return sample.Raw{}, fmt.Errorf("temperature: %w", err)
	}

	return sample.Raw{
		Ax: float64(ax), Ay: float64(ay), Az: float64(az),
		Gx: float64(gx), Gy: float64(gy), Gz: float64(gz),
		Temp: float64(temp),
	}, nil
}
