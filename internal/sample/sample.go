// Package sample defines the raw and fused sample shapes that flow
// through the sensor pipeline, and the wire encoding used by the
// debug TCP fan-out.
package sample

import (
	"encoding/binary"
	"math"
)

// Raw is one IMU reading: 3-axis acceleration in g, 3-axis angular
// rate in deg/s, and die temperature in °C.
type Raw struct {
	Ax   float64 `json:"ax"`
	Ay   float64 `json:"ay"`
	Az   float64 `json:"az"`
	Gx   float64 `json:"gx"`
	Gy   float64 `json:"gy"`
	Gz   float64 `json:"gz"`
	Temp float64 `json:"t"`
}

// Fused augments a Raw reading with the motion tracker's derived
// orientation angles (deg, absolute deviation from the calibrated
// basis) and integrated lateral position (m).
type Fused struct {
	Raw
	AngleX float64 `json:"angle_x"`
	AngleY float64 `json:"angle_y"`
	AngleZ float64 `json:"angle_z"`
	PosX   float64 `json:"pos_x"`
	PosY   float64 `json:"pos_y"`
	PosZ   float64 `json:"pos_z"`
}

// WireFields is the number of float32 values in the debug TCP
// packet: the 7 raw scalars plus the 6 derived ones.
const WireFields = 13

// WireSize is the packet size in bytes (13 little-endian IEEE-754
// binary32 values, no framing).
const WireSize = WireFields * 4

// PackLE encodes a Fused sample as 13 little-endian float32 values in
// the order ax, ay, az, gx, gy, gz, t, angle_x, angle_y, angle_z,
// pos_x, pos_y, pos_z — the same field order and names the websocket
// fan-out uses for its JSON frames.
func PackLE(s Fused) [WireSize]byte {
	var buf [WireSize]byte
	values := [WireFields]float64{
		s.Ax, s.Ay, s.Az,
		s.Gx, s.Gy, s.Gz,
		s.Temp,
		s.AngleX, s.AngleY, s.AngleZ,
		s.PosX, s.PosY, s.PosZ,
	}
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(float32(v)))
	}
	return buf
}
