package sim

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"

	"github.com/zeusync/carview/internal/core/camera"
	"github.com/zeusync/carview/internal/core/systems/physics"
)

// VehicleFrame is the car pose the renderer applies to the mesh.
type VehicleFrame struct {
	Position physics.Vec3 `json:"position"`
	Heading  float64      `json:"heading"`
	Speed    float64      `json:"speed"`
}

// Frame is the result of one tick, ready to be streamed to the page.
type Frame struct {
	Seq     uint64       `json:"seq"`
	Time    float64      `json:"time"`
	Car     string       `json:"car,omitempty"`
	Vehicle VehicleFrame `json:"vehicle"`
	Camera  camera.Pose  `json:"camera"`
	Mode    camera.Mode  `json:"mode"`
	Reset   bool         `json:"reset,omitempty"`
	Digest  uint64       `json:"-"`
}

// Changed reports whether f differs from prev in anything the renderer draws.
// A reset frame always counts as changed.
func (f Frame) Changed(prev Frame) bool {
	return f.Reset || f.Digest != prev.Digest
}

// digest hashes the pose fields. Seq and Time are left out so a parked car
// produces identical digests tick after tick.
func (f Frame) digest() uint64 {
	buf := make([]byte, 0, 13*8+len(f.Car))
	for _, v := range [...]float64{
		f.Vehicle.Position.X, f.Vehicle.Position.Y, f.Vehicle.Position.Z,
		f.Vehicle.Heading, f.Vehicle.Speed,
		f.Camera.Position.X, f.Camera.Position.Y, f.Camera.Position.Z,
		f.Camera.Target.X, f.Camera.Target.Y, f.Camera.Target.Z,
	} {
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(v))
	}
	buf = append(buf, byte(f.Mode))
	buf = append(buf, f.Car...)
	return xxhash.Sum64(buf)
}
