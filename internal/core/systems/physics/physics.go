// Package physics holds the small value types shared by the motion model, the
// follow camera and the wire frames: a 3D vector and a ground-plane transform.
//
// World axes follow the renderer's convention: Y is up and the vehicle drives on
// the X/Z plane.
package physics

import "math"

// Vec3 is a 3D vector in world units.
type Vec3 struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
}

// V3 creates a new Vec3.
func V3(x, y, z float64) Vec3 { return Vec3{X: x, Y: y, Z: z} }

// Zero3 returns the origin.
func Zero3() Vec3 { return Vec3{} }

func (a Vec3) Add(b Vec3) Vec3 { return Vec3{a.X + b.X, a.Y + b.Y, a.Z + b.Z} }

func (a Vec3) Sub(b Vec3) Vec3 { return Vec3{a.X - b.X, a.Y - b.Y, a.Z - b.Z} }

func (a Vec3) Scale(s float64) Vec3 { return Vec3{a.X * s, a.Y * s, a.Z * s} }

func (a Vec3) Dot(b Vec3) float64 { return a.X*b.X + a.Y*b.Y + a.Z*b.Z }

// Len returns the magnitude of the vector.
func (a Vec3) Len() float64 { return math.Sqrt(a.Dot(a)) }

// Normalize returns the unit vector, or zero for a zero-length input.
func (a Vec3) Normalize() Vec3 {
	l := a.Len()
	if l == 0 {
		return Vec3{}
	}
	return a.Scale(1 / l)
}

// Lerp blends from a toward b by t. t is not clamped.
func (a Vec3) Lerp(b Vec3, t float64) Vec3 {
	return a.Add(b.Sub(a).Scale(t))
}

// DistanceTo returns |b - a|.
func (a Vec3) DistanceTo(b Vec3) float64 { return b.Sub(a).Len() }

// IsFinite reports whether no component is NaN or infinite.
func (a Vec3) IsFinite() bool {
	return finite(a.X) && finite(a.Y) && finite(a.Z)
}

// HeadingDir returns the unit ground-plane direction for a yaw angle.
// Heading 0 faces +Z; positive heading rotates toward +X.
func HeadingDir(heading float64) Vec3 {
	return Vec3{X: math.Sin(heading), Z: math.Cos(heading)}
}

// Transform is a rigid body pose constrained to the ground plane.
type Transform struct {
	Position Vec3    `json:"position"`
	Heading  float64 `json:"heading"` // radians
}

// Forward returns the unit direction the transform faces.
func (t Transform) Forward() Vec3 { return HeadingDir(t.Heading) }

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Approach moves cur toward target by at most maxDelta without overshooting.
func Approach(cur, target, maxDelta float64) float64 {
	if cur < target {
		cur += maxDelta
		if cur > target {
			cur = target
		}
		return cur
	}
	if cur > target {
		cur -= maxDelta
		if cur < target {
			cur = target
		}
	}
	return cur
}

// WrapAngle normalises an angle to (-π, π].
func WrapAngle(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a <= -math.Pi {
		a += 2 * math.Pi
	} else if a > math.Pi {
		a -= 2 * math.Pi
	}
	return a
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
