// Package vehicle implements the ground-plane motion model of the viewer's car.
//
// The model is pure numeric integration. It never fails: inputs are clamped to
// their valid ranges and a vehicle that leaves the world bounds is put back at
// the origin on the next step.
package vehicle

import (
	"math"

	"github.com/zeusync/carview/internal/core/systems/physics"
)

const (
	DefaultTurningRadius = 75.0
	DefaultMaxSpeed      = 30.0
	DefaultAcceleration  = 12.0
	DefaultBoundsRadius  = 200.0
)

// Config holds the constants of a vehicle. All distances are world units,
// speeds units/s and accelerations units/s².
type Config struct {
	TurningRadius float64 `json:"turning_radius" yaml:"turning_radius" mapstructure:"turning_radius"`
	MaxSpeed      float64 `json:"max_speed" yaml:"max_speed" mapstructure:"max_speed"`
	Acceleration  float64 `json:"acceleration" yaml:"acceleration" mapstructure:"acceleration"`
	BoundsRadius  float64 `json:"bounds_radius" yaml:"bounds_radius" mapstructure:"bounds_radius"`
}

// DefaultConfig returns the stock vehicle.
func DefaultConfig() Config {
	return Config{
		TurningRadius: DefaultTurningRadius,
		MaxSpeed:      DefaultMaxSpeed,
		Acceleration:  DefaultAcceleration,
		BoundsRadius:  DefaultBoundsRadius,
	}
}

// sanitized replaces unusable values with the defaults so the model invariants
// (TurningRadius > 0, a finite speed cap) always hold.
func (c Config) sanitized() Config {
	d := DefaultConfig()
	if !(c.TurningRadius > 0) || math.IsInf(c.TurningRadius, 0) {
		c.TurningRadius = d.TurningRadius
	}
	if !(c.MaxSpeed > 0) || math.IsInf(c.MaxSpeed, 0) {
		c.MaxSpeed = d.MaxSpeed
	}
	if !(c.Acceleration >= 0) || math.IsInf(c.Acceleration, 0) {
		c.Acceleration = d.Acceleration
	}
	if !(c.BoundsRadius > 0) {
		c.BoundsRadius = d.BoundsRadius
	}
	return c
}

// State is the mutable part of the vehicle. Speed is signed: negative values
// drive in reverse.
type State struct {
	Position physics.Vec3 `json:"position"`
	Heading  float64      `json:"heading"` // radians, 0 faces +Z
	Speed    float64      `json:"speed"`
}

// Transform returns the pose the renderer applies to the car mesh.
func (s State) Transform() physics.Transform {
	return physics.Transform{Position: s.Position, Heading: s.Heading}
}

// Step describes what a single Advance call did.
type Step struct {
	State           State
	AngularVelocity float64 // rad/s applied during the step
	Reset           bool    // the vehicle was out of bounds and was put back at the origin
}

// Model owns a vehicle's configuration and state. It is not safe for
// concurrent use; a session advances it from a single tick goroutine.
type Model struct {
	config Config
	state  State
}

// New creates a vehicle parked at the origin facing +Z.
func New(config Config) *Model {
	return &Model{config: config.sanitized()}
}

func (m *Model) Config() Config { return m.config }

func (m *Model) State() State { return m.state }

// SetState replaces the state, clamping the speed to the configured maximum.
// Non-finite components are replaced by zero.
func (m *Model) SetState(s State) {
	if !s.Position.IsFinite() {
		s.Position = physics.Zero3()
	}
	if !isFinite(s.Heading) {
		s.Heading = 0
	}
	if math.IsNaN(s.Speed) {
		s.Speed = 0
	}
	s.Speed = physics.Clamp(s.Speed, -m.config.MaxSpeed, m.config.MaxSpeed)
	m.state = s
}

// Reset parks the vehicle at the origin with zero speed. A finite heading is
// kept.
func (m *Model) Reset() {
	m.state.Position = physics.Zero3()
	m.state.Speed = 0
	if !isFinite(m.state.Heading) {
		m.state.Heading = 0
	}
}

// AngularVelocity returns the yaw rate for a speed and a steering input.
// The turn rate scales with speed, so a stationary car cannot turn in place.
func (m *Model) AngularVelocity(speed, steering float64) float64 {
	return speed / m.config.TurningRadius * clampInput(steering)
}

// OutOfBounds reports whether the vehicle has left the world radius or its
// state is no longer finite.
func (m *Model) OutOfBounds() bool {
	st := m.state
	if !st.Position.IsFinite() || !isFinite(st.Heading) || !isFinite(st.Speed) {
		return true
	}
	return st.Position.Len() > m.config.BoundsRadius
}

// Advance integrates the vehicle over deltaTime seconds.
//
// A non-positive deltaTime is a no-op. If the vehicle is outside the world
// bounds when the step starts it is reset and no integration happens,
// whatever the inputs are.
func (m *Model) Advance(deltaTime, steering, throttle float64) Step {
	if !(deltaTime > 0) || math.IsInf(deltaTime, 0) {
		return Step{State: m.state}
	}

	if m.OutOfBounds() {
		m.Reset()
		return Step{State: m.state, Reset: true}
	}

	steering = clampInput(steering)
	throttle = clampInput(throttle)

	omega := m.AngularVelocity(m.state.Speed, steering)
	m.state.Heading += omega * deltaTime

	target := throttle * m.config.MaxSpeed
	speed := physics.Approach(m.state.Speed, target, m.config.Acceleration*deltaTime)
	m.state.Speed = physics.Clamp(speed, -m.config.MaxSpeed, m.config.MaxSpeed)

	move := physics.HeadingDir(m.state.Heading).Scale(m.state.Speed * deltaTime)
	m.state.Position = m.state.Position.Add(move)

	return Step{State: m.state, AngularVelocity: omega}
}

func isFinite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

func clampInput(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return physics.Clamp(v, -1, 1)
}
