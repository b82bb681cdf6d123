// Package camera computes the viewer camera pose each tick.
//
// In follow mode the camera trails the vehicle and is pulled toward its target
// point by a damped blend. In fixed mode it sits at a constant world position.
// In both modes it looks at the vehicle.
package camera

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/zeusync/carview/internal/core/systems/physics"
)

type Mode uint8

const (
	ModeFollow Mode = iota
	ModeFixed
)

func (m Mode) String() string {
	switch m {
	case ModeFollow:
		return "follow"
	case ModeFixed:
		return "fixed"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

// ParseMode accepts the text forms used in config files and input events.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "follow":
		return ModeFollow, nil
	case "fixed":
		return ModeFixed, nil
	default:
		return ModeFollow, fmt.Errorf("unknown camera mode %q", s)
	}
}

func (m Mode) MarshalJSON() ([]byte, error) { return json.Marshal(m.String()) }

func (m *Mode) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseMode(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Toggle returns the other mode.
func (m Mode) Toggle() Mode {
	if m == ModeFixed {
		return ModeFollow
	}
	return ModeFixed
}

// Smoothing selects the blend factor used in follow mode.
type Smoothing string

const (
	// SmoothingExponential uses 1 - exp(-damping·dt) and converges at the same
	// rate whatever the frame rate.
	SmoothingExponential Smoothing = "exponential"
	// SmoothingLinear uses clamp(damping·dt, 0, 1), the per-frame lerp of the
	// browser viewer. Convergence speed depends on the frame rate.
	SmoothingLinear Smoothing = "linear"
)

const (
	DefaultHeight   = 5.0
	DefaultDistance = 10.0
	DefaultDamping  = 4.0
)

// DefaultFixedOffset is the constant camera position used by fixed mode.
var DefaultFixedOffset = physics.V3(0, 8, -16)

type Config struct {
	Height      float64      `json:"height" yaml:"height" mapstructure:"height"`
	Distance    float64      `json:"distance" yaml:"distance" mapstructure:"distance"`
	Damping     float64      `json:"damping" yaml:"damping" mapstructure:"damping"`
	Smoothing   Smoothing    `json:"smoothing" yaml:"smoothing" mapstructure:"smoothing"`
	FixedOffset physics.Vec3 `json:"fixed_offset" yaml:"fixed_offset" mapstructure:"fixed_offset"`
}

func DefaultConfig() Config {
	return Config{
		Height:      DefaultHeight,
		Distance:    DefaultDistance,
		Damping:     DefaultDamping,
		Smoothing:   SmoothingExponential,
		FixedOffset: DefaultFixedOffset,
	}
}

// FollowOffset is the target offset from the vehicle in follow mode: up by
// Height and back along the world Z axis by Distance.
func (c Config) FollowOffset() physics.Vec3 {
	return physics.V3(0, c.Height, -c.Distance)
}

// Factor returns the blend factor for one follow step, always in [0, 1].
func (c Config) Factor(deltaTime float64) float64 {
	var f float64
	switch c.Smoothing {
	case SmoothingLinear:
		f = c.Damping * deltaTime
	default:
		f = 1 - math.Exp(-c.Damping*deltaTime)
	}
	if math.IsNaN(f) {
		return 0
	}
	return physics.Clamp(f, 0, 1)
}

// Pose is what the renderer applies to its camera: where it is and what it
// looks at.
type Pose struct {
	Position physics.Vec3 `json:"position"`
	Target   physics.Vec3 `json:"target"`
}

// State is the camera's mutable state between ticks.
type State struct {
	Position physics.Vec3 `json:"position"`
	Mode     Mode         `json:"mode"`
}

// Camera owns its configuration and state. Like the vehicle model it is
// driven from a single tick goroutine.
type Camera struct {
	config Config
	state  State
	lookAt physics.Vec3
}

// New creates a camera in follow mode, starting at the fixed offset.
func New(config Config) *Camera {
	if !(config.Damping > 0) {
		config.Damping = DefaultDamping
	}
	if config.Smoothing == "" {
		config.Smoothing = SmoothingExponential
	}
	return &Camera{
		config: config,
		state:  State{Position: config.FixedOffset, Mode: ModeFollow},
	}
}

func (c *Camera) Config() Config { return c.config }

func (c *Camera) State() State { return c.state }

// SetPosition moves the camera without blending.
func (c *Camera) SetPosition(p physics.Vec3) { c.state.Position = p }

// Update moves the camera for one tick and returns the pose to render.
// deltaTime is expected to be non-negative; a negative value is treated as a
// zero-length step by the clamped blend factor. A non-finite vehicle position
// is ignored and the previous pose is returned.
func (c *Camera) Update(deltaTime float64, vehicle physics.Vec3, mode Mode) Pose {
	c.state.Mode = mode
	if !vehicle.IsFinite() {
		return Pose{Position: c.state.Position, Target: c.lookAt}
	}
	c.lookAt = vehicle

	switch mode {
	case ModeFixed:
		c.state.Position = c.config.FixedOffset
	default:
		target := vehicle.Add(c.config.FollowOffset())
		if !c.state.Position.IsFinite() {
			c.state.Position = target
			break
		}
		c.state.Position = c.state.Position.Lerp(target, c.config.Factor(deltaTime))
	}

	return Pose{Position: c.state.Position, Target: vehicle}
}
