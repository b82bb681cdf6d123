// Package input turns raw page events into per-tick driver controls.
//
// Events are applied to a State as they arrive. Once per tick the session
// calls Poll, which folds everything received since the previous poll into a
// Controls value and clears the per-tick accumulators.
package input

import (
	"fmt"
	"math"
	"strings"

	"github.com/zeusync/carview/internal/core/camera"
	"github.com/zeusync/carview/internal/core/systems/physics"
)

type Kind string

const (
	KindPointerDrag  Kind = "pointer_drag"
	KindTouchDrag    Kind = "touch_drag"
	KindAxisSteer    Kind = "axis_steer"
	KindAxisThrottle Kind = "axis_throttle"
	KindKey          Kind = "key"
	KindToggleFollow Kind = "toggle_follow"
	KindSetMode      Kind = "set_mode"
)

// Event is one raw input event as sent by the page.
type Event struct {
	Kind    Kind    `json:"kind" yaml:"kind"`
	DX      float64 `json:"dx,omitempty" yaml:"dx,omitempty"`
	DY      float64 `json:"dy,omitempty" yaml:"dy,omitempty"`
	Value   float64 `json:"value,omitempty" yaml:"value,omitempty"`
	Key     string  `json:"key,omitempty" yaml:"key,omitempty"`
	Pressed bool    `json:"pressed,omitempty" yaml:"pressed,omitempty"`
	Mode    string  `json:"mode,omitempty" yaml:"mode,omitempty"`
}

// Validate rejects events the State cannot apply.
func (e Event) Validate() error {
	switch e.Kind {
	case KindPointerDrag, KindTouchDrag, KindAxisSteer, KindAxisThrottle, KindToggleFollow:
		return nil
	case KindKey:
		if e.Key == "" {
			return fmt.Errorf("%w: key event without key", ErrInvalidEvent)
		}
		return nil
	case KindSetMode:
		if _, err := camera.ParseMode(e.Mode); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidEvent, err)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidEvent, e.Kind)
	}
}

// Controls is the driver intent for one tick.
type Controls struct {
	Steering float64     `json:"steering"`
	Throttle float64     `json:"throttle"`
	Mode     camera.Mode `json:"mode"`
}

// Config scales drag deltas (pixels) into axis values.
type Config struct {
	DragSensitivity  float64 `json:"drag_sensitivity" yaml:"drag_sensitivity" mapstructure:"drag_sensitivity"`
	TouchSensitivity float64 `json:"touch_sensitivity" yaml:"touch_sensitivity" mapstructure:"touch_sensitivity"`
}

func DefaultConfig() Config {
	return Config{
		DragSensitivity:  0.01,
		TouchSensitivity: 0.02,
	}
}

type keyAxis struct {
	steer, throttle float64
}

// key bindings: arrows and WASD
var bindings = map[string]keyAxis{
	"arrowup":    {throttle: 1},
	"w":          {throttle: 1},
	"arrowdown":  {throttle: -1},
	"s":          {throttle: -1},
	"arrowleft":  {steer: 1},
	"a":          {steer: 1},
	"arrowright": {steer: -1},
	"d":          {steer: -1},
}

// short names for the arrow keys
var keyAliases = map[string]string{
	"up":    "arrowup",
	"down":  "arrowdown",
	"left":  "arrowleft",
	"right": "arrowright",
}

// State accumulates input between polls. It is not safe for concurrent use.
type State struct {
	config Config

	dragSteer, dragThrottle float64
	axisSteer, axisThrottle float64
	held                    map[string]bool
	mode                    camera.Mode
}

func NewState(config Config, mode camera.Mode) *State {
	return &State{
		config: config,
		held:   make(map[string]bool),
		mode:   mode,
	}
}

// Mode returns the currently selected camera mode.
func (s *State) Mode() camera.Mode { return s.mode }

// Apply folds one event into the state. Invalid events are ignored; callers
// that need to report them use Event.Validate first.
func (s *State) Apply(e Event) {
	switch e.Kind {
	case KindPointerDrag:
		s.drag(e.DX, e.DY, s.config.DragSensitivity)
	case KindTouchDrag:
		s.drag(e.DX, e.DY, s.config.TouchSensitivity)
	case KindAxisSteer:
		s.axisSteer = axis(e.Value)
	case KindAxisThrottle:
		s.axisThrottle = axis(e.Value)
	case KindKey:
		k := strings.ToLower(e.Key)
		if alias, ok := keyAliases[k]; ok {
			k = alias
		}
		if _, ok := bindings[k]; !ok {
			return
		}
		if e.Pressed {
			s.held[k] = true
		} else {
			delete(s.held, k)
		}
	case KindToggleFollow:
		s.mode = s.mode.Toggle()
	case KindSetMode:
		if m, err := camera.ParseMode(e.Mode); err == nil {
			s.mode = m
		}
	}
}

// drag right steers right (negative steering), drag up (negative dy) accelerates
func (s *State) drag(dx, dy, sensitivity float64) {
	if math.IsNaN(dx) || math.IsNaN(dy) {
		return
	}
	s.dragSteer += -dx * sensitivity
	s.dragThrottle += -dy * sensitivity
}

// Poll returns the controls for this tick and clears the drag accumulators.
// Held keys and analog axes persist until released or changed.
func (s *State) Poll() Controls {
	var keySteer, keyThrottle float64
	for k := range s.held {
		b := bindings[k]
		keySteer += b.steer
		keyThrottle += b.throttle
	}

	analogSteer := axis(s.axisSteer + s.dragSteer)
	analogThrottle := axis(s.axisThrottle + s.dragThrottle)
	s.dragSteer, s.dragThrottle = 0, 0

	return Controls{
		Steering: stronger(analogSteer, axis(keySteer)),
		Throttle: stronger(analogThrottle, axis(keyThrottle)),
		Mode:     s.mode,
	}
}

// Release drops all held keys and analog axes, e.g. when the page loses focus.
func (s *State) Release() {
	s.held = make(map[string]bool)
	s.axisSteer, s.axisThrottle = 0, 0
	s.dragSteer, s.dragThrottle = 0, 0
}

func axis(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return physics.Clamp(v, -1, 1)
}

// stronger picks the input with the larger magnitude; digital wins ties.
func stronger(analog, digital float64) float64 {
	if math.Abs(analog) > math.Abs(digital) {
		return analog
	}
	return digital
}
