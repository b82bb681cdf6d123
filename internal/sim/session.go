// Package sim runs one simulated car and its camera as a session.
//
// A session is ticked from a single goroutine. Each tick runs three systems in
// a fixed order: input polling, vehicle motion, then the camera. The camera
// therefore always follows the position the vehicle reached in the same tick.
package sim

import (
	"sync"

	"github.com/google/uuid"

	"github.com/zeusync/carview/internal/core/camera"
	"github.com/zeusync/carview/internal/core/events/bus"
	"github.com/zeusync/carview/internal/core/input"
	"github.com/zeusync/carview/internal/core/observability/log"
	"github.com/zeusync/carview/internal/core/systems"
	"github.com/zeusync/carview/internal/core/systems/physics"
	"github.com/zeusync/carview/internal/core/vehicle"
)

// Bus event types published by sessions.
const (
	EventVehicleReset      = "vehicle.reset"
	EventCameraModeChanged = "camera.mode_changed"
)

// DefaultInputQueueSize bounds the events buffered between two ticks.
const DefaultInputQueueSize = 256

type Config struct {
	Vehicle        vehicle.Config
	Camera         camera.Config
	Input          input.Config
	Mode           camera.Mode
	InputQueueSize int
}

func DefaultConfig() Config {
	return Config{
		Vehicle:        vehicle.DefaultConfig(),
		Camera:         camera.DefaultConfig(),
		Input:          input.DefaultConfig(),
		Mode:           camera.ModeFollow,
		InputQueueSize: DefaultInputQueueSize,
	}
}

// ResetEvent is the payload of EventVehicleReset.
type ResetEvent struct {
	SessionID string       `json:"session_id"`
	Seq       uint64       `json:"seq"`
	From      physics.Vec3 `json:"from"`
}

// ModeChangedEvent is the payload of EventCameraModeChanged.
type ModeChangedEvent struct {
	SessionID string      `json:"session_id"`
	From      camera.Mode `json:"from"`
	To        camera.Mode `json:"to"`
}

// Session owns the vehicle, camera and input state of one viewer.
//
// Enqueue may be called from any goroutine. Tick and the accessors must be
// called from the goroutine that drives the session.
type Session struct {
	id     uuid.UUID
	car    string
	config Config

	vehicle *vehicle.Model
	camera  *camera.Camera
	input   *input.State
	systems *systems.Manager
	bus     bus.EventBus
	log     log.Log

	mu      sync.Mutex
	pending []input.Event
	closed  bool

	// per tick
	frameCount int64
	clock      float64
	deltaTime  float64
	controls   input.Controls
	step       vehicle.Step
	pose       camera.Pose
	last       Frame
}

var _ systems.World = (*Session)(nil)

// NewSession builds a session with the vehicle parked at the origin. A nil
// bus gets a private one.
func NewSession(id uuid.UUID, car string, config Config, eventBus bus.EventBus, logger log.Log) *Session {
	if config.InputQueueSize <= 0 {
		config.InputQueueSize = DefaultInputQueueSize
	}
	if eventBus == nil {
		eventBus = bus.New()
	}
	if logger == nil {
		logger = log.Nop()
	}

	s := &Session{
		id:      id,
		car:     car,
		config:  config,
		vehicle: vehicle.New(config.Vehicle),
		camera:  camera.New(config.Camera),
		input:   input.NewState(config.Input, config.Mode),
		systems: systems.NewManager(),
		bus:     eventBus,
		log:     logger.With(log.String("component", "session"), log.String("session_id", id.String())),
	}
	s.controls.Mode = config.Mode

	for _, sys := range []systems.System{
		systems.Func{SystemName: "input", SystemPhase: systems.PhasePreUpdate, SystemPriority: systems.PriorityNormal, Fn: s.pollInput},
		systems.Func{SystemName: "motion", SystemPhase: systems.PhaseUpdate, SystemPriority: systems.PriorityNormal, Fn: s.advanceVehicle},
		systems.Func{SystemName: "camera", SystemPhase: systems.PhaseLateUpdate, SystemPriority: systems.PriorityNormal, Fn: s.updateCamera},
	} {
		if err := s.systems.Register(sys); err != nil {
			panic(err)
		}
	}
	return s
}

func (s *Session) ID() uuid.UUID { return s.id }

func (s *Session) Car() string { return s.car }

// Vehicle exposes the motion model, for tools that place the car directly.
func (s *Session) Vehicle() *vehicle.Model { return s.vehicle }

func (s *Session) Camera() *camera.Camera { return s.camera }

// Systems exposes the tick pipeline so hosts can add their own systems.
func (s *Session) Systems() *systems.Manager { return s.systems }

// LastFrame returns the frame produced by the most recent tick.
func (s *Session) LastFrame() Frame { return s.last }

// Enqueue validates an input event and buffers it for the next tick.
func (s *Session) Enqueue(e input.Event) error {
	if err := e.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if len(s.pending) >= s.config.InputQueueSize {
		return ErrInputQueueFull
	}
	s.pending = append(s.pending, e)
	return nil
}

// Close rejects further input.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.pending = nil
	s.mu.Unlock()
}

// Tick advances the session by deltaTime seconds and returns the new frame.
// System errors come from bus handlers; they are logged and the tick result
// stands.
func (s *Session) Tick(deltaTime float64) Frame {
	s.deltaTime = deltaTime
	s.frameCount++
	if deltaTime > 0 {
		s.clock += deltaTime
	}

	if err := s.systems.Update(deltaTime, s); err != nil {
		s.log.Warn("tick systems failed", log.Int64("frame", s.frameCount), log.Error(err))
	}

	st := s.step.State
	pose := st.Transform()
	f := Frame{
		Seq:  uint64(s.frameCount),
		Time: s.clock,
		Car:  s.car,
		Vehicle: VehicleFrame{
			Position: pose.Position,
			Heading:  physics.WrapAngle(pose.Heading),
			Speed:    st.Speed,
		},
		Camera: s.pose,
		Mode:   s.controls.Mode,
		Reset:  s.step.Reset,
	}
	f.Digest = f.digest()
	s.last = f
	return f
}

func (s *Session) DeltaTime() float64 { return s.deltaTime }

func (s *Session) FrameCount() int64 { return s.frameCount }

func (s *Session) PublishEvent(eventType string, data any) error {
	return s.bus.Publish(bus.NewEvent(eventType, s.id.String(), data))
}

func (s *Session) pollInput(float64, systems.World) error {
	s.mu.Lock()
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	for _, e := range pending {
		s.input.Apply(e)
	}

	prev := s.controls.Mode
	s.controls = s.input.Poll()
	if s.controls.Mode != prev {
		return s.PublishEvent(EventCameraModeChanged, ModeChangedEvent{
			SessionID: s.id.String(),
			From:      prev,
			To:        s.controls.Mode,
		})
	}
	return nil
}

func (s *Session) advanceVehicle(deltaTime float64, _ systems.World) error {
	from := s.vehicle.State().Position
	s.step = s.vehicle.Advance(deltaTime, s.controls.Steering, s.controls.Throttle)
	if s.step.Reset {
		s.log.Debug("vehicle left bounds", log.Float64("distance", from.Len()))
		return s.PublishEvent(EventVehicleReset, ResetEvent{
			SessionID: s.id.String(),
			Seq:       uint64(s.frameCount),
			From:      from,
		})
	}
	return nil
}

func (s *Session) updateCamera(deltaTime float64, _ systems.World) error {
	s.pose = s.camera.Update(deltaTime, s.step.State.Position, s.controls.Mode)
	return nil
}
