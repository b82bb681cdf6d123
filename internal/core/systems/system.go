package systems

import "time"

// System is one step of the per-tick pipeline.
type System interface {
	Name() string
	Phase() ExecutionPhase
	Priority() Priority

	Update(deltaTime float64, world World) error
}

// World is the view of the running session a system gets during a tick.
type World interface {
	DeltaTime() float64
	FrameCount() int64
	PublishEvent(eventType string, data any) error
}

// Priority orders systems inside a phase; higher runs first.
type Priority uint16

// System priorities
const (
	PriorityLowest  Priority = 200
	PriorityLow     Priority = 500
	PriorityNormal  Priority = 600
	PriorityHigh    Priority = 1000
	PriorityHighest Priority = 1300
)

// ExecutionPhase defines when a system runs within a tick.
type ExecutionPhase uint8

const (
	PhasePreUpdate ExecutionPhase = iota
	PhaseUpdate
	PhasePostUpdate
	PhaseLateUpdate
)

func (p ExecutionPhase) String() string {
	switch p {
	case PhasePreUpdate:
		return "pre_update"
	case PhaseUpdate:
		return "update"
	case PhasePostUpdate:
		return "post_update"
	case PhaseLateUpdate:
		return "late_update"
	default:
		return "unknown"
	}
}

// Metrics provides runtime metrics for a system
type Metrics struct {
	ExecutionCount       uint64
	TotalExecutionTime   time.Duration
	AverageExecutionTime time.Duration
	MaxExecutionTime     time.Duration
	ErrorCount           uint64
	LastError            error
}

func (m *Metrics) observe(d time.Duration, err error) {
	m.ExecutionCount++
	m.TotalExecutionTime += d
	m.AverageExecutionTime = m.TotalExecutionTime / time.Duration(m.ExecutionCount)
	if d > m.MaxExecutionTime {
		m.MaxExecutionTime = d
	}
	if err != nil {
		m.ErrorCount++
		m.LastError = err
	}
}

// Func adapts a plain function into a System.
type Func struct {
	SystemName     string
	SystemPhase    ExecutionPhase
	SystemPriority Priority
	Fn             func(deltaTime float64, world World) error
}

func (f Func) Name() string                     { return f.SystemName }
func (f Func) Phase() ExecutionPhase            { return f.SystemPhase }
func (f Func) Priority() Priority               { return f.SystemPriority }
func (f Func) Update(dt float64, w World) error { return f.Fn(dt, w) }
