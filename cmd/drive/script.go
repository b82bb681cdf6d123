package main

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/zeusync/carview/internal/core/camera"
	"github.com/zeusync/carview/internal/core/input"
	"github.com/zeusync/carview/internal/sim"
	"gopkg.in/yaml.v3"
)

const defaultDeltaTime = 1.0 / 60

var ErrInvalidScript = errors.New("invalid drive script")

// Script is a scripted drive: each step holds the controls for Repeat ticks.
type Script struct {
	DeltaTime float64 `yaml:"dt"`
	Car       string  `yaml:"car"`
	Steps     []Step  `yaml:"steps"`
}

type Step struct {
	Repeat   int     `yaml:"repeat"`
	Steering float64 `yaml:"steering"`
	Throttle float64 `yaml:"throttle"`
	Mode     string  `yaml:"mode"`
}

func ParseScript(r io.Reader) (*Script, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var s Script
	if err := dec.Decode(&s); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScript, err)
	}
	if s.DeltaTime == 0 {
		s.DeltaTime = defaultDeltaTime
	}
	if !(s.DeltaTime > 0) || math.IsInf(s.DeltaTime, 0) {
		return nil, fmt.Errorf("%w: dt = %v", ErrInvalidScript, s.DeltaTime)
	}
	for i := range s.Steps {
		st := &s.Steps[i]
		if st.Repeat == 0 {
			st.Repeat = 1
		}
		if st.Repeat < 0 {
			return nil, fmt.Errorf("%w: step %d: repeat = %d", ErrInvalidScript, i, st.Repeat)
		}
		if st.Mode != "" {
			if _, err := camera.ParseMode(st.Mode); err != nil {
				return nil, fmt.Errorf("%w: step %d: %v", ErrInvalidScript, i, err)
			}
		}
	}
	return &s, nil
}

// Ticks is the total number of frames the script produces.
func (s *Script) Ticks() int {
	n := 0
	for _, st := range s.Steps {
		n += st.Repeat
	}
	return n
}

// Play feeds the script into a session and hands every frame to emit.
func (s *Script) Play(sess *sim.Session, emit func(sim.Frame) error) error {
	for i, st := range s.Steps {
		events := []input.Event{
			{Kind: input.KindAxisSteer, Value: st.Steering},
			{Kind: input.KindAxisThrottle, Value: st.Throttle},
		}
		if st.Mode != "" {
			events = append(events, input.Event{Kind: input.KindSetMode, Mode: st.Mode})
		}
		for _, e := range events {
			if err := sess.Enqueue(e); err != nil {
				return fmt.Errorf("step %d: %w", i, err)
			}
		}
		for range st.Repeat {
			if err := emit(sess.Tick(s.DeltaTime)); err != nil {
				return err
			}
		}
	}
	return nil
}
