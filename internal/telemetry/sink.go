// Package telemetry ships session frames to external stores.
package telemetry

import (
	"context"
	"errors"

	"github.com/zeusync/carview/internal/sim"
)

// Sink receives the frames of every running session. Record is called from
// session tick goroutines and must not block for long.
type Sink interface {
	Record(ctx context.Context, sessionID string, f sim.Frame) error
	Close() error
}

type nop struct{}

// Nop returns a Sink that drops everything.
func Nop() Sink { return nop{} }

func (nop) Record(context.Context, string, sim.Frame) error { return nil }
func (nop) Close() error                                     { return nil }

type multi []Sink

// Multi fans frames out to several sinks. Every sink is tried; errors are joined.
func Multi(sinks ...Sink) Sink {
	switch len(sinks) {
	case 0:
		return Nop()
	case 1:
		return sinks[0]
	}
	return multi(sinks)
}

func (m multi) Record(ctx context.Context, sessionID string, f sim.Frame) error {
	var errs []error
	for _, s := range m {
		if err := s.Record(ctx, sessionID, f); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type every struct {
	n    uint64
	sink Sink
}

// Every forwards one frame in n, chosen by sequence number. Reset frames are
// always forwarded.
func Every(n int, s Sink) Sink {
	if n <= 1 {
		return s
	}
	return every{n: uint64(n), sink: s}
}

func (e every) Record(ctx context.Context, sessionID string, f sim.Frame) error {
	if f.Seq%e.n != 0 && !f.Reset {
		return nil
	}
	return e.sink.Record(ctx, sessionID, f)
}

func (e every) Close() error { return e.sink.Close() }
