package systems

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

var (
	ErrSystemExists   = errors.New("system already registered")
	ErrSystemNotFound = errors.New("system not found")
)

// Manager runs registered systems in phase order, then by descending priority.
// Systems with equal phase and priority run in registration order.
//
// A Manager belongs to one session and is driven from its tick goroutine.
type Manager struct {
	entries []*entry
	seq     int
}

type entry struct {
	system  System
	seq     int
	metrics Metrics
}

func NewManager() *Manager {
	return &Manager{}
}

func (m *Manager) Register(s System) error {
	if _, ok := m.find(s.Name()); ok {
		return fmt.Errorf("%w: %s", ErrSystemExists, s.Name())
	}
	m.seq++
	m.entries = append(m.entries, &entry{system: s, seq: m.seq})
	sort.SliceStable(m.entries, func(i, j int) bool {
		a, b := m.entries[i], m.entries[j]
		if a.system.Phase() != b.system.Phase() {
			return a.system.Phase() < b.system.Phase()
		}
		if a.system.Priority() != b.system.Priority() {
			return a.system.Priority() > b.system.Priority()
		}
		return a.seq < b.seq
	})
	return nil
}

func (m *Manager) Unregister(name string) error {
	i, ok := m.find(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrSystemNotFound, name)
	}
	m.entries = append(m.entries[:i], m.entries[i+1:]...)
	return nil
}

func (m *Manager) HasSystem(name string) bool {
	_, ok := m.find(name)
	return ok
}

// Update runs every system once. A failing system does not stop the tick:
// the remaining systems still run and all errors are joined.
func (m *Manager) Update(deltaTime float64, world World) error {
	var errs []error
	for _, e := range m.entries {
		start := time.Now()
		err := e.system.Update(deltaTime, world)
		e.metrics.observe(time.Since(start), err)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", e.system.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// ExecutionOrder returns system names in the order Update runs them.
func (m *Manager) ExecutionOrder() []string {
	out := make([]string, len(m.entries))
	for i, e := range m.entries {
		out[i] = e.system.Name()
	}
	return out
}

func (m *Manager) SystemMetrics(name string) (Metrics, bool) {
	i, ok := m.find(name)
	if !ok {
		return Metrics{}, false
	}
	return m.entries[i].metrics, true
}

func (m *Manager) find(name string) (int, bool) {
	for i, e := range m.entries {
		if e.system.Name() == name {
			return i, true
		}
	}
	return -1, false
}
