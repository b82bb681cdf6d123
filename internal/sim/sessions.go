package sim

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/zeusync/carview/internal/core/events/bus"
	"github.com/zeusync/carview/internal/core/observability/log"
)

// Sessions is a concurrent registry of running sessions keyed by id.
type Sessions struct {
	mu     sync.RWMutex
	items  map[uuid.UUID]*Session
	config Config
	bus    bus.EventBus
	log    log.Log
}

func NewSessions(config Config, eventBus bus.EventBus, logger log.Log) *Sessions {
	if eventBus == nil {
		eventBus = bus.New()
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Sessions{
		items:  make(map[uuid.UUID]*Session),
		config: config,
		bus:    eventBus,
		log:    logger,
	}
}

// Bus returns the bus every session of the registry publishes on.
func (r *Sessions) Bus() bus.EventBus { return r.bus }

// Create registers a new session driving the given car.
func (r *Sessions) Create(car string) *Session {
	s := NewSession(uuid.New(), car, r.config, r.bus, r.log)
	r.mu.Lock()
	r.items[s.ID()] = s
	r.mu.Unlock()
	return s
}

func (r *Sessions) Get(id uuid.UUID) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.items[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s, nil
}

// Remove closes and unregisters a session.
func (r *Sessions) Remove(id uuid.UUID) error {
	r.mu.Lock()
	s, ok := r.items[id]
	delete(r.items, id)
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	s.Close()
	return nil
}

func (r *Sessions) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

// Each calls fn for a snapshot of the registered sessions until fn returns false.
func (r *Sessions) Each(fn func(*Session) bool) {
	r.mu.RLock()
	snapshot := make([]*Session, 0, len(r.items))
	for _, s := range r.items {
		snapshot = append(snapshot, s)
	}
	r.mu.RUnlock()

	for _, s := range snapshot {
		if !fn(s) {
			return
		}
	}
}
