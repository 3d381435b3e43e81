package status

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/matheus3301/jewelchat/internal/bus"
)

// State represents the socket session state.
type State string

const (
	Uninitialized State = "UNINITIALIZED"
	Connecting    State = "CONNECTING"
	Connected     State = "CONNECTED"
	Disconnected  State = "DISCONNECTED"
)

// validTransitions defines allowed state transitions. Every state may fall
// back to Uninitialized on teardown.
var validTransitions = map[State][]State{
	Uninitialized: {Connecting},
	Connecting:    {Connected, Disconnected, Uninitialized},
	Connected:     {Disconnected, Uninitialized},
	Disconnected:  {Connected, Connecting, Uninitialized},
}

// Machine tracks and enforces session state transitions.
type Machine struct {
	mu      sync.RWMutex
	current State
	bus     *bus.Bus
}

// NewMachine creates a new state machine starting in Uninitialized state.
func NewMachine(b *bus.Bus) *Machine {
	return &Machine{
		current: Uninitialized,
		bus:     b,
	}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Transition attempts to move to a new state. Returns error if transition is invalid.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	allowed := validTransitions[m.current]
	if !slices.Contains(allowed, to) {
		return fmt.Errorf("invalid transition from %s to %s", m.current, to)
	}
	from := m.current
	m.current = to
	if m.bus != nil {
		m.bus.Publish(bus.Event{
			Kind:      bus.KindStatusChanged,
			Timestamp: time.Now(),
			Payload: StatusChange{
				From: from,
				To:   to,
			},
		})
	}
	return nil
}

// Reset forces the machine back to Uninitialized. Used on teardown, where
// the previous state does not matter.
func (m *Machine) Reset() {
	if m.Current() == Uninitialized {
		return
	}
	_ = m.Transition(Uninitialized)
}

// StatusChange is the payload for status change events.
type StatusChange struct {
	From State
	To   State
}
