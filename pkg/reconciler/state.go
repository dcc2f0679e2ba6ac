package reconciler

import (
	"fmt"
	"sync"
)

// State is a stage of a reconciliation.
type State string

// Reconciliation states.
const (
	StateIdle         State = "idle"
	StateExtracting   State = "extracting"
	StateNormalizing  State = "normalizing"
	StateComparing    State = "comparing"
	StateProvisioning State = "provisioning"
	StatePersisting   State = "persisting"
	StateReporting    State = "reporting"
	StateCompleted    State = "completed"
	StateFailed       State = "failed"
)

// String returns the string representation of a state.
func (s State) String() string {
	return string(s)
}

// IsTerminal reports whether no transition leaves s.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed
}

// transitions lists the forward edges. Every non-terminal state may also
// move to StateFailed.
var transitions = map[State][]State{
	StateIdle:         {StateExtracting},
	StateExtracting:   {StateNormalizing},
	StateNormalizing:  {StateComparing},
	StateComparing:    {StateProvisioning},
	StateProvisioning: {StatePersisting, StateReporting},
	StatePersisting:   {StateReporting},
	StateReporting:    {StateCompleted},
}

// CanTransition reports whether a reconciliation may move from one state to
// another.
func CanTransition(from, to State) bool {
	if from.IsTerminal() {
		return false
	}
	if to == StateFailed {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// StateHook observes state changes.
type StateHook func(from, to State)

// machine tracks the state of the execution in progress. It is read by
// State() from other goroutines.
type machine struct {
	mu    sync.RWMutex
	state State
	hook  StateHook
}

func newMachine(hook StateHook) *machine {
	return &machine{state: StateIdle, hook: hook}
}

func (m *machine) current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// reset starts a new execution.
func (m *machine) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = StateIdle
}

func (m *machine) to(next State) error {
	m.mu.Lock()
	from := m.state
	if !CanTransition(from, next) {
		m.mu.Unlock()
		return fmt.Errorf("invalid reconciler transition %s -> %s", from, next)
	}
	m.state = next
	m.mu.Unlock()

	if m.hook != nil {
		m.hook(from, next)
	}
	return nil
}

// fail moves to StateFailed unless the execution already ended.
func (m *machine) fail() {
	if m.current().IsTerminal() {
		return
	}
	_ = m.to(StateFailed)
}
