package detector

import (
	"fmt"
	"sync"
)

// LifecycleState is the updater's run state.
type LifecycleState int

const (
	StateIdle LifecycleState = iota
	StateRunning
	StateStopping
)

func (s LifecycleState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type lifecycleEvent string

const (
	eventStart   lifecycleEvent = "start"
	eventStop    lifecycleEvent = "stop"
	eventStopped lifecycleEvent = "stopped"
)

// transitions is the complete table: [from][event] -> to.
var transitions = map[LifecycleState]map[lifecycleEvent]LifecycleState{
	StateIdle:     {eventStart: StateRunning},
	StateRunning:  {eventStop: StateStopping},
	StateStopping: {eventStopped: StateIdle},
}

// transitionError reports an event the current state does not accept.
type transitionError struct {
	from  LifecycleState
	event lifecycleEvent
}

func (e *transitionError) Error() string {
	return fmt.Sprintf("no transition from state %q for event %q", e.from, e.event)
}

type lifecycle struct {
	mu    sync.RWMutex
	state LifecycleState
}

func (l *lifecycle) current() LifecycleState {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

func (l *lifecycle) fire(ev lifecycleEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	to, ok := transitions[l.state][ev]
	if !ok {
		return &transitionError{from: l.state, event: ev}
	}
	l.state = to
	return nil
}
