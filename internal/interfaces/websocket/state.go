package websocket

import (
	"fmt"
	"sync"
)

// SessionState is a connected client's lifecycle stage (spec §4.E).
type SessionState string

const (
	StateConnecting    SessionState = "connecting"
	StateAuthenticated SessionState = "authenticated"
	StateJoined        SessionState = "joined"
	StateActive        SessionState = "active"
	StateClosing       SessionState = "closing"
	StateClosed        SessionState = "closed"
)

// validSessionTransitions mirrors the teacher's agent state machine
// transition-table idiom (service.StateMachine), generalized to a
// connection's join lifecycle instead of an agent run's tool loop.
var validSessionTransitions = map[SessionState]map[SessionState]bool{
	StateConnecting: {
		StateAuthenticated: true,
		StateClosed:        true, // auth failure, close code 4001
	},
	StateAuthenticated: {
		StateJoined: true,
		StateClosed: true, // not a member (4003) or cannot load key (4002)
	},
	StateJoined: {
		StateActive: true,
		StateClosing: true,
	},
	StateActive: {
		StateClosing: true,
		// StateActive -> StateActive is not a registered transition;
		// callers stay in Active across inbound commands without
		// calling Transition at all.
	},
	StateClosing: {
		StateClosed: true,
	},
	StateClosed: {},
}

// SessionStateMachine is a small thread-safe transition-table state
// machine for a single connection's lifecycle.
type SessionStateMachine struct {
	mu    sync.RWMutex
	state SessionState
}

func NewSessionStateMachine() *SessionStateMachine {
	return &SessionStateMachine{state: StateConnecting}
}

func (sm *SessionStateMachine) State() SessionState {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.state
}

func (sm *SessionStateMachine) Transition(to SessionState) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	allowed, ok := validSessionTransitions[sm.state]
	if !ok || !allowed[to] {
		return fmt.Errorf("websocket: invalid session transition %s -> %s", sm.state, to)
	}
	sm.state = to
	return nil
}

func (sm *SessionStateMachine) IsTerminal() bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.state == StateClosed
}
