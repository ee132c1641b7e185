package discord

import (
	"sync"

	"github.com/rs/zerolog"
)

// State is a step in handling one inbound request.
type State int

const (
	StateReceived State = iota
	StateVerified
	StateDeferredAckSent
	StateResolving
	StateFormatting
	StateDelivering
	StateCompleted
	StateError
)

var stateNames = [...]string{
	"RECEIVED", "VERIFIED", "DEFERRED_ACK_SENT", "RESOLVING",
	"FORMATTING", "DELIVERING", "COMPLETED", "ERROR",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "UNKNOWN"
	}
	return stateNames[s]
}

// Terminal reports whether no further transitions are allowed.
func (s State) Terminal() bool { return s == StateCompleted || s == StateError }

// Tracker follows one request through its states. Transitions only move
// forward; ERROR is reachable from any non-terminal state. Steps may be
// skipped (a scheduled trigger has no deferred acknowledgment).
type Tracker struct {
	mu      sync.Mutex
	current State
	history []State
	log     zerolog.Logger
}

// NewTracker starts a tracker in RECEIVED.
func NewTracker(lg zerolog.Logger) *Tracker {
	return &Tracker{current: StateReceived, history: []State{StateReceived}, log: lg}
}

// Advance moves to next. It returns false and leaves the state unchanged
// when the move is not allowed.
func (t *Tracker) Advance(next State) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current.Terminal() {
		return false
	}
	if next != StateError && next <= t.current {
		return false
	}
	t.log.Debug().Str("from", t.current.String()).Str("to", next.String()).Msg("request state")
	t.current = next
	t.history = append(t.history, next)
	return true
}

// Fail moves to ERROR from any non-terminal state.
func (t *Tracker) Fail(err error) bool {
	ok := t.Advance(StateError)
	if ok && err != nil {
		t.log.Warn().Err(err).Msg("request failed")
	}
	return ok
}

// Current returns the present state.
func (t *Tracker) Current() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// History returns a copy of every state visited.
func (t *Tracker) History() []State {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]State, len(t.history))
	copy(out, t.history)
	return out
}
