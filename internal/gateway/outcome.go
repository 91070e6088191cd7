package gateway

import "sync"

// OutcomeKind identifies which of the widget's three mutually exclusive
// callbacks fired.
type OutcomeKind string

const (
	OutcomeSuccess OutcomeKind = "success"
	OutcomeFailure OutcomeKind = "failure"
	OutcomeDismiss OutcomeKind = "dismiss"
)

// OutcomeGate admits exactly one outcome per widget invocation. External
// checkout libraries have been observed to call back more than once; the
// gate drops everything after the first claim so the state machine sees a
// single transition per invocation.
type OutcomeGate struct {
	mu       sync.Mutex
	consumed bool
	winner   OutcomeKind
}

// NewOutcomeGate returns a fresh gate. The controller creates one each time
// it hands control to the widget.
func NewOutcomeGate() *OutcomeGate {
	return &OutcomeGate{}
}

// Claim records the outcome if the gate is still open and reports whether
// this caller won. Later claims of any kind return false.
func (g *OutcomeGate) Claim(kind OutcomeKind) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.consumed {
		return false
	}
	g.consumed = true
	g.winner = kind
	return true
}

// Consumed reports whether an outcome has already been admitted.
func (g *OutcomeGate) Consumed() (OutcomeKind, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.winner, g.consumed
}
