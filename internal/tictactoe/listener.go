package tictactoe

// Listener receives the events a session emits. Calls happen synchronously on the
// goroutine driving the session.
type Listener interface {
	OnSessionStarted()
	// OnOpponentMoveChosen fires as soon as the opponent has picked a cell, before
	// the move is applied when the session is paced.
	OnOpponentMoveChosen(row, col int)
	// OnOutcome fires once, when the session reaches a terminal outcome.
	OnOutcome(outcome Outcome)
}

// NopListener ignores every event.
type NopListener struct{}

func (NopListener) OnSessionStarted() {}
func (NopListener) OnOpponentMoveChosen(_, _ int) {}
func (NopListener) OnOutcome(_ Outcome) {}

// ListenerFuncs adapts plain functions to Listener. Nil fields are skipped.
type ListenerFuncs struct {
	SessionStarted     func()
	OpponentMoveChosen func(row, col int)
	Outcome            func(outcome Outcome)
}

func (that ListenerFuncs) OnSessionStarted() {
	if that.SessionStarted != nil {
		that.SessionStarted()
	}
}

func (that ListenerFuncs) OnOpponentMoveChosen(row, col int) {
	if that.OpponentMoveChosen != nil {
		that.OpponentMoveChosen(row, col)
	}
}

func (that ListenerFuncs) OnOutcome(outcome Outcome) {
	if that.Outcome != nil {
		that.Outcome(outcome)
	}
}
