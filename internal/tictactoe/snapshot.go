package tictactoe

import (
	"fmt"

	"github.com/rocketscienceinc/tictactoe-engine/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-engine/internal/entity"
)

// State is a serialisable copy of a session. Revision belongs to the store:
// Snapshot leaves it zero and Restore ignores it.
type State struct {
	Size       int           `json:"size"`
	Cells      []entity.Cell `json:"cells"`
	Turn       Turn          `json:"turn"`
	Outcome    Outcome       `json:"outcome"`
	PlayerMark entity.Cell   `json:"player_mark"`
	Paced      bool          `json:"paced,omitempty"`
	Pending    *entity.Move  `json:"pending,omitempty"`
	Revision   int64         `json:"revision,omitempty"`
}

func (that *Session) Snapshot() State {
	state := State{
		Size:       that.board.Size(),
		Cells:      that.board.Cells(),
		Turn:       that.turn,
		Outcome:    that.outcome,
		PlayerMark: that.playerMark,
		Paced:      that.paced,
	}

	if that.pending != nil {
		pending := *that.pending
		state.Pending = &pending
	}

	return state
}

// Restore rebuilds a session from a snapshot without emitting any events.
func Restore(state State, policy Policy, listener Listener) (*Session, error) {
	board, err := entity.BoardFromCells(state.Size, state.Cells)
	if err != nil {
		return nil, fmt.Errorf("failed to restore board: %w", err)
	}

	if state.PlayerMark != entity.X && state.PlayerMark != entity.O {
		return nil, fmt.Errorf("%w: player mark %q", apperror.ErrInvalidMark, state.PlayerMark)
	}

	if err = validateState(board, state); err != nil {
		return nil, err
	}

	if listener == nil {
		listener = NopListener{}
	}

	session := &Session{
		board:        board,
		turn:         state.Turn,
		outcome:      state.Outcome,
		playerMark:   state.PlayerMark,
		opponentMark: state.PlayerMark.Opposite(),
		paced:        state.Paced,
		policy:       policy,
		listener:     listener,
	}

	if state.Pending != nil {
		pending := *state.Pending
		session.pending = &pending
	}

	return session, nil
}

// validateState rejects snapshots the session could never have produced.
func validateState(board *entity.Board, state State) error {
	if state.Turn > OpponentTurn || state.Outcome > Draw {
		return fmt.Errorf("%w: turn %d outcome %d", apperror.ErrInvalidState, state.Turn, state.Outcome)
	}

	xCount, oCount := countMarks(board)
	if xCount-oCount > 1 || oCount-xCount > 1 {
		return fmt.Errorf("%w: %d X against %d O", apperror.ErrInvalidState, xCount, oCount)
	}

	if state.Outcome.IsTerminal() {
		if state.Pending != nil {
			return fmt.Errorf("%w: pending move after the game ended", apperror.ErrInvalidState)
		}
		return nil
	}

	if entity.HasWin(board, entity.X) || entity.HasWin(board, entity.O) || board.IsFull() {
		return fmt.Errorf("%w: game in progress on a decided board", apperror.ErrInvalidState)
	}

	if state.Pending == nil {
		if state.Turn == OpponentTurn {
			return fmt.Errorf("%w: opponent to move without a chosen move", apperror.ErrInvalidState)
		}
		return nil
	}

	if !state.Paced || state.Turn != OpponentTurn {
		return fmt.Errorf("%w: unexpected pending move", apperror.ErrInvalidState)
	}

	cell, err := board.At(state.Pending.Row, state.Pending.Col)
	if err != nil {
		return fmt.Errorf("%w: pending move: %w", apperror.ErrInvalidState, err)
	}

	if cell != entity.Empty {
		return fmt.Errorf("%w: pending move on occupied cell %s", apperror.ErrInvalidState, state.Pending)
	}

	return nil
}

func countMarks(board *entity.Board) (xCount, oCount int) {
	for _, cell := range board.Cells() {
		switch cell {
		case entity.X:
			xCount++
		case entity.O:
			oCount++
		}
	}

	return xCount, oCount
}
