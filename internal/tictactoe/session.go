package tictactoe

import (
	"fmt"

	"github.com/rocketscienceinc/tictactoe-engine/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-engine/internal/entity"
)

// Policy picks the opponent's move. It is only called when the board has an empty cell.
type Policy interface {
	ChooseMove(board *entity.Board, opponentMark, playerMark entity.Cell) entity.Move
}

type Options struct {
	BoardSize    int
	StartingTurn Turn
	PlayerMark   entity.Cell

	// Paced holds the opponent's chosen move until ApplyOpponentMove is called, so the
	// caller can show it with a delay.
	Paced bool
}

func DefaultOptions() Options {
	return Options{
		BoardSize:    entity.DefaultBoardSize,
		StartingTurn: PlayerTurn,
		PlayerMark:   entity.X,
	}
}

// Session is one game between the player and the opponent policy. It owns its board
// exclusively. A Session is not safe for concurrent use.
type Session struct {
	board        *entity.Board
	turn         Turn
	outcome      Outcome
	playerMark   entity.Cell
	opponentMark entity.Cell
	paced        bool
	pending      *entity.Move

	policy   Policy
	listener Listener
}

// Start begins a new session. When the opponent moves first its move is chosen before
// Start returns.
func Start(opts Options, policy Policy, listener Listener) (*Session, error) {
	if opts.PlayerMark != entity.X && opts.PlayerMark != entity.O {
		return nil, fmt.Errorf("%w: player mark %q", apperror.ErrInvalidMark, opts.PlayerMark)
	}

	if opts.StartingTurn > OpponentTurn {
		return nil, fmt.Errorf("%w: starting turn %d", apperror.ErrInvalidState, opts.StartingTurn)
	}

	board, err := entity.NewBoard(opts.BoardSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create board: %w", err)
	}

	if listener == nil {
		listener = NopListener{}
	}

	session := &Session{
		board:        board,
		turn:         opts.StartingTurn,
		outcome:      InProgress,
		playerMark:   opts.PlayerMark,
		opponentMark: opts.PlayerMark.Opposite(),
		paced:        opts.Paced,
		policy:       policy,
		listener:     listener,
	}

	session.listener.OnSessionStarted()

	if session.turn == OpponentTurn {
		session.triggerOpponent()
	}

	return session, nil
}

// SubmitPlayerMove places the player's mark and, if the game goes on, lets the opponent
// answer. Moves outside the player's turn fail with apperror.ErrInvalidTurn; board
// errors are returned as they are and leave the session untouched.
func (that *Session) SubmitPlayerMove(row, col int) error {
	if that.outcome.IsTerminal() {
		return fmt.Errorf("%w: %w", apperror.ErrInvalidTurn, apperror.ErrGameFinished)
	}

	if that.turn != PlayerTurn {
		return fmt.Errorf("%w: waiting for the opponent", apperror.ErrInvalidTurn)
	}

	if err := that.board.Place(row, col, that.playerMark); err != nil {
		return err
	}

	if that.settle(that.playerMark, PlayerWin) {
		return nil
	}

	that.turn = OpponentTurn
	that.triggerOpponent()

	return nil
}

// ApplyOpponentMove completes a move held back by a paced session.
func (that *Session) ApplyOpponentMove() error {
	if that.pending == nil {
		if that.outcome.IsTerminal() {
			return fmt.Errorf("%w: %w", apperror.ErrNoPendingMove, apperror.ErrGameFinished)
		}
		return apperror.ErrNoPendingMove
	}

	that.applyOpponent(*that.pending)

	return nil
}

func (that *Session) triggerOpponent() {
	move := that.policy.ChooseMove(that.board.Clone(), that.opponentMark, that.playerMark)

	that.listener.OnOpponentMoveChosen(move.Row, move.Col)

	if that.paced {
		that.pending = &move
		return
	}

	that.applyOpponent(move)
}

func (that *Session) applyOpponent(move entity.Move) {
	if err := that.board.Place(move.Row, move.Col, that.opponentMark); err != nil {
		panic(fmt.Errorf("opponent chose an illegal move %s: %w", move, err))
	}

	that.pending = nil

	if that.settle(that.opponentMark, OpponentWin) {
		return
	}

	that.turn = PlayerTurn
}

// settle ends the session when mark has just won or the board filled up.
func (that *Session) settle(mark entity.Cell, win Outcome) bool {
	switch {
	case entity.HasWin(that.board, mark):
		that.finish(win)
	case that.board.IsFull():
		that.finish(Draw)
	default:
		return false
	}

	return true
}

func (that *Session) finish(outcome Outcome) {
	that.outcome = outcome
	that.listener.OnOutcome(outcome)
}

// Board returns a copy of the current board.
func (that *Session) Board() *entity.Board {
	return that.board.Clone()
}

func (that *Session) Turn() Turn {
	return that.turn
}

func (that *Session) Outcome() Outcome {
	return that.outcome
}

func (that *Session) PlayerMark() entity.Cell {
	return that.playerMark
}

func (that *Session) OpponentMark() entity.Cell {
	return that.opponentMark
}

func (that *Session) Paced() bool {
	return that.paced
}

// PendingMove returns the opponent move waiting for ApplyOpponentMove, if any.
func (that *Session) PendingMove() (entity.Move, bool) {
	if that.pending == nil {
		return entity.Move{}, false
	}
	return *that.pending, true
}
