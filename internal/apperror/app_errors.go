package apperror

import "errors"

var (
	ErrOutOfBounds   = errors.New("coordinates are out of bounds")
	ErrCellOccupied  = errors.New("cell is already occupied")
	ErrInvalidMark   = errors.New("invalid mark")
	ErrInvalidBoard  = errors.New("invalid board")
	ErrInvalidTurn   = errors.New("it's not your turn")
	ErrNoLegalMoves  = errors.New("no legal moves")
	ErrNoPendingMove = errors.New("no pending opponent move")
	ErrGameFinished  = errors.New("game is already finished")
	ErrGameNotFound  = errors.New("game not found")
	ErrInvalidState  = errors.New("invalid session state")
	ErrGameChanged   = errors.New("game was changed by another request")
)
