package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rocketscienceinc/tictactoe-engine/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-engine/internal/entity"
	"github.com/rocketscienceinc/tictactoe-engine/internal/pkg"
	"github.com/rocketscienceinc/tictactoe-engine/internal/tictactoe"
)

type sessionRepo interface {
	CreateOrUpdate(ctx context.Context, id string, state tictactoe.State) error
	GetByID(ctx context.Context, id string) (tictactoe.State, error)
	CompareAndUpdate(ctx context.Context, id string, revision int64, state tictactoe.State) error
	CompareAndDelete(ctx context.Context, id string, revision int64) error
}

// PolicyFactory builds the opponent for one request.
type PolicyFactory func() tictactoe.Policy

// GameView is what a caller sees of a game after an operation.
type GameView struct {
	ID               string            `json:"id"`
	Size             int               `json:"size"`
	Board            [][]string        `json:"board"`
	Turn             tictactoe.Turn    `json:"turn"`
	Outcome          tictactoe.Outcome `json:"outcome"`
	PlayerMark       entity.Cell       `json:"player_mark"`
	OpponentMark     entity.Cell       `json:"opponent_mark"`
	Paced            bool              `json:"paced"`
	LastOpponentMove *entity.Move      `json:"last_opponent_move,omitempty"`
	PendingMove      *entity.Move      `json:"pending_move,omitempty"`
}

type GameManager struct {
	logger *slog.Logger

	sessionRepo sessionRepo
	newPolicy   PolicyFactory
}

func NewGameManager(logger *slog.Logger, sessionRepo sessionRepo, newPolicy PolicyFactory) *GameManager {
	return &GameManager{
		logger: logger.With("component", "game_manager"),

		sessionRepo: sessionRepo,
		newPolicy:   newPolicy,
	}
}

func (that *GameManager) StartGame(ctx context.Context, opts tictactoe.Options) (*GameView, error) {
	log := that.logger.With("method", "StartGame")

	recorder := &moveRecorder{}

	session, err := tictactoe.Start(opts, that.newPolicy(), recorder)
	if err != nil {
		return nil, fmt.Errorf("failed to start game: %w", err)
	}

	gameID := pkg.GenerateGameID()
	log.Info("game started", "game_id", gameID, "size", opts.BoardSize, "starting_turn", opts.StartingTurn)

	if session.Outcome().IsTerminal() {
		log.Info("game finished on the first move", "game_id", gameID, "outcome", session.Outcome())

		return newGameView(gameID, session, recorder), nil
	}

	if err = that.sessionRepo.CreateOrUpdate(ctx, gameID, session.Snapshot()); err != nil {
		return nil, fmt.Errorf("failed to save game: %w", err)
	}

	return newGameView(gameID, session, recorder), nil
}

func (that *GameManager) GetGame(ctx context.Context, id string) (*GameView, error) {
	recorder := &moveRecorder{}

	session, _, err := that.restoreGame(ctx, id, recorder)
	if err != nil {
		return nil, err
	}

	return newGameView(id, session, recorder), nil
}

// MakeTurn plays the player's move and, unless the game is paced, the opponent's answer.
func (that *GameManager) MakeTurn(ctx context.Context, id string, row, col int) (*GameView, error) {
	log := that.logger.With("method", "MakeTurn", "game_id", id)

	recorder := &moveRecorder{}

	session, revision, err := that.restoreGame(ctx, id, recorder)
	if err != nil {
		return nil, err
	}

	if err = session.SubmitPlayerMove(row, col); err != nil {
		log.Debug("move rejected", "row", row, "col", col, "error", err)

		return nil, fmt.Errorf("failed make turn: %w", err)
	}

	return that.saveGame(ctx, id, revision, session, recorder)
}

// ApplyOpponentMove completes the opponent move a paced game is holding.
func (that *GameManager) ApplyOpponentMove(ctx context.Context, id string) (*GameView, error) {
	recorder := &moveRecorder{}

	session, revision, err := that.restoreGame(ctx, id, recorder)
	if err != nil {
		return nil, err
	}

	pending, _ := session.PendingMove()

	if err = session.ApplyOpponentMove(); err != nil {
		return nil, fmt.Errorf("failed to apply opponent move: %w", err)
	}

	recorder.last = &pending

	return that.saveGame(ctx, id, revision, session, recorder)
}

// restoreGame also returns the stored revision the session was read at.
func (that *GameManager) restoreGame(
	ctx context.Context,
	id string,
	recorder *moveRecorder,
) (*tictactoe.Session, int64, error) {
	state, err := that.sessionRepo.GetByID(ctx, id)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get game: %w", err)
	}

	session, err := tictactoe.Restore(state, that.newPolicy(), recorder)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: failed to restore game %s: %w", apperror.ErrInvalidState, id, err)
	}

	return session, state.Revision, nil
}

// saveGame writes the session back only if nobody else has since the read at revision.
// A finished game is deleted instead.
func (that *GameManager) saveGame(
	ctx context.Context,
	id string,
	revision int64,
	session *tictactoe.Session,
	recorder *moveRecorder,
) (*GameView, error) {
	view := newGameView(id, session, recorder)

	if session.Outcome().IsTerminal() {
		if err := that.deleteGame(ctx, id, revision, session.Outcome()); err != nil {
			return nil, err
		}

		return view, nil
	}

	if err := that.sessionRepo.CompareAndUpdate(ctx, id, revision, session.Snapshot()); err != nil {
		return nil, that.saveError("failed to update game", err)
	}

	return view, nil
}

// deleteGame only fails when another request got there first; storage errors are logged.
func (that *GameManager) deleteGame(ctx context.Context, id string, revision int64, outcome tictactoe.Outcome) error {
	log := that.logger.With("method", "deleteGame", "game_id", id)

	err := that.sessionRepo.CompareAndDelete(ctx, id, revision)
	if errors.Is(err, apperror.ErrGameChanged) {
		return that.saveError("failed to finish game", err)
	}

	if err != nil {
		log.Error("failed to delete game", "error", err)
	}

	log.Info("game finished", "outcome", outcome)

	return nil
}

// saveError reports a lost race as a turn conflict.
func (that *GameManager) saveError(msg string, err error) error {
	if errors.Is(err, apperror.ErrGameChanged) {
		that.logger.Warn("concurrent update rejected", "error", err)

		return fmt.Errorf("%w: %s: %w", apperror.ErrInvalidTurn, msg, err)
	}

	return fmt.Errorf("%s: %w", msg, err)
}

// moveRecorder remembers the last opponent move chosen during one operation.
type moveRecorder struct {
	tictactoe.NopListener

	last *entity.Move
}

func (that *moveRecorder) OnOpponentMoveChosen(row, col int) {
	that.last = &entity.Move{Row: row, Col: col}
}

func newGameView(id string, session *tictactoe.Session, recorder *moveRecorder) *GameView {
	board := session.Board()

	view := &GameView{
		ID:               id,
		Size:             board.Size(),
		Board:            board.Rows(),
		Turn:             session.Turn(),
		Outcome:          session.Outcome(),
		PlayerMark:       session.PlayerMark(),
		OpponentMark:     session.OpponentMark(),
		Paced:            session.Paced(),
		LastOpponentMove: recorder.last,
	}

	if pending, ok := session.PendingMove(); ok {
		view.PendingMove = &pending
	}

	return view
}
