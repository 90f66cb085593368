package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rocketscienceinc/tictactoe-engine/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-engine/internal/entity"
	"github.com/rocketscienceinc/tictactoe-engine/internal/pkg"
	"github.com/rocketscienceinc/tictactoe-engine/internal/tictactoe"
	"github.com/rocketscienceinc/tictactoe-engine/internal/usecase"
)

const maxBodyBytes = 1 << 12

var errBadRequest = errors.New("bad request")

type GameHandler interface {
	StartGame(w http.ResponseWriter, r *http.Request)
	GetGame(w http.ResponseWriter, r *http.Request)
	MakeTurn(w http.ResponseWriter, r *http.Request)
	ApplyOpponentMove(w http.ResponseWriter, r *http.Request)
}

type gameManager interface {
	StartGame(ctx context.Context, opts tictactoe.Options) (*usecase.GameView, error)
	GetGame(ctx context.Context, id string) (*usecase.GameView, error)
	MakeTurn(ctx context.Context, id string, row, col int) (*usecase.GameView, error)
	ApplyOpponentMove(ctx context.Context, id string) (*usecase.GameView, error)
}

type gameHandler struct {
	logger *slog.Logger

	gameManager gameManager
	defaults    tictactoe.Options
}

// NewGameHandler serves games over HTTP. defaults fill whatever a start request leaves out.
func NewGameHandler(logger *slog.Logger, gameManager gameManager, defaults tictactoe.Options) GameHandler {
	return &gameHandler{
		logger: logger.With("component", "game_handler"),

		gameManager: gameManager,
		defaults:    defaults,
	}
}

type startGameRequest struct {
	BoardSize    *int            `json:"board_size"`
	StartingTurn *tictactoe.Turn `json:"starting_turn"`
	PlayerMark   *entity.Cell    `json:"player_mark"`
	Paced        *bool           `json:"paced"`
}

func (that startGameRequest) options(defaults tictactoe.Options) tictactoe.Options {
	opts := defaults

	if that.BoardSize != nil {
		opts.BoardSize = *that.BoardSize
	}

	if that.StartingTurn != nil {
		opts.StartingTurn = *that.StartingTurn
	}

	if that.PlayerMark != nil {
		opts.PlayerMark = *that.PlayerMark
	}

	if that.Paced != nil {
		opts.Paced = *that.Paced
	}

	return opts
}

type moveRequest struct {
	Row *int `json:"row"`
	Col *int `json:"col"`
}

func (that *gameHandler) StartGame(w http.ResponseWriter, r *http.Request) {
	var request startGameRequest
	if err := decodeBody(w, r, &request); err != nil && !errors.Is(err, io.EOF) {
		that.writeError(w, r, err)
		return
	}

	view, err := that.gameManager.StartGame(r.Context(), request.options(that.defaults))
	if err != nil {
		that.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, view)
}

func (that *gameHandler) GetGame(w http.ResponseWriter, r *http.Request) {
	id, err := gameID(r)
	if err != nil {
		that.writeError(w, r, err)
		return
	}

	view, err := that.gameManager.GetGame(r.Context(), id)
	if err != nil {
		that.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

func (that *gameHandler) MakeTurn(w http.ResponseWriter, r *http.Request) {
	id, err := gameID(r)
	if err != nil {
		that.writeError(w, r, err)
		return
	}

	var request moveRequest
	if err = decodeBody(w, r, &request); err != nil {
		that.writeError(w, r, err)
		return
	}

	if request.Row == nil || request.Col == nil {
		that.writeError(w, r, fmt.Errorf("%w: row and col are required", errBadRequest))
		return
	}

	view, err := that.gameManager.MakeTurn(r.Context(), id, *request.Row, *request.Col)
	if err != nil {
		that.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

func (that *gameHandler) ApplyOpponentMove(w http.ResponseWriter, r *http.Request) {
	id, err := gameID(r)
	if err != nil {
		that.writeError(w, r, err)
		return
	}

	view, err := that.gameManager.ApplyOpponentMove(r.Context(), id)
	if err != nil {
		that.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

func (that *gameHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	log := that.logger.With("method", r.Method, "path", r.URL.Path)

	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", "error", err)
		writeJSON(w, status, errorResponse{Error: http.StatusText(status)})

		return
	}

	log.Debug("request rejected", "status", status, "error", err)
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

// gameID rejects ids that were never issued before the store is asked about them.
func gameID(r *http.Request) (string, error) {
	id := chi.URLParam(r, "id")
	if !pkg.IsGameID(id) {
		return "", fmt.Errorf("%w: malformed id %q", apperror.ErrGameNotFound, id)
	}

	return id, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body: %w", errBadRequest, err)
		}

		return fmt.Errorf("%w: %w", errBadRequest, err)
	}

	return nil
}
