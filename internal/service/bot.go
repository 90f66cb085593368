package service

import (
	"fmt"
	"strings"

	"github.com/rocketscienceinc/tictactoe-engine/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-engine/internal/entity"
)

// DefaultStrategyRate is the share of heuristic-mode moves that run the win/block search.
const DefaultStrategyRate = 0.5

// Mode selects how the bot picks its moves.
type Mode string

const (
	ModeRandom    Mode = "random"
	ModeHeuristic Mode = "heuristic"
)

func ParseMode(s string) (Mode, error) {
	switch mode := Mode(strings.ToLower(strings.TrimSpace(s))); mode {
	case ModeRandom, ModeHeuristic:
		return mode, nil
	default:
		return "", fmt.Errorf("unknown opponent mode %q", s)
	}
}

// Rand is the random source the bot draws from. *math/rand/v2.Rand satisfies it.
type Rand interface {
	Float64() float64
	IntN(n int) int
}

type BotService interface {
	// ChooseMove picks the opponent's next move. The board must have at least one empty
	// cell; calling it on a full board panics with apperror.ErrNoLegalMoves.
	ChooseMove(board *entity.Board, opponentMark, playerMark entity.Cell) entity.Move
}

type BotOption func(*botService)

// WithStrategyRate sets the probability of running the win/block search in heuristic mode.
func WithStrategyRate(rate float64) BotOption {
	return func(that *botService) {
		that.strategyRate = min(max(rate, 0), 1)
	}
}

type botService struct {
	mode         Mode
	rng          Rand
	strategyRate float64
}

func NewBotService(mode Mode, rng Rand, opts ...BotOption) BotService {
	bot := &botService{
		mode:         mode,
		rng:          rng,
		strategyRate: DefaultStrategyRate,
	}

	for _, opt := range opts {
		opt(bot)
	}

	return bot
}

func (that *botService) ChooseMove(board *entity.Board, opponentMark, playerMark entity.Cell) entity.Move {
	moves := entity.AvailableMoves(board)
	if len(moves) == 0 {
		panic(fmt.Errorf("bot asked to move on a full board: %w", apperror.ErrNoLegalMoves))
	}

	if that.mode != ModeHeuristic || that.rng.Float64() < 1-that.strategyRate {
		return that.randomMove(moves)
	}

	return that.strategicMove(board, moves, opponentMark, playerMark)
}

func (that *botService) randomMove(moves []entity.Move) entity.Move {
	return moves[that.rng.IntN(len(moves))]
}

// strategicMove takes an immediate win if there is one, otherwise blocks the player's
// immediate win, otherwise plays randomly. Ties go to the first move in row-major order.
func (that *botService) strategicMove(board *entity.Board, moves []entity.Move, opponentMark, playerMark entity.Cell) entity.Move {
	scratch := board.Clone()

	for _, move := range moves {
		if entity.WinsWith(scratch, move, opponentMark) {
			return move
		}
	}

	for _, move := range moves {
		if entity.WinsWith(scratch, move, playerMark) {
			return move
		}
	}

	return that.randomMove(moves)
}
