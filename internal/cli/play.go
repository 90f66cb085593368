package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"

	"github.com/rocketscienceinc/tictactoe-engine/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-engine/internal/config"
	"github.com/rocketscienceinc/tictactoe-engine/internal/entity"
	"github.com/rocketscienceinc/tictactoe-engine/internal/service"
	"github.com/rocketscienceinc/tictactoe-engine/internal/tictactoe"
)

const spinnerCharSet = 14

var errBadInput = errors.New("enter a move as: row col")

type gameFlags struct {
	size  int
	first string
	mark  string
	mode  string
	seed  uint64
}

func (that *gameFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&that.size, "size", entity.DefaultBoardSize, "Board size")
	cmd.Flags().StringVar(&that.first, "first", "player", "Who moves first: player or opponent")
	cmd.Flags().StringVar(&that.mark, "mark", "X", "Your mark: X or O")
	cmd.Flags().StringVar(&that.mode, "mode", string(service.ModeHeuristic), "Opponent mode: random or heuristic")
	cmd.Flags().Uint64Var(&that.seed, "seed", 0, "Random seed, 0 picks one")
}

// apply overrides the configured game settings with the flags the user set.
func (that *gameFlags) apply(cmd *cobra.Command, game config.Game) config.Game {
	if cmd.Flags().Changed("size") {
		game.BoardSize = that.size
	}

	if cmd.Flags().Changed("first") {
		game.StartingTurn = that.first
	}

	if cmd.Flags().Changed("mark") {
		game.PlayerMark = that.mark
	}

	if cmd.Flags().Changed("mode") {
		game.OpponentMode = that.mode
	}

	return game
}

func Play(opts *options) *cobra.Command {
	flags := &gameFlags{}

	cmd := &cobra.Command{
		Use:   "play",
		Short: "Play a game in the terminal",
		Long: heredoc.Doc(`play starts a game against the opponent in the terminal.

			Enter moves as "row col", counting from 0. Type q to quit.
			The opponent takes think-delay from the config before its move lands.`),
		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, _ []string) error {
			game := flags.apply(cmd, opts.conf.Game)

			sessionOpts, err := game.SessionOptions()
			if err != nil {
				return err
			}

			mode, botOpts, err := game.BotOptions()
			if err != nil {
				return err
			}

			sessionOpts.Paced = true

			term := &terminalGame{
				logger: opts.logger.With("component", "play"),
				in:     bufio.NewScanner(cmd.InOrStdin()),
				out:    cmd.OutOrStdout(),
				delay:  game.ThinkDelay,
			}

			return term.play(sessionOpts, service.NewBotService(mode, service.NewRand(flags.seed), botOpts...))
		},
	}

	flags.register(cmd)

	return cmd
}

type terminalGame struct {
	logger *slog.Logger
	in     *bufio.Scanner
	out    io.Writer
	delay  time.Duration
}

func (that *terminalGame) play(opts tictactoe.Options, policy tictactoe.Policy) error {
	listener := tictactoe.ListenerFuncs{
		OpponentMoveChosen: func(row, col int) {
			that.logger.Debug("opponent chose", "row", row, "col", col)
		},
		Outcome: func(outcome tictactoe.Outcome) {
			that.logger.Info("game over", "outcome", outcome)
		},
	}

	session, err := tictactoe.Start(opts, policy, listener)
	if err != nil {
		return fmt.Errorf("failed to start game: %w", err)
	}

	for {
		if _, ok := session.PendingMove(); ok {
			if err = that.opponentMove(session); err != nil {
				return err
			}
		}

		if outcome := session.Outcome(); outcome.IsTerminal() {
			fmt.Fprintf(that.out, "%s%s\n", session.Board(), outcomeMessage(outcome))
			return nil
		}

		fmt.Fprintf(that.out, "%syour move (%s): ", session.Board(), session.PlayerMark())

		move, err := that.readMove()
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(that.out, "bye")
			return nil
		}

		if errors.Is(err, errBadInput) {
			fmt.Fprintln(that.out, err)
			continue
		}

		if err != nil {
			return err
		}

		if err = session.SubmitPlayerMove(move.Row, move.Col); err != nil {
			if !isRejectedMove(err) {
				return fmt.Errorf("failed to play %s: %w", move, err)
			}

			fmt.Fprintf(that.out, "can't play %s: %v\n", move, err)
		}
	}
}

func (that *terminalGame) opponentMove(session *tictactoe.Session) error {
	move, _ := session.PendingMove()

	if that.delay > 0 {
		s := spinner.New(spinner.CharSets[spinnerCharSet], 100*time.Millisecond, spinner.WithWriter(that.out))
		s.Suffix = " opponent is thinking"
		s.Start()
		time.Sleep(that.delay)
		s.Stop()
	}

	if err := session.ApplyOpponentMove(); err != nil {
		return fmt.Errorf("failed to apply opponent move: %w", err)
	}

	fmt.Fprintf(that.out, "opponent plays %s\n", move)

	return nil
}

// readMove returns io.EOF when input ends or the user quits.
func (that *terminalGame) readMove() (entity.Move, error) {
	if !that.in.Scan() {
		if err := that.in.Err(); err != nil {
			return entity.Move{}, fmt.Errorf("failed to read input: %w", err)
		}

		return entity.Move{}, io.EOF
	}

	return parseMove(that.in.Text())
}

func parseMove(line string) (entity.Move, error) {
	fields := strings.FieldsFunc(line, func(r rune) bool {
		return r == ' ' || r == ',' || r == '\t'
	})

	if len(fields) == 1 && (fields[0] == "q" || fields[0] == "quit") {
		return entity.Move{}, io.EOF
	}

	if len(fields) != 2 {
		return entity.Move{}, errBadInput
	}

	row, err := strconv.Atoi(fields[0])
	if err != nil {
		return entity.Move{}, errBadInput
	}

	col, err := strconv.Atoi(fields[1])
	if err != nil {
		return entity.Move{}, errBadInput
	}

	return entity.Move{Row: row, Col: col}, nil
}

func isRejectedMove(err error) bool {
	return errors.Is(err, apperror.ErrOutOfBounds) ||
		errors.Is(err, apperror.ErrCellOccupied) ||
		errors.Is(err, apperror.ErrInvalidTurn)
}

func outcomeMessage(outcome tictactoe.Outcome) string {
	switch outcome {
	case tictactoe.PlayerWin:
		return "You win!"
	case tictactoe.OpponentWin:
		return "You lose."
	case tictactoe.Draw:
		return "Draw."
	default:
		return outcome.String()
	}
}
