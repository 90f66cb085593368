package cli

import (
	"fmt"
	"io"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"

	"github.com/rocketscienceinc/tictactoe-engine/internal/service"
	"github.com/rocketscienceinc/tictactoe-engine/internal/tictactoe"
)

const defaultSimulatedGames = 1000

// tally counts simulated outcomes from the player's side.
type tally struct {
	Games        int
	PlayerWins   int
	OpponentWins int
	Draws        int
	Moves        int
}

func (that tally) print(w io.Writer) {
	avg := 0.0
	if that.Games > 0 {
		avg = float64(that.Moves) / float64(that.Games)
	}

	fmt.Fprintf(w, "games:          %d\n", that.Games)
	fmt.Fprintf(w, "player wins:    %d\n", that.PlayerWins)
	fmt.Fprintf(w, "opponent wins:  %d\n", that.OpponentWins)
	fmt.Fprintf(w, "draws:          %d\n", that.Draws)
	fmt.Fprintf(w, "average length: %.2f\n", avg)
}

func Simulate(opts *options) *cobra.Command {
	flags := &gameFlags{}

	var games int

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Play a random player against the opponent many times",
		Long: heredoc.Doc(`simulate plays --games games between a player that picks
			uniformly random moves and the configured opponent, then prints
			how often each side won.

			The same --seed always gives the same result.`),
		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, _ []string) error {
			if games < 0 {
				return fmt.Errorf("--games must not be negative, got %d", games)
			}

			game := flags.apply(cmd, opts.conf.Game)

			sessionOpts, err := game.SessionOptions()
			if err != nil {
				return err
			}

			mode, botOpts, err := game.BotOptions()
			if err != nil {
				return err
			}

			sessionOpts.Paced = false

			rng := service.NewRand(flags.seed)
			player := service.NewBotService(service.ModeRandom, rng)
			opponent := service.NewBotService(mode, rng, botOpts...)

			log := opts.logger.With("component", "simulate")
			log.Debug("simulating", "games", games, "size", sessionOpts.BoardSize, "opponent_mode", mode)

			result, err := simulate(games, sessionOpts, player, opponent)
			if err != nil {
				return err
			}

			result.print(cmd.OutOrStdout())

			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().IntVarP(&games, "games", "n", defaultSimulatedGames, "Number of games to play")

	return cmd
}

// simulate plays games between two policies on non-paced sessions.
func simulate(games int, opts tictactoe.Options, player, opponent tictactoe.Policy) (tally, error) {
	var result tally

	for range games {
		session, err := tictactoe.Start(opts, opponent, nil)
		if err != nil {
			return result, fmt.Errorf("failed to start game: %w", err)
		}

		for !session.Outcome().IsTerminal() {
			move := player.ChooseMove(session.Board(), session.PlayerMark(), session.OpponentMark())
			if err = session.SubmitPlayerMove(move.Row, move.Col); err != nil {
				return result, fmt.Errorf("player move %s rejected: %w", move, err)
			}
		}

		result.Games++
		result.Moves += session.Board().Occupied()

		switch session.Outcome() {
		case tictactoe.PlayerWin:
			result.PlayerWins++
		case tictactoe.OpponentWin:
			result.OpponentWins++
		case tictactoe.Draw:
			result.Draws++
		}
	}

	return result, nil
}
