package cli

import (
	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"

	application "github.com/rocketscienceinc/tictactoe-engine/internal"
)

func Serve(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve games over HTTP",
		Long: heredoc.Doc(`serve starts the HTTP API. Active games are kept in redis
			and removed as soon as they are decided.

			Routes:
			  GET  /ping
			  POST /games
			  GET  /games/{id}
			  POST /games/{id}/moves
			  POST /games/{id}/opponent`),
		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, _ []string) error {
			return application.RunApp(cmd.Context(), opts.logger, opts.conf)
		},
	}
}
