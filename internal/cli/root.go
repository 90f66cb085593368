package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"

	"github.com/rocketscienceinc/tictactoe-engine/internal/config"
)

// options is shared by every command. conf and logger are filled before a command runs.
type options struct {
	configPath string
	logLevel   string

	conf   *config.Config
	logger *slog.Logger
}

func Root() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "tictactoe",
		Short: "Tic-tac-toe against a built-in opponent",
		Long: heredoc.Doc(`tictactoe plays tic-tac-toe against a computer opponent,
			either in the terminal or over HTTP.

			Settings come from a YAML config file and environment variables.
			Without --config the file is looked up in the user config directory
			and the built-in defaults are used when it does not exist.`),
		Args: cobra.NoArgs,

		SilenceErrors: true,
		SilenceUsage:  true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.load(cmd.ErrOrStderr())
		},
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Config file (default "+config.DefaultPath()+")")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn or error")

	root.AddCommand(Serve(opts))
	root.AddCommand(Play(opts))
	root.AddCommand(Simulate(opts))

	return root
}

func (that *options) load(w io.Writer) error {
	conf, err := that.loadConfig()
	if err != nil {
		return err
	}

	if that.logLevel != "" {
		conf.LogLevel = that.logLevel
	}

	that.conf = conf
	that.logger = initLogger(conf.LogLevel, w)

	return nil
}

func (that *options) loadConfig() (*config.Config, error) {
	if that.configPath != "" {
		return config.Load(that.configPath)
	}

	path := config.DefaultPath()

	_, err := os.Stat(path)
	switch {
	case err == nil:
		return config.Load(path)
	case errors.Is(err, fs.ErrNotExist):
		return config.LoadDefaults()
	default:
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
}

// initLogger builds the JSON logger every component derives from.
func initLogger(level string, w io.Writer) *slog.Logger {
	var lvl slog.Level

	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
}
