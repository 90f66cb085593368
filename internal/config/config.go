package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/ilyakaznacheev/cleanenv"

	"github.com/rocketscienceinc/tictactoe-engine/internal/entity"
	"github.com/rocketscienceinc/tictactoe-engine/internal/service"
	"github.com/rocketscienceinc/tictactoe-engine/internal/tictactoe"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	LogLevel string `yaml:"log-level" env:"LOG_LEVEL" env-default:"info"`
	HTTPPort string `yaml:"http-port" env:"HTTP_PORT" env-default:"9090"`
	Redis    Redis  `yaml:"redis" env-prefix:"REDIS_"`
	Game     Game   `yaml:"game" env-prefix:"GAME_"`
}

type Redis struct {
	Host string `yaml:"host" env:"HOST" env-default:"localhost"`
	Port string `yaml:"port" env:"PORT" env-default:"6379"`

	// TTL expires sessions nobody touched for a while. Zero keeps them forever.
	TTL time.Duration `yaml:"ttl" env:"TTL" env-default:"24h"`
}

type Game struct {
	BoardSize    int           `yaml:"board-size" env:"BOARD_SIZE" env-default:"3"`
	StartingTurn string        `yaml:"starting-turn" env:"STARTING_TURN" env-default:"player"`
	PlayerMark   string        `yaml:"player-mark" env:"PLAYER_MARK" env-default:"X"`
	OpponentMode string        `yaml:"opponent-mode" env:"OPPONENT_MODE" env-default:"heuristic"`
	StrategyRate float64       `yaml:"strategy-rate" env:"STRATEGY_RATE" env-default:"0.5"`
	ThinkDelay   time.Duration `yaml:"think-delay" env:"THINK_DELAY" env-default:"500ms"`
	Paced        bool          `yaml:"paced" env:"PACED" env-default:"false"`
}

// DefaultPath is where the config file lives when no path is given.
func DefaultPath() string {
	return filepath.Join(xdg.ConfigHome, "tictactoe", "config.yml")
}

// MustLoad - load all configurations in config.yml file.
func MustLoad(path string) *Config {
	config, err := Load(path)
	if err != nil {
		panic(fmt.Errorf("unable to load config file: %w", err))
	}

	return config
}

func Load(path string) (*Config, error) {
	config := &Config{}

	if err := cleanenv.ReadConfig(path, config); err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// LoadDefaults builds a config from defaults and environment variables only.
func LoadDefaults() (*Config, error) {
	config := &Config{}

	if err := cleanenv.ReadEnv(config); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (that *Config) Validate() error {
	if _, err := that.Game.SessionOptions(); err != nil {
		return err
	}

	if _, err := service.ParseMode(that.Game.OpponentMode); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if that.Game.StrategyRate < 0 || that.Game.StrategyRate > 1 {
		return fmt.Errorf("%w: strategy-rate %v is outside [0,1]", ErrInvalidConfig, that.Game.StrategyRate)
	}

	if that.Game.ThinkDelay < 0 {
		return fmt.Errorf("%w: negative think-delay", ErrInvalidConfig)
	}

	return nil
}

func (that *Redis) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", that.Host, that.Port)
}

// SessionOptions converts the game section into session options.
func (that *Game) SessionOptions() (tictactoe.Options, error) {
	if that.BoardSize < 1 || that.BoardSize > entity.MaxBoardSize {
		return tictactoe.Options{}, fmt.Errorf("%w: board-size %d", ErrInvalidConfig, that.BoardSize)
	}

	turn, err := tictactoe.ParseTurn(that.StartingTurn)
	if err != nil {
		return tictactoe.Options{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	mark, err := entity.ParseCell(that.PlayerMark)
	if err != nil || mark == entity.Empty {
		return tictactoe.Options{}, fmt.Errorf("%w: player-mark %q", ErrInvalidConfig, that.PlayerMark)
	}

	return tictactoe.Options{
		BoardSize:    that.BoardSize,
		StartingTurn: turn,
		PlayerMark:   mark,
		Paced:        that.Paced,
	}, nil
}

// BotOptions returns the opponent mode and tuning from the game section.
func (that *Game) BotOptions() (service.Mode, []service.BotOption, error) {
	mode, err := service.ParseMode(that.OpponentMode)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	return mode, []service.BotOption{service.WithStrategyRate(that.StrategyRate)}, nil
}
