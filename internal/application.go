package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rocketscienceinc/tictactoe-engine/internal/config"
	"github.com/rocketscienceinc/tictactoe-engine/internal/repository"
	"github.com/rocketscienceinc/tictactoe-engine/internal/repository/storage"
	"github.com/rocketscienceinc/tictactoe-engine/internal/service"
	"github.com/rocketscienceinc/tictactoe-engine/internal/tictactoe"
	"github.com/rocketscienceinc/tictactoe-engine/internal/usecase"
	"github.com/rocketscienceinc/tictactoe-engine/transport/rest"
)

var ErrAddrNotFound = errors.New("redis address string is empty")

// RunApp - runs the HTTP application until ctx is canceled.
func RunApp(ctx context.Context, logger *slog.Logger, conf *config.Config) error {
	log := logger.With("component", "app")

	defaults, err := conf.Game.SessionOptions()
	if err != nil {
		return fmt.Errorf("invalid game settings: %w", err)
	}

	mode, botOpts, err := conf.Game.BotOptions()
	if err != nil {
		return fmt.Errorf("invalid opponent settings: %w", err)
	}

	if conf.Redis.Host == "" || conf.Redis.Port == "" {
		return ErrAddrNotFound
	}

	redisStorage, err := storage.New(ctx, conf.Redis.GetRedisAddr())
	if err != nil {
		return fmt.Errorf("could not connect to redis storage: %w", err)
	}

	defer func() {
		if err = redisStorage.Close(); err != nil {
			log.Error("could not close redis storage", "error", err)
		}
	}()

	newBot := service.NewBotFactory(mode, botOpts...)

	sessionRepo := repository.NewSessionRepository(redisStorage, conf.Redis.TTL)
	gameManager := usecase.NewGameManager(logger, sessionRepo, func() tictactoe.Policy { return newBot() })

	router := rest.NewRouter(logger, rest.NewPingHandler(), rest.NewGameHandler(logger, gameManager, defaults))
	server := rest.NewServer(logger, conf.HTTPPort, router)

	log.Info("Starting HTTP server", "port", conf.HTTPPort, "opponent_mode", mode)

	if err = server.Start(ctx); err != nil {
		return fmt.Errorf("HTTP server error: %w", err)
	}

	log.Info("Application context canceled, shutting down")

	return nil
}
