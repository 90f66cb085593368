package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rocketscienceinc/tictactoe-engine/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-engine/internal/tictactoe"
)

const sessionKeyPrefix = "session:"

type SessionRepository interface {
	CreateOrUpdate(ctx context.Context, id string, state tictactoe.State) error
	GetByID(ctx context.Context, id string) (tictactoe.State, error)
	CompareAndUpdate(ctx context.Context, id string, revision int64, state tictactoe.State) error
	CompareAndDelete(ctx context.Context, id string, revision int64) error
}

type dbSession struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSessionRepository stores active sessions in redis. A zero ttl keeps them until deleted.
func NewSessionRepository(client *redis.Client, ttl time.Duration) SessionRepository {
	return &dbSession{
		client: client,
		ttl:    ttl,
	}
}

func (that *dbSession) CreateOrUpdate(ctx context.Context, id string, state tictactoe.State) error {
	stateJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("could not marshal session: %w", err)
	}

	err = that.client.Set(ctx, sessionKey(id), stateJSON, that.ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to set session: %w", err)
	}

	return nil
}

func (that *dbSession) GetByID(ctx context.Context, id string) (tictactoe.State, error) {
	return getState(ctx, that.client, sessionKey(id))
}

// CompareAndUpdate stores state as revision+1 if the stored session is still at revision.
func (that *dbSession) CompareAndUpdate(ctx context.Context, id string, revision int64, state tictactoe.State) error {
	state.Revision = revision + 1

	stateJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("could not marshal session: %w", err)
	}

	return that.compareAndWrite(ctx, id, revision, func(pipe redis.Pipeliner) {
		pipe.Set(ctx, sessionKey(id), stateJSON, that.ttl)
	})
}

// CompareAndDelete removes the session if it is still at revision.
func (that *dbSession) CompareAndDelete(ctx context.Context, id string, revision int64) error {
	return that.compareAndWrite(ctx, id, revision, func(pipe redis.Pipeliner) {
		pipe.Del(ctx, sessionKey(id))
	})
}

func (that *dbSession) compareAndWrite(ctx context.Context, id string, revision int64, write func(redis.Pipeliner)) error {
	key := sessionKey(id)

	err := that.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := getState(ctx, tx, key)
		if errors.Is(err, apperror.ErrGameNotFound) {
			return fmt.Errorf("%w: session %s is gone", apperror.ErrGameChanged, id)
		}

		if err != nil {
			return err
		}

		if current.Revision != revision {
			return fmt.Errorf("%w: session %s is at revision %d, not %d", apperror.ErrGameChanged, id, current.Revision, revision)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			write(pipe)

			return nil
		})

		return err
	}, key)

	if errors.Is(err, redis.TxFailedErr) {
		return fmt.Errorf("%w: session %s was written concurrently", apperror.ErrGameChanged, id)
	}

	if err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}

	return nil
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func getState(ctx context.Context, client getter, key string) (tictactoe.State, error) {
	response, err := client.Get(ctx, key).Result()

	if errors.Is(err, redis.Nil) {
		return tictactoe.State{}, apperror.ErrGameNotFound
	}

	if err != nil {
		return tictactoe.State{}, fmt.Errorf("failed to get session by id: %w", err)
	}

	var state tictactoe.State
	if err = json.Unmarshal([]byte(response), &state); err != nil {
		return tictactoe.State{}, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	return state, nil
}

func sessionKey(id string) string {
	return sessionKeyPrefix + id
}
