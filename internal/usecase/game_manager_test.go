package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/tictactoe-engine/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-engine/internal/entity"
	"github.com/rocketscienceinc/tictactoe-engine/internal/pkg"
	"github.com/rocketscienceinc/tictactoe-engine/internal/tictactoe"
)

var errRedisDown = errors.New("redis down")

type mockSessionRepo struct {
	mock.Mock
}

func (that *mockSessionRepo) CreateOrUpdate(ctx context.Context, id string, state tictactoe.State) error {
	args := that.Called(ctx, id, state)

	return args.Error(0)
}

func (that *mockSessionRepo) GetByID(ctx context.Context, id string) (tictactoe.State, error) {
	args := that.Called(ctx, id)

	return args.Get(0).(tictactoe.State), args.Error(1)
}

func (that *mockSessionRepo) CompareAndUpdate(ctx context.Context, id string, revision int64, state tictactoe.State) error {
	args := that.Called(ctx, id, revision, state)

	return args.Error(0)
}

func (that *mockSessionRepo) CompareAndDelete(ctx context.Context, id string, revision int64) error {
	args := that.Called(ctx, id, revision)

	return args.Error(0)
}

// firstFree always plays the first empty cell in row-major order.
type firstFree struct{}

func (firstFree) ChooseMove(board *entity.Board, _, _ entity.Cell) entity.Move {
	return entity.AvailableMoves(board)[0]
}

func newTestManager(t *testing.T) (*GameManager, *mockSessionRepo) {
	t.Helper()

	repo := &mockSessionRepo{}
	t.Cleanup(func() { repo.AssertExpectations(t) })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	manager := NewGameManager(logger, repo, func() tictactoe.Policy { return firstFree{} })

	return manager, repo
}

// stateOf builds a 3x3 snapshot with player X from a picture like "X.O/.../...".
func stateOf(t *testing.T, picture string, turn tictactoe.Turn) tictactoe.State {
	t.Helper()

	cells := make([]entity.Cell, 0, 9)
	for _, r := range picture {
		if r == '/' {
			continue
		}

		cell, err := entity.ParseCell(string(r))
		require.NoError(t, err)

		cells = append(cells, cell)
	}

	require.Len(t, cells, 9)

	return tictactoe.State{
		Size:       3,
		Cells:      cells,
		Turn:       turn,
		Outcome:    tictactoe.InProgress,
		PlayerMark: entity.X,
	}
}

func TestGameManager_StartGame(t *testing.T) {
	ctx := context.Background()

	t.Run("Saves a new game waiting for the player", func(t *testing.T) {
		// Given: a manager with a working repository
		manager, repo := newTestManager(t)

		repo.On("CreateOrUpdate", mock.Anything, mock.AnythingOfType("string"), mock.MatchedBy(func(state tictactoe.State) bool {
			return state.Turn == tictactoe.PlayerTurn && state.Outcome == tictactoe.InProgress
		})).Return(nil).Once()

		// When: a default game is started
		view, err := manager.StartGame(ctx, tictactoe.DefaultOptions())

		// Then: the view shows an empty board and a fresh id
		require.NoError(t, err)
		assert.True(t, pkg.IsGameID(view.ID))
		assert.Equal(t, 3, view.Size)
		assert.Equal(t, [][]string{{"", "", ""}, {"", "", ""}, {"", "", ""}}, view.Board)
		assert.Equal(t, tictactoe.PlayerTurn, view.Turn)
		assert.Equal(t, entity.X, view.PlayerMark)
		assert.Equal(t, entity.O, view.OpponentMark)
		assert.Nil(t, view.LastOpponentMove)
		assert.Nil(t, view.PendingMove)
	})

	t.Run("Opponent moves first when it starts", func(t *testing.T) {
		manager, repo := newTestManager(t)

		repo.On("CreateOrUpdate", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()

		opts := tictactoe.DefaultOptions()
		opts.StartingTurn = tictactoe.OpponentTurn

		// When: the opponent starts
		view, err := manager.StartGame(ctx, opts)

		// Then: its move is already on the board
		require.NoError(t, err)
		assert.Equal(t, "O", view.Board[0][0])
		assert.Equal(t, &entity.Move{Row: 0, Col: 0}, view.LastOpponentMove)
		assert.Equal(t, tictactoe.PlayerTurn, view.Turn)
	})

	t.Run("Paced game holds the first opponent move", func(t *testing.T) {
		manager, repo := newTestManager(t)

		repo.On("CreateOrUpdate", mock.Anything, mock.Anything, mock.MatchedBy(func(state tictactoe.State) bool {
			return state.Pending != nil
		})).Return(nil).Once()

		opts := tictactoe.DefaultOptions()
		opts.StartingTurn = tictactoe.OpponentTurn
		opts.Paced = true

		view, err := manager.StartGame(ctx, opts)

		require.NoError(t, err)
		assert.Equal(t, "", view.Board[0][0])
		assert.Equal(t, &entity.Move{Row: 0, Col: 0}, view.PendingMove)
		assert.Equal(t, tictactoe.OpponentTurn, view.Turn)
	})

	t.Run("Game decided on the first move is not stored", func(t *testing.T) {
		manager, _ := newTestManager(t)

		opts := tictactoe.DefaultOptions()
		opts.BoardSize = 1
		opts.StartingTurn = tictactoe.OpponentTurn

		view, err := manager.StartGame(ctx, opts)

		require.NoError(t, err)
		assert.Equal(t, tictactoe.OpponentWin, view.Outcome)
	})

	t.Run("Invalid options are rejected", func(t *testing.T) {
		manager, _ := newTestManager(t)

		opts := tictactoe.DefaultOptions()
		opts.PlayerMark = entity.Empty

		_, err := manager.StartGame(ctx, opts)

		require.ErrorIs(t, err, apperror.ErrInvalidMark)
	})

	t.Run("Storage failure is returned", func(t *testing.T) {
		manager, repo := newTestManager(t)

		repo.On("CreateOrUpdate", mock.Anything, mock.Anything, mock.Anything).Return(errRedisDown).Once()

		_, err := manager.StartGame(ctx, tictactoe.DefaultOptions())

		require.ErrorIs(t, err, errRedisDown)
	})
}

func TestGameManager_GetGame(t *testing.T) {
	ctx := context.Background()

	t.Run("Returns the stored game", func(t *testing.T) {
		manager, repo := newTestManager(t)

		repo.On("GetByID", mock.Anything, "g1").Return(stateOf(t, "X../.O./...", tictactoe.PlayerTurn), nil).Once()

		view, err := manager.GetGame(ctx, "g1")

		require.NoError(t, err)
		assert.Equal(t, "g1", view.ID)
		assert.Equal(t, [][]string{{"X", "", ""}, {"", "O", ""}, {"", "", ""}}, view.Board)
	})

	t.Run("Unknown game", func(t *testing.T) {
		manager, repo := newTestManager(t)

		repo.On("GetByID", mock.Anything, "nope").Return(tictactoe.State{}, apperror.ErrGameNotFound).Once()

		_, err := manager.GetGame(ctx, "nope")

		require.ErrorIs(t, err, apperror.ErrGameNotFound)
	})

	t.Run("Corrupted snapshot", func(t *testing.T) {
		manager, repo := newTestManager(t)

		// Given: the opponent is to move but nothing is pending
		repo.On("GetByID", mock.Anything, "bad").Return(stateOf(t, ".../.../...", tictactoe.OpponentTurn), nil).Once()

		_, err := manager.GetGame(ctx, "bad")

		require.ErrorIs(t, err, apperror.ErrInvalidState)
	})

	t.Run("Unreadable board is an invalid state", func(t *testing.T) {
		manager, repo := newTestManager(t)

		// Given: a stored board with a missing cell
		state := stateOf(t, ".../.../...", tictactoe.PlayerTurn)
		state.Cells = state.Cells[:8]

		repo.On("GetByID", mock.Anything, "bad").Return(state, nil).Once()

		_, err := manager.GetGame(ctx, "bad")

		// Then: the board error is kept but reported as a broken session
		require.ErrorIs(t, err, apperror.ErrInvalidState)
		require.ErrorIs(t, err, apperror.ErrInvalidBoard)
	})
}

func TestGameManager_MakeTurn(t *testing.T) {
	ctx := context.Background()

	t.Run("Player move and opponent answer are saved", func(t *testing.T) {
		// Given: an empty stored game
		manager, repo := newTestManager(t)

		repo.On("GetByID", mock.Anything, "g1").Return(stateOf(t, ".../.../...", tictactoe.PlayerTurn), nil).Once()
		repo.On("CompareAndUpdate", mock.Anything, "g1", int64(0), stateOf(t, "O../.X./...", tictactoe.PlayerTurn)).Return(nil).Once()

		// When: the player takes the centre
		view, err := manager.MakeTurn(ctx, "g1", 1, 1)

		// Then: the opponent answers in the first free cell
		require.NoError(t, err)
		assert.Equal(t, &entity.Move{Row: 0, Col: 0}, view.LastOpponentMove)
		assert.Equal(t, tictactoe.InProgress, view.Outcome)
	})

	t.Run("Occupied cell is rejected without saving", func(t *testing.T) {
		manager, repo := newTestManager(t)

		repo.On("GetByID", mock.Anything, "g1").Return(stateOf(t, "O../.X./...", tictactoe.PlayerTurn), nil).Once()

		_, err := manager.MakeTurn(ctx, "g1", 1, 1)

		require.ErrorIs(t, err, apperror.ErrCellOccupied)
		repo.AssertNotCalled(t, "CompareAndUpdate", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Move while the opponent holds a pending move", func(t *testing.T) {
		manager, repo := newTestManager(t)

		state := stateOf(t, ".../.X./...", tictactoe.OpponentTurn)
		state.Paced = true
		state.Pending = &entity.Move{Row: 0, Col: 0}

		repo.On("GetByID", mock.Anything, "g1").Return(state, nil).Once()

		_, err := manager.MakeTurn(ctx, "g1", 2, 2)

		require.ErrorIs(t, err, apperror.ErrInvalidTurn)
	})

	t.Run("Winning move deletes the game", func(t *testing.T) {
		// Given: the player has two in the top row
		manager, repo := newTestManager(t)

		repo.On("GetByID", mock.Anything, "g1").Return(stateOf(t, "XX./OO./...", tictactoe.PlayerTurn), nil).Once()
		repo.On("CompareAndDelete", mock.Anything, "g1", int64(0)).Return(nil).Once()

		// When: the player completes it
		view, err := manager.MakeTurn(ctx, "g1", 0, 2)

		// Then: the final view is returned and nothing is saved
		require.NoError(t, err)
		assert.Equal(t, tictactoe.PlayerWin, view.Outcome)
		assert.Equal(t, []string{"X", "X", "X"}, view.Board[0])
		repo.AssertNotCalled(t, "CompareAndUpdate", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Failed delete still returns the final view", func(t *testing.T) {
		manager, repo := newTestManager(t)

		repo.On("GetByID", mock.Anything, "g1").Return(stateOf(t, "XX./OO./...", tictactoe.PlayerTurn), nil).Once()
		repo.On("CompareAndDelete", mock.Anything, "g1", int64(0)).Return(errRedisDown).Once()

		view, err := manager.MakeTurn(ctx, "g1", 0, 2)

		require.NoError(t, err)
		assert.Equal(t, tictactoe.PlayerWin, view.Outcome)
	})

	t.Run("Saves against the revision it read", func(t *testing.T) {
		manager, repo := newTestManager(t)

		// Given: a game already written twice
		state := stateOf(t, ".../.../...", tictactoe.PlayerTurn)
		state.Revision = 2

		repo.On("GetByID", mock.Anything, "g1").Return(state, nil).Once()
		repo.On("CompareAndUpdate", mock.Anything, "g1", int64(2), mock.Anything).Return(nil).Once()

		// When: the player moves
		_, err := manager.MakeTurn(ctx, "g1", 1, 1)

		// Then: the write is guarded by revision 2
		require.NoError(t, err)
	})

	t.Run("Game changed since it was read", func(t *testing.T) {
		manager, repo := newTestManager(t)

		repo.On("GetByID", mock.Anything, "g1").Return(stateOf(t, ".../.../...", tictactoe.PlayerTurn), nil).Once()
		repo.On("CompareAndUpdate", mock.Anything, "g1", int64(0), mock.Anything).Return(apperror.ErrGameChanged).Once()

		_, err := manager.MakeTurn(ctx, "g1", 1, 1)

		require.ErrorIs(t, err, apperror.ErrInvalidTurn)
		require.ErrorIs(t, err, apperror.ErrGameChanged)
	})

	t.Run("Game finished by another request", func(t *testing.T) {
		manager, repo := newTestManager(t)

		repo.On("GetByID", mock.Anything, "g1").Return(stateOf(t, "XX./OO./...", tictactoe.PlayerTurn), nil).Once()
		repo.On("CompareAndDelete", mock.Anything, "g1", int64(0)).Return(apperror.ErrGameChanged).Once()

		_, err := manager.MakeTurn(ctx, "g1", 0, 2)

		require.ErrorIs(t, err, apperror.ErrInvalidTurn)
	})

	t.Run("Update failure is returned", func(t *testing.T) {
		manager, repo := newTestManager(t)

		repo.On("GetByID", mock.Anything, "g1").Return(stateOf(t, ".../.../...", tictactoe.PlayerTurn), nil).Once()
		repo.On("CompareAndUpdate", mock.Anything, "g1", int64(0), mock.Anything).Return(errRedisDown).Once()

		_, err := manager.MakeTurn(ctx, "g1", 1, 1)

		require.ErrorIs(t, err, errRedisDown)
		assert.NotErrorIs(t, err, apperror.ErrInvalidTurn)
	})

	t.Run("Unknown game", func(t *testing.T) {
		manager, repo := newTestManager(t)

		repo.On("GetByID", mock.Anything, "nope").Return(tictactoe.State{}, apperror.ErrGameNotFound).Once()

		_, err := manager.MakeTurn(ctx, "nope", 0, 0)

		require.ErrorIs(t, err, apperror.ErrGameNotFound)
	})
}

func TestGameManager_ApplyOpponentMove(t *testing.T) {
	ctx := context.Background()

	t.Run("Applies the pending move", func(t *testing.T) {
		// Given: a paced game holding an opponent move
		manager, repo := newTestManager(t)

		state := stateOf(t, ".../.X./...", tictactoe.OpponentTurn)
		state.Paced = true
		state.Pending = &entity.Move{Row: 0, Col: 0}

		after := stateOf(t, "O../.X./...", tictactoe.PlayerTurn)
		after.Paced = true

		repo.On("GetByID", mock.Anything, "g1").Return(state, nil).Once()
		repo.On("CompareAndUpdate", mock.Anything, "g1", int64(0), after).Return(nil).Once()

		// When: the second step is requested
		view, err := manager.ApplyOpponentMove(ctx, "g1")

		// Then: the move lands and the player is up
		require.NoError(t, err)
		assert.Equal(t, "O", view.Board[0][0])
		assert.Equal(t, &entity.Move{Row: 0, Col: 0}, view.LastOpponentMove)
		assert.Nil(t, view.PendingMove)
		assert.Equal(t, tictactoe.PlayerTurn, view.Turn)
		assert.True(t, view.Paced)
	})

	t.Run("Nothing pending", func(t *testing.T) {
		manager, repo := newTestManager(t)

		repo.On("GetByID", mock.Anything, "g1").Return(stateOf(t, ".../.X./...", tictactoe.PlayerTurn), nil).Once()

		_, err := manager.ApplyOpponentMove(ctx, "g1")

		require.ErrorIs(t, err, apperror.ErrNoPendingMove)
	})

	t.Run("Pending winning move deletes the game", func(t *testing.T) {
		manager, repo := newTestManager(t)

		state := stateOf(t, "..X/OO./XX.", tictactoe.OpponentTurn)
		state.Paced = true
		state.Pending = &entity.Move{Row: 1, Col: 2}

		repo.On("GetByID", mock.Anything, "g1").Return(state, nil).Once()
		repo.On("CompareAndDelete", mock.Anything, "g1", int64(0)).Return(nil).Once()

		view, err := manager.ApplyOpponentMove(ctx, "g1")

		require.NoError(t, err)
		assert.Equal(t, tictactoe.OpponentWin, view.Outcome)
	})
}

// racingSessions is an in-memory store whose reads wait for each other, so
// every request in a test sees the same revision before any of them writes.
type racingSessions struct {
	mu     sync.Mutex
	states map[string]tictactoe.State
	reads  sync.WaitGroup
}

func (that *racingSessions) CreateOrUpdate(_ context.Context, id string, state tictactoe.State) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.states[id] = state

	return nil
}

func (that *racingSessions) GetByID(_ context.Context, id string) (tictactoe.State, error) {
	that.mu.Lock()
	state, ok := that.states[id]
	state.Cells = slices.Clone(state.Cells)
	that.mu.Unlock()

	that.reads.Done()
	that.reads.Wait()

	if !ok {
		return tictactoe.State{}, apperror.ErrGameNotFound
	}

	return state, nil
}

func (that *racingSessions) CompareAndUpdate(_ context.Context, id string, revision int64, state tictactoe.State) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	if current, ok := that.states[id]; !ok || current.Revision != revision {
		return apperror.ErrGameChanged
	}

	state.Revision = revision + 1
	that.states[id] = state

	return nil
}

func (that *racingSessions) CompareAndDelete(_ context.Context, id string, revision int64) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	if current, ok := that.states[id]; !ok || current.Revision != revision {
		return apperror.ErrGameChanged
	}

	delete(that.states, id)

	return nil
}

func countCells(cells []entity.Cell, mark entity.Cell) int {
	n := 0
	for _, cell := range cells {
		if cell == mark {
			n++
		}
	}

	return n
}

func TestGameManager_ConcurrentRequests(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("Only one of two simultaneous moves is kept", func(t *testing.T) {
		// Given: an empty game and two requests that both read it before either saves
		sessions := &racingSessions{states: map[string]tictactoe.State{
			"g1": stateOf(t, ".../.../...", tictactoe.PlayerTurn),
		}}
		sessions.reads.Add(2)

		manager := NewGameManager(logger, sessions, func() tictactoe.Policy { return firstFree{} })

		// When: the player sends two different moves at once
		var wg sync.WaitGroup
		errs := make([]error, 2)
		moves := []entity.Move{{Row: 1, Col: 1}, {Row: 2, Col: 2}}

		for i, move := range moves {
			wg.Add(1)

			go func() {
				defer wg.Done()

				_, errs[i] = manager.MakeTurn(ctx, "g1", move.Row, move.Col)
			}()
		}

		wg.Wait()

		// Then: one succeeds, the other is a turn conflict
		failed := 0
		for _, err := range errs {
			if err != nil {
				failed++
				assert.ErrorIs(t, err, apperror.ErrInvalidTurn)
			}
		}

		assert.Equal(t, 1, failed)

		// And: the stored board holds exactly one player move and one answer
		stored := sessions.states["g1"]
		assert.Equal(t, int64(1), stored.Revision)
		assert.Equal(t, 1, countCells(stored.Cells, entity.X))
		assert.Equal(t, 1, countCells(stored.Cells, entity.O))
	})

	t.Run("A pending move is applied once", func(t *testing.T) {
		// Given: a paced game holding an opponent move
		state := stateOf(t, ".../.X./...", tictactoe.OpponentTurn)
		state.Paced = true
		state.Pending = &entity.Move{Row: 0, Col: 0}

		sessions := &racingSessions{states: map[string]tictactoe.State{"g1": state}}
		sessions.reads.Add(2)

		manager := NewGameManager(logger, sessions, func() tictactoe.Policy { return firstFree{} })

		// When: the second step is requested twice at once
		var wg sync.WaitGroup
		errs := make([]error, 2)

		for i := range errs {
			wg.Add(1)

			go func() {
				defer wg.Done()

				_, errs[i] = manager.ApplyOpponentMove(ctx, "g1")
			}()
		}

		wg.Wait()

		// Then: exactly one of them lands
		var applied int
		for _, err := range errs {
			if err == nil {
				applied++
				continue
			}

			assert.ErrorIs(t, err, apperror.ErrInvalidTurn)
		}

		assert.Equal(t, 1, applied)
		assert.Equal(t, tictactoe.PlayerTurn, sessions.states["g1"].Turn)
		assert.Nil(t, sessions.states["g1"].Pending)
	})
}
