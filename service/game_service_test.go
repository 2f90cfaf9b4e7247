package service

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"dicegame/events"
	"dicegame/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time {
	return fixedNow
}

type gameServiceMocks struct {
	factory    *MockUnitOfWorkFactory
	uow        *MockUnitOfWork
	gameRepo   *MockGameRepository
	playerRepo *MockPlayerRepository
	publisher  *MockEventPublisher
}

func newGameServiceMocks() *gameServiceMocks {
	m := &gameServiceMocks{
		factory:    new(MockUnitOfWorkFactory),
		uow:        new(MockUnitOfWork),
		gameRepo:   new(MockGameRepository),
		playerRepo: new(MockPlayerRepository),
		publisher:  new(MockEventPublisher),
	}
	m.uow.SetRepositories(m.gameRepo, m.playerRepo, m.publisher)
	return m
}

func (m *gameServiceMocks) expectBegin(ctx context.Context) {
	m.factory.On("Create").Return(m.uow)
	m.uow.On("Begin", ctx).Return(nil)
	m.uow.On("Rollback").Return(nil)
}

func (m *gameServiceMocks) assertExpectations(t *testing.T) {
	m.factory.AssertExpectations(t)
	m.uow.AssertExpectations(t)
	m.gameRepo.AssertExpectations(t)
	m.playerRepo.AssertExpectations(t)
	m.publisher.AssertExpectations(t)
}

func activeGame(id string, chatID int64) *models.Game {
	return &models.Game{
		ID:        id,
		ChatID:    chatID,
		CreatedAt: fixedNow.Add(-time.Hour),
		Status:    models.GameStatusActive,
		Players:   make(map[int64]*models.PlayerInGame),
		Rounds:    make([]*models.RollRecord, 0),
	}
}

func TestGameService_CreateGame(t *testing.T) {
	ctx := context.Background()
	m := newGameServiceMocks()
	service := NewGameService(m.factory, fixedClock)

	created := activeGame("game_100_1717243200000", 100)

	m.expectBegin(ctx)
	m.gameRepo.On("Create", ctx, int64(100), 0.0, fixedNow).Return(created, nil)
	m.publisher.On("Publish", events.GameCreatedEvent{GameID: created.ID, ChatID: 100, InitialScore: 0}).Return()
	m.uow.On("Commit").Return(nil)

	id, err := service.CreateGame(ctx, 100, 0)

	require.NoError(t, err)
	assert.Equal(t, created.ID, id)
	m.assertExpectations(t)
}

func TestGameService_CreateGame_RejectsNonFiniteScore(t *testing.T) {
	m := newGameServiceMocks()
	service := NewGameService(m.factory, fixedClock)

	_, err := service.CreateGame(context.Background(), 100, math.NaN())

	assert.ErrorIs(t, err, models.ErrValidation)
	m.factory.AssertNotCalled(t, "Create")
}

func TestGameService_CreateGame_CommitFailure(t *testing.T) {
	ctx := context.Background()
	m := newGameServiceMocks()
	service := NewGameService(m.factory, fixedClock)

	saveErr := &models.PersistenceError{Op: "save", Err: errors.New("disk full")}

	m.expectBegin(ctx)
	m.gameRepo.On("Create", ctx, int64(100), 0.0, fixedNow).Return(activeGame("g1", 100), nil)
	m.publisher.On("Publish", mock.Anything).Return()
	m.uow.On("Commit").Return(saveErr)

	id, err := service.CreateGame(ctx, 100, 0)

	assert.Empty(t, id)
	assert.ErrorIs(t, err, models.ErrPersistence)
}

func TestGameService_GetGame_Missing(t *testing.T) {
	ctx := context.Background()
	m := newGameServiceMocks()
	service := NewGameService(m.factory, fixedClock)

	m.expectBegin(ctx)
	m.gameRepo.On("GetByID", ctx, "nope").Return(nil, nil)

	game, err := service.GetGame(ctx, "nope")

	assert.NoError(t, err)
	assert.Nil(t, game)
	m.uow.AssertNotCalled(t, "Commit")
}

func TestGameService_UpdateGame_NotFound(t *testing.T) {
	ctx := context.Background()
	m := newGameServiceMocks()
	service := NewGameService(m.factory, fixedClock)

	score := 10.0
	m.expectBegin(ctx)
	m.gameRepo.On("GetByID", ctx, "nope").Return(nil, nil)

	game, err := service.UpdateGame(ctx, "nope", models.GameUpdate{CurrentScore: &score})

	assert.Nil(t, game)
	assert.ErrorIs(t, err, models.ErrNotFound)
	m.uow.AssertNotCalled(t, "Commit")
	m.gameRepo.AssertNotCalled(t, "ApplyUpdate", mock.Anything, mock.Anything, mock.Anything)
}

func TestGameService_UpdateGame_PublishesStatusChange(t *testing.T) {
	ctx := context.Background()
	m := newGameServiceMocks()
	service := NewGameService(m.factory, fixedClock)

	before := activeGame("g1", 100)
	after := activeGame("g1", 100)
	after.Status = models.GameStatusCancelled
	status := models.GameStatusCancelled
	update := models.GameUpdate{Status: &status}

	m.expectBegin(ctx)
	m.gameRepo.On("GetByID", ctx, "g1").Return(before, nil)
	m.gameRepo.On("ApplyUpdate", ctx, "g1", update).Return(after, nil)
	m.publisher.On("Publish", events.GameUpdatedEvent{
		GameID:    "g1",
		ChatID:    100,
		OldStatus: "active",
		NewStatus: "cancelled",
	}).Return()
	m.uow.On("Commit").Return(nil)

	game, err := service.UpdateGame(ctx, "g1", update)

	require.NoError(t, err)
	assert.Equal(t, models.GameStatusCancelled, game.Status)
	m.assertExpectations(t)
}

func TestGameService_AddPlayerToGame_NewPlayer(t *testing.T) {
	ctx := context.Background()
	m := newGameServiceMocks()
	service := NewGameService(m.factory, fixedClock)

	entry := &models.PlayerInGame{UserID: 7, Username: "alice", JoinedAt: fixedNow}

	m.expectBegin(ctx)
	m.gameRepo.On("GetByID", ctx, "g1").Return(activeGame("g1", 100), nil)
	m.gameRepo.On("AddPlayer", ctx, "g1", int64(7), "alice", fixedNow).Return(entry, true, nil)
	m.playerRepo.On("RecordJoin", ctx, int64(7), "alice", fixedNow).Return(&models.Player{UserID: 7, GamesPlayed: 1}, nil)
	m.publisher.On("Publish", events.PlayerJoinedEvent{GameID: "g1", ChatID: 100, UserID: 7, Username: "alice"}).Return()
	m.uow.On("Commit").Return(nil)

	result, err := service.AddPlayerToGame(ctx, "g1", 7, "alice")

	require.NoError(t, err)
	assert.Equal(t, entry, result)
	m.assertExpectations(t)
}

func TestGameService_AddPlayerToGame_RejoinDoesNotCountAgain(t *testing.T) {
	ctx := context.Background()
	m := newGameServiceMocks()
	service := NewGameService(m.factory, fixedClock)

	entry := &models.PlayerInGame{UserID: 7, Username: "alice2", JoinedAt: fixedNow.Add(-time.Minute)}

	m.expectBegin(ctx)
	m.gameRepo.On("GetByID", ctx, "g1").Return(activeGame("g1", 100), nil)
	m.gameRepo.On("AddPlayer", ctx, "g1", int64(7), "alice2", fixedNow).Return(entry, false, nil)
	m.playerRepo.On("GetByUserID", ctx, int64(7)).Return(&models.Player{UserID: 7, GamesPlayed: 1}, nil)
	m.playerRepo.On("UpdateUsername", ctx, int64(7), "alice2").Return(nil)
	m.uow.On("Commit").Return(nil)

	result, err := service.AddPlayerToGame(ctx, "g1", 7, "alice2")

	require.NoError(t, err)
	assert.Equal(t, entry, result)
	m.playerRepo.AssertNotCalled(t, "RecordJoin", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	m.publisher.AssertNotCalled(t, "Publish", mock.Anything)
	m.assertExpectations(t)
}

func TestGameService_AddPlayerToGame_GameNotFound(t *testing.T) {
	ctx := context.Background()
	m := newGameServiceMocks()
	service := NewGameService(m.factory, fixedClock)

	m.expectBegin(ctx)
	m.gameRepo.On("GetByID", ctx, "nope").Return(nil, nil)

	result, err := service.AddPlayerToGame(ctx, "nope", 7, "alice")

	assert.Nil(t, result)
	assert.ErrorIs(t, err, models.ErrNotFound)
	m.uow.AssertNotCalled(t, "Commit")
}

func TestGameService_AddPlayerToGame_RequiresUserID(t *testing.T) {
	m := newGameServiceMocks()
	service := NewGameService(m.factory, fixedClock)

	_, err := service.AddPlayerToGame(context.Background(), "g1", 0, "alice")

	assert.ErrorIs(t, err, models.ErrValidation)
	m.factory.AssertNotCalled(t, "Create")
}

func TestGameService_RecordDiceRoll(t *testing.T) {
	ctx := context.Background()
	m := newGameServiceMocks()
	service := NewGameService(m.factory, fixedClock)

	m.expectBegin(ctx)
	m.gameRepo.On("GetByID", ctx, "g1").Return(activeGame("g1", 100), nil)
	m.gameRepo.On("RecordRoll", ctx, "g1", mock.MatchedBy(func(r *models.RollRecord) bool {
		return r.UserID == 7 && r.OriginalRoll == 4 && r.WeatherModifier == 0.3 && r.Timestamp.Equal(fixedNow)
	})).Return(nil)
	m.publisher.On("Publish", mock.AnythingOfType("events.DiceRolledEvent")).Return()
	m.uow.On("Commit").Return(nil)

	roll, err := service.RecordDiceRoll(ctx, "g1", 7, 4, 0.3)

	require.NoError(t, err)
	assert.InDelta(t, 4.3, roll.FinalScore, 1e-9)
	assert.Equal(t, 4, roll.OriginalRoll)
	m.assertExpectations(t)
}

func TestGameService_RecordDiceRoll_InvalidInput(t *testing.T) {
	tests := []struct {
		name     string
		roll     int
		modifier float64
	}{
		{"roll too low", 0, 0},
		{"roll too high", 7, 0},
		{"modifier too large", 3, 1.5},
		{"modifier too small", 3, -1.01},
		{"modifier not a number", 3, math.NaN()},
		{"modifier infinite", 3, math.Inf(1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newGameServiceMocks()
			service := NewGameService(m.factory, fixedClock)

			roll, err := service.RecordDiceRoll(context.Background(), "g1", 7, tt.roll, tt.modifier)

			assert.Nil(t, roll)
			assert.ErrorIs(t, err, models.ErrValidation)
			m.factory.AssertNotCalled(t, "Create")
		})
	}
}

func TestGameService_RecordDiceRoll_DuplicateRejected(t *testing.T) {
	ctx := context.Background()
	m := newGameServiceMocks()
	service := NewGameService(m.factory, fixedClock)

	m.expectBegin(ctx)
	m.gameRepo.On("GetByID", ctx, "g1").Return(activeGame("g1", 100), nil)
	m.gameRepo.On("RecordRoll", ctx, "g1", mock.Anything).
		Return(models.NewValidationError("userId", "player 7 already rolled in game g1"))

	roll, err := service.RecordDiceRoll(ctx, "g1", 7, 5, 0)

	assert.Nil(t, roll)
	assert.ErrorIs(t, err, models.ErrValidation)
	m.uow.AssertNotCalled(t, "Commit")
	m.publisher.AssertNotCalled(t, "Publish", mock.Anything)
}

func TestGameService_FinishGame_CreditsWinner(t *testing.T) {
	ctx := context.Background()
	m := newGameServiceMocks()
	service := NewGameService(m.factory, fixedClock)

	winner := int64(7)
	finished := activeGame("g1", 100)
	finished.Status = models.GameStatusCompleted
	finished.WinnerID = &winner

	m.expectBegin(ctx)
	m.gameRepo.On("GetByID", ctx, "g1").Return(activeGame("g1", 100), nil)
	m.gameRepo.On("ApplyUpdate", ctx, "g1", mock.MatchedBy(func(u models.GameUpdate) bool {
		return u.Status != nil && *u.Status == models.GameStatusCompleted &&
			u.FinishedAt != nil && u.FinishedAt.Equal(fixedNow) &&
			u.WinnerID != nil && *u.WinnerID == winner
	})).Return(finished, nil)
	m.playerRepo.On("IncrementWins", ctx, winner).Return(true, nil)
	m.publisher.On("Publish", events.GameFinishedEvent{GameID: "g1", ChatID: 100, WinnerID: &winner}).Return()
	m.uow.On("Commit").Return(nil)

	game, err := service.FinishGame(ctx, "g1", &winner)

	require.NoError(t, err)
	assert.Equal(t, models.GameStatusCompleted, game.Status)
	m.assertExpectations(t)
}

func TestGameService_FinishGame_AlreadyCompleted(t *testing.T) {
	ctx := context.Background()
	m := newGameServiceMocks()
	service := NewGameService(m.factory, fixedClock)

	winner := int64(7)
	completed := activeGame("g1", 100)
	completed.Status = models.GameStatusCompleted
	completed.WinnerID = &winner

	m.expectBegin(ctx)
	m.gameRepo.On("GetByID", ctx, "g1").Return(completed, nil)

	game, err := service.FinishGame(ctx, "g1", &winner)

	require.NoError(t, err)
	assert.Equal(t, completed, game)
	m.playerRepo.AssertNotCalled(t, "IncrementWins", mock.Anything, mock.Anything)
	m.uow.AssertNotCalled(t, "Commit")
}

func TestGameService_FinishGame_Cancelled(t *testing.T) {
	ctx := context.Background()
	m := newGameServiceMocks()
	service := NewGameService(m.factory, fixedClock)

	cancelled := activeGame("g1", 100)
	cancelled.Status = models.GameStatusCancelled

	m.expectBegin(ctx)
	m.gameRepo.On("GetByID", ctx, "g1").Return(cancelled, nil)

	_, err := service.FinishGame(ctx, "g1", nil)

	assert.ErrorIs(t, err, models.ErrValidation)
	m.uow.AssertNotCalled(t, "Commit")
}

func TestGameService_CancelGame(t *testing.T) {
	ctx := context.Background()
	m := newGameServiceMocks()
	service := NewGameService(m.factory, fixedClock)

	cancelled := activeGame("g1", 100)
	cancelled.Status = models.GameStatusCancelled
	status := models.GameStatusCancelled

	m.expectBegin(ctx)
	m.gameRepo.On("GetByID", ctx, "g1").Return(activeGame("g1", 100), nil)
	m.gameRepo.On("ApplyUpdate", ctx, "g1", models.GameUpdate{Status: &status}).Return(cancelled, nil)
	m.publisher.On("Publish", events.GameUpdatedEvent{
		GameID:    "g1",
		ChatID:    100,
		OldStatus: "active",
		NewStatus: "cancelled",
	}).Return()
	m.uow.On("Commit").Return(nil)

	game, err := service.CancelGame(ctx, "g1")

	require.NoError(t, err)
	assert.Equal(t, models.GameStatusCancelled, game.Status)
	m.assertExpectations(t)
}

func TestGameService_CleanupOldGames(t *testing.T) {
	ctx := context.Background()
	m := newGameServiceMocks()
	service := NewGameService(m.factory, fixedClock)

	cutoff := fixedNow.Add(-24 * time.Hour)

	m.expectBegin(ctx)
	m.gameRepo.On("DeleteStaleBefore", ctx, cutoff).Return([]string{"g1", "g2"}, nil)
	m.publisher.On("Publish", events.GamesCleanedUpEvent{GameIDs: []string{"g1", "g2"}, HoursOld: 24}).Return()
	m.uow.On("Commit").Return(nil)

	deleted, err := service.CleanupOldGames(ctx, 24)

	require.NoError(t, err)
	assert.Equal(t, 2, deleted)
	m.assertExpectations(t)
}

func TestGameService_CleanupOldGames_NothingToDelete(t *testing.T) {
	ctx := context.Background()
	m := newGameServiceMocks()
	service := NewGameService(m.factory, fixedClock)

	m.expectBegin(ctx)
	m.gameRepo.On("DeleteStaleBefore", ctx, fixedNow.Add(-24*time.Hour)).Return([]string(nil), nil)

	deleted, err := service.CleanupOldGames(ctx, 24)

	require.NoError(t, err)
	assert.Zero(t, deleted)
	m.uow.AssertNotCalled(t, "Commit")
}

func TestGameService_CleanupOldGames_RejectsNonPositiveHours(t *testing.T) {
	m := newGameServiceMocks()
	service := NewGameService(m.factory, fixedClock)

	_, err := service.CleanupOldGames(context.Background(), 0)

	assert.ErrorIs(t, err, models.ErrValidation)
	m.factory.AssertNotCalled(t, "Create")
}
