package service

import (
	"context"
	"time"

	"dicegame/events"
	"dicegame/models"

	"github.com/stretchr/testify/mock"
)

// MockGameRepository is a mock implementation of GameRepository
type MockGameRepository struct {
	mock.Mock
}

func (m *MockGameRepository) Create(ctx context.Context, chatID int64, initialScore float64, createdAt time.Time) (*models.Game, error) {
	args := m.Called(ctx, chatID, initialScore, createdAt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Game), args.Error(1)
}

func (m *MockGameRepository) GetByID(ctx context.Context, gameID string) (*models.Game, error) {
	args := m.Called(ctx, gameID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Game), args.Error(1)
}

func (m *MockGameRepository) GetActiveByChat(ctx context.Context, chatID int64) (*models.Game, error) {
	args := m.Called(ctx, chatID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Game), args.Error(1)
}

func (m *MockGameRepository) ListByChat(ctx context.Context, chatID int64) ([]*models.Game, error) {
	args := m.Called(ctx, chatID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Game), args.Error(1)
}

func (m *MockGameRepository) ListCompletedByPlayer(ctx context.Context, userID int64) ([]*models.Game, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Game), args.Error(1)
}

func (m *MockGameRepository) ApplyUpdate(ctx context.Context, gameID string, update models.GameUpdate) (*models.Game, error) {
	args := m.Called(ctx, gameID, update)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Game), args.Error(1)
}

func (m *MockGameRepository) AddPlayer(ctx context.Context, gameID string, userID int64, username string, joinedAt time.Time) (*models.PlayerInGame, bool, error) {
	args := m.Called(ctx, gameID, userID, username, joinedAt)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*models.PlayerInGame), args.Bool(1), args.Error(2)
}

func (m *MockGameRepository) RecordRoll(ctx context.Context, gameID string, roll *models.RollRecord) error {
	args := m.Called(ctx, gameID, roll)
	return args.Error(0)
}

func (m *MockGameRepository) DeleteStaleBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	args := m.Called(ctx, cutoff)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// MockPlayerRepository is a mock implementation of PlayerRepository
type MockPlayerRepository struct {
	mock.Mock
}

func (m *MockPlayerRepository) GetByUserID(ctx context.Context, userID int64) (*models.Player, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Player), args.Error(1)
}

func (m *MockPlayerRepository) RecordJoin(ctx context.Context, userID int64, username string, joinedAt time.Time) (*models.Player, error) {
	args := m.Called(ctx, userID, username, joinedAt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Player), args.Error(1)
}

func (m *MockPlayerRepository) UpdateUsername(ctx context.Context, userID int64, username string) error {
	args := m.Called(ctx, userID, username)
	return args.Error(0)
}

func (m *MockPlayerRepository) IncrementWins(ctx context.Context, userID int64) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}

// MockEventPublisher is a mock implementation of EventPublisher for testing
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(event events.Event) {
	m.Called(event)
}

// MockUnitOfWork is a mock implementation of UnitOfWork
type MockUnitOfWork struct {
	mock.Mock
	gameRepo   GameRepository
	playerRepo PlayerRepository
	eventBus   EventPublisher
}

// SetRepositories wires the repositories handed out by the getters
func (m *MockUnitOfWork) SetRepositories(gameRepo GameRepository, playerRepo PlayerRepository, eventBus EventPublisher) {
	m.gameRepo = gameRepo
	m.playerRepo = playerRepo
	m.eventBus = eventBus
}

func (m *MockUnitOfWork) Begin(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockUnitOfWork) Commit() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) Rollback() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) GameRepository() GameRepository {
	return m.gameRepo
}

func (m *MockUnitOfWork) PlayerRepository() PlayerRepository {
	return m.playerRepo
}

func (m *MockUnitOfWork) EventBus() EventPublisher {
	return m.eventBus
}

// MockUnitOfWorkFactory is a mock implementation of UnitOfWorkFactory
type MockUnitOfWorkFactory struct {
	mock.Mock
}

func (m *MockUnitOfWorkFactory) Create() UnitOfWork {
	args := m.Called()
	return args.Get(0).(UnitOfWork)
}
