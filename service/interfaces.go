package service

import (
	"context"
	"time"

	"dicegame/events"
	"dicegame/models"
)

// DocumentBackend defines durable storage for the whole game document
type DocumentBackend interface {
	// Init creates an empty document if none exists yet
	Init(ctx context.Context) error

	// Load returns the stored document, persisting a fresh empty one if absent
	Load(ctx context.Context) (*models.Document, error)

	// Save atomically replaces the stored document
	Save(ctx context.Context, doc *models.Document) error

	// Close releases the underlying resources
	Close() error
}

// GameRepository defines data access to the games of the document
type GameRepository interface {
	// Create inserts a new active game with a fresh unique id
	Create(ctx context.Context, chatID int64, initialScore float64, createdAt time.Time) (*models.Game, error)

	// GetByID retrieves a game by its id, nil if absent
	GetByID(ctx context.Context, gameID string) (*models.Game, error)

	// GetActiveByChat returns the earliest active game of a chat, nil if none
	GetActiveByChat(ctx context.Context, chatID int64) (*models.Game, error)

	// ListByChat returns every game of a chat ordered by creation time
	ListByChat(ctx context.Context, chatID int64) ([]*models.Game, error)

	// ListCompletedByPlayer returns the completed games the user joined
	ListCompletedByPlayer(ctx context.Context, userID int64) ([]*models.Game, error)

	// ApplyUpdate merges the non-nil fields of update into the game
	ApplyUpdate(ctx context.Context, gameID string, update models.GameUpdate) (*models.Game, error)

	// AddPlayer enrolls a user; added is false when the user was already enrolled
	AddPlayer(ctx context.Context, gameID string, userID int64, username string, joinedAt time.Time) (player *models.PlayerInGame, added bool, err error)

	// RecordRoll stores a roll for an enrolled player who has not rolled yet
	RecordRoll(ctx context.Context, gameID string, roll *models.RollRecord) error

	// DeleteStaleBefore removes non-completed games created before cutoff and returns their ids
	DeleteStaleBefore(ctx context.Context, cutoff time.Time) ([]string, error)
}

// PlayerRepository defines data access to the global player records
type PlayerRepository interface {
	// GetByUserID retrieves a player, nil if absent
	GetByUserID(ctx context.Context, userID int64) (*models.Player, error)

	// RecordJoin creates the player if needed, refreshes the username and counts one game played
	RecordJoin(ctx context.Context, userID int64, username string, joinedAt time.Time) (*models.Player, error)

	// UpdateUsername refreshes the last-seen username of an existing player
	UpdateUsername(ctx context.Context, userID int64, username string) error

	// IncrementWins counts one win; found is false when the player has no record
	IncrementWins(ctx context.Context, userID int64) (found bool, err error)
}

// EventPublisher defines the interface for publishing events
type EventPublisher interface {
	Publish(event events.Event)
}

// GameService defines the game lifecycle operations
type GameService interface {
	// CreateGame starts a new active game for a chat and returns its id
	CreateGame(ctx context.Context, chatID int64, initialScore float64) (string, error)

	// GetGame retrieves a game by id, nil if absent
	GetGame(ctx context.Context, gameID string) (*models.Game, error)

	// GetActiveGameForChat returns the active game of a chat, nil if none
	GetActiveGameForChat(ctx context.Context, chatID int64) (*models.Game, error)

	// ListGamesForChat returns every game of a chat
	ListGamesForChat(ctx context.Context, chatID int64) ([]*models.Game, error)

	// UpdateGame applies a targeted field update
	UpdateGame(ctx context.Context, gameID string, update models.GameUpdate) (*models.Game, error)

	// AddPlayerToGame enrolls a user in a game
	AddPlayerToGame(ctx context.Context, gameID string, userID int64, username string) (*models.PlayerInGame, error)

	// RecordDiceRoll stores a player's single roll
	RecordDiceRoll(ctx context.Context, gameID string, userID int64, rollResult int, weatherModifier float64) (*models.RollRecord, error)

	// FinishGame completes a game, crediting the winner if given
	FinishGame(ctx context.Context, gameID string, winnerID *int64) (*models.Game, error)

	// CancelGame moves an active game to cancelled
	CancelGame(ctx context.Context, gameID string) (*models.Game, error)

	// CleanupOldGames deletes non-completed games older than hoursOld and returns how many were removed
	CleanupOldGames(ctx context.Context, hoursOld int) (int, error)
}

// StatsService defines the interface for statistics operations
type StatsService interface {
	// GetPlayer returns the global player record, nil if absent
	GetPlayer(ctx context.Context, userID int64) (*models.Player, error)

	// GetPlayerStats returns statistics derived from completed games, nil if the player is unknown
	GetPlayerStats(ctx context.Context, userID int64) (*models.PlayerStats, error)
}

// UnitOfWork defines one critical section over the document
type UnitOfWork interface {
	// Begin acquires exclusive access and loads the current document
	Begin(ctx context.Context) error

	// Commit persists the working document, releases access and flushes events
	Commit() error

	// Rollback discards the working document and releases access; a no-op after Commit
	Rollback() error

	// Repository getters
	GameRepository() GameRepository
	PlayerRepository() PlayerRepository
	EventBus() EventPublisher
}

// UnitOfWorkFactory defines the interface for creating UnitOfWork instances
type UnitOfWorkFactory interface {
	Create() UnitOfWork
}
