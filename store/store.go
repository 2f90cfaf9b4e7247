// Package store is the entry point for game persistence. A Store owns one
// document backend and serializes every operation on it.
package store

import (
	"context"
	"fmt"
	"time"

	"dicegame/config"
	"dicegame/database"
	"dicegame/events"
	"dicegame/metrics"
	"dicegame/models"
	"dicegame/repository"
	"dicegame/service"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
)

// Options selects the backend and collaborators of a Store
type Options struct {
	// Driver is one of the config.Driver* values; ignored when Backend is set
	Driver       string
	Path         string
	DatabaseURL  string
	DocumentName string
	SaveTimeout  time.Duration

	// Backend overrides Driver with a ready backend
	Backend service.DocumentBackend

	// EventBus receives committed events; a private bus is created when nil
	EventBus *events.Bus

	// Registerer receives the store metrics; a private registry is used when nil
	Registerer prometheus.Registerer

	// Clock stamps creation, join, roll and finish times; defaults to UTC wall time
	Clock service.Clock
}

// OptionsFromConfig maps application configuration to store options
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Driver:       cfg.StorageDriver,
		Path:         cfg.DatabasePath,
		DatabaseURL:  cfg.DatabaseURL,
		DocumentName: cfg.DocumentName,
		SaveTimeout:  cfg.SaveTimeout,
	}
}

// Store exposes the game operations over one document
type Store struct {
	backend service.DocumentBackend
	bus     *events.Bus
	metrics *metrics.Metrics
	games   service.GameService
	stats   service.StatsService
}

// Open initializes the backend, creating an empty document if none exists, and
// wires the services on top of it
func Open(ctx context.Context, opts Options) (*Store, error) {
	backend := opts.Backend
	if backend == nil {
		var err error
		backend, err = openBackend(ctx, opts)
		if err != nil {
			return nil, models.NewPersistenceError("init", err)
		}
	}

	if err := backend.Init(ctx); err != nil {
		_ = backend.Close()
		return nil, models.NewPersistenceError("init", err)
	}

	bus := opts.EventBus
	if bus == nil {
		bus = events.NewBus()
	}

	m := metrics.NewMetrics(opts.Registerer)

	factory := repository.NewUnitOfWorkFactory(backend, bus,
		repository.WithSaveTimeout(opts.SaveTimeout),
		repository.WithSaveObserver(m.ObserveSave),
	)

	log.WithField("driver", driverName(opts)).Info("Game store opened")

	return &Store{
		backend: backend,
		bus:     bus,
		metrics: m,
		games:   service.NewGameService(factory, opts.Clock),
		stats:   service.NewStatsService(factory),
	}, nil
}

func driverName(opts Options) string {
	if opts.Backend != nil {
		return fmt.Sprintf("%T", opts.Backend)
	}
	return opts.Driver
}

func openBackend(ctx context.Context, opts Options) (service.DocumentBackend, error) {
	switch opts.Driver {
	case config.DriverFile, "":
		return database.NewFileBackend(opts.Path)
	case config.DriverSQLite:
		return database.OpenSQLite(opts.Path, opts.DocumentName)
	case config.DriverMemory:
		return database.NewMemoryBackend(), nil
	case config.DriverPostgres:
		if err := database.MigrateUp(opts.DatabaseURL); err != nil {
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		db, err := database.NewConnection(ctx, opts.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		return database.NewPostgresBackend(db, opts.DocumentName), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", opts.Driver)
	}
}

// EventBus returns the bus committed events are emitted on
func (s *Store) EventBus() *events.Bus {
	return s.bus
}

// Metrics returns the store instruments
func (s *Store) Metrics() *metrics.Metrics {
	return s.metrics
}

// Close releases the backend
func (s *Store) Close() error {
	return s.backend.Close()
}

// CreateGame starts a new active game in the chat and returns its id
func (s *Store) CreateGame(ctx context.Context, chatID int64, initialScore float64) (id string, err error) {
	defer s.observe("create_game", time.Now(), &err)
	return s.games.CreateGame(ctx, chatID, initialScore)
}

// GetGame returns a copy of the game, nil if it does not exist
func (s *Store) GetGame(ctx context.Context, gameID string) (game *models.Game, err error) {
	defer s.observe("get_game", time.Now(), &err)
	return s.games.GetGame(ctx, gameID)
}

// GetActiveGameForChat returns the earliest active game of the chat, nil if none
func (s *Store) GetActiveGameForChat(ctx context.Context, chatID int64) (game *models.Game, err error) {
	defer s.observe("get_active_game_for_chat", time.Now(), &err)
	return s.games.GetActiveGameForChat(ctx, chatID)
}

// ListGamesForChat returns every game of the chat ordered by creation time
func (s *Store) ListGamesForChat(ctx context.Context, chatID int64) (games []*models.Game, err error) {
	defer s.observe("list_games_for_chat", time.Now(), &err)
	return s.games.ListGamesForChat(ctx, chatID)
}

// UpdateGame applies the non-nil fields of update to the game
func (s *Store) UpdateGame(ctx context.Context, gameID string, update models.GameUpdate) (game *models.Game, err error) {
	defer s.observe("update_game", time.Now(), &err)
	return s.games.UpdateGame(ctx, gameID, update)
}

// AddPlayerToGame enrolls the user, creating the global player record on first play
func (s *Store) AddPlayerToGame(ctx context.Context, gameID string, userID int64, username string) (player *models.PlayerInGame, err error) {
	defer s.observe("add_player_to_game", time.Now(), &err)
	return s.games.AddPlayerToGame(ctx, gameID, userID, username)
}

// RecordDiceRoll stores a player's roll adjusted by the weather modifier
func (s *Store) RecordDiceRoll(ctx context.Context, gameID string, userID int64, rollResult int, weatherModifier float64) (roll *models.RollRecord, err error) {
	defer s.observe("record_dice_roll", time.Now(), &err)
	return s.games.RecordDiceRoll(ctx, gameID, userID, rollResult, weatherModifier)
}

// FinishGame completes the game and credits the winner, if any
func (s *Store) FinishGame(ctx context.Context, gameID string, winnerID *int64) (game *models.Game, err error) {
	defer s.observe("finish_game", time.Now(), &err)
	return s.games.FinishGame(ctx, gameID, winnerID)
}

// CancelGame marks the game cancelled
func (s *Store) CancelGame(ctx context.Context, gameID string) (game *models.Game, err error) {
	defer s.observe("cancel_game", time.Now(), &err)
	return s.games.CancelGame(ctx, gameID)
}

// GetPlayer returns the global player record, nil if the user never played
func (s *Store) GetPlayer(ctx context.Context, userID int64) (player *models.Player, err error) {
	defer s.observe("get_player", time.Now(), &err)
	return s.stats.GetPlayer(ctx, userID)
}

// GetPlayerStats returns the player record with derived roll statistics
func (s *Store) GetPlayerStats(ctx context.Context, userID int64) (stats *models.PlayerStats, err error) {
	defer s.observe("get_player_stats", time.Now(), &err)
	return s.stats.GetPlayerStats(ctx, userID)
}

// CleanupOldGames deletes unfinished games older than hoursOld and returns how many were removed
func (s *Store) CleanupOldGames(ctx context.Context, hoursOld int) (deleted int, err error) {
	defer s.observe("cleanup_old_games", time.Now(), &err)
	deleted, err = s.games.CleanupOldGames(ctx, hoursOld)
	s.metrics.AddGamesDeleted(deleted)
	return deleted, err
}

func (s *Store) observe(operation string, start time.Time, err *error) {
	s.metrics.ObserveOperation(operation, start, *err)
}
