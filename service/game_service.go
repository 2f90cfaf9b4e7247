package service

import (
	"context"
	"fmt"
	"time"

	"dicegame/events"
	"dicegame/models"

	log "github.com/sirupsen/logrus"
)

// gameService implements the GameService interface
type gameService struct {
	uowFactory UnitOfWorkFactory
	now        Clock
}

// NewGameService creates a new game service. A nil clock means SystemClock.
func NewGameService(uowFactory UnitOfWorkFactory, clock Clock) GameService {
	if clock == nil {
		clock = SystemClock
	}
	return &gameService{
		uowFactory: uowFactory,
		now:        clock,
	}
}

// CreateGame starts a new active game for a chat and returns its id
func (s *gameService) CreateGame(ctx context.Context, chatID int64, initialScore float64) (string, error) {
	if err := validateScore("initialScore", initialScore); err != nil {
		return "", err
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	game, err := uow.GameRepository().Create(ctx, chatID, initialScore, s.now())
	if err != nil {
		return "", fmt.Errorf("failed to create game: %w", err)
	}

	uow.EventBus().Publish(events.GameCreatedEvent{
		GameID:       game.ID,
		ChatID:       chatID,
		InitialScore: initialScore,
	})

	if err := uow.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit game creation: %w", err)
	}

	log.WithFields(log.Fields{
		"gameId": game.ID,
		"chatId": chatID,
	}).Info("Game created")

	return game.ID, nil
}

// GetGame retrieves a game by id
func (s *gameService) GetGame(ctx context.Context, gameID string) (*models.Game, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	game, err := uow.GameRepository().GetByID(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to get game: %w", err)
	}
	return game, nil
}

// GetActiveGameForChat returns the active game of a chat
func (s *gameService) GetActiveGameForChat(ctx context.Context, chatID int64) (*models.Game, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	game, err := uow.GameRepository().GetActiveByChat(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to get active game for chat %d: %w", chatID, err)
	}
	return game, nil
}

// ListGamesForChat returns every game of a chat
func (s *gameService) ListGamesForChat(ctx context.Context, chatID int64) ([]*models.Game, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	games, err := uow.GameRepository().ListByChat(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to list games for chat %d: %w", chatID, err)
	}
	return games, nil
}

// UpdateGame applies a targeted field update
func (s *gameService) UpdateGame(ctx context.Context, gameID string, update models.GameUpdate) (*models.Game, error) {
	if update.CurrentScore != nil {
		if err := validateScore("currentScore", *update.CurrentScore); err != nil {
			return nil, err
		}
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	before, err := uow.GameRepository().GetByID(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to get game: %w", err)
	}
	if before == nil {
		return nil, models.NewGameNotFound(gameID)
	}

	game, err := uow.GameRepository().ApplyUpdate(ctx, gameID, update)
	if err != nil {
		return nil, fmt.Errorf("failed to update game: %w", err)
	}

	uow.EventBus().Publish(events.GameUpdatedEvent{
		GameID:    game.ID,
		ChatID:    game.ChatID,
		OldStatus: string(before.Status),
		NewStatus: string(game.Status),
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit game update: %w", err)
	}

	return game, nil
}

// AddPlayerToGame enrolls a user in a game. A repeated join returns the existing
// entry and does not count another game played.
func (s *gameService) AddPlayerToGame(ctx context.Context, gameID string, userID int64, username string) (*models.PlayerInGame, error) {
	if err := validateGameID(gameID); err != nil {
		return nil, err
	}
	if err := validateUserID(userID); err != nil {
		return nil, err
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	game, err := uow.GameRepository().GetByID(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to get game: %w", err)
	}
	if game == nil {
		return nil, models.NewGameNotFound(gameID)
	}

	now := s.now()
	entry, added, err := uow.GameRepository().AddPlayer(ctx, gameID, userID, username, now)
	if err != nil {
		return nil, fmt.Errorf("failed to add player to game: %w", err)
	}

	if added {
		if _, err := uow.PlayerRepository().RecordJoin(ctx, userID, username, now); err != nil {
			return nil, fmt.Errorf("failed to record join: %w", err)
		}
		uow.EventBus().Publish(events.PlayerJoinedEvent{
			GameID:   gameID,
			ChatID:   game.ChatID,
			UserID:   userID,
			Username: username,
		})
	} else {
		if err := s.refreshUsername(ctx, uow, userID, username, now); err != nil {
			return nil, err
		}
		log.WithFields(log.Fields{
			"gameId": gameID,
			"userId": userID,
		}).Debug("Player already in game")
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit player join: %w", err)
	}

	return entry, nil
}

// refreshUsername updates the last-seen username on a re-join. A missing global
// record (documents written before players were tracked) is created instead.
func (s *gameService) refreshUsername(ctx context.Context, uow UnitOfWork, userID int64, username string, now time.Time) error {
	player, err := uow.PlayerRepository().GetByUserID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get player: %w", err)
	}
	if player == nil {
		if _, err := uow.PlayerRepository().RecordJoin(ctx, userID, username, now); err != nil {
			return fmt.Errorf("failed to record join: %w", err)
		}
		return nil
	}
	if err := uow.PlayerRepository().UpdateUsername(ctx, userID, username); err != nil {
		return fmt.Errorf("failed to update username: %w", err)
	}
	return nil
}

// RecordDiceRoll stores a player's single roll
func (s *gameService) RecordDiceRoll(ctx context.Context, gameID string, userID int64, rollResult int, weatherModifier float64) (*models.RollRecord, error) {
	if err := validateRoll(rollResult); err != nil {
		return nil, err
	}
	if err := validateWeatherModifier(weatherModifier); err != nil {
		return nil, err
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	game, err := uow.GameRepository().GetByID(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to get game: %w", err)
	}
	if game == nil {
		return nil, models.NewGameNotFound(gameID)
	}

	roll := &models.RollRecord{
		UserID:          userID,
		OriginalRoll:    rollResult,
		WeatherModifier: weatherModifier,
		FinalScore:      float64(rollResult) + weatherModifier,
		Timestamp:       s.now(),
	}

	if err := uow.GameRepository().RecordRoll(ctx, gameID, roll); err != nil {
		return nil, fmt.Errorf("failed to record roll: %w", err)
	}

	uow.EventBus().Publish(events.DiceRolledEvent{
		GameID:          gameID,
		ChatID:          game.ChatID,
		UserID:          userID,
		OriginalRoll:    roll.OriginalRoll,
		WeatherModifier: roll.WeatherModifier,
		FinalScore:      roll.FinalScore,
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit roll: %w", err)
	}

	log.WithFields(log.Fields{
		"gameId":     gameID,
		"userId":     userID,
		"finalScore": roll.FinalScore,
	}).Info("Dice roll recorded")

	return roll, nil
}

// FinishGame completes a game. Finishing an already completed game returns it
// unchanged, so the winner is never credited twice.
func (s *gameService) FinishGame(ctx context.Context, gameID string, winnerID *int64) (*models.Game, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	game, err := uow.GameRepository().GetByID(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to get game: %w", err)
	}
	if game == nil {
		return nil, models.NewGameNotFound(gameID)
	}

	switch game.Status {
	case models.GameStatusCompleted:
		log.WithField("gameId", gameID).Debug("Game already completed")
		return game, nil
	case models.GameStatusCancelled:
		return nil, models.NewValidationError("status", "game %s is cancelled", gameID)
	}

	status := models.GameStatusCompleted
	finishedAt := s.now()
	game, err = uow.GameRepository().ApplyUpdate(ctx, gameID, models.GameUpdate{
		Status:     &status,
		FinishedAt: &finishedAt,
		WinnerID:   winnerID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to finish game: %w", err)
	}

	if winnerID != nil {
		found, err := uow.PlayerRepository().IncrementWins(ctx, *winnerID)
		if err != nil {
			return nil, fmt.Errorf("failed to credit winner: %w", err)
		}
		if !found {
			log.WithFields(log.Fields{
				"gameId":   gameID,
				"winnerId": *winnerID,
			}).Warn("Winner has no player record, win not counted")
		}
	}

	uow.EventBus().Publish(events.GameFinishedEvent{
		GameID:   gameID,
		ChatID:   game.ChatID,
		WinnerID: game.WinnerID,
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit game completion: %w", err)
	}

	log.WithFields(log.Fields{
		"gameId":  gameID,
		"players": len(game.Players),
	}).Info("Game finished")

	return game, nil
}

// CancelGame moves an active game to cancelled
func (s *gameService) CancelGame(ctx context.Context, gameID string) (*models.Game, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	game, err := uow.GameRepository().GetByID(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to get game: %w", err)
	}
	if game == nil {
		return nil, models.NewGameNotFound(gameID)
	}
	if game.Status == models.GameStatusCancelled {
		return game, nil
	}

	status := models.GameStatusCancelled
	updated, err := uow.GameRepository().ApplyUpdate(ctx, gameID, models.GameUpdate{Status: &status})
	if err != nil {
		return nil, fmt.Errorf("failed to cancel game: %w", err)
	}

	uow.EventBus().Publish(events.GameUpdatedEvent{
		GameID:    gameID,
		ChatID:    game.ChatID,
		OldStatus: string(game.Status),
		NewStatus: string(updated.Status),
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit game cancellation: %w", err)
	}

	return updated, nil
}

// CleanupOldGames deletes non-completed games created more than hoursOld hours ago.
// The document is only written when something was removed.
func (s *gameService) CleanupOldGames(ctx context.Context, hoursOld int) (int, error) {
	if hoursOld <= 0 {
		return 0, models.NewValidationError("hoursOld", "must be positive, got %d", hoursOld)
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	cutoff := CleanupCutoff(s.now(), hoursOld)
	deleted, err := uow.GameRepository().DeleteStaleBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale games: %w", err)
	}
	if len(deleted) == 0 {
		return 0, nil
	}

	uow.EventBus().Publish(events.GamesCleanedUpEvent{
		GameIDs:  deleted,
		HoursOld: hoursOld,
	})

	if err := uow.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit cleanup: %w", err)
	}

	log.WithFields(log.Fields{
		"deleted": len(deleted),
		"cutoff":  cutoff.Format(time.RFC3339),
	}).Info("Old games cleaned up")

	return len(deleted), nil
}
