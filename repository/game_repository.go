package repository

import (
	"context"
	"fmt"
	"sort"
	"time"

	"dicegame/models"
)

// GameRepository implements the GameRepository interface over a working document
type GameRepository struct {
	doc *models.Document
}

// NewGameRepository creates a game repository operating on doc
func NewGameRepository(doc *models.Document) *GameRepository {
	return &GameRepository{doc: doc}
}

// gameID derives the id from the chat and the creation time in milliseconds
func gameID(chatID int64, millis int64) string {
	return fmt.Sprintf("game_%d_%d", chatID, millis)
}

// Create inserts a new active game. If another game of the same chat was created
// in the same millisecond, the millisecond component is bumped until the id is free.
func (r *GameRepository) Create(ctx context.Context, chatID int64, initialScore float64, createdAt time.Time) (*models.Game, error) {
	millis := createdAt.UnixMilli()
	id := gameID(chatID, millis)
	for {
		if _, taken := r.doc.Games[id]; !taken {
			break
		}
		millis++
		id = gameID(chatID, millis)
	}

	game := &models.Game{
		ID:           id,
		ChatID:       chatID,
		CreatedAt:    createdAt,
		Status:       models.GameStatusActive,
		Players:      make(map[int64]*models.PlayerInGame),
		CurrentScore: initialScore,
		Rounds:       make([]*models.RollRecord, 0),
	}
	r.doc.Games[id] = game

	return game.Clone(), nil
}

// GetByID retrieves a game by its id
func (r *GameRepository) GetByID(ctx context.Context, gameID string) (*models.Game, error) {
	game, ok := r.doc.Games[gameID]
	if !ok {
		return nil, nil
	}
	return game.Clone(), nil
}

// GetActiveByChat returns the earliest active game of the chat. More than one
// active game per chat is not prevented; picking the earliest keeps the answer stable.
func (r *GameRepository) GetActiveByChat(ctx context.Context, chatID int64) (*models.Game, error) {
	var found *models.Game
	for _, game := range r.doc.Games {
		if game.ChatID != chatID || !game.IsActive() {
			continue
		}
		if found == nil || gameLess(game, found) {
			found = game
		}
	}
	if found == nil {
		return nil, nil
	}
	return found.Clone(), nil
}

// ListByChat returns every game of the chat ordered by creation time
func (r *GameRepository) ListByChat(ctx context.Context, chatID int64) ([]*models.Game, error) {
	var games []*models.Game
	for _, game := range r.doc.Games {
		if game.ChatID == chatID {
			games = append(games, game.Clone())
		}
	}
	sortGames(games)
	return games, nil
}

// ListCompletedByPlayer returns the completed games the user joined
func (r *GameRepository) ListCompletedByPlayer(ctx context.Context, userID int64) ([]*models.Game, error) {
	var games []*models.Game
	for _, game := range r.doc.Games {
		if game.Status == models.GameStatusCompleted && game.HasPlayer(userID) {
			games = append(games, game.Clone())
		}
	}
	sortGames(games)
	return games, nil
}

// ApplyUpdate merges the non-nil fields of update into the game. A status change
// must follow the lifecycle; counters are never touched here.
func (r *GameRepository) ApplyUpdate(ctx context.Context, gameID string, update models.GameUpdate) (*models.Game, error) {
	game, ok := r.doc.Games[gameID]
	if !ok {
		return nil, models.NewGameNotFound(gameID)
	}

	if update.Status != nil {
		next := *update.Status
		if !next.IsValid() {
			return nil, models.NewValidationError("status", "unknown status %q", next)
		}
		if !game.Status.CanTransitionTo(next) {
			return nil, models.NewValidationError("status", "game %s cannot move from %s to %s", gameID, game.Status, next)
		}
	}

	if update.Status != nil {
		game.Status = *update.Status
	}
	if update.CurrentScore != nil {
		game.CurrentScore = *update.CurrentScore
	}
	if update.WinnerID != nil {
		winner := *update.WinnerID
		game.WinnerID = &winner
	}
	if update.FinishedAt != nil {
		finished := *update.FinishedAt
		game.FinishedAt = &finished
	}

	return game.Clone(), nil
}

// AddPlayer enrolls the user in an active game. A repeated join keeps the existing
// entry untouched apart from a refreshed username.
func (r *GameRepository) AddPlayer(ctx context.Context, gameID string, userID int64, username string, joinedAt time.Time) (*models.PlayerInGame, bool, error) {
	game, ok := r.doc.Games[gameID]
	if !ok {
		return nil, false, models.NewGameNotFound(gameID)
	}

	if existing, ok := game.Players[userID]; ok {
		if username != "" {
			existing.Username = username
		}
		return existing.Clone(), false, nil
	}

	if !game.IsActive() {
		return nil, false, models.NewValidationError("game", "game %s is %s", gameID, game.Status)
	}

	player := &models.PlayerInGame{
		UserID:   userID,
		Username: username,
		JoinedAt: joinedAt,
	}
	game.Players[userID] = player

	return player.Clone(), true, nil
}

// RecordRoll stores the roll on the player entry and appends it to the game rounds
func (r *GameRepository) RecordRoll(ctx context.Context, gameID string, roll *models.RollRecord) error {
	game, ok := r.doc.Games[gameID]
	if !ok {
		return models.NewGameNotFound(gameID)
	}
	player, ok := game.Players[roll.UserID]
	if !ok {
		return models.NewPlayerNotFound(gameID, roll.UserID)
	}
	if !game.IsActive() {
		return models.NewValidationError("game", "game %s is %s", gameID, game.Status)
	}
	if player.HasRolled {
		return models.NewValidationError("userId", "player %d already rolled in game %s", roll.UserID, gameID)
	}

	stored := *roll
	last := stored

	player.HasRolled = true
	player.LastRoll = &last
	player.TotalScore += stored.FinalScore
	game.Rounds = append(game.Rounds, &stored)

	return nil
}

// DeleteStaleBefore removes every non-completed game created before cutoff.
// Completed games are kept since statistics are derived from them.
func (r *GameRepository) DeleteStaleBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	var deleted []string
	for id, game := range r.doc.Games {
		if game.CreatedAt.Before(cutoff) && game.Status != models.GameStatusCompleted {
			delete(r.doc.Games, id)
			deleted = append(deleted, id)
		}
	}
	sort.Strings(deleted)
	return deleted, nil
}

func gameLess(a, b *models.Game) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

func sortGames(games []*models.Game) {
	sort.Slice(games, func(i, j int) bool {
		return gameLess(games[i], games[j])
	})
}
