package repository

import (
	"context"
	"fmt"
	"time"

	"dicegame/models"
)

// PlayerRepository implements the PlayerRepository interface over a working document
type PlayerRepository struct {
	doc *models.Document
}

// NewPlayerRepository creates a player repository operating on doc
func NewPlayerRepository(doc *models.Document) *PlayerRepository {
	return &PlayerRepository{doc: doc}
}

// GetByUserID retrieves a player by user id
func (r *PlayerRepository) GetByUserID(ctx context.Context, userID int64) (*models.Player, error) {
	player, ok := r.doc.Players[userID]
	if !ok {
		return nil, nil
	}
	p := *player
	return &p, nil
}

// RecordJoin creates the player on first sight and counts one more game played
func (r *PlayerRepository) RecordJoin(ctx context.Context, userID int64, username string, joinedAt time.Time) (*models.Player, error) {
	player, ok := r.doc.Players[userID]
	if !ok {
		player = &models.Player{
			UserID:    userID,
			Username:  username,
			CreatedAt: joinedAt,
		}
		r.doc.Players[userID] = player
	}

	player.GamesPlayed++
	if username != "" {
		player.Username = username
	}

	p := *player
	return &p, nil
}

// UpdateUsername refreshes the last-seen username of an existing player
func (r *PlayerRepository) UpdateUsername(ctx context.Context, userID int64, username string) error {
	player, ok := r.doc.Players[userID]
	if !ok {
		return &models.NotFoundError{Entity: "player", ID: fmt.Sprintf("%d", userID)}
	}
	if username != "" {
		player.Username = username
	}
	return nil
}

// IncrementWins counts one win for the player if a record exists
func (r *PlayerRepository) IncrementWins(ctx context.Context, userID int64) (bool, error) {
	player, ok := r.doc.Players[userID]
	if !ok {
		return false, nil
	}
	player.TotalWins++
	return true, nil
}
