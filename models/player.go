package models

import (
	"time"
)

// Player is the global record of a user across all games
type Player struct {
	UserID      int64     `json:"userId"`
	Username    string    `json:"username,omitempty"`
	GamesPlayed int       `json:"gamesPlayed"`
	TotalWins   int       `json:"totalWins"`
	CreatedAt   time.Time `json:"createdAt"`
}
