package models

import (
	"time"
)

// GameStatus represents the lifecycle state of a game
type GameStatus string

const (
	GameStatusActive    GameStatus = "active"
	GameStatusCompleted GameStatus = "completed"
	GameStatusCancelled GameStatus = "cancelled"
)

// IsTerminal reports whether no further transition is allowed from the status
func (s GameStatus) IsTerminal() bool {
	return s == GameStatusCompleted || s == GameStatusCancelled
}

// IsValid reports whether s is a known status
func (s GameStatus) IsValid() bool {
	switch s {
	case GameStatusActive, GameStatusCompleted, GameStatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo checks whether a game in status s may move to next.
// Staying in the same status is always allowed.
func (s GameStatus) CanTransitionTo(next GameStatus) bool {
	if s == next {
		return true
	}
	return s == GameStatusActive && next.IsTerminal()
}

// Game represents one dice-rolling session scoped to a chat
type Game struct {
	ID           string                  `json:"id"`
	ChatID       int64                   `json:"chatId"`
	CreatedAt    time.Time               `json:"createdAt"`
	FinishedAt   *time.Time              `json:"finishedAt,omitempty"`
	Status       GameStatus              `json:"status"`
	Players      map[int64]*PlayerInGame `json:"players"`
	CurrentScore float64                 `json:"currentScore"`
	Rounds       []*RollRecord           `json:"rounds"`
	WinnerID     *int64                  `json:"winnerId,omitempty"`
}

// PlayerInGame is a player's participation record embedded in a game
type PlayerInGame struct {
	UserID     int64       `json:"userId"`
	Username   string      `json:"username,omitempty"`
	JoinedAt   time.Time   `json:"joinedAt"`
	HasRolled  bool        `json:"hasRolled"`
	LastRoll   *RollRecord `json:"lastRoll,omitempty"`
	TotalScore float64     `json:"totalScore"`
}

// RollRecord is the immutable outcome of one dice roll plus its weather adjustment
type RollRecord struct {
	UserID          int64     `json:"userId"`
	OriginalRoll    int       `json:"originalRoll"`
	WeatherModifier float64   `json:"weatherModifier"`
	FinalScore      float64   `json:"finalScore"`
	Timestamp       time.Time `json:"timestamp"`
}

// GameUpdate carries the fields a targeted update may change. Nil fields are left as they are.
type GameUpdate struct {
	Status       *GameStatus
	CurrentScore *float64
	WinnerID     *int64
	FinishedAt   *time.Time
}

// IsActive checks if the game still accepts players and rolls
func (g *Game) IsActive() bool {
	return g.Status == GameStatusActive
}

// HasPlayer checks if the user has joined the game
func (g *Game) HasPlayer(userID int64) bool {
	_, ok := g.Players[userID]
	return ok
}

// RollsBy returns the roll records of a user in chronological order
func (g *Game) RollsBy(userID int64) []*RollRecord {
	var rolls []*RollRecord
	for _, r := range g.Rounds {
		if r.UserID == userID {
			rolls = append(rolls, r)
		}
	}
	return rolls
}

// Clone returns a deep copy of the game so callers cannot alias document state
func (g *Game) Clone() *Game {
	if g == nil {
		return nil
	}
	c := *g
	if g.FinishedAt != nil {
		t := *g.FinishedAt
		c.FinishedAt = &t
	}
	if g.WinnerID != nil {
		w := *g.WinnerID
		c.WinnerID = &w
	}
	c.Players = make(map[int64]*PlayerInGame, len(g.Players))
	for id, p := range g.Players {
		c.Players[id] = p.Clone()
	}
	c.Rounds = make([]*RollRecord, 0, len(g.Rounds))
	for _, r := range g.Rounds {
		rc := *r
		c.Rounds = append(c.Rounds, &rc)
	}
	return &c
}

// Clone returns a deep copy of the participation record
func (p *PlayerInGame) Clone() *PlayerInGame {
	if p == nil {
		return nil
	}
	c := *p
	if p.LastRoll != nil {
		r := *p.LastRoll
		c.LastRoll = &r
	}
	return &c
}
