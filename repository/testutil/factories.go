package testutil

import (
	"fmt"
	"time"

	"dicegame/models"
)

// CreateTestGame creates an active game with no players
func CreateTestGame(chatID int64, createdAt time.Time) *models.Game {
	return &models.Game{
		ID:        fmt.Sprintf("game_%d_%d", chatID, createdAt.UnixMilli()),
		ChatID:    chatID,
		CreatedAt: createdAt,
		Status:    models.GameStatusActive,
		Players:   make(map[int64]*models.PlayerInGame),
		Rounds:    make([]*models.RollRecord, 0),
	}
}

// CreateTestGameWithStatus creates a game in the given status
func CreateTestGameWithStatus(chatID int64, createdAt time.Time, status models.GameStatus) *models.Game {
	game := CreateTestGame(chatID, createdAt)
	game.Status = status
	if status == models.GameStatusCompleted {
		finished := createdAt.Add(10 * time.Minute)
		game.FinishedAt = &finished
	}
	return game
}

// AddTestRoll enrolls the user in the game and records a roll for them
func AddTestRoll(game *models.Game, userID int64, roll int, modifier float64) *models.RollRecord {
	record := &models.RollRecord{
		UserID:          userID,
		OriginalRoll:    roll,
		WeatherModifier: modifier,
		FinalScore:      float64(roll) + modifier,
		Timestamp:       game.CreatedAt.Add(time.Minute),
	}
	last := *record
	game.Players[userID] = &models.PlayerInGame{
		UserID:     userID,
		Username:   fmt.Sprintf("user%d", userID),
		JoinedAt:   game.CreatedAt,
		HasRolled:  true,
		LastRoll:   &last,
		TotalScore: record.FinalScore,
	}
	game.Rounds = append(game.Rounds, record)
	return record
}

// CreateTestPlayer creates a global player record
func CreateTestPlayer(userID int64, username string) *models.Player {
	return &models.Player{
		UserID:    userID,
		Username:  username,
		CreatedAt: time.Now().UTC(),
	}
}

// CreateTestDocument builds a document holding the given games and players
func CreateTestDocument(games []*models.Game, players ...*models.Player) *models.Document {
	doc := models.NewDocument()
	for _, game := range games {
		doc.Games[game.ID] = game
	}
	for _, player := range players {
		doc.Players[player.UserID] = player
	}
	return doc
}
