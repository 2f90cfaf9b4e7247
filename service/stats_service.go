package service

import (
	"context"
	"fmt"
	"math"

	"dicegame/models"
)

// statsService implements the StatsService interface
type statsService struct {
	uowFactory UnitOfWorkFactory
}

// NewStatsService creates a new stats service
func NewStatsService(uowFactory UnitOfWorkFactory) StatsService {
	return &statsService{
		uowFactory: uowFactory,
	}
}

// GetPlayer returns the global player record
func (s *statsService) GetPlayer(ctx context.Context, userID int64) (*models.Player, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	player, err := uow.PlayerRepository().GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get player %d: %w", userID, err)
	}
	return player, nil
}

// GetPlayerStats combines the player record with figures derived from the
// completed games the player took part in
func (s *statsService) GetPlayerStats(ctx context.Context, userID int64) (*models.PlayerStats, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	player, err := uow.PlayerRepository().GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get player %d: %w", userID, err)
	}
	if player == nil {
		return nil, nil
	}

	games, err := uow.GameRepository().ListCompletedByPlayer(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get completed games for player %d: %w", userID, err)
	}

	var totalRolls int
	var totalScore float64
	for _, game := range games {
		for _, roll := range game.RollsBy(userID) {
			totalRolls++
			totalScore += roll.FinalScore
		}
	}

	stats := &models.PlayerStats{
		Player:     *player,
		TotalRolls: totalRolls,
	}
	if totalRolls > 0 {
		stats.AverageScore = roundTo(totalScore/float64(totalRolls), 2)
	}
	if player.GamesPlayed > 0 {
		stats.WinRate = int(math.Round(float64(player.TotalWins) / float64(player.GamesPlayed) * 100))
	}

	return stats, nil
}
