package service

import (
	"math"

	"dicegame/models"
)

const (
	// MinRoll and MaxRoll bound the face value of a six-sided die
	MinRoll = 1
	MaxRoll = 6

	// MaxWeatherModifier bounds the absolute weather adjustment accepted for a roll
	MaxWeatherModifier = 1.0
)

func validateRoll(rollResult int) error {
	if rollResult < MinRoll || rollResult > MaxRoll {
		return models.NewValidationError("rollResult", "must be between %d and %d, got %d", MinRoll, MaxRoll, rollResult)
	}
	return nil
}

func validateWeatherModifier(modifier float64) error {
	if math.IsNaN(modifier) || math.IsInf(modifier, 0) {
		return models.NewValidationError("weatherModifier", "must be a finite number")
	}
	if math.Abs(modifier) > MaxWeatherModifier {
		return models.NewValidationError("weatherModifier", "must be within ±%.1f, got %v", MaxWeatherModifier, modifier)
	}
	return nil
}

func validateScore(field string, score float64) error {
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return models.NewValidationError(field, "must be a finite number")
	}
	return nil
}

func validateUserID(userID int64) error {
	if userID == 0 {
		return models.NewValidationError("userId", "is required")
	}
	return nil
}

func validateGameID(gameID string) error {
	if gameID == "" {
		return models.NewValidationError("gameId", "is required")
	}
	return nil
}

// roundTo rounds x to the given number of decimal places
func roundTo(x float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(x*scale) / scale
}
