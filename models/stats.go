package models

// PlayerStats represents a player's record combined with statistics derived from completed games
type PlayerStats struct {
	Player
	TotalRolls   int     `json:"totalRolls"`
	AverageScore float64 `json:"averageScore"` // Rounded to 2 decimal places
	WinRate      int     `json:"winRate"`      // Percentage as 0-100
}
