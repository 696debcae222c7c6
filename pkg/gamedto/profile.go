package gamedto

import "time"

// PlayerProfile is the caller's record against the engine.
type PlayerProfile struct {
	OwnerID             string    `json:"owner_id"`
	Rating              int       `json:"rating"`
	GamesPlayed         int       `json:"games_played"`
	Wins                int       `json:"wins"`
	Losses              int       `json:"losses"`
	Draws               int       `json:"draws"`
	Streak              int       `json:"streak"`
	StreakType          string    `json:"streak_type,omitempty"`
	PreferredDifficulty string    `json:"preferred_difficulty,omitempty"`
	LastPlayedAt        time.Time `json:"last_played_at"`
}
