package domain

import "time"

// Side identifies which color a player controls.
type Side string

const (
	SideWhite Side = "white"
	SideBlack Side = "black"
)

func (s Side) Valid() bool {
	return s == SideWhite || s == SideBlack
}

// Opposite returns the other color.
func (s Side) Opposite() Side {
	if s == SideWhite {
		return SideBlack
	}
	return SideWhite
}

// ParseSide normalizes user input; anything unrecognized defaults to White,
// matching the default side for a fresh game.
func ParseSide(raw string) Side {
	switch raw {
	case "black", "Black", "b":
		return SideBlack
	default:
		return SideWhite
	}
}

// Result is the terminal outcome of a game.
type Result string

const (
	ResultNone      Result = ""
	ResultWhiteWins Result = "white_wins"
	ResultBlackWins Result = "black_wins"
	ResultDraw      Result = "draw"
)

// Winner returns the winning side, or false for a draw or an unfinished game.
func (r Result) Winner() (Side, bool) {
	switch r {
	case ResultWhiteWins:
		return SideWhite, true
	case ResultBlackWins:
		return SideBlack, true
	default:
		return "", false
	}
}

// Difficulty selects the engine strength preset.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// ParseDifficulty maps user input onto a known level; unknown values fall
// back to Medium, the same default the skill table applies.
func ParseDifficulty(raw string) Difficulty {
	switch raw {
	case "easy", "Easy":
		return DifficultyEasy
	case "hard", "Hard":
		return DifficultyHard
	default:
		return DifficultyMedium
	}
}

// AnonymousOwner is the sentinel identity for requests without a player id.
const AnonymousOwner = "anonymous"

// GameRecord is the durable row for one game. Moves are ordered UCI
// notations; FEN is the canonical encoding of the current position.
type GameRecord struct {
	ID                string
	OwnerID           string
	FEN               string
	Moves             []string
	HumanSide         Side
	Difficulty        Difficulty
	CachedProbability *float64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// SessionSummary is the listing shape for a player's stored games.
type SessionSummary struct {
	ID        string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PlayerProfile tracks per-owner results against the engine.
type PlayerProfile struct {
	OwnerID             string
	Rating              int
	GamesPlayed         int
	Wins                int
	Losses              int
	Draws               int
	Streak              int
	StreakType          string
	PreferredDifficulty Difficulty
	LastPlayedAt        time.Time
	UpdatedAt           time.Time
	CreatedAt           time.Time
}
