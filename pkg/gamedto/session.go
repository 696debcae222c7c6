package gamedto

import "time"

// SessionState is the composite view returned by every game operation.
type SessionState struct {
	SessionID   string   `json:"session_id"`
	FEN         string   `json:"fen"`
	HumanSide   string   `json:"human_side"`
	Difficulty  string   `json:"difficulty"`
	History     []string `json:"history"`
	HistorySAN  []string `json:"history_san"`
	EngineMove  string   `json:"engine_move,omitempty"`
	Probability float64  `json:"win_probability"`
	Result      string   `json:"result,omitempty"`
	Method      string   `json:"method,omitempty"`
	Message     string   `json:"message,omitempty"`
}

// SessionSummary is one row of the session list.
type SessionSummary struct {
	SessionID string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SessionListResponse wraps ListSessions.
type SessionListResponse struct {
	Sessions []SessionSummary `json:"sessions"`
}

// HintResponse carries a suggested move for the side the human plays.
type HintResponse struct {
	Move     string `json:"move,omitempty"`
	GameOver bool   `json:"game_over,omitempty"`
	Message  string `json:"message,omitempty"`
}
