package gamedto

// ResetRequest starts a new game for the caller.
type ResetRequest struct {
	Difficulty string `json:"difficulty,omitempty"`
	HumanSide  string `json:"human_side,omitempty"`
}

// MoveRequest applies one human move to a session.
type MoveRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Move      string `json:"move"`
}

// ResumeRequest reactivates a stored session by id.
type ResumeRequest struct {
	SessionID string `json:"session_id"`
}
