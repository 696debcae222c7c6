package gamedto

// DomainError is the stable error shape clients receive. Retryable marks
// transient conditions such as an unavailable engine.
type DomainError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
}

func (e DomainError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Code != "" {
		return e.Code
	}
	return "game service error"
}

// Error codes shared with clients.
const (
	CodeInvalidMove       = "invalid_move"
	CodeGameOver          = "game_over"
	CodeNotFound          = "not_found"
	CodeEngineUnavailable = "engine_unavailable"
	CodeBadRequest        = "bad_request"
	CodeInternal          = "internal"
)
