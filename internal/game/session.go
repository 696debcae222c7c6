package game

import (
	"fmt"
	"time"

	"github.com/gambitlabs/gambit/internal/domain"
	"github.com/gambitlabs/gambit/internal/rules"
)

// Session is the in-memory representation of one game. It is materialized
// from the durable store at the start of a request and written back at the
// end; it is never shared across requests.
type Session struct {
	ID         string
	OwnerID    string
	Position   *rules.Position
	MoveLog    []string
	HumanSide  domain.Side
	Difficulty domain.Difficulty
	CreatedAt  time.Time
	UpdatedAt  time.Time

	cachedProbability float64
	cacheValid        bool
}

// NewSession starts a fresh game for an owner. The id stays empty until the
// first persist assigns a durable row.
func NewSession(ownerID string, side domain.Side, difficulty domain.Difficulty) *Session {
	if ownerID == "" {
		ownerID = domain.AnonymousOwner
	}
	if !side.Valid() {
		side = domain.SideWhite
	}
	return &Session{
		OwnerID:    ownerID,
		Position:   rules.NewPosition(),
		HumanSide:  side,
		Difficulty: difficulty,
	}
}

// ApplyMove validates and applies one move, appends it to the move log and
// invalidates the cached evaluation. A rejected move changes nothing.
func (s *Session) ApplyMove(notation string) (uci string, san string, err error) {
	uci, san, err = s.Position.ApplyMove(notation)
	if err != nil {
		return "", "", err
	}
	s.MoveLog = append(s.MoveLog, uci)
	s.InvalidateEvaluation()
	return uci, san, nil
}

// Terminal reports whether the game reached its absorbing state.
func (s *Session) Terminal() bool {
	return s.Position.IsTerminal()
}

// CachedEvaluation returns the stored win probability and whether it is
// still valid for the current position.
func (s *Session) CachedEvaluation() (float64, bool) {
	return s.cachedProbability, s.cacheValid
}

// StoreEvaluation records a freshly computed probability as valid.
func (s *Session) StoreEvaluation(probability float64) {
	s.cachedProbability = probability
	s.cacheValid = true
}

// InvalidateEvaluation must be called after every position mutation; a stale
// value is never served as fresh.
func (s *Session) InvalidateEvaluation() {
	s.cacheValid = false
}

// Record converts the session to its durable shape.
func (s *Session) Record() *domain.GameRecord {
	rec := &domain.GameRecord{
		ID:         s.ID,
		OwnerID:    s.OwnerID,
		FEN:        s.Position.FEN(),
		Moves:      append([]string(nil), s.MoveLog...),
		HumanSide:  s.HumanSide,
		Difficulty: s.Difficulty,
		CreatedAt:  s.CreatedAt,
		UpdatedAt:  s.UpdatedAt,
	}
	if s.cacheValid {
		p := s.cachedProbability
		rec.CachedProbability = &p
	}
	return rec
}

// SessionFromRecord rebuilds the in-memory session by replaying the stored
// move log from the starting position.
func SessionFromRecord(rec *domain.GameRecord) (*Session, error) {
	if rec == nil {
		return nil, fmt.Errorf("nil game record")
	}
	pos, err := rules.Replay(rec.Moves)
	if err != nil {
		return nil, fmt.Errorf("rebuild session %s: %w", rec.ID, err)
	}
	s := &Session{
		ID:         rec.ID,
		OwnerID:    rec.OwnerID,
		Position:   pos,
		MoveLog:    append([]string(nil), rec.Moves...),
		HumanSide:  rec.HumanSide,
		Difficulty: rec.Difficulty,
		CreatedAt:  rec.CreatedAt,
		UpdatedAt:  rec.UpdatedAt,
	}
	if rec.CachedProbability != nil {
		s.StoreEvaluation(*rec.CachedProbability)
	}
	return s, nil
}
