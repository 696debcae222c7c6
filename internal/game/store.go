package game

import (
	"context"
	"errors"
	"time"

	"github.com/gambitlabs/gambit/internal/domain"
)

// ErrNotFound covers both a missing row and an owner mismatch so that
// existence of another player's game never leaks.
var ErrNotFound = errors.New("game not found")

// DefaultRetention is how long an untouched game survives before the sweep
// deletes its row.
const DefaultRetention = 7 * 24 * time.Hour

// Store reconciles sessions with durable storage. The durable row is the
// single source of truth across concurrent requests: every request loads
// fresh, mutates and writes the whole row back.
type Store interface {
	// LoadByID returns the session only when the row exists and belongs to
	// ownerID; otherwise ErrNotFound.
	LoadByID(ctx context.Context, id, ownerID string) (*Session, error)

	// Persist upserts the whole row. The first persist assigns the id and
	// createdAt; updatedAt is refreshed on every call. The move log is
	// stored losslessly in play order.
	Persist(ctx context.Context, s *Session) error

	// ListByOwner returns the owner's rows, most recently updated first.
	ListByOwner(ctx context.Context, ownerID string) ([]domain.SessionSummary, error)

	// SweepExpired deletes rows whose updatedAt is older than the retention
	// window and reports how many were removed.
	SweepExpired(ctx context.Context, retention time.Duration) (int, error)
}

// LoadOrCreate materializes a session for a request: a resumable id owned by
// the caller loads its row; an absent id, a missing row or an owner mismatch
// all produce a fresh default game persisted immediately so it has a durable
// id. The returned flag reports whether a new row was created.
func LoadOrCreate(ctx context.Context, st Store, id, ownerID string) (*Session, bool, error) {
	if id != "" {
		s, err := st.LoadByID(ctx, id, ownerID)
		if err == nil {
			return s, false, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, false, err
		}
	}
	s := NewSession(ownerID, domain.SideWhite, domain.DifficultyMedium)
	if err := st.Persist(ctx, s); err != nil {
		return nil, false, err
	}
	return s, true, nil
}

// ProfileStore persists per-owner results against the engine.
type ProfileStore interface {
	GetProfile(ctx context.Context, ownerID string) (*domain.PlayerProfile, error)
	UpsertProfile(ctx context.Context, profile *domain.PlayerProfile) error
}
