package game

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gambitlabs/gambit/internal/domain"
)

// pgStore is the Postgres-backed Store and ProfileStore.
type pgStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an open database handle.
func NewPostgresStore(db *sql.DB) *pgStore {
	return &pgStore{db: db}
}

func (r *pgStore) LoadByID(ctx context.Context, id, ownerID string) (*Session, error) {
	const query = `
		SELECT
			id,
			owner_id,
			fen,
			moves,
			human_side,
			difficulty,
			cached_probability,
			created_at,
			updated_at
		FROM game_sessions
		WHERE id = $1 AND owner_id = $2`

	var (
		rec       domain.GameRecord
		movesJSON []byte
		cached    sql.NullFloat64
	)
	err := r.db.QueryRowContext(ctx, query, id, ownerID).Scan(
		&rec.ID,
		&rec.OwnerID,
		&rec.FEN,
		&movesJSON,
		&rec.HumanSide,
		&rec.Difficulty,
		&cached,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select game session: %w", err)
	}
	if err := json.Unmarshal(movesJSON, &rec.Moves); err != nil {
		return nil, fmt.Errorf("unmarshal moves: %w", err)
	}
	if cached.Valid {
		p := cached.Float64
		rec.CachedProbability = &p
	}
	return SessionFromRecord(&rec)
}

func (r *pgStore) Persist(ctx context.Context, s *Session) error {
	now := time.Now()
	if s.ID == "" {
		s.ID = uuid.NewString()
		s.CreatedAt = now
	}
	s.UpdatedAt = now
	rec := s.Record()

	movesJSON, err := json.Marshal(rec.Moves)
	if err != nil {
		return fmt.Errorf("marshal moves: %w", err)
	}
	var cached sql.NullFloat64
	if rec.CachedProbability != nil {
		cached = sql.NullFloat64{Float64: *rec.CachedProbability, Valid: true}
	}

	const query = `
		INSERT INTO game_sessions (
			id,
			owner_id,
			fen,
			moves,
			human_side,
			difficulty,
			cached_probability,
			created_at,
			updated_at
		)
		VALUES ($1, $2, $3, $4::jsonb, $5, $6, $7, $8, $9)
		ON CONFLICT (id)
		DO UPDATE SET
			fen = EXCLUDED.fen,
			moves = EXCLUDED.moves,
			human_side = EXCLUDED.human_side,
			difficulty = EXCLUDED.difficulty,
			cached_probability = EXCLUDED.cached_probability,
			updated_at = EXCLUDED.updated_at`

	_, err = r.db.ExecContext(
		ctx,
		query,
		rec.ID,
		rec.OwnerID,
		rec.FEN,
		movesJSON,
		string(rec.HumanSide),
		string(rec.Difficulty),
		cached,
		rec.CreatedAt,
		rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert game session: %w", err)
	}
	return nil
}

func (r *pgStore) ListByOwner(ctx context.Context, ownerID string) ([]domain.SessionSummary, error) {
	const query = `
		SELECT id, created_at, updated_at
		FROM game_sessions
		WHERE owner_id = $1
		ORDER BY updated_at DESC`

	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("select game sessions: %w", err)
	}
	defer rows.Close()

	out := make([]domain.SessionSummary, 0)
	for rows.Next() {
		var s domain.SessionSummary
		if err := rows.Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan game session: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *pgStore) SweepExpired(ctx context.Context, retention time.Duration) (int, error) {
	if retention <= 0 {
		retention = DefaultRetention
	}
	const query = `DELETE FROM game_sessions WHERE updated_at < $1`
	res, err := r.db.ExecContext(ctx, query, time.Now().Add(-retention))
	if err != nil {
		return 0, fmt.Errorf("sweep game sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return int(n), nil
}

func (r *pgStore) GetProfile(ctx context.Context, ownerID string) (*domain.PlayerProfile, error) {
	const query = `
		SELECT
			owner_id,
			rating,
			games_played,
			wins,
			losses,
			draws,
			streak,
			streak_type,
			preferred_difficulty,
			last_played_at,
			updated_at,
			created_at
		FROM player_profiles
		WHERE owner_id = $1
		LIMIT 1`

	var profile domain.PlayerProfile
	err := r.db.QueryRowContext(ctx, query, ownerID).Scan(
		&profile.OwnerID,
		&profile.Rating,
		&profile.GamesPlayed,
		&profile.Wins,
		&profile.Losses,
		&profile.Draws,
		&profile.Streak,
		&profile.StreakType,
		&profile.PreferredDifficulty,
		&profile.LastPlayedAt,
		&profile.UpdatedAt,
		&profile.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select player profile: %w", err)
	}
	return &profile, nil
}

func (r *pgStore) UpsertProfile(ctx context.Context, profile *domain.PlayerProfile) error {
	if profile == nil {
		return fmt.Errorf("nil player profile payload")
	}
	const query = `
		INSERT INTO player_profiles (
			owner_id,
			rating,
			games_played,
			wins,
			losses,
			draws,
			streak,
			streak_type,
			preferred_difficulty,
			last_played_at,
			updated_at,
			created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
		ON CONFLICT (owner_id)
		DO UPDATE SET
			rating = EXCLUDED.rating,
			games_played = EXCLUDED.games_played,
			wins = EXCLUDED.wins,
			losses = EXCLUDED.losses,
			draws = EXCLUDED.draws,
			streak = EXCLUDED.streak,
			streak_type = EXCLUDED.streak_type,
			preferred_difficulty = EXCLUDED.preferred_difficulty,
			last_played_at = EXCLUDED.last_played_at,
			updated_at = NOW()`

	_, err := r.db.ExecContext(
		ctx,
		query,
		profile.OwnerID,
		profile.Rating,
		profile.GamesPlayed,
		profile.Wins,
		profile.Losses,
		profile.Draws,
		profile.Streak,
		profile.StreakType,
		string(profile.PreferredDifficulty),
		profile.LastPlayedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert player profile: %w", err)
	}
	return nil
}
