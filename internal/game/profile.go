package game

import (
	"context"
	"errors"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/gambitlabs/gambit/internal/domain"
	"github.com/gambitlabs/gambit/internal/service/cache"
)

const (
	defaultPlayerRating = 1200
	kFactor             = 24
	profileCacheTTL     = 6 * time.Hour
)

// ProfileService keeps per-owner results against the engine, with a Redis
// read-through cache in front of the durable store. All writes are
// best-effort from the controller's point of view.
type ProfileService struct {
	store  ProfileStore
	cache  *cache.Service
	logger *zap.Logger
}

// NewProfileService accepts a nil cache; lookups then always hit the store.
func NewProfileService(store ProfileStore, cacheSvc *cache.Service, logger *zap.Logger) *ProfileService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProfileService{store: store, cache: cacheSvc, logger: logger}
}

func profileCacheKey(ownerID string) string {
	return "gambit:profile:" + ownerID
}

// Get returns the owner's profile, or nil when none exists yet.
func (p *ProfileService) Get(ctx context.Context, ownerID string) (*domain.PlayerProfile, error) {
	if p.cache != nil {
		profile := &domain.PlayerProfile{}
		err := p.cache.Get(ctx, profileCacheKey(ownerID), profile)
		if err == nil && profile.OwnerID != "" {
			return profile, nil
		}
		if err != nil && !errors.Is(err, cache.ErrMiss) {
			p.logger.Warn("profile cache read failed", zap.Error(err))
		}
	}

	profile, err := p.store.GetProfile(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if profile != nil {
		p.cacheProfile(ctx, profile)
	}
	return profile, nil
}

// RecordResult folds one finished game into the owner's profile and rating.
// Failures are logged and swallowed; a lost profile update never fails the
// move that finished the game.
func (p *ProfileService) RecordResult(ctx context.Context, ownerID string, humanSide domain.Side, result domain.Result, difficulty domain.Difficulty) {
	profile, err := p.store.GetProfile(ctx, ownerID)
	if err != nil {
		p.logger.Warn("profile load failed", zap.String("owner", ownerID), zap.Error(err))
		return
	}
	now := time.Now()
	if profile == nil {
		profile = &domain.PlayerProfile{
			OwnerID:   ownerID,
			Rating:    defaultPlayerRating,
			CreatedAt: now,
		}
	}

	profile.GamesPlayed++
	profile.PreferredDifficulty = difficulty
	profile.LastPlayedAt = now
	profile.UpdatedAt = now

	var score float64
	resultType := "draw"
	switch {
	case result == domain.ResultDraw:
		profile.Draws++
		score = 0.5
	default:
		winner, decided := result.Winner()
		if !decided {
			return
		}
		if winner == humanSide {
			profile.Wins++
			resultType = "win"
			score = 1.0
		} else {
			profile.Losses++
			resultType = "loss"
			score = 0.0
		}
	}

	if profile.StreakType == resultType {
		profile.Streak++
	} else {
		profile.Streak = 1
		profile.StreakType = resultType
	}

	engineRating := difficultyApproxRating(difficulty)
	expected := 1 / (1 + math.Pow(10, float64(engineRating-profile.Rating)/400))
	profile.Rating = int(math.Round(float64(profile.Rating) + kFactor*(score-expected)))

	if err := p.store.UpsertProfile(ctx, profile); err != nil {
		p.logger.Warn("profile upsert failed", zap.String("owner", ownerID), zap.Error(err))
		return
	}
	p.cacheProfile(ctx, profile)
}

func (p *ProfileService) cacheProfile(ctx context.Context, profile *domain.PlayerProfile) {
	if p.cache == nil || profile == nil {
		return
	}
	if err := p.cache.Set(ctx, profileCacheKey(profile.OwnerID), profile, profileCacheTTL); err != nil {
		p.logger.Warn("profile cache write failed", zap.Error(err))
	}
}

// difficultyApproxRating is the nominal strength the Elo update plays
// against for each level.
func difficultyApproxRating(d domain.Difficulty) int {
	switch d {
	case domain.DifficultyEasy:
		return 800
	case domain.DifficultyHard:
		return 2000
	default:
		return 1400
	}
}
