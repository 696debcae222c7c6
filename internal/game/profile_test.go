package game

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/gambitlabs/gambit/internal/domain"
	"github.com/gambitlabs/gambit/internal/service/cache"
)

func newProfileFixture(t *testing.T) (*ProfileService, *memStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	store := NewMemoryStore()
	return NewProfileService(store, cache.NewWithClient(rdb), nil), store
}

func TestRecordResultCreatesProfileOnWin(t *testing.T) {
	svc, _ := newProfileFixture(t)
	ctx := context.Background()

	svc.RecordResult(ctx, "alice", domain.SideWhite, domain.ResultWhiteWins, domain.DifficultyHard)

	profile, err := svc.Get(ctx, "alice")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if profile == nil {
		t.Fatal("expected a profile after the first game")
	}
	if profile.GamesPlayed != 1 || profile.Wins != 1 {
		t.Fatalf("profile = %+v, want one win", profile)
	}
	if profile.Rating <= 1200 {
		t.Fatalf("rating = %d, want a gain over the initial 1200 after beating hard", profile.Rating)
	}
	if profile.Streak != 1 || profile.StreakType != "win" {
		t.Fatalf("streak = %d/%s, want 1/win", profile.Streak, profile.StreakType)
	}
}

func TestRecordResultTracksStreaks(t *testing.T) {
	svc, _ := newProfileFixture(t)
	ctx := context.Background()

	svc.RecordResult(ctx, "alice", domain.SideWhite, domain.ResultBlackWins, domain.DifficultyMedium)
	svc.RecordResult(ctx, "alice", domain.SideWhite, domain.ResultBlackWins, domain.DifficultyMedium)
	svc.RecordResult(ctx, "alice", domain.SideWhite, domain.ResultWhiteWins, domain.DifficultyMedium)

	profile, err := svc.Get(ctx, "alice")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if profile.Losses != 2 || profile.Wins != 1 || profile.Draws != 0 {
		t.Fatalf("record = %dW/%dL/%dD, want 1/2/0", profile.Wins, profile.Losses, profile.Draws)
	}
	if profile.Streak != 1 || profile.StreakType != "win" {
		t.Fatalf("streak = %d/%s, want reset to 1/win", profile.Streak, profile.StreakType)
	}
}

func TestRecordResultDraw(t *testing.T) {
	svc, _ := newProfileFixture(t)
	ctx := context.Background()

	svc.RecordResult(ctx, "alice", domain.SideBlack, domain.ResultDraw, domain.DifficultyEasy)

	profile, err := svc.Get(ctx, "alice")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if profile.Draws != 1 {
		t.Fatalf("draws = %d, want 1", profile.Draws)
	}
	if profile.Rating >= 1200 {
		t.Fatalf("rating = %d, want a loss of points for drawing the easy level", profile.Rating)
	}
}

func TestGetServesFromCacheAfterFirstLoad(t *testing.T) {
	svc, store := newProfileFixture(t)
	ctx := context.Background()

	svc.RecordResult(ctx, "alice", domain.SideWhite, domain.ResultWhiteWins, domain.DifficultyMedium)

	// Mutate the store behind the cache; a cached read should not see it.
	stored, _ := store.GetProfile(ctx, "alice")
	stored.Wins = 99
	if err := store.UpsertProfile(ctx, stored); err != nil {
		t.Fatalf("UpsertProfile: %v", err)
	}

	profile, err := svc.Get(ctx, "alice")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if profile.Wins != 1 {
		t.Fatalf("wins = %d, want the cached 1", profile.Wins)
	}
}

func TestGetUnknownOwnerReturnsNil(t *testing.T) {
	svc, _ := newProfileFixture(t)

	profile, err := svc.Get(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if profile != nil {
		t.Fatalf("profile = %+v, want nil", profile)
	}
}
