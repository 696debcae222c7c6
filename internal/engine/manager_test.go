package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/gambitlabs/gambit/internal/domain"
	"github.com/gambitlabs/gambit/internal/engine/uci"
)

type fakeSession struct {
	skill     int
	skillErr  error
	searchErr error
	eval      uci.Evaluation
	quits     int
}

func (f *fakeSession) SetSkillLevel(ctx context.Context, level int) error {
	f.skill = level
	return f.skillErr
}

func (f *fakeSession) Search(ctx context.Context, req uci.SearchRequest) (uci.Evaluation, error) {
	if f.searchErr != nil {
		return uci.Evaluation{}, f.searchErr
	}
	return f.eval, nil
}

func (f *fakeSession) Quit(ctx context.Context) error {
	f.quits++
	return nil
}

func newTestManager(t *testing.T, spawn func(ctx context.Context) (searchSession, error)) *Manager {
	t.Helper()
	m, err := NewManager(ManagerConfig{
		BinaryPath:   "/nonexistent/stockfish",
		SpawnBackoff: time.Millisecond,
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	m.spawn = spawn
	return m
}

func TestAcquireRetriesThenFails(t *testing.T) {
	attempts := 0
	m := newTestManager(t, func(ctx context.Context) (searchSession, error) {
		attempts++
		return nil, errors.New("spawn boom")
	})

	_, err := m.Acquire(context.Background())
	if !errors.Is(err, ErrEngineUnavailable) {
		t.Fatalf("err = %v, want ErrEngineUnavailable", err)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
}

func TestAcquireSucceedsAfterTransientFailure(t *testing.T) {
	attempts := 0
	session := &fakeSession{}
	m := newTestManager(t, func(ctx context.Context) (searchSession, error) {
		attempts++
		if attempts < 3 {
			return nil, errors.New("still booting")
		}
		return session, nil
	})

	h, err := m.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer m.Release(h)
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
}

func TestReleaseIsIdempotentAndNilSafe(t *testing.T) {
	session := &fakeSession{}
	m := newTestManager(t, func(ctx context.Context) (searchSession, error) {
		return session, nil
	})

	m.Release(nil)

	h, err := m.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	m.Release(h)
	m.Release(h)
	if session.quits != 1 {
		t.Fatalf("quits = %d, want 1", session.quits)
	}

	if _, err := h.BestMove(context.Background(), "startpos", nil, time.Second); !errors.Is(err, ErrEngineUnavailable) {
		t.Fatalf("BestMove after release = %v, want ErrEngineUnavailable", err)
	}
}

func TestConfigureAppliesSkillAndSwallowsFailure(t *testing.T) {
	session := &fakeSession{}
	m := newTestManager(t, func(ctx context.Context) (searchSession, error) {
		return session, nil
	})

	h, err := m.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer m.Release(h)

	m.Configure(context.Background(), h, domain.DifficultyHard)
	if session.skill != 20 {
		t.Fatalf("skill = %d, want 20", session.skill)
	}

	session.skillErr = errors.New("option rejected")
	m.Configure(context.Background(), h, domain.DifficultyEasy)
	if session.skill != 5 {
		t.Fatalf("skill = %d, want 5 even when the engine rejects it", session.skill)
	}
}

func TestHandleEvaluateMapsScores(t *testing.T) {
	session := &fakeSession{eval: uci.Evaluation{Mate: true, MatePlies: 2, BestMove: "d8h4"}}
	m := newTestManager(t, func(ctx context.Context) (searchSession, error) {
		return session, nil
	})
	h, err := m.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer m.Release(h)

	score, err := h.Evaluate(context.Background(), "startpos", nil, time.Second)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if score.Kind != ScoreMate || score.MatePlies != 2 {
		t.Fatalf("score = %+v, want mate in 2", score)
	}

	session.eval = uci.Evaluation{Centipawns: -120, BestMove: "e7e5"}
	score, err = h.Evaluate(context.Background(), "startpos", nil, time.Second)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if score.Kind != ScoreCentipawns || score.Centipawns != -120 {
		t.Fatalf("score = %+v, want cp -120", score)
	}
}

func TestSkillLevelTable(t *testing.T) {
	if got := SkillFor(domain.DifficultyEasy); got != 5 {
		t.Fatalf("easy = %d, want 5", got)
	}
	if got := SkillFor(domain.DifficultyMedium); got != 10 {
		t.Fatalf("medium = %d, want 10", got)
	}
	if got := SkillFor(domain.DifficultyHard); got != 20 {
		t.Fatalf("hard = %d, want 20", got)
	}
	if got := SkillFor(domain.Difficulty("unknown")); got != 10 {
		t.Fatalf("unknown = %d, want default 10", got)
	}
}

func TestScoreOriented(t *testing.T) {
	s := Score{Kind: ScoreCentipawns, Centipawns: 80}
	if got := s.Oriented(false); got.Centipawns != 80 {
		t.Fatalf("unflipped = %d, want 80", got.Centipawns)
	}
	if got := s.Oriented(true); got.Centipawns != -80 {
		t.Fatalf("flipped = %d, want -80", got.Centipawns)
	}

	m := Score{Kind: ScoreMate, MatePlies: 4}
	if got := m.Oriented(true); got.MatePlies != -4 {
		t.Fatalf("flipped mate = %d, want -4", got.MatePlies)
	}
}
