package game

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gambitlabs/gambit/internal/domain"
	"github.com/gambitlabs/gambit/internal/engine"
)

type fakeHandle struct {
	score     engine.Score
	scoreErr  error
	bestMoves []string
	bestErr   error
	evalCalls int
}

func (f *fakeHandle) BestMove(ctx context.Context, fen string, moves []string, budget time.Duration) (string, error) {
	if f.bestErr != nil {
		return "", f.bestErr
	}
	if len(f.bestMoves) == 0 {
		return "", errors.New("no scripted move")
	}
	mv := f.bestMoves[0]
	f.bestMoves = f.bestMoves[1:]
	return mv, nil
}

func (f *fakeHandle) Evaluate(ctx context.Context, fen string, moves []string, budget time.Duration) (engine.Score, error) {
	f.evalCalls++
	if f.scoreErr != nil {
		return engine.Score{}, f.scoreErr
	}
	return f.score, nil
}

func newTestSession(t *testing.T, side domain.Side, moves ...string) *Session {
	t.Helper()
	s := NewSession("tester", side, domain.DifficultyMedium)
	for _, mv := range moves {
		if _, _, err := s.ApplyMove(mv); err != nil {
			t.Fatalf("ApplyMove(%s): %v", mv, err)
		}
	}
	return s
}

func TestProbabilityNeutralAtZero(t *testing.T) {
	eval := NewEvaluator(0, 0, nil)
	s := newTestSession(t, domain.SideWhite)
	h := &fakeHandle{score: engine.Score{Kind: engine.ScoreCentipawns, Centipawns: 0}}

	if p := eval.ProbabilityFor(context.Background(), h, s); p != 50 {
		t.Fatalf("probability = %v, want 50", p)
	}
}

func TestProbabilityMonotonicInAdvantage(t *testing.T) {
	eval := NewEvaluator(0, 0, nil)
	prev := 0.0
	for _, cp := range []int{10, 100, 400, 2000} {
		s := newTestSession(t, domain.SideWhite)
		h := &fakeHandle{score: engine.Score{Kind: engine.ScoreCentipawns, Centipawns: cp}}
		p := eval.ProbabilityFor(context.Background(), h, s)
		if p <= prev {
			t.Fatalf("probability %v at cp=%d not above %v", p, cp, prev)
		}
		if p >= 100 {
			t.Fatalf("probability %v at cp=%d reached the mate bound", p, cp)
		}
		prev = p
	}
}

func TestProbabilitySymmetry(t *testing.T) {
	eval := NewEvaluator(0, 0, nil)

	up := newTestSession(t, domain.SideWhite)
	h := &fakeHandle{score: engine.Score{Kind: engine.ScoreCentipawns, Centipawns: 200}}
	pUp := eval.ProbabilityFor(context.Background(), h, up)

	down := newTestSession(t, domain.SideWhite)
	h = &fakeHandle{score: engine.Score{Kind: engine.ScoreCentipawns, Centipawns: -200}}
	pDown := eval.ProbabilityFor(context.Background(), h, down)

	if pUp+pDown != 100 {
		t.Fatalf("pUp=%v pDown=%v, want them to sum to 100", pUp, pDown)
	}
}

func TestProbabilityFlipsForEngineTurn(t *testing.T) {
	eval := NewEvaluator(0, 0, nil)
	// Human is White and already moved, so the score comes back from Black's
	// perspective and must be flipped.
	s := newTestSession(t, domain.SideWhite, "e2e4")
	h := &fakeHandle{score: engine.Score{Kind: engine.ScoreCentipawns, Centipawns: 100}}

	p := eval.ProbabilityFor(context.Background(), h, s)
	if p >= 50 {
		t.Fatalf("probability = %v, want below 50 for an engine-favoring score", p)
	}
}

func TestProbabilityMateScores(t *testing.T) {
	eval := NewEvaluator(0, 0, nil)

	s := newTestSession(t, domain.SideWhite)
	h := &fakeHandle{score: engine.Score{Kind: engine.ScoreMate, MatePlies: 3}}
	if p := eval.ProbabilityFor(context.Background(), h, s); p != 100 {
		t.Fatalf("mate for human = %v, want 100", p)
	}

	s = newTestSession(t, domain.SideWhite)
	h = &fakeHandle{score: engine.Score{Kind: engine.ScoreMate, MatePlies: -2}}
	if p := eval.ProbabilityFor(context.Background(), h, s); p != 0 {
		t.Fatalf("mate against human = %v, want 0", p)
	}

	// Engine to move, mate in its favor means mate against the human.
	s = newTestSession(t, domain.SideWhite, "f2f3")
	h = &fakeHandle{score: engine.Score{Kind: engine.ScoreMate, MatePlies: 1}}
	if p := eval.ProbabilityFor(context.Background(), h, s); p != 0 {
		t.Fatalf("oriented mate = %v, want 0", p)
	}
}

func TestProbabilityCachedValueSkipsEngine(t *testing.T) {
	eval := NewEvaluator(0, 0, nil)
	s := newTestSession(t, domain.SideWhite)
	h := &fakeHandle{score: engine.Score{Kind: engine.ScoreCentipawns, Centipawns: 100}}

	first := eval.ProbabilityFor(context.Background(), h, s)
	second := eval.ProbabilityFor(context.Background(), h, s)
	if first != second {
		t.Fatalf("cached probability changed: %v then %v", first, second)
	}
	if h.evalCalls != 1 {
		t.Fatalf("evaluate calls = %d, want 1", h.evalCalls)
	}
}

func TestProbabilityCacheInvalidatedByMove(t *testing.T) {
	eval := NewEvaluator(0, 0, nil)
	s := newTestSession(t, domain.SideWhite)
	h := &fakeHandle{score: engine.Score{Kind: engine.ScoreCentipawns, Centipawns: 100}}

	eval.ProbabilityFor(context.Background(), h, s)
	if _, _, err := s.ApplyMove("e2e4"); err != nil {
		t.Fatalf("ApplyMove: %v", err)
	}
	eval.ProbabilityFor(context.Background(), h, s)
	if h.evalCalls != 2 {
		t.Fatalf("evaluate calls = %d, want 2 after a move invalidated the cache", h.evalCalls)
	}
}

func TestProbabilityFailureDegradesToNeutral(t *testing.T) {
	eval := NewEvaluator(0, 0, nil)
	s := newTestSession(t, domain.SideWhite)
	h := &fakeHandle{scoreErr: errors.New("engine crashed")}

	if p := eval.ProbabilityFor(context.Background(), h, s); p != NeutralProbability {
		t.Fatalf("probability = %v, want neutral", p)
	}
	if _, ok := s.CachedEvaluation(); ok {
		t.Fatal("failed evaluation must not be cached")
	}
}

func TestProbabilityNilHandleDegradesToNeutral(t *testing.T) {
	eval := NewEvaluator(0, 0, nil)
	s := newTestSession(t, domain.SideWhite)

	if p := eval.ProbabilityFor(context.Background(), nil, s); p != NeutralProbability {
		t.Fatalf("probability = %v, want neutral", p)
	}
}

func TestProbabilityTerminalPositions(t *testing.T) {
	eval := NewEvaluator(0, 0, nil)

	// Fool's mate: Black delivers checkmate.
	loss := newTestSession(t, domain.SideWhite, "f2f3", "e7e5", "g2g4", "d8h4")
	if p := eval.ProbabilityFor(context.Background(), nil, loss); p != 0 {
		t.Fatalf("losing terminal probability = %v, want 0", p)
	}

	win := newTestSession(t, domain.SideBlack, "f2f3", "e7e5", "g2g4", "d8h4")
	if p := eval.ProbabilityFor(context.Background(), nil, win); p != 100 {
		t.Fatalf("winning terminal probability = %v, want 100", p)
	}
	if _, ok := win.CachedEvaluation(); !ok {
		t.Fatal("terminal probability should be cached")
	}
}
