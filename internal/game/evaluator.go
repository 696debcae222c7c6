package game

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/gambitlabs/gambit/internal/domain"
	"github.com/gambitlabs/gambit/internal/engine"
)

const (
	// NeutralProbability is served whenever no better answer exists: dead
	// equality, a missing score or a failed engine call.
	NeutralProbability = 50.0

	// DefaultCurvature controls how quickly a centipawn advantage maps to a
	// win probability. Tunable, not derived.
	DefaultCurvature = 200

	// DefaultEvaluationBudget bounds one engine evaluation call.
	DefaultEvaluationBudget = 500 * time.Millisecond
)

// EngineHandle is the per-request search process surface the game layer
// drives. Production handles come from engine.Manager; tests substitute
// fakes.
type EngineHandle interface {
	BestMove(ctx context.Context, fen string, moves []string, budget time.Duration) (string, error)
	Evaluate(ctx context.Context, fen string, moves []string, budget time.Duration) (engine.Score, error)
}

// EngineProvider hands out exclusively-owned engine handles. Release must be
// called once per successful Acquire, on every exit path.
type EngineProvider interface {
	Acquire(ctx context.Context) (EngineHandle, error)
	Configure(ctx context.Context, h EngineHandle, level domain.Difficulty)
	Release(h EngineHandle)
}

// Evaluator derives a win probability in [0,100] for the human side, caching
// it on the session until the position changes.
type Evaluator struct {
	Budget    time.Duration
	Curvature int
	logger    *zap.Logger
}

// NewEvaluator applies defaults for unset knobs.
func NewEvaluator(budget time.Duration, curvature int, logger *zap.Logger) *Evaluator {
	if budget <= 0 {
		budget = DefaultEvaluationBudget
	}
	if curvature <= 0 {
		curvature = DefaultCurvature
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Evaluator{Budget: budget, Curvature: curvature, logger: logger}
}

// ProbabilityFor returns the cached value when still valid, otherwise
// recomputes it. Terminal positions are answered without an engine call.
// Engine failures degrade to the neutral probability and leave the cache
// invalid; they never surface to the caller.
func (e *Evaluator) ProbabilityFor(ctx context.Context, h EngineHandle, s *Session) float64 {
	if p, ok := s.CachedEvaluation(); ok {
		return p
	}

	if s.Terminal() {
		p := e.terminalProbability(s)
		s.StoreEvaluation(p)
		return p
	}

	if h == nil {
		s.InvalidateEvaluation()
		return NeutralProbability
	}

	score, err := h.Evaluate(ctx, "startpos", s.MoveLog, e.Budget)
	if err != nil {
		e.logger.Warn("position evaluation failed",
			zap.String("session_id", s.ID),
			zap.Int("move_count", len(s.MoveLog)),
			zap.Error(err),
		)
		s.InvalidateEvaluation()
		return NeutralProbability
	}

	p := e.normalize(score.Oriented(s.Position.SideToMove() != s.HumanSide))
	s.StoreEvaluation(p)
	return p
}

// terminalProbability handles the absorbing state: a decided game is 100 or
// 0 for the human depending on the winner, a draw is 50.
func (e *Evaluator) terminalProbability(s *Session) float64 {
	winner, decided := s.Position.Result().Winner()
	if !decided {
		return NeutralProbability
	}
	if winner == s.HumanSide {
		return 100
	}
	return 0
}

// normalize squashes an oriented score into [0,100]. A forced mate is
// certain; a bounded score approaches but never reaches the extremes.
func (e *Evaluator) normalize(score engine.Score) float64 {
	switch score.Kind {
	case engine.ScoreMate:
		if score.MatePlies > 0 {
			return 100
		}
		if score.MatePlies < 0 {
			return 0
		}
		return NeutralProbability
	case engine.ScoreCentipawns:
		cp := score.Centipawns
		if cp == 0 {
			return NeutralProbability
		}
		abs := cp
		if abs < 0 {
			abs = -abs
		}
		p := 50 + 50*float64(cp)/float64(abs+e.Curvature)
		return clampProbability(p)
	default:
		return NeutralProbability
	}
}

func clampProbability(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
