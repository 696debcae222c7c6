package game

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/gambitlabs/gambit/internal/domain"
	"github.com/gambitlabs/gambit/internal/rules"
)

var (
	// ErrInvalidMove covers malformed notation and moves illegal in the
	// current position. The session is unchanged when it is returned.
	ErrInvalidMove = errors.New("invalid move")

	// ErrGameOver rejects mutating operations on a finished game.
	ErrGameOver = errors.New("game already finished")
)

const (
	defaultMoveBudget = time.Second
)

// Config tunes the controller.
type Config struct {
	// Retention bounds how long untouched games stay stored.
	Retention time.Duration
	// MoveBudget bounds one engine reply search.
	MoveBudget time.Duration
}

// Controller orchestrates sessions, the durable store, the engine lifecycle
// and the evaluation cache. Every operation materializes its session from
// storage, mutates it, persists last, and releases any engine handle on
// every exit path.
type Controller struct {
	store      Store
	engines    EngineProvider
	eval       *Evaluator
	profiles   *ProfileService
	retention  time.Duration
	moveBudget time.Duration
	logger     *zap.Logger
}

// NewController wires the collaborators; profiles may be nil.
func NewController(store Store, engines EngineProvider, eval *Evaluator, profiles *ProfileService, cfg Config, logger *zap.Logger) (*Controller, error) {
	if store == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if engines == nil {
		return nil, fmt.Errorf("engine provider is required")
	}
	if eval == nil {
		return nil, fmt.Errorf("evaluator is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	retention := cfg.Retention
	if retention <= 0 {
		retention = DefaultRetention
	}
	moveBudget := cfg.MoveBudget
	if moveBudget <= 0 {
		moveBudget = defaultMoveBudget
	}
	return &Controller{
		store:      store,
		engines:    engines,
		eval:       eval,
		profiles:   profiles,
		retention:  retention,
		moveBudget: moveBudget,
		logger:     logger,
	}, nil
}

// State is the composite result every game operation returns.
type State struct {
	SessionID   string
	FEN         string
	HumanSide   domain.Side
	Difficulty  domain.Difficulty
	History     []string
	HistorySAN  []string
	EngineMove  string
	Probability float64
	Result      domain.Result
	Method      string
}

// HintResult carries a suggested move for the human side, or reports that
// the game is over and no hint exists.
type HintResult struct {
	Move     string
	GameOver bool
}

// Reset starts a logically new game: a fresh position, an empty move log and
// the chosen difficulty and side. It always allocates a new durable row, so
// a previous game's history stays retrievable until the retention sweep. If
// the human plays Black, the engine moves first before the call returns.
func (c *Controller) Reset(ctx context.Context, ownerID string, difficulty domain.Difficulty, humanSide domain.Side) (*State, error) {
	s := NewSession(ownerID, humanSide, difficulty)

	h, err := c.engines.Acquire(ctx)
	if err != nil {
		if s.HumanSide == domain.SideBlack {
			return nil, err
		}
		h = nil
	}
	defer c.engines.Release(h)

	engineMove := ""
	if h != nil {
		c.engines.Configure(ctx, h, s.Difficulty)
	}
	if s.HumanSide == domain.SideBlack {
		engineMove, err = c.engineReply(ctx, h, s)
		if err != nil {
			return nil, err
		}
	}

	prob := c.eval.ProbabilityFor(ctx, h, s)
	if err := c.store.Persist(ctx, s); err != nil {
		return nil, err
	}
	c.sweep(ctx)
	return c.stateFrom(s, engineMove, prob), nil
}

// Move applies the human move and, when the game continues, one engine
// reply. The persist at the end is the only durable write and reflects both
// moves; a failed validation or an unavailable engine commits nothing.
func (c *Controller) Move(ctx context.Context, ownerID, sessionID, notation string) (*State, error) {
	s, _, err := LoadOrCreate(ctx, c.store, sessionID, ownerID)
	if err != nil {
		return nil, err
	}
	if s.Terminal() {
		return nil, ErrGameOver
	}

	if _, _, err := s.ApplyMove(notation); err != nil {
		return nil, ErrInvalidMove
	}

	if s.Terminal() {
		prob := c.eval.ProbabilityFor(ctx, nil, s)
		if err := c.store.Persist(ctx, s); err != nil {
			return nil, err
		}
		c.recordResult(ctx, s)
		c.sweep(ctx)
		return c.stateFrom(s, "", prob), nil
	}

	h, err := c.engines.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer c.engines.Release(h)
	c.engines.Configure(ctx, h, s.Difficulty)

	engineMove, err := c.engineReply(ctx, h, s)
	if err != nil {
		return nil, err
	}

	prob := c.eval.ProbabilityFor(ctx, h, s)
	if err := c.store.Persist(ctx, s); err != nil {
		return nil, err
	}
	if s.Terminal() {
		c.recordResult(ctx, s)
	}
	c.sweep(ctx)
	return c.stateFrom(s, engineMove, prob), nil
}

// QueryState is read-only apart from refreshing a stale evaluation cache;
// the refreshed value is written back best-effort.
func (c *Controller) QueryState(ctx context.Context, ownerID, sessionID string) (*State, error) {
	s, created, err := LoadOrCreate(ctx, c.store, sessionID, ownerID)
	if err != nil {
		return nil, err
	}

	_, wasValid := s.CachedEvaluation()
	var h EngineHandle
	if !wasValid && !s.Terminal() {
		if acquired, acqErr := c.engines.Acquire(ctx); acqErr == nil {
			h = acquired
		}
	}
	defer c.engines.Release(h)

	prob := c.eval.ProbabilityFor(ctx, h, s)
	if _, valid := s.CachedEvaluation(); valid && !wasValid && !created {
		if err := c.store.Persist(ctx, s); err != nil {
			c.logger.Warn("cache refresh persist failed",
				zap.String("session_id", s.ID),
				zap.Error(err),
			)
		}
	}
	return c.stateFrom(s, "", prob), nil
}

// Hint suggests a move for the human side without touching durable state.
// When it is the engine's turn, the engine's best move is played on a
// disposable copy and the human's best reply on that copy is returned.
func (c *Controller) Hint(ctx context.Context, ownerID, sessionID string) (*HintResult, error) {
	s, _, err := LoadOrCreate(ctx, c.store, sessionID, ownerID)
	if err != nil {
		return nil, err
	}
	if s.Terminal() {
		return &HintResult{GameOver: true}, nil
	}

	h, err := c.engines.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer c.engines.Release(h)
	// Hints always come from full strength, whatever the game difficulty.
	c.engines.Configure(ctx, h, domain.DifficultyHard)

	moves := append([]string(nil), s.MoveLog...)
	if s.Position.SideToMove() != s.HumanSide {
		speculative := s.Position.Clone()
		engineMove, err := h.BestMove(ctx, "startpos", moves, c.moveBudget)
		if err != nil {
			return nil, err
		}
		if _, _, err := speculative.ApplyMove(engineMove); err != nil {
			return nil, fmt.Errorf("apply speculative engine move %s: %w", engineMove, err)
		}
		if speculative.IsTerminal() {
			// The projected engine move ends the game; no reply exists.
			return &HintResult{}, nil
		}
		moves = append(moves, engineMove)
	}

	best, err := h.BestMove(ctx, "startpos", moves, c.moveBudget)
	if err != nil {
		return nil, err
	}
	return &HintResult{Move: best}, nil
}

// Resume makes a stored game the active session. Rows owned by someone else
// are indistinguishable from missing ones.
func (c *Controller) Resume(ctx context.Context, ownerID, sessionID string) (*State, error) {
	s, err := c.store.LoadByID(ctx, sessionID, ownerID)
	if err != nil {
		return nil, err
	}

	_, wasValid := s.CachedEvaluation()
	var h EngineHandle
	if !wasValid && !s.Terminal() {
		if acquired, acqErr := c.engines.Acquire(ctx); acqErr == nil {
			h = acquired
		}
	}
	defer c.engines.Release(h)

	prob := c.eval.ProbabilityFor(ctx, h, s)
	return c.stateFrom(s, "", prob), nil
}

// ListSessions returns the owner's stored games, most recent first.
func (c *Controller) ListSessions(ctx context.Context, ownerID string) ([]domain.SessionSummary, error) {
	return c.store.ListByOwner(ctx, ownerID)
}

// BoardView is what the board endpoint needs to draw a position.
type BoardView struct {
	Position *rules.Position
	LastMove string
}

// Board exposes the current position for rendering.
func (c *Controller) Board(ctx context.Context, ownerID, sessionID string) (*BoardView, error) {
	s, _, err := LoadOrCreate(ctx, c.store, sessionID, ownerID)
	if err != nil {
		return nil, err
	}
	view := &BoardView{Position: s.Position}
	if len(s.MoveLog) > 0 {
		view.LastMove = s.MoveLog[len(s.MoveLog)-1]
	}
	return view, nil
}

// Profile returns the owner's record against the engine.
func (c *Controller) Profile(ctx context.Context, ownerID string) (*domain.PlayerProfile, error) {
	if c.profiles == nil {
		return nil, nil
	}
	return c.profiles.Get(ctx, ownerID)
}

// engineReply asks the engine for one move and applies it.
func (c *Controller) engineReply(ctx context.Context, h EngineHandle, s *Session) (string, error) {
	if h == nil {
		return "", errors.New("no engine handle")
	}
	best, err := h.BestMove(ctx, "startpos", s.MoveLog, c.moveBudget)
	if err != nil {
		return "", err
	}
	if _, _, err := s.ApplyMove(best); err != nil {
		return "", fmt.Errorf("apply engine move %s: %w", best, err)
	}
	return best, nil
}

func (c *Controller) recordResult(ctx context.Context, s *Session) {
	if c.profiles == nil {
		return
	}
	c.profiles.RecordResult(ctx, s.OwnerID, s.HumanSide, s.Position.Result(), s.Difficulty)
}

// sweep opportunistically deletes expired rows after state-changing
// operations. Failures are logged, never surfaced.
func (c *Controller) sweep(ctx context.Context) {
	removed, err := c.store.SweepExpired(ctx, c.retention)
	if err != nil {
		c.logger.Warn("retention sweep failed", zap.Error(err))
		return
	}
	if removed > 0 {
		c.logger.Info("retention sweep removed games", zap.Int("removed", removed))
	}
}

func (c *Controller) stateFrom(s *Session, engineMove string, prob float64) *State {
	st := &State{
		SessionID:   s.ID,
		FEN:         s.Position.FEN(),
		HumanSide:   s.HumanSide,
		Difficulty:  s.Difficulty,
		History:     append([]string(nil), s.MoveLog...),
		HistorySAN:  s.Position.MovesSAN(),
		EngineMove:  engineMove,
		Probability: prob,
	}
	if s.Terminal() {
		st.Result = s.Position.Result()
		st.Method = s.Position.Method()
	}
	return st
}
