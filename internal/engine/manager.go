package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/gambitlabs/gambit/internal/domain"
	"github.com/gambitlabs/gambit/internal/engine/uci"
)

// ErrEngineUnavailable is returned when the search process cannot be spawned
// after all retry attempts.
var ErrEngineUnavailable = errors.New("search engine unavailable")

const (
	defaultSpawnAttempts = 3
	defaultSpawnBackoff  = time.Second
)

// ManagerConfig configures subprocess spawning.
type ManagerConfig struct {
	BinaryPath    string
	SpawnAttempts int
	SpawnBackoff  time.Duration
}

// Manager owns the lifecycle of search subprocesses: it spawns one per unit
// of work, retries failed spawns, configures strength and guarantees
// teardown. Handles are never shared between concurrent units of work.
type Manager struct {
	binaryPath    string
	spawnAttempts int
	spawnBackoff  time.Duration
	logger        *zap.Logger

	// spawn is swapped out in tests.
	spawn func(ctx context.Context) (searchSession, error)
}

// searchSession is the subset of the UCI session the manager drives.
type searchSession interface {
	SetSkillLevel(ctx context.Context, level int) error
	Search(ctx context.Context, req uci.SearchRequest) (uci.Evaluation, error)
	Quit(ctx context.Context) error
}

// NewManager validates the configuration. A missing binary is logged but not
// fatal here: the service still starts and Acquire reports the failure per
// request.
func NewManager(cfg ManagerConfig, logger *zap.Logger) (*Manager, error) {
	if cfg.BinaryPath == "" {
		return nil, fmt.Errorf("engine binary path required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if _, err := os.Stat(cfg.BinaryPath); err != nil {
		logger.Warn("engine binary not found at startup",
			zap.String("path", cfg.BinaryPath),
			zap.Error(err),
		)
	}

	attempts := cfg.SpawnAttempts
	if attempts <= 0 {
		attempts = defaultSpawnAttempts
	}
	backoff := cfg.SpawnBackoff
	if backoff <= 0 {
		backoff = defaultSpawnBackoff
	}

	m := &Manager{
		binaryPath:    cfg.BinaryPath,
		spawnAttempts: attempts,
		spawnBackoff:  backoff,
		logger:        logger,
	}
	m.spawn = func(ctx context.Context) (searchSession, error) {
		return uci.NewSession(ctx, m.binaryPath)
	}
	return m, nil
}

// Handle is an exclusively-owned reference to one live subprocess. It is
// valid from Acquire until Release.
type Handle struct {
	session searchSession

	mu       sync.Mutex
	released bool
}

// Acquire spawns a search process, retrying up to the configured bound with
// a fixed backoff between attempts. Exhausted retries yield
// ErrEngineUnavailable; callers must treat that as fatal for the request,
// not for the service.
func (m *Manager) Acquire(ctx context.Context) (*Handle, error) {
	var lastErr error
	for attempt := 1; attempt <= m.spawnAttempts; attempt++ {
		session, err := m.spawn(ctx)
		if err == nil {
			return &Handle{session: session}, nil
		}
		lastErr = err
		m.logger.Warn("engine spawn failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", m.spawnAttempts),
			zap.Error(err),
		)
		if attempt == m.spawnAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(m.spawnBackoff):
		}
	}
	m.logger.Error("engine spawn retries exhausted",
		zap.Int("attempts", m.spawnAttempts),
		zap.Error(lastErr),
	)
	return nil, ErrEngineUnavailable
}

// Configure applies the difficulty's strength parameter. Failure leaves the
// process on its previous configuration and is logged, never fatal.
func (m *Manager) Configure(ctx context.Context, h *Handle, level domain.Difficulty) {
	if h == nil || h.session == nil {
		return
	}
	skill := SkillFor(level)
	if err := h.session.SetSkillLevel(ctx, skill); err != nil {
		m.logger.Warn("engine configure failed",
			zap.String("difficulty", string(level)),
			zap.Int("skill_level", skill),
			zap.Error(err),
		)
	}
}

// Release tears down the subprocess. It is safe on a nil handle and
// idempotent on an already-released one; a process that refuses to shut
// down is logged as leaked and never used again.
func (m *Manager) Release(h *Handle) {
	if h == nil {
		return
	}
	h.mu.Lock()
	if h.released {
		h.mu.Unlock()
		return
	}
	h.released = true
	session := h.session
	h.session = nil
	h.mu.Unlock()

	if session == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := session.Quit(ctx); err != nil {
		m.logger.Warn("engine shutdown failed, process may be leaked", zap.Error(err))
	}
}

// BestMove asks the engine for its chosen move at the given time budget.
func (h *Handle) BestMove(ctx context.Context, fen string, moves []string, budget time.Duration) (string, error) {
	session, err := h.live()
	if err != nil {
		return "", err
	}
	eval, err := session.Search(ctx, uci.SearchRequest{FEN: fen, Moves: moves, MoveTime: budget})
	if err != nil {
		return "", fmt.Errorf("engine search: %w", err)
	}
	return eval.BestMove, nil
}

// Evaluate scores the position at the given time budget. The score is from
// the side to move's perspective.
func (h *Handle) Evaluate(ctx context.Context, fen string, moves []string, budget time.Duration) (Score, error) {
	session, err := h.live()
	if err != nil {
		return Score{}, err
	}
	eval, err := session.Search(ctx, uci.SearchRequest{FEN: fen, Moves: moves, MoveTime: budget})
	if err != nil {
		return Score{}, fmt.Errorf("engine evaluate: %w", err)
	}
	if eval.Mate {
		return Score{Kind: ScoreMate, MatePlies: eval.MatePlies}, nil
	}
	return Score{Kind: ScoreCentipawns, Centipawns: eval.Centipawns}, nil
}

func (h *Handle) live() (searchSession, error) {
	if h == nil {
		return nil, ErrEngineUnavailable
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released || h.session == nil {
		return nil, ErrEngineUnavailable
	}
	return h.session, nil
}
