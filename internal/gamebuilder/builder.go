// Package gamebuilder wires configuration into a ready-to-serve game stack.
package gamebuilder

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/gambitlabs/gambit/internal/config"
	"github.com/gambitlabs/gambit/internal/domain"
	"github.com/gambitlabs/gambit/internal/engine"
	"github.com/gambitlabs/gambit/internal/game"
	"github.com/gambitlabs/gambit/internal/game/render"
	"github.com/gambitlabs/gambit/internal/httpapi"
	"github.com/gambitlabs/gambit/internal/msgcat"
	"github.com/gambitlabs/gambit/internal/service/cache"
)

// Deps holds the built stack and owns its resources.
type Deps struct {
	Handler    *httpapi.Handler
	Controller *game.Controller

	db       *sql.DB
	cacheSvc *cache.Service
}

// Close releases the durable connections.
func (d *Deps) Close() {
	if d.cacheSvc != nil {
		_ = d.cacheSvc.Close()
	}
	if d.db != nil {
		_ = d.db.Close()
	}
}

// New builds the full stack. Postgres and Redis are both optional: without a
// DATABASE_URL games live in process memory, without a REDIS_URL profile
// lookups skip the cache.
func New(cfg *config.AppConfig, logger *zap.Logger) (*Deps, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	deps := &Deps{}

	var (
		store        game.Store
		profileStore game.ProfileStore
	)
	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		db.SetMaxOpenConns(16)
		db.SetMaxIdleConns(8)
		db.SetConnMaxLifetime(30 * time.Minute)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
		deps.db = db
		pg := game.NewPostgresStore(db)
		store, profileStore = pg, pg
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory game store")
		mem := game.NewMemoryStore()
		store, profileStore = mem, mem
	}

	if strings.TrimSpace(cfg.RedisURL) != "" {
		cacheSvc, err := cache.New(cfg.RedisURL)
		if err != nil {
			deps.Close()
			return nil, fmt.Errorf("init cache: %w", err)
		}
		deps.cacheSvc = cacheSvc
	}

	manager, err := engine.NewManager(engine.ManagerConfig{
		BinaryPath:    cfg.StockfishPath,
		SpawnAttempts: cfg.SpawnAttempts,
		SpawnBackoff:  time.Duration(cfg.SpawnBackoffMS) * time.Millisecond,
	}, logger)
	if err != nil {
		deps.Close()
		return nil, fmt.Errorf("init engine manager: %w", err)
	}

	evaluator := game.NewEvaluator(
		time.Duration(cfg.EvalTimeMS)*time.Millisecond,
		cfg.EvalCurvature,
		logger,
	)
	profiles := game.NewProfileService(profileStore, deps.cacheSvc, logger)

	controller, err := game.NewController(
		store,
		&managerProvider{mgr: manager},
		evaluator,
		profiles,
		game.Config{
			Retention:  time.Duration(cfg.RetentionDays) * 24 * time.Hour,
			MoveBudget: time.Duration(cfg.MoveTimeMS) * time.Millisecond,
		},
		logger,
	)
	if err != nil {
		deps.Close()
		return nil, err
	}

	messages, err := msgcat.New(cfg.MessageOverrideDir)
	if err != nil {
		deps.Close()
		return nil, fmt.Errorf("load messages: %w", err)
	}

	deps.Controller = controller
	deps.Handler = httpapi.NewHandler(controller, render.NewSVGBoardRenderer(), messages, logger)
	return deps, nil
}

// managerProvider adapts engine.Manager to the game layer's provider
// interface. Acquire returns an untyped nil on failure so callers can compare
// the handle against nil directly.
type managerProvider struct {
	mgr *engine.Manager
}

func (p *managerProvider) Acquire(ctx context.Context) (game.EngineHandle, error) {
	h, err := p.mgr.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return h, nil
}

func (p *managerProvider) Configure(ctx context.Context, h game.EngineHandle, level domain.Difficulty) {
	if hh, ok := h.(*engine.Handle); ok {
		p.mgr.Configure(ctx, hh, level)
	}
}

func (p *managerProvider) Release(h game.EngineHandle) {
	if hh, ok := h.(*engine.Handle); ok {
		p.mgr.Release(hh)
	}
}
