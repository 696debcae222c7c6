package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
)

type AppConfig struct {
	ListenAddr string

	RedisURL    string
	DatabaseURL string

	StockfishPath  string
	SpawnAttempts  int
	SpawnBackoffMS int

	DefaultDifficulty string
	MoveTimeMS        int
	EvalTimeMS        int
	EvalCurvature     int

	RetentionDays int

	MessageOverrideDir string
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		ListenAddr:        ":8080",
		SpawnAttempts:     3,
		SpawnBackoffMS:    1000,
		DefaultDifficulty: "medium",
		MoveTimeMS:        1000,
		EvalTimeMS:        500,
		EvalCurvature:     200,
		RetentionDays:     7,
	}

	if v := strings.TrimSpace(os.Getenv("LISTEN_ADDR")); v != "" {
		cfg.ListenAddr = v
	}

	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))

	cfg.StockfishPath = strings.TrimSpace(os.Getenv("STOCKFISH_PATH"))
	if v := strings.TrimSpace(os.Getenv("ENGINE_SPAWN_ATTEMPTS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.SpawnAttempts = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("ENGINE_SPAWN_BACKOFF_MS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.SpawnBackoffMS = n
		}
	}

	if v := strings.TrimSpace(os.Getenv("GAME_DEFAULT_DIFFICULTY")); v != "" {
		cfg.DefaultDifficulty = v
	}
	if v := strings.TrimSpace(os.Getenv("ENGINE_MOVE_TIME_MS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MoveTimeMS = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("ENGINE_EVAL_TIME_MS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.EvalTimeMS = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("EVAL_CURVATURE")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.EvalCurvature = n
		}
	}

	if v := strings.TrimSpace(os.Getenv("SESSION_RETENTION_DAYS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RetentionDays = n
		}
	}

	cfg.MessageOverrideDir = strings.TrimSpace(os.Getenv("MESSAGE_OVERRIDE_DIR"))

	if cfg.StockfishPath == "" {
		return nil, errors.New("STOCKFISH_PATH is required")
	}

	return cfg, nil
}
