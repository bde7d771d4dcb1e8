package config

import (
	"context"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/luvu182/luxbot/pkg/log"
)

const (
	StoreSQLite  = "sqlite"
	StoreChromem = "chromem"
)

type AppConfig struct {
	RuntimePath  string `env:"LUX_RUNTIME_PATH" envDefault:".luxbot"`
	StoreBackend string `env:"LUX_STORE_BACKEND" envDefault:"sqlite"`

	// Transport Flags
	EnableTelegram bool `env:"LUX_ENABLE_TELEGRAM" envDefault:"false"`

	// Context Management
	ContextWindowSize  int `env:"LUX_CONTEXT_WINDOW_SIZE" envDefault:"10"`
	ContextTokenBudget int `env:"LUX_CONTEXT_TOKEN_BUDGET" envDefault:"1024"`

	// Retrieval
	CandidateLimit int     `env:"LUX_CANDIDATE_LIMIT" envDefault:"0"`
	SearchLimit    int     `env:"LUX_SEARCH_LIMIT" envDefault:"5"`
	MinSimilarity  float64 `env:"LUX_MIN_SIMILARITY" envDefault:"0.5"`
}

func NewAppConfig(ctx context.Context) *AppConfig {
	logger := log.FromCtx(ctx)
	c := &AppConfig{}
	if err := env.Parse(c); err != nil {
		logger.Fatal().Err(err).Msg("failed to parse App config")
	}
	c.RuntimePath = resolveRuntimePath(c.RuntimePath)

	switch c.StoreBackend {
	case StoreSQLite, StoreChromem:
	default:
		logger.Fatal().Str("backend", c.StoreBackend).Msg("unknown memory store backend")
	}
	return c
}

func (c AppConfig) GetRuntimePath() string {
	return c.RuntimePath
}

func (c AppConfig) GetDatabasePath() string {
	return filepath.Join(c.RuntimePath, "luxbot.db")
}

func (c AppConfig) GetContextWindowSize() int {
	return c.ContextWindowSize
}

func (c AppConfig) IsTelegramSelected() bool {
	return c.EnableTelegram
}

func (c AppConfig) GetChromemPath() string {
	return filepath.Join(c.RuntimePath, "chromem")
}
