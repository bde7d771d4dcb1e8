package config

import (
	"context"

	"github.com/caarlos0/env/v11"
	"github.com/luvu182/luxbot/pkg/log"
)

type EmbeddingConfig struct {
	Provider string `env:"LUX_EMBEDDING_PROVIDER" envDefault:"gemini"`
	Model    string `env:"LUX_EMBEDDING_MODEL" envDefault:"text-embedding-004"`
	// Dimensions is fixed per deployment. Stored vectors of any other length are rejected.
	Dimensions int   `env:"LUX_EMBEDDING_DIMENSIONS" envDefault:"768"`
	CacheSize  int64 `env:"LUX_EMBEDDING_CACHE_SIZE" envDefault:"10000"`
}

func NewEmbeddingConfig(ctx context.Context) *EmbeddingConfig {
	logger := log.FromCtx(ctx)
	c := &EmbeddingConfig{}
	if err := env.Parse(c); err != nil {
		logger.Fatal().Err(err).Msg("failed to parse Embedding config")
	}
	if c.Dimensions <= 0 {
		logger.Fatal().Int("dimensions", c.Dimensions).Msg("embedding dimensions must be positive")
	}
	return c
}
