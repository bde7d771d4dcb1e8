package config

import (
	"context"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/luvu182/luxbot/pkg/log"
)

type ProviderConfig struct {
	GeminiAPIKey  string `env:"LUX_GEMINI_API_KEY"`
	GeminiBaseURL string `env:"LUX_GEMINI_BASE_URL" envDefault:"https://generativelanguage.googleapis.com"`
	GeminiModel   string `env:"LUX_GEMINI_MODEL" envDefault:"gemini-2.5-flash-lite"`

	OpenAIAPIKey  string `env:"LUX_OPENAI_API_KEY"`
	OpenAIBaseURL string `env:"LUX_OPENAI_BASE_URL"`
	OpenAIModel   string `env:"LUX_OPENAI_MODEL" envDefault:"gpt-4o-mini"`

	// Timeout bounds each attempt, so a request with fallback may take twice as long.
	Timeout     time.Duration `env:"LUX_PROVIDER_TIMEOUT" envDefault:"30s"`
	Temperature float64       `env:"LUX_TEMPERATURE" envDefault:"0.7"`
	MaxTokens   int           `env:"LUX_MAX_TOKENS" envDefault:"2048"`

	RoutingFile string `env:"LUX_ROUTING_FILE"`
}

func NewProviderConfig(ctx context.Context) *ProviderConfig {
	logger := log.FromCtx(ctx)
	c := &ProviderConfig{}
	if err := env.Parse(c); err != nil {
		logger.Fatal().Err(err).Msg("failed to parse Provider config")
	}
	if c.GeminiAPIKey == "" && c.OpenAIAPIKey == "" {
		logger.Fatal().Msg("at least one of LUX_GEMINI_API_KEY or LUX_OPENAI_API_KEY must be set")
	}
	return c
}
