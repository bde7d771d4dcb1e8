package llm

import (
	"context"
	"fmt"

	"github.com/luvu182/luxbot/internal/config"
	"github.com/luvu182/luxbot/internal/core"
	"github.com/luvu182/luxbot/pkg/log"
)

// NewChatBackends builds a backend for every family that has an API key.
// A family without one stays routable and fails at call time.
func NewChatBackends(ctx context.Context, cfg *config.ProviderConfig) map[Family]core.ChatBackend {
	logger := log.FromCtx(ctx)
	backends := make(map[Family]core.ChatBackend, 2)

	if cfg.GeminiAPIKey != "" {
		backends[FamilyGemini] = NewGemini(cfg.GeminiBaseURL, cfg.GeminiAPIKey, cfg.Timeout)
	}
	if cfg.OpenAIAPIKey != "" {
		backends[FamilyOpenAI] = NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.Timeout)
	}

	for _, fam := range []Family{FamilyGemini, FamilyOpenAI} {
		if _, ok := backends[fam]; !ok {
			logger.Warn().Str("family", fam.String()).Msg("no api key, generation fallback to this family will fail")
		}
	}
	return backends
}

func NewEmbeddingBackend(ctx context.Context, pcfg *config.ProviderConfig, ecfg *config.EmbeddingConfig) (core.EmbeddingBackend, error) {
	fam, err := ParseFamily(ecfg.Provider)
	if err != nil {
		return nil, err
	}

	log.FromCtx(ctx).Info().
		Str("provider", fam.String()).
		Str("model", ecfg.Model).
		Int("dimensions", ecfg.Dimensions).
		Msg("starting embedding provider")

	switch fam {
	case FamilyGemini:
		if pcfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("gemini embeddings need LUX_GEMINI_API_KEY")
		}
		return NewGemini(pcfg.GeminiBaseURL, pcfg.GeminiAPIKey, pcfg.Timeout), nil
	default:
		if pcfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openai embeddings need LUX_OPENAI_API_KEY")
		}
		return NewOpenAI(pcfg.OpenAIAPIKey, pcfg.OpenAIBaseURL, pcfg.Timeout), nil
	}
}

func NewRouterFromConfig(ctx context.Context, cfg *config.ProviderConfig) (*Router, error) {
	rf, err := config.LoadRoutingFile(cfg.RoutingFile)
	if err != nil {
		return nil, err
	}

	rc, err := routerConfig(cfg, rf)
	if err != nil {
		return nil, err
	}

	log.FromCtx(ctx).Info().
		Str("gemini", rc.GeminiModel).
		Str("openai", rc.OpenAIModel).
		Str("default", rc.Default.String()).
		Msg("starting provider router")

	return NewRouter(rc)
}

func routerConfig(cfg *config.ProviderConfig, rf *config.RoutingFile) (RouterConfig, error) {
	rc := RouterConfig{
		GeminiModel: cfg.GeminiModel,
		OpenAIModel: cfg.OpenAIModel,
		Default:     FamilyGemini,
	}

	if rf.Default != "" {
		fam, err := ParseFamily(rf.Default)
		if err != nil {
			return rc, fmt.Errorf("routing default: %w", err)
		}
		rc.Default = fam
	}
	// Tasks the file does not list follow its default.
	rc.Routes = RoutesFor(rc.Default)

	for name, famName := range rf.Routes {
		task, err := core.ParseTask(name)
		if err != nil {
			return rc, fmt.Errorf("routing: %w", err)
		}
		fam, err := ParseFamily(famName)
		if err != nil {
			return rc, fmt.Errorf("routing %s: %w", task, err)
		}
		rc.Routes[task] = fam
	}
	return rc, nil
}
