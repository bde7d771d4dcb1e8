package main

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/luvu182/luxbot/internal/config"
	"github.com/luvu182/luxbot/internal/core"
	"github.com/luvu182/luxbot/internal/providers/llm"
	"github.com/luvu182/luxbot/internal/service/assistant"
	"github.com/luvu182/luxbot/internal/service/command"
	"github.com/luvu182/luxbot/internal/service/generation"
	"github.com/luvu182/luxbot/internal/service/memory"
	chromemstore "github.com/luvu182/luxbot/internal/storage/chromem"
	"github.com/luvu182/luxbot/internal/storage/sqlite"
	"github.com/luvu182/luxbot/internal/transport/telegram"
	"github.com/luvu182/luxbot/pkg/log"
	"github.com/luvu182/luxbot/pkg/srv"
)

// app holds the memory core shared by every entry point.
type app struct {
	cfg       *config.AppConfig
	router    *llm.Router
	gen       *generation.Service
	embedder  *memory.EmbeddingService
	store     core.MemoryStore
	history   core.MessagesRepository
	retriever *memory.Retriever
	writer    *memory.Writer
	extractor *memory.Extractor
	processor *assistant.Processor

	// cleanup runs in reverse order on shutdown.
	cleanup []srv.Service
}

func newApp(ctx context.Context) *app {
	logger := log.FromCtx(ctx)

	// init env
	if err := initEnv(ctx, config.GetRuntimePath()); err != nil {
		logger.Fatal().Err(err).Msg("failed to init env")
	}

	// 1. Configuration
	appCfg := config.NewAppConfig(ctx)
	providerCfg := config.NewProviderConfig(ctx)
	embeddingCfg := config.NewEmbeddingConfig(ctx)

	a := &app{cfg: appCfg}

	// 2. Providers
	router, err := llm.NewRouterFromConfig(ctx, providerCfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize provider router")
	}
	a.router = router
	a.gen = generation.NewService(router, llm.NewChatBackends(ctx, providerCfg), generation.Options{
		Timeout:     providerCfg.Timeout,
		Temperature: providerCfg.Temperature,
		MaxTokens:   providerCfg.MaxTokens,
	})

	embedBackend, err := llm.NewEmbeddingBackend(ctx, providerCfg, embeddingCfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize embedding provider")
	}
	a.embedder, err = memory.NewEmbeddingService(embedBackend, embeddingCfg.Model, embeddingCfg.Dimensions, embeddingCfg.CacheSize)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize embedding service")
	}
	a.cleanup = append(a.cleanup, srv.NewCleanupFunc(a.embedder.Close))

	// 3. Storage
	db, err := sqlite.NewDB(ctx, appCfg.GetDatabasePath())
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize storage")
	}
	a.cleanup = append(a.cleanup, srv.NewCleanup(db.Close))
	a.history = sqlite.NewMessagesRepo(db)

	a.store, err = initMemoryStore(ctx, appCfg, db, a.embedder)
	if err != nil {
		logger.Fatal().Err(err).Str("backend", appCfg.StoreBackend).Msg("failed to initialize memory store")
	}

	// 4. Memory services
	a.retriever = memory.NewRetriever(a.embedder, a.store, appCfg.CandidateLimit)
	a.writer = memory.NewWriter(a.embedder, a.store)
	a.extractor = memory.NewExtractor(a.gen, appCfg.ContextTokenBudget)

	a.processor = assistant.NewProcessor(a.gen, a.extractor, a.retriever, a.writer, a.history, assistant.Config{
		ContextWindow: appCfg.GetContextWindowSize(),
		SearchLimit:   appCfg.SearchLimit,
		MinSimilarity: appCfg.MinSimilarity,
	})

	return a
}

func initMemoryStore(ctx context.Context, cfg *config.AppConfig, db *sql.DB, embedder *memory.EmbeddingService) (core.MemoryStore, error) {
	log.FromCtx(ctx).Info().Str("backend", cfg.StoreBackend).Msg("opening memory store")

	if cfg.StoreBackend == config.StoreChromem {
		return chromemstore.NewStore(cfg.GetChromemPath(), embedder.Dimensions(), embedder.EmbedText)
	}
	return sqlite.NewMemoryRepo(ctx, db, embedder.Dimensions(), embedder.EmbedText)
}

func (a *app) commands() *command.Router {
	return command.NewRouter(command.Deps{
		Retriever:  a.retriever,
		Store:      a.store,
		Writer:     a.writer,
		Summarizer: a.processor,
		Metrics:    a.processor,
		Models:     a.router,
	})
}

// close is for one-shot commands that never reach srv.ShutdownServices.
func (a *app) close(ctx context.Context) {
	for i := len(a.cleanup) - 1; i >= 0; i-- {
		if err := a.cleanup[i].Shutdown(ctx); err != nil {
			log.FromCtx(ctx).Warn().Err(err).Msg("cleanup failed")
		}
	}
}

func NewServices(ctx context.Context) []srv.Service {
	logger := log.FromCtx(ctx)

	a := newApp(ctx)
	services := append([]srv.Service{}, a.cleanup...)

	transports, err := initTransports(ctx, a)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize transports")
	}
	if len(transports) == 0 {
		logger.Warn().Msg("no chat transport enabled, set LUX_ENABLE_TELEGRAM=true or use 'lux mcp'")
	}
	return append(services, transports...)
}

func initTransports(ctx context.Context, a *app) ([]srv.Service, error) {
	var services []srv.Service

	// Telegram Bot
	if a.cfg.IsTelegramSelected() {
		tgCfg := config.NewTelegramConfig(ctx)
		bot, err := telegram.NewBot(ctx, tgCfg, a.processor, a.commands())
		if err != nil {
			return nil, err
		}
		services = append(services, bot)
	}

	return services, nil
}

func initEnv(ctx context.Context, runtimePath string) error {
	logger := log.FromCtx(ctx)
	envFile := filepath.Join(runtimePath, ".env")

	if _, err := os.Stat(envFile); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	if err := godotenv.Load(envFile); err != nil {
		logger.Warn().Err(err).Str("path", envFile).Msg("failed to load .env file")
		return err
	}

	logger.Debug().Str("path", envFile).Msg("loaded .env file")
	return nil
}
