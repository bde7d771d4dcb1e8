package assistant

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/luvu182/luxbot/internal/core"
	"github.com/luvu182/luxbot/internal/service/generation"
	"github.com/luvu182/luxbot/internal/service/memory"
	"github.com/luvu182/luxbot/pkg/log"
	"github.com/luvu182/luxbot/pkg/retry"
)

const (
	answerTemperature = 0.7
	answerMaxTokens   = 500
	summaryHistory    = 50
	noMemories        = "(chưa có thông tin liên quan)"
)

type Generator interface {
	Generate(ctx context.Context, req core.LLMRequest) (core.LLMResponse, error)
	Stream(ctx context.Context, req core.LLMRequest, onChunk generation.StreamFunc) (core.LLMResponse, error)
}

type Extractor interface {
	ExtractInfo(ctx context.Context, message string, ec *core.ExtractionContext) []core.ExtractedItem
}

type Retriever interface {
	Search(ctx context.Context, query string, opts memory.SearchOptions) ([]core.MemorySearchResult, error)
}

type Writer interface {
	StoreExtractedInfo(ctx context.Context, p memory.StoreParams) ([]string, error)
}

type Config struct {
	ContextWindow int
	SearchLimit   int
	MinSimilarity float64
	// Retry applies to store reads and writes. Nil means retry.NewDefaultConfig.
	Retry *retry.Config
}

// Message is one inbound chat message.
type Message struct {
	GroupID    string
	GroupName  string
	UserID     string
	SenderName string
	MessageID  string
	Text       string
	SentAt     time.Time
}

func (m Message) validate() error {
	if m.GroupID == "" {
		return fmt.Errorf("%w: group id is required", core.ErrValidation)
	}
	if strings.TrimSpace(m.Text) == "" {
		return fmt.Errorf("%w: message text cannot be empty", core.ErrValidation)
	}
	return nil
}

type Reply struct {
	Text         string
	Model        string
	UsedFallback bool
	LatencyMs    int64
	Memories     []core.MemorySearchResult
}

// Processor ties extraction, storage, retrieval and generation together for
// a single chat message.
type Processor struct {
	gen       Generator
	extractor Extractor
	retriever Retriever
	writer    Writer
	history   core.MessagesRepository
	cfg       Config

	mu      sync.Mutex
	metrics Metrics
	now     func() time.Time
}

func NewProcessor(
	gen Generator,
	extractor Extractor,
	retriever Retriever,
	writer Writer,
	history core.MessagesRepository,
	cfg Config,
) *Processor {
	if cfg.Retry == nil {
		cfg.Retry = retry.NewDefaultConfig()
	}
	if cfg.SearchLimit <= 0 {
		cfg.SearchLimit = 5
	}
	if cfg.ContextWindow <= 0 {
		cfg.ContextWindow = 10
	}
	return &Processor{
		gen:       gen,
		extractor: extractor,
		retriever: retriever,
		writer:    writer,
		history:   history,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Observe records the message in group history, extracts items from it and
// stores them. It returns how many memories were written.
func (p *Processor) Observe(ctx context.Context, msg Message) (int, error) {
	if err := msg.validate(); err != nil {
		return 0, err
	}
	logger := log.FromCtx(ctx).With().Str("group", msg.GroupID).Logger()

	recent, err := p.history.RecentMessages(ctx, msg.GroupID, p.cfg.ContextWindow)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to load recent messages")
	}

	sentAt := msg.SentAt
	if sentAt.IsZero() {
		sentAt = p.now()
	}
	err = p.history.AddMessage(ctx, msg.GroupID, core.ContextMessage{
		SenderName: msg.SenderName,
		Content:    msg.Text,
		CreatedAt:  sentAt,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("failed to save message")
	}

	items := p.extractor.ExtractInfo(ctx, msg.Text, &core.ExtractionContext{
		SenderName:     msg.SenderName,
		GroupName:      msg.GroupName,
		RecentMessages: recent,
	})
	if len(items) == 0 {
		return 0, nil
	}

	// Ids are fixed across attempts so a retry after a partial write
	// overwrites instead of duplicating.
	params := memory.StoreParams{
		GroupID:   msg.GroupID,
		UserID:    msg.UserID,
		MessageID: msg.MessageID,
		Items:     items,
		IDs:       memory.NewRecordIDs(len(items)),
	}

	var ids []string
	err = p.retry(ctx, "store", func() error {
		var err error
		ids, err = p.writer.StoreExtractedInfo(ctx, params)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("store extracted items: %w", err)
	}
	return len(ids), nil
}

// Answer observes the message while retrieving memories for it, then asks
// the model for a reply grounded in those memories.
func (p *Processor) Answer(ctx context.Context, msg Message) (Reply, error) {
	return p.answer(ctx, msg, func(ctx context.Context, req core.LLMRequest) (core.LLMResponse, error) {
		return p.gen.Generate(ctx, req)
	})
}

// StreamAnswer is Answer with the reply delivered through onChunk.
func (p *Processor) StreamAnswer(ctx context.Context, msg Message, onChunk generation.StreamFunc) (Reply, error) {
	return p.answer(ctx, msg, func(ctx context.Context, req core.LLMRequest) (core.LLMResponse, error) {
		return p.gen.Stream(ctx, req, onChunk)
	})
}

type generateFunc func(ctx context.Context, req core.LLMRequest) (core.LLMResponse, error)

func (p *Processor) answer(ctx context.Context, msg Message, generate generateFunc) (Reply, error) {
	if err := msg.validate(); err != nil {
		return Reply{}, err
	}
	start := p.now()
	logger := log.FromCtx(ctx)

	// Observation failures must not cost the user an answer.
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if n, err := p.Observe(ctx, msg); err != nil {
			logger.Warn().Err(err).Str("group", msg.GroupID).Msg("observe failed")
		} else if n > 0 {
			logger.Debug().Int("stored", n).Msg("memories extracted")
		}
	}()

	memories, err := p.recall(ctx, msg)
	if err != nil {
		wg.Wait()
		p.record(false, false, start)
		return Reply{}, fmt.Errorf("retrieve memories: %w", err)
	}

	temperature := answerTemperature
	resp, err := generate(ctx, core.LLMRequest{
		Task:        core.TaskQuery,
		System:      buildAnswerPrompt(memories),
		Prompt:      msg.Text,
		Temperature: &temperature,
		MaxTokens:   answerMaxTokens,
	})
	wg.Wait()
	if err != nil {
		p.record(false, false, start)
		return Reply{}, err
	}

	reply := Reply{
		Text:         resp.Text,
		Model:        resp.Model,
		UsedFallback: resp.UsedFallback,
		LatencyMs:    p.now().Sub(start).Milliseconds(),
		Memories:     memories,
	}
	p.record(true, resp.UsedFallback, start)

	logger.Info().
		Str("model", reply.Model).
		Bool("fallback", reply.UsedFallback).
		Int("memories", len(memories)).
		Int64("latency_ms", reply.LatencyMs).
		Msg("answered")
	return reply, nil
}

func (p *Processor) recall(ctx context.Context, msg Message) ([]core.MemorySearchResult, error) {
	var memories []core.MemorySearchResult
	err := p.retry(ctx, "search", func() error {
		var err error
		memories, err = p.retriever.Search(ctx, msg.Text, memory.SearchOptions{
			GroupID:       msg.GroupID,
			Limit:         p.cfg.SearchLimit,
			MinSimilarity: memory.Threshold(p.cfg.MinSimilarity),
		})
		return err
	})
	return memories, err
}

// Summarize condenses a group's recent history.
func (p *Processor) Summarize(ctx context.Context, groupID string) (string, error) {
	if groupID == "" {
		return "", fmt.Errorf("%w: group id is required", core.ErrValidation)
	}

	msgs, err := p.history.RecentMessages(ctx, groupID, summaryHistory)
	if err != nil {
		return "", fmt.Errorf("load history: %w", err)
	}
	if len(msgs) == 0 {
		return "", fmt.Errorf("%w: no messages to summarize", core.ErrValidation)
	}

	var b strings.Builder
	for _, m := range msgs {
		fmt.Fprintf(&b, "%s: %s\n", m.SenderName, m.Content)
	}

	resp, err := p.gen.Generate(ctx, core.LLMRequest{
		Task:   core.TaskSummarization,
		Prompt: b.String(),
	})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// retry runs op with backoff. Validation and dimension errors fail fast.
func (p *Processor) retry(ctx context.Context, op string, fn func() error) error {
	cfg := *p.cfg.Retry
	cfg.Retryable = func(err error) bool { return !core.IsPermanent(err) }
	cfg.OnRetry = func(attempt int, delay time.Duration, err error) {
		p.mu.Lock()
		p.metrics.Retries++
		p.mu.Unlock()
		log.FromCtx(ctx).Warn().
			Err(err).
			Str("op", op).
			Int("attempt", attempt).
			Dur("delay", delay).
			Msg("retrying")
	}
	return retry.NewRetrier(&cfg).Do(ctx, fn)
}

func buildAnswerPrompt(memories []core.MemorySearchResult) string {
	known := memory.FormatContext(memories)
	if known == "" {
		known = noMemories
	}
	return generation.QueryResponsePrompt + "\n\nThông tin đã lưu trữ:\n" + known
}
