package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/luvu182/luxbot/internal/core"
	"github.com/luvu182/luxbot/internal/providers/llm"
	"github.com/luvu182/luxbot/pkg/log"
)

const (
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 2048
)

type Options struct {
	// Timeout bounds each attempt separately. Zero leaves it to the caller's context.
	Timeout     time.Duration
	Temperature float64
	MaxTokens   int
}

// Service generates text against the routed model and fails over to the
// other provider family exactly once.
type Service struct {
	router   *llm.Router
	backends map[llm.Family]core.ChatBackend
	opts     Options
}

func NewService(router *llm.Router, backends map[llm.Family]core.ChatBackend, opts Options) *Service {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultMaxTokens
	}
	return &Service{
		router:   router,
		backends: backends,
		opts:     opts,
	}
}

// StreamFunc receives chunks in order. A returned error aborts the stream.
type StreamFunc func(chunk string) error

func (s *Service) Generate(ctx context.Context, req core.LLMRequest) (core.LLMResponse, error) {
	req, err := s.prepare(req)
	if err != nil {
		return core.LLMResponse{}, err
	}

	start := time.Now()
	primary := s.router.SelectModel(req.Task)

	text, err := s.attempt(ctx, primary, req)
	if err == nil {
		return s.response(text, primary, false, start), nil
	}
	s.logFallback(ctx, req.Task, primary, err)

	fallback := s.router.GetFallback(primary)
	text, ferr := s.attempt(ctx, fallback, req)
	if ferr != nil {
		return core.LLMResponse{}, s.generationError(primary, fallback, err, ferr)
	}
	return s.response(text, fallback, true, start), nil
}

// Stream follows the Generate failover contract until the first chunk has
// been handed to onChunk. Errors after that are returned as is.
func (s *Service) Stream(ctx context.Context, req core.LLMRequest, onChunk StreamFunc) (core.LLMResponse, error) {
	req, err := s.prepare(req)
	if err != nil {
		return core.LLMResponse{}, err
	}

	start := time.Now()
	used := s.router.SelectModel(req.Task)
	usedFallback := false

	st, err := s.open(ctx, used, req)
	if err != nil {
		s.logFallback(ctx, req.Task, used, err)

		fallback := s.router.GetFallback(used)
		var ferr error
		st, ferr = s.open(ctx, fallback, req)
		if ferr != nil {
			return core.LLMResponse{}, s.generationError(used, fallback, err, ferr)
		}
		used, usedFallback = fallback, true
	}
	defer st.close()

	var b strings.Builder
	emit := func(chunk string) error {
		b.WriteString(chunk)
		return onChunk(chunk)
	}

	if st.first != "" {
		if err := emit(st.first); err != nil {
			return s.response(b.String(), used, usedFallback, start), err
		}
	}
	for st.stream.Next() {
		if err := emit(st.stream.Current()); err != nil {
			return s.response(b.String(), used, usedFallback, start), err
		}
	}
	if err := st.stream.Err(); err != nil {
		return s.response(b.String(), used, usedFallback, start),
			fmt.Errorf("stream from %s interrupted: %w", s.router.GetModelName(used), err)
	}

	return s.response(b.String(), used, usedFallback, start), nil
}

func (s *Service) prepare(req core.LLMRequest) (core.LLMRequest, error) {
	if err := req.Validate(); err != nil {
		return req, err
	}
	if req.Task == "" {
		req.Task = core.TaskChat
	}
	if req.System == "" {
		req.System = SystemPrompt(req.Task)
	}
	if req.Temperature == nil {
		t := s.opts.Temperature
		req.Temperature = &t
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = s.opts.MaxTokens
	}
	return req, nil
}

func (s *Service) backend(h llm.ModelHandle) (core.ChatBackend, error) {
	b, ok := s.backends[h.Family()]
	if !ok {
		return nil, fmt.Errorf("no backend configured for %s", h.Family())
	}
	return b, nil
}

func (s *Service) attemptCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.Timeout > 0 {
		return context.WithTimeout(ctx, s.opts.Timeout)
	}
	return context.WithCancel(ctx)
}

func (s *Service) attempt(ctx context.Context, h llm.ModelHandle, req core.LLMRequest) (string, error) {
	b, err := s.backend(h)
	if err != nil {
		return "", err
	}

	ctx, cancel := s.attemptCtx(ctx)
	defer cancel()
	return b.Generate(ctx, h.Model(), req)
}

type openedStream struct {
	stream core.TextStream
	first  string
	cancel context.CancelFunc
}

func (o *openedStream) close() {
	_ = o.stream.Close()
	o.cancel()
}

// open starts a stream and pulls its first chunk, so a failure before
// anything reached the caller can still fail over.
func (s *Service) open(ctx context.Context, h llm.ModelHandle, req core.LLMRequest) (*openedStream, error) {
	b, err := s.backend(h)
	if err != nil {
		return nil, err
	}

	actx, cancel := s.attemptCtx(ctx)
	st, err := b.Stream(actx, h.Model(), req)
	if err != nil {
		cancel()
		return nil, err
	}

	opened := &openedStream{stream: st, cancel: cancel}
	if st.Next() {
		opened.first = st.Current()
		return opened, nil
	}
	if err := st.Err(); err != nil {
		opened.close()
		return nil, err
	}
	return opened, nil
}

func (s *Service) response(text string, h llm.ModelHandle, usedFallback bool, start time.Time) core.LLMResponse {
	return core.LLMResponse{
		Text:         text,
		Model:        s.router.GetModelName(h),
		UsedFallback: usedFallback,
		LatencyMs:    time.Since(start).Milliseconds(),
	}
}

func (s *Service) logFallback(ctx context.Context, task core.Task, primary llm.ModelHandle, err error) {
	log.FromCtx(ctx).Warn().
		Err(err).
		Str("task", string(task)).
		Str("model", s.router.GetModelName(primary)).
		Msg("primary model failed, falling back")
}

func (s *Service) generationError(primary, fallback llm.ModelHandle, perr, ferr error) error {
	return fmt.Errorf("%w: %w", core.ErrGeneration, errors.Join(
		fmt.Errorf("primary %s: %w", s.router.GetModelName(primary), perr),
		fmt.Errorf("fallback %s: %w", s.router.GetModelName(fallback), ferr),
	))
}
