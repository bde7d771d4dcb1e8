package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/luvu182/luxbot/internal/core"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/ssestream"
)

// OpenAI wraps the official SDK. SDK retries are disabled because the
// generation service owns failover.
type OpenAI struct {
	client  openai.Client
	timeout time.Duration
}

func NewOpenAI(apiKey, baseURL string, timeout time.Duration) *OpenAI {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
		option.WithHeader("User-Agent", core.LuxUserAgent),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAI{
		client:  openai.NewClient(opts...),
		timeout: timeout,
	}
}

func chatParams(model string, req core.LLMRequest) openai.ChatCompletionNewParams {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: messages,
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}
	return params
}

func (o *OpenAI) unaryCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.timeout > 0 {
		return context.WithTimeout(ctx, o.timeout)
	}
	return context.WithCancel(ctx)
}

func (o *OpenAI) Generate(ctx context.Context, model string, req core.LLMRequest) (string, error) {
	ctx, cancel := o.unaryCtx(ctx)
	defer cancel()

	resp, err := o.client.Chat.Completions.New(ctx, chatParams(model, req))
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty choices")
	}

	text := resp.Choices[0].Message.Content
	if text == "" {
		return "", fmt.Errorf("empty response (finish=%s)", resp.Choices[0].FinishReason)
	}
	return text, nil
}

func (o *OpenAI) Stream(ctx context.Context, model string, req core.LLMRequest) (core.TextStream, error) {
	return &openaiStream{stream: o.client.Chat.Completions.NewStreaming(ctx, chatParams(model, req))}, nil
}

func (o *OpenAI) Embed(ctx context.Context, model, text string, dimensions int) ([]float32, error) {
	ctx, cancel := o.unaryCtx(ctx)
	defer cancel()

	params := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
		Model: openai.EmbeddingModel(model),
	}
	if dimensions > 0 {
		params.Dimensions = openai.Int(int64(dimensions))
	}

	resp, err := o.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("embeddings: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("empty embedding in response")
	}

	src := resp.Data[0].Embedding
	vec := make([]float32, len(src))
	for i, v := range src {
		vec[i] = float32(v)
	}
	return vec, nil
}

// openaiStream skips chunks without content, such as the role preamble.
type openaiStream struct {
	stream *ssestream.Stream[openai.ChatCompletionChunk]
	cur    string
}

func (s *openaiStream) Next() bool {
	for s.stream.Next() {
		chunk := s.stream.Current()
		if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
			continue
		}
		s.cur = chunk.Choices[0].Delta.Content
		return true
	}
	return false
}

func (s *openaiStream) Current() string { return s.cur }

func (s *openaiStream) Err() error { return s.stream.Err() }

func (s *openaiStream) Close() error { return s.stream.Close() }
