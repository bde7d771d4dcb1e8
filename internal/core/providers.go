package core

import "context"

// ChatBackend is one provider family's generate and stream primitives.
type ChatBackend interface {
	Generate(ctx context.Context, model string, req LLMRequest) (string, error)
	Stream(ctx context.Context, model string, req LLMRequest) (TextStream, error)
}

// TextStream yields text deltas. Err is valid once Next returns false.
type TextStream interface {
	Next() bool
	Current() string
	Err() error
	Close() error
}

type EmbeddingBackend interface {
	Embed(ctx context.Context, model, text string, dimensions int) ([]float32, error)
}

type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}
