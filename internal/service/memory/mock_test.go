package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/luvu182/luxbot/internal/core"
)

type mockEmbeddingBackend struct {
	calls     atomic.Int32
	embedFunc func(ctx context.Context, model, text string, dims int) ([]float32, error)
}

func (m *mockEmbeddingBackend) Embed(ctx context.Context, model, text string, dims int) ([]float32, error) {
	m.calls.Add(1)
	return m.embedFunc(ctx, model, text, dims)
}

type mockGenerator struct {
	mu           sync.Mutex
	requests     []core.LLMRequest
	generateFunc func(ctx context.Context, req core.LLMRequest) (core.LLMResponse, error)
}

func (m *mockGenerator) Generate(ctx context.Context, req core.LLMRequest) (core.LLMResponse, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	return m.generateFunc(ctx, req)
}

func replyWith(text string) *mockGenerator {
	return &mockGenerator{
		generateFunc: func(_ context.Context, _ core.LLMRequest) (core.LLMResponse, error) {
			return core.LLMResponse{Text: text, Model: "gemini-2.5-flash-lite"}, nil
		},
	}
}

// mapEmbedder returns fixed vectors per text and fails on anything unknown.
type mapEmbedder struct {
	dims    int
	vectors map[string][]float32
}

func (m *mapEmbedder) EmbedText(_ context.Context, text string) ([]float32, error) {
	v, ok := m.vectors[text]
	if !ok {
		return nil, fmt.Errorf("%w: no vector for %q", core.ErrEmbedding, text)
	}
	return v, nil
}

func (m *mapEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		v, err := m.EmbedText(ctx, t)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (m *mapEmbedder) Dimensions() int { return m.dims }

type mockStore struct {
	mu      sync.Mutex
	records map[string][]core.MemoryRecord
	added   []core.AddOptions
	addErr  error
	getErr  error
}

func newMockStore() *mockStore {
	return &mockStore{records: make(map[string][]core.MemoryRecord)}
}

func (m *mockStore) put(agentID string, recs ...core.MemoryRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[agentID] = append(m.records[agentID], recs...)
}

func (m *mockStore) Add(_ context.Context, records []core.MemoryRecord, opts core.AddOptions) error {
	if m.addErr != nil {
		return m.addErr
	}
	m.mu.Lock()
	m.added = append(m.added, opts)
	m.mu.Unlock()
	m.put(opts.Scope.AgentID, records...)
	return nil
}

func (m *mockStore) Search(ctx context.Context, _ string, opts core.QueryOptions) ([]core.Candidate, error) {
	return m.GetAll(ctx, opts)
}

func (m *mockStore) GetAll(_ context.Context, opts core.QueryOptions) ([]core.Candidate, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []core.Candidate
	for _, r := range m.records[opts.Scope.AgentID] {
		out = append(out, core.Candidate{MemoryRecord: r})
	}
	slices.SortStableFunc(out, func(a, b core.Candidate) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (m *mockStore) Update(context.Context, string, string) error { return nil }

func (m *mockStore) Delete(context.Context, string) error { return nil }
