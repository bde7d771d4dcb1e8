package assistant

import (
	"context"
	"sync"

	"github.com/luvu182/luxbot/internal/core"
	"github.com/luvu182/luxbot/internal/service/generation"
	"github.com/luvu182/luxbot/internal/service/memory"
)

type mockGenerator struct {
	mu           sync.Mutex
	requests     []core.LLMRequest
	generateFunc func(ctx context.Context, req core.LLMRequest) (core.LLMResponse, error)
	streamFunc   func(ctx context.Context, req core.LLMRequest, onChunk generation.StreamFunc) (core.LLMResponse, error)
}

func (m *mockGenerator) Generate(ctx context.Context, req core.LLMRequest) (core.LLMResponse, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	return m.generateFunc(ctx, req)
}

func (m *mockGenerator) Stream(ctx context.Context, req core.LLMRequest, onChunk generation.StreamFunc) (core.LLMResponse, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	return m.streamFunc(ctx, req, onChunk)
}

type mockExtractor struct {
	extractFunc func(ctx context.Context, message string, ec *core.ExtractionContext) []core.ExtractedItem
}

func (m *mockExtractor) ExtractInfo(ctx context.Context, message string, ec *core.ExtractionContext) []core.ExtractedItem {
	return m.extractFunc(ctx, message, ec)
}

type mockRetriever struct {
	mu         sync.Mutex
	calls      int
	searchFunc func(ctx context.Context, query string, opts memory.SearchOptions) ([]core.MemorySearchResult, error)
}

func (m *mockRetriever) Search(ctx context.Context, query string, opts memory.SearchOptions) ([]core.MemorySearchResult, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	return m.searchFunc(ctx, query, opts)
}

type mockWriter struct {
	mu        sync.Mutex
	calls     int
	storeFunc func(ctx context.Context, p memory.StoreParams) ([]string, error)
}

func (m *mockWriter) StoreExtractedInfo(ctx context.Context, p memory.StoreParams) ([]string, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	return m.storeFunc(ctx, p)
}

func (m *mockWriter) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type mockHistory struct {
	mu       sync.Mutex
	messages map[string][]core.ContextMessage
	addErr   error
}

func newMockHistory() *mockHistory {
	return &mockHistory{messages: make(map[string][]core.ContextMessage)}
}

func (m *mockHistory) AddMessage(_ context.Context, groupID string, msg core.ContextMessage) error {
	if m.addErr != nil {
		return m.addErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[groupID] = append(m.messages[groupID], msg)
	return nil
}

func (m *mockHistory) RecentMessages(_ context.Context, groupID string, limit int) ([]core.ContextMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := m.messages[groupID]
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return append([]core.ContextMessage(nil), msgs...), nil
}
