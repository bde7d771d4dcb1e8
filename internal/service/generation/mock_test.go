package generation

import (
	"context"
	"sync"

	"github.com/luvu182/luxbot/internal/core"
)

type mockBackend struct {
	mu           sync.Mutex
	calls        int
	generateFunc func(ctx context.Context, model string, req core.LLMRequest) (string, error)
	streamFunc   func(ctx context.Context, model string, req core.LLMRequest) (core.TextStream, error)
}

func (m *mockBackend) Generate(ctx context.Context, model string, req core.LLMRequest) (string, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	return m.generateFunc(ctx, model, req)
}

func (m *mockBackend) Stream(ctx context.Context, model string, req core.LLMRequest) (core.TextStream, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	return m.streamFunc(ctx, model, req)
}

func (m *mockBackend) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// sliceStream yields chunks, then reports err.
type sliceStream struct {
	chunks []string
	err    error
	i      int
	cur    string
	closed bool
}

func (s *sliceStream) Next() bool {
	if s.i < len(s.chunks) {
		s.cur = s.chunks[s.i]
		s.i++
		return true
	}
	return false
}

func (s *sliceStream) Current() string { return s.cur }

func (s *sliceStream) Err() error {
	if s.i >= len(s.chunks) {
		return s.err
	}
	return nil
}

func (s *sliceStream) Close() error {
	s.closed = true
	return nil
}
