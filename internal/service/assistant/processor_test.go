package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/luvu182/luxbot/internal/core"
	"github.com/luvu182/luxbot/internal/service/generation"
	"github.com/luvu182/luxbot/internal/service/memory"
	"github.com/luvu182/luxbot/pkg/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry() *retry.Config {
	return &retry.Config{
		MaxRetries:    2,
		BackoffFactor: 1,
		InitialDelay:  time.Millisecond,
		MaxDelay:      5 * time.Millisecond,
	}
}

type fixture struct {
	gen       *mockGenerator
	extractor *mockExtractor
	retriever *mockRetriever
	writer    *mockWriter
	history   *mockHistory
}

func newFixture() *fixture {
	return &fixture{
		gen: &mockGenerator{
			generateFunc: func(_ context.Context, req core.LLMRequest) (core.LLMResponse, error) {
				return core.LLMResponse{Text: "Minh làm báo cáo.", Model: "gemini-2.5-flash-lite"}, nil
			},
		},
		extractor: &mockExtractor{
			extractFunc: func(context.Context, string, *core.ExtractionContext) []core.ExtractedItem {
				return []core.ExtractedItem{{Type: core.ItemTask, Content: "Minh làm báo cáo", Confidence: 0.9}}
			},
		},
		retriever: &mockRetriever{
			searchFunc: func(context.Context, string, memory.SearchOptions) ([]core.MemorySearchResult, error) {
				return []core.MemorySearchResult{{ID: "m1", Type: core.ItemTask, Content: "Minh làm báo cáo", Similarity: 0.9}}, nil
			},
		},
		writer: &mockWriter{
			storeFunc: func(_ context.Context, p memory.StoreParams) ([]string, error) {
				return []string{"id-1"}, nil
			},
		},
		history: newMockHistory(),
	}
}

func (f *fixture) processor() *Processor {
	return NewProcessor(f.gen, f.extractor, f.retriever, f.writer, f.history, Config{
		ContextWindow: 5,
		SearchLimit:   5,
		MinSimilarity: 0.3,
		Retry:         fastRetry(),
	})
}

var testMsg = Message{
	GroupID:    "g1",
	GroupName:  "Dự án A",
	UserID:     "u1",
	SenderName: "Lan",
	MessageID:  "42",
	Text:       "Ai làm báo cáo tuần này?",
}

func TestProcessor_Observe(t *testing.T) {
	f := newFixture()
	f.history.messages["g1"] = []core.ContextMessage{{SenderName: "Minh", Content: "Mình nhận báo cáo"}}

	var gotCtx *core.ExtractionContext
	f.extractor.extractFunc = func(_ context.Context, _ string, ec *core.ExtractionContext) []core.ExtractedItem {
		gotCtx = ec
		return []core.ExtractedItem{{Type: core.ItemTask, Content: "Minh làm báo cáo", Confidence: 0.9}}
	}
	var gotParams memory.StoreParams
	f.writer.storeFunc = func(_ context.Context, p memory.StoreParams) ([]string, error) {
		gotParams = p
		return []string{"id-1"}, nil
	}

	n, err := f.processor().Observe(context.Background(), testMsg)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NotNil(t, gotCtx)
	assert.Equal(t, "Lan", gotCtx.SenderName)
	assert.Equal(t, "Dự án A", gotCtx.GroupName)
	require.Len(t, gotCtx.RecentMessages, 1, "context excludes the message itself")

	assert.Equal(t, "g1", gotParams.GroupID)
	assert.Equal(t, "u1", gotParams.UserID)
	assert.Equal(t, "42", gotParams.MessageID)

	assert.Len(t, f.history.messages["g1"], 2)
}

func TestProcessor_ObserveNothingExtracted(t *testing.T) {
	f := newFixture()
	f.extractor.extractFunc = func(context.Context, string, *core.ExtractionContext) []core.ExtractedItem { return nil }

	n, err := f.processor().Observe(context.Background(), testMsg)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, f.writer.callCount())
}

func TestProcessor_ObserveRetries(t *testing.T) {
	tests := []struct {
		name      string
		errs      []error
		wantCalls int
		wantErr   error
	}{
		{name: "transient then ok", errs: []error{errors.New("database is locked"), nil}, wantCalls: 2},
		{name: "validation fails fast", errs: []error{fmt.Errorf("%w: bad", core.ErrValidation)}, wantCalls: 1, wantErr: core.ErrValidation},
		{name: "dimension fails fast", errs: []error{&core.DimensionMismatchError{Left: 768, Right: 3}}, wantCalls: 1, wantErr: core.ErrDimensionMismatch},
		{name: "gives up", errs: []error{errors.New("x"), errors.New("x"), errors.New("x")}, wantCalls: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.writer.storeFunc = func(context.Context, memory.StoreParams) ([]string, error) {
				i := min(f.writer.calls-1, len(tt.errs)-1)
				if err := tt.errs[i]; err != nil {
					return nil, err
				}
				return []string{"id-1"}, nil
			}

			p := f.processor()
			_, err := p.Observe(context.Background(), testMsg)

			assert.Equal(t, tt.wantCalls, f.writer.callCount())
			last := tt.errs[len(tt.errs)-1]
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case last == nil:
				assert.NoError(t, err)
			default:
				assert.Error(t, err)
			}
			assert.Equal(t, int64(tt.wantCalls-1), p.Metrics().Retries)
		})
	}
}

func TestProcessor_ObserveRetryKeepsIDs(t *testing.T) {
	f := newFixture()
	var seen [][]string
	f.writer.storeFunc = func(_ context.Context, p memory.StoreParams) ([]string, error) {
		seen = append(seen, p.IDs)
		if len(seen) == 1 {
			return nil, errors.New("database is locked")
		}
		return p.IDs, nil
	}

	n, err := f.processor().Observe(context.Background(), testMsg)
	require.NoError(t, err)
	require.Len(t, seen, 2)
	require.NotEmpty(t, seen[0])
	assert.Equal(t, seen[0], seen[1])
	assert.Equal(t, len(seen[1]), n)
}

func TestProcessor_ObserveValidation(t *testing.T) {
	p := newFixture().processor()

	_, err := p.Observe(context.Background(), Message{GroupID: "g1", Text: "  "})
	assert.ErrorIs(t, err, core.ErrValidation)

	_, err = p.Observe(context.Background(), Message{Text: "xin chào"})
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestProcessor_Answer(t *testing.T) {
	f := newFixture()
	var gotOpts memory.SearchOptions
	f.retriever.searchFunc = func(_ context.Context, query string, opts memory.SearchOptions) ([]core.MemorySearchResult, error) {
		gotOpts = opts
		return []core.MemorySearchResult{{ID: "m1", Type: core.ItemTask, Content: "Minh làm báo cáo", Similarity: 0.9}}, nil
	}
	p := f.processor()

	reply, err := p.Answer(context.Background(), testMsg)
	require.NoError(t, err)

	assert.Equal(t, "Minh làm báo cáo.", reply.Text)
	assert.Equal(t, "gemini-2.5-flash-lite", reply.Model)
	assert.Len(t, reply.Memories, 1)
	assert.Equal(t, 1, f.writer.callCount(), "message is observed too")

	assert.Equal(t, "g1", gotOpts.GroupID)
	require.NotNil(t, gotOpts.MinSimilarity)
	assert.Equal(t, 0.3, *gotOpts.MinSimilarity)

	require.Len(t, f.gen.requests, 1)
	req := f.gen.requests[0]
	assert.Equal(t, core.TaskQuery, req.Task)
	assert.Equal(t, testMsg.Text, req.Prompt)
	assert.Equal(t, 500, req.MaxTokens)
	require.NotNil(t, req.Temperature)
	assert.Equal(t, 0.7, *req.Temperature)
	assert.True(t, strings.HasPrefix(req.System, generation.QueryResponsePrompt))
	assert.Contains(t, req.System, "- Minh làm báo cáo")

	m := p.Metrics()
	assert.Equal(t, int64(1), m.Processed)
	assert.Zero(t, m.Failed)
}

func TestProcessor_AnswerWithoutMemories(t *testing.T) {
	f := newFixture()
	f.retriever.searchFunc = func(context.Context, string, memory.SearchOptions) ([]core.MemorySearchResult, error) {
		return nil, nil
	}

	_, err := f.processor().Answer(context.Background(), testMsg)
	require.NoError(t, err)
	assert.Contains(t, f.gen.requests[0].System, noMemories)
}

func TestProcessor_AnswerSurvivesObserveFailure(t *testing.T) {
	f := newFixture()
	f.writer.storeFunc = func(context.Context, memory.StoreParams) ([]string, error) {
		return nil, fmt.Errorf("%w: no vectors", core.ErrValidation)
	}

	reply, err := f.processor().Answer(context.Background(), testMsg)
	require.NoError(t, err)
	assert.NotEmpty(t, reply.Text)
}

func TestProcessor_AnswerFailures(t *testing.T) {
	t.Run("retrieval", func(t *testing.T) {
		f := newFixture()
		f.retriever.searchFunc = func(context.Context, string, memory.SearchOptions) ([]core.MemorySearchResult, error) {
			return nil, errors.New("store offline")
		}
		p := f.processor()

		_, err := p.Answer(context.Background(), testMsg)
		assert.ErrorContains(t, err, "store offline")
		assert.Equal(t, 3, f.retriever.calls)
		assert.Empty(t, f.gen.requests)
		assert.Equal(t, int64(1), p.Metrics().Failed)
	})

	t.Run("generation", func(t *testing.T) {
		f := newFixture()
		f.gen.generateFunc = func(context.Context, core.LLMRequest) (core.LLMResponse, error) {
			return core.LLMResponse{}, fmt.Errorf("%w: both down", core.ErrGeneration)
		}
		p := f.processor()

		_, err := p.Answer(context.Background(), testMsg)
		assert.ErrorIs(t, err, core.ErrGeneration)
		assert.Equal(t, int64(1), p.Metrics().Failed)
		assert.Zero(t, p.Metrics().Processed)
	})
}

func TestProcessor_StreamAnswer(t *testing.T) {
	f := newFixture()
	f.gen.streamFunc = func(_ context.Context, req core.LLMRequest, onChunk generation.StreamFunc) (core.LLMResponse, error) {
		for _, c := range []string{"Minh ", "làm ", "báo cáo."} {
			if err := onChunk(c); err != nil {
				return core.LLMResponse{}, err
			}
		}
		return core.LLMResponse{Text: "Minh làm báo cáo.", Model: "gpt-4o-mini", UsedFallback: true}, nil
	}
	p := f.processor()

	var b strings.Builder
	reply, err := p.StreamAnswer(context.Background(), testMsg, func(chunk string) error {
		b.WriteString(chunk)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, "Minh làm báo cáo.", b.String())
	assert.True(t, reply.UsedFallback)
	assert.Equal(t, int64(1), p.Metrics().Fallbacks)
}

func TestProcessor_Summarize(t *testing.T) {
	f := newFixture()
	f.history.messages["g1"] = []core.ContextMessage{
		{SenderName: "Lan", Content: "Thứ Sáu nộp báo cáo"},
		{SenderName: "Minh", Content: "Ok mình làm"},
	}
	p := f.processor()

	_, err := p.Summarize(context.Background(), "g1")
	require.NoError(t, err)
	require.Len(t, f.gen.requests, 1)
	assert.Equal(t, core.TaskSummarization, f.gen.requests[0].Task)
	assert.Contains(t, f.gen.requests[0].Prompt, "Minh: Ok mình làm")

	_, err = p.Summarize(context.Background(), "empty")
	assert.ErrorIs(t, err, core.ErrValidation)
}
