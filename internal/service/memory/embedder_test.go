package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/luvu182/luxbot/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func constBackend(dims int) *mockEmbeddingBackend {
	return &mockEmbeddingBackend{
		embedFunc: func(_ context.Context, _ string, text string, _ int) ([]float32, error) {
			v := make([]float32, dims)
			v[0] = float32(len(text))
			return v, nil
		},
	}
}

func TestEmbeddingService_EmbedText(t *testing.T) {
	t.Run("rejects blank text without calling backend", func(t *testing.T) {
		backend := constBackend(4)
		svc, err := NewEmbeddingService(backend, "text-embedding-004", 4, 0)
		require.NoError(t, err)

		_, err = svc.EmbedText(context.Background(), "   ")
		assert.ErrorIs(t, err, core.ErrValidation)
		assert.Equal(t, int32(0), backend.calls.Load())
	})

	t.Run("wraps backend failure", func(t *testing.T) {
		backend := &mockEmbeddingBackend{
			embedFunc: func(context.Context, string, string, int) ([]float32, error) {
				return nil, errors.New("http 503: unavailable")
			},
		}
		svc, err := NewEmbeddingService(backend, "m", 4, 0)
		require.NoError(t, err)

		_, err = svc.EmbedText(context.Background(), "họp nhóm")
		assert.ErrorIs(t, err, core.ErrEmbedding)
		assert.Contains(t, err.Error(), "http 503")
	})

	t.Run("rejects wrong vector length", func(t *testing.T) {
		svc, err := NewEmbeddingService(constBackend(3), "m", 4, 0)
		require.NoError(t, err)

		_, err = svc.EmbedText(context.Background(), "họp nhóm")
		assert.ErrorIs(t, err, core.ErrEmbedding)
		assert.ErrorIs(t, err, core.ErrDimensionMismatch)
	})

	t.Run("returns configured length", func(t *testing.T) {
		svc, err := NewEmbeddingService(constBackend(768), "m", 768, 0)
		require.NoError(t, err)

		vec, err := svc.EmbedText(context.Background(), "deadline thứ Sáu")
		require.NoError(t, err)
		assert.Len(t, vec, 768)
		assert.Equal(t, 768, svc.Dimensions())
	})

	t.Run("cache serves repeated text", func(t *testing.T) {
		backend := constBackend(4)
		svc, err := NewEmbeddingService(backend, "m", 4, 100)
		require.NoError(t, err)
		defer svc.Close()

		first, err := svc.EmbedText(context.Background(), "xin chào")
		require.NoError(t, err)
		svc.cache.Wait()

		second, err := svc.EmbedText(context.Background(), "xin chào")
		require.NoError(t, err)

		assert.Equal(t, first, second)
		assert.Equal(t, int32(1), backend.calls.Load())
	})
}

func TestNewEmbeddingService_InvalidDimensions(t *testing.T) {
	_, err := NewEmbeddingService(constBackend(1), "m", 0, 0)
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestEmbeddingService_EmbedBatch(t *testing.T) {
	tests := []struct {
		name    string
		texts   []string
		want    int
		wantErr error
	}{
		{name: "skips blanks", texts: []string{"", "valid"}, want: 1},
		{name: "keeps all", texts: []string{"a", "b", "c"}, want: 3},
		{name: "all blank", texts: []string{"", "  "}, wantErr: core.ErrValidation},
		{name: "empty input", texts: nil, wantErr: core.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := NewEmbeddingService(constBackend(4), "m", 4, 0)
			require.NoError(t, err)

			got, err := svc.EmbedBatch(context.Background(), tt.texts)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
			for _, v := range got {
				assert.Len(t, v, 4)
			}
		})
	}
}

func TestEmbeddingService_EmbedBatchPreservesOrder(t *testing.T) {
	svc, err := NewEmbeddingService(constBackend(2), "m", 2, 0)
	require.NoError(t, err)

	got, err := svc.EmbedBatch(context.Background(), []string{"a", "", "bbb", "cc"})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, float32(1), got[0][0])
	assert.Equal(t, float32(3), got[1][0])
	assert.Equal(t, float32(2), got[2][0])
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{name: "identical", a: []float32{1, 2, 3}, b: []float32{1, 2, 3}, want: 1},
		{name: "orthogonal", a: []float32{1, 0}, b: []float32{0, 1}, want: 0},
		{name: "opposite", a: []float32{1, 0, 0}, b: []float32{-1, 0, 0}, want: -1},
		{name: "skewed", a: []float32{3, 4}, b: []float32{4, 3}, want: 0.96},
		{name: "zero vector", a: []float32{0, 0}, b: []float32{1, 1}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CosineSimilarity(tt.a, tt.b)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
			assert.GreaterOrEqual(t, got, -1.0)
			assert.LessOrEqual(t, got, 1.0)
		})
	}
}

func TestCosineSimilarity_DimensionMismatch(t *testing.T) {
	_, err := CosineSimilarity([]float32{1, 2}, []float32{1, 2, 3})
	require.ErrorIs(t, err, core.ErrDimensionMismatch)

	var dm *core.DimensionMismatchError
	require.ErrorAs(t, err, &dm)
	assert.Equal(t, 2, dm.Left)
	assert.Equal(t, 3, dm.Right)
}
