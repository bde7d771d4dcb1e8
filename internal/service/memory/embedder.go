package memory

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/dgraph-io/ristretto"
	"github.com/luvu182/luxbot/internal/core"
	"golang.org/x/sync/errgroup"
)

const defaultEmbedConcurrency = 8

// EmbeddingService turns text into fixed-length vectors. Identical texts are
// served from an in-process cache when one is configured.
type EmbeddingService struct {
	backend     core.EmbeddingBackend
	model       string
	dims        int
	cache       *ristretto.Cache
	concurrency int
}

func NewEmbeddingService(backend core.EmbeddingBackend, model string, dims int, cacheSize int64) (*EmbeddingService, error) {
	if dims <= 0 {
		return nil, fmt.Errorf("%w: embedding dimensions must be positive", core.ErrValidation)
	}

	e := &EmbeddingService{
		backend:     backend,
		model:       model,
		dims:        dims,
		concurrency: defaultEmbedConcurrency,
	}

	if cacheSize > 0 {
		cache, err := ristretto.NewCache(&ristretto.Config{
			NumCounters: cacheSize * 10,
			MaxCost:     cacheSize,
			BufferItems: 64,
		})
		if err != nil {
			return nil, fmt.Errorf("create embedding cache: %w", err)
		}
		e.cache = cache
	}
	return e, nil
}

func (e *EmbeddingService) Dimensions() int {
	return e.dims
}

func (e *EmbeddingService) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: cannot embed empty text", core.ErrValidation)
	}

	if vec, ok := e.cached(text); ok {
		return vec, nil
	}

	vec, err := e.backend.Embed(ctx, e.model, text, e.dims)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrEmbedding, err)
	}
	if len(vec) != e.dims {
		return nil, fmt.Errorf("%w: %w", core.ErrEmbedding, &core.DimensionMismatchError{Left: e.dims, Right: len(vec)})
	}

	if e.cache != nil {
		e.cache.Set(e.model+"\x00"+text, slices.Clone(vec), 1)
	}
	return vec, nil
}

// EmbedBatch drops blank entries, so the result can be shorter than texts.
func (e *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	valid := make([]string, 0, len(texts))
	for _, t := range texts {
		if strings.TrimSpace(t) != "" {
			valid = append(valid, t)
		}
	}
	if len(valid) == 0 {
		return nil, fmt.Errorf("%w: no non-empty texts to embed", core.ErrValidation)
	}

	out := make([][]float32, len(valid))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, text := range valid {
		g.Go(func() error {
			vec, err := e.EmbedText(gctx, text)
			if err != nil {
				return err
			}
			out[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (e *EmbeddingService) Close() {
	if e.cache != nil {
		e.cache.Close()
	}
}

func (e *EmbeddingService) cached(text string) ([]float32, bool) {
	if e.cache == nil {
		return nil, false
	}
	v, ok := e.cache.Get(e.model + "\x00" + text)
	if !ok {
		return nil, false
	}
	return slices.Clone(v.([]float32)), true
}

// CosineSimilarity returns 0 when either vector has zero magnitude.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, &core.DimensionMismatchError{Left: len(a), Right: len(b)}
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}

	sim := dot / math.Sqrt(normA*normB)
	return max(-1, min(1, sim)), nil
}
