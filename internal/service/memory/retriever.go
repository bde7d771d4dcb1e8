package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/luvu182/luxbot/internal/core"
	"github.com/luvu182/luxbot/pkg/log"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultSearchLimit   = 10
	DefaultMinSimilarity = 0.5

	assigneeQueryPrefix = "nhiệm vụ của "
	deadlinesQuery      = "deadline thời hạn sắp tới"
)

type SearchOptions struct {
	GroupID string
	// Type restricts results to one item type when set.
	Type  core.ItemType
	Limit int
	// MinSimilarity defaults to DefaultMinSimilarity when nil.
	MinSimilarity *float64
}

func Threshold(v float64) *float64 {
	return &v
}

func (o SearchOptions) limit() int {
	if o.Limit <= 0 {
		return DefaultSearchLimit
	}
	return o.Limit
}

// Results never carry a negative similarity, whatever threshold is asked for.
func (o SearchOptions) threshold() float64 {
	if o.MinSimilarity == nil {
		return DefaultMinSimilarity
	}
	return max(*o.MinSimilarity, 0)
}

// Retriever ranks a group's stored memories against natural-language queries.
// Every memory in the group is scored unless candidateLimit caps the scan to
// the newest ones.
type Retriever struct {
	embedder       core.Embedder
	store          core.MemoryStore
	candidateLimit int
}

// NewRetriever takes candidateLimit <= 0 as no cap.
func NewRetriever(embedder core.Embedder, store core.MemoryStore, candidateLimit int) *Retriever {
	return &Retriever{
		embedder:       embedder,
		store:          store,
		candidateLimit: candidateLimit,
	}
}

func (r *Retriever) Search(ctx context.Context, query string, opts SearchOptions) ([]core.MemorySearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: search query cannot be empty", core.ErrValidation)
	}
	if opts.GroupID == "" {
		return nil, fmt.Errorf("%w: group id is required", core.ErrValidation)
	}

	queryVec, err := r.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	candidates, err := r.candidates(ctx, opts.GroupID)
	if err != nil {
		return nil, err
	}

	threshold := opts.threshold()
	results := make([]core.MemorySearchResult, 0, len(candidates))
	for _, c := range candidates {
		if opts.Type != "" && c.Type != opts.Type {
			continue
		}

		vec := c.Embedding
		if len(vec) == 0 {
			if strings.TrimSpace(c.Content) == "" {
				continue
			}
			if vec, err = r.embedder.EmbedText(ctx, c.Content); err != nil {
				return nil, fmt.Errorf("embed candidate %s: %w", c.ID, err)
			}
		}

		sim, err := CosineSimilarity(queryVec, vec)
		if err != nil {
			return nil, fmt.Errorf("score candidate %s: %w", c.ID, err)
		}
		if sim < threshold {
			continue
		}
		results = append(results, toSearchResult(c.MemoryRecord, sim))
	}

	log.FromCtx(ctx).Debug().
		Str("group", opts.GroupID).
		Int("candidates", len(candidates)).
		Int("matched", len(results)).
		Msg("memory search")

	return rank(results, opts.limit()), nil
}

// MultiSearch runs every query concurrently and merges the hits. When a
// memory matches several queries its highest similarity wins.
func (r *Retriever) MultiSearch(ctx context.Context, queries []string, opts SearchOptions) ([]core.MemorySearchResult, error) {
	if len(queries) == 0 {
		return nil, fmt.Errorf("%w: at least one query is required", core.ErrValidation)
	}

	sets := make([][]core.MemorySearchResult, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	for i, q := range queries {
		g.Go(func() error {
			res, err := r.Search(gctx, q, opts)
			if err != nil {
				return fmt.Errorf("query %q: %w", q, err)
			}
			sets[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return mergeResults(sets, opts.limit()), nil
}

func (r *Retriever) SearchTasksByAssignee(ctx context.Context, groupID, assignee string, limit int) ([]core.MemorySearchResult, error) {
	if strings.TrimSpace(assignee) == "" {
		return nil, fmt.Errorf("%w: assignee cannot be empty", core.ErrValidation)
	}
	return r.Search(ctx, assigneeQueryPrefix+strings.TrimSpace(assignee), SearchOptions{
		GroupID: groupID,
		Type:    core.ItemTask,
		Limit:   limit,
	})
}

func (r *Retriever) SearchUpcomingDeadlines(ctx context.Context, groupID string, limit int) ([]core.MemorySearchResult, error) {
	return r.Search(ctx, deadlinesQuery, SearchOptions{
		GroupID: groupID,
		Type:    core.ItemDeadline,
		Limit:   limit,
	})
}

// RecentExtractedInfo lists a group's newest memories without scoring them.
func (r *Retriever) RecentExtractedInfo(ctx context.Context, groupID string, limit int) ([]core.MemorySearchResult, error) {
	if groupID == "" {
		return nil, fmt.Errorf("%w: group id is required", core.ErrValidation)
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	candidates, err := r.store.GetAll(ctx, core.QueryOptions{
		Scope: core.GroupScope(groupID),
		Limit: limit,
	})
	if err != nil {
		return nil, fmt.Errorf("load recent memories: %w", err)
	}

	slices.SortStableFunc(candidates, func(a, b core.Candidate) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	results := make([]core.MemorySearchResult, 0, len(candidates))
	for _, c := range candidates {
		results = append(results, toSearchResult(c.MemoryRecord, 1))
	}
	return results, nil
}

func (r *Retriever) candidates(ctx context.Context, groupID string) ([]core.Candidate, error) {
	limit := max(r.candidateLimit, 0)
	candidates, err := r.store.GetAll(ctx, core.QueryOptions{
		Scope: core.GroupScope(groupID),
		Limit: limit,
	})
	if err != nil {
		return nil, fmt.Errorf("load candidates: %w", err)
	}
	if limit > 0 && len(candidates) >= limit {
		log.FromCtx(ctx).Warn().
			Str("group", groupID).
			Int("limit", limit).
			Msg("candidate limit reached, older memories are not scored")
	}
	return candidates, nil
}

func mergeResults(sets [][]core.MemorySearchResult, limit int) []core.MemorySearchResult {
	index := make(map[string]int)
	var merged []core.MemorySearchResult

	for _, set := range sets {
		for _, res := range set {
			if i, ok := index[res.ID]; ok {
				if res.Similarity > merged[i].Similarity {
					merged[i] = res
				}
				continue
			}
			index[res.ID] = len(merged)
			merged = append(merged, res)
		}
	}

	return rank(merged, limit)
}

func rank(results []core.MemorySearchResult, limit int) []core.MemorySearchResult {
	slices.SortStableFunc(results, func(a, b core.MemorySearchResult) int {
		return cmp.Compare(b.Similarity, a.Similarity)
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

func toSearchResult(rec core.MemoryRecord, similarity float64) core.MemorySearchResult {
	return core.MemorySearchResult{
		ID:         rec.ID,
		Type:       rec.Type,
		Content:    rec.Content,
		Summary:    rec.Summary,
		DueDate:    rec.DueDate,
		Similarity: similarity,
	}
}
