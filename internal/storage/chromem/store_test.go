package chromem

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/luvu182/luxbot/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var groupScope = core.Scope{UserID: "u1", AgentID: "group_g1"}

func fixedEmbed(vectors map[string][]float32) core.EmbedFunc {
	return func(_ context.Context, text string) ([]float32, error) {
		if v, ok := vectors[text]; ok {
			return v, nil
		}
		return []float32{0, 0, 1}, nil
	}
}

func newTestStore(t *testing.T, embed core.EmbedFunc) *Store {
	t.Helper()
	s, err := NewStore("", 3, embed)
	require.NoError(t, err)
	return s
}

func TestStore_AddOverwritesByID(t *testing.T) {
	s := newTestStore(t, nil)
	ctx := context.Background()
	rec := core.MemoryRecord{ID: "m1", Type: core.ItemTask, Content: "Minh làm báo cáo", Embedding: []float32{1, 0, 0}}

	require.NoError(t, s.Add(ctx, []core.MemoryRecord{rec}, core.AddOptions{Scope: groupScope}))
	require.NoError(t, s.Add(ctx, []core.MemoryRecord{rec}, core.AddOptions{Scope: groupScope}))

	got, err := s.GetAll(ctx, core.QueryOptions{Scope: groupScope})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "m1", got[0].ID)
}

func TestStore_AddAndGetAll(t *testing.T) {
	s := newTestStore(t, nil)
	ctx := context.Background()
	base := time.Date(2025, 12, 18, 9, 0, 0, 0, time.UTC)
	due := time.Date(2025, 12, 20, 0, 0, 0, 0, time.UTC)

	err := s.Add(ctx, []core.MemoryRecord{
		{ID: "old", Type: core.ItemTask, Content: "Minh làm báo cáo", Embedding: []float32{1, 0, 0}, DueDate: &due, CreatedAt: base,
			Metadata: map[string]any{"assignee": "Minh"}},
		{ID: "new", Type: core.ItemDecision, Content: "Chọn Postgres", Embedding: []float32{0, 1, 0}, CreatedAt: base.Add(time.Hour)},
	}, core.AddOptions{Scope: groupScope, Metadata: map[string]any{"source": "extraction"}})
	require.NoError(t, err)

	got, err := s.GetAll(ctx, core.QueryOptions{Scope: core.Scope{AgentID: "group_g1"}})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "new", got[0].ID)
	assert.Equal(t, "old", got[1].ID)

	old := got[1]
	assert.Equal(t, core.ItemTask, old.Type)
	assert.Equal(t, "Minh làm báo cáo", old.Content)
	assert.Equal(t, []float32{1, 0, 0}, old.Embedding)
	require.NotNil(t, old.DueDate)
	assert.True(t, due.Equal(*old.DueDate))
	assert.True(t, base.Equal(old.CreatedAt))
	assert.Equal(t, "Minh", old.Metadata["assignee"])
	assert.Equal(t, "extraction", old.Metadata["source"])

	limited, err := s.GetAll(ctx, core.QueryOptions{Scope: groupScope, Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "new", limited[0].ID)

	empty, err := s.GetAll(ctx, core.QueryOptions{Scope: core.Scope{AgentID: "group_g2"}})
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestStore_AddValidation(t *testing.T) {
	s := newTestStore(t, nil)
	ctx := context.Background()

	assert.ErrorIs(t, s.Add(ctx, []core.MemoryRecord{{Content: "x"}}, core.AddOptions{}), core.ErrValidation)
	assert.ErrorIs(t, s.Add(ctx, []core.MemoryRecord{{Content: "x", Embedding: []float32{1}}}, core.AddOptions{Scope: groupScope}), core.ErrDimensionMismatch)
	assert.ErrorIs(t, s.Add(ctx, []core.MemoryRecord{{Content: " ", Embedding: []float32{1, 0, 0}}}, core.AddOptions{Scope: groupScope}), core.ErrValidation)

	// Without an embed function a record must carry its vector.
	assert.ErrorIs(t, s.Add(ctx, []core.MemoryRecord{{Content: "x"}}, core.AddOptions{Scope: groupScope}), errNoEmbedFunc)
}

func TestStore_AddEmbedsMissingVectors(t *testing.T) {
	s := newTestStore(t, fixedEmbed(map[string][]float32{"họp": {0, 1, 0}}))
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, []core.MemoryRecord{{ID: "m1", Content: "họp"}}, core.AddOptions{Scope: groupScope}))

	got, err := s.GetAll(ctx, core.QueryOptions{Scope: groupScope})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, []float32{0, 1, 0}, got[0].Embedding)
}

func TestStore_Search(t *testing.T) {
	s := newTestStore(t, fixedEmbed(map[string][]float32{"báo cáo": {1, 0, 0}}))
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, []core.MemoryRecord{
		{ID: "close", Content: "a", Embedding: []float32{0.9, 0.1, 0}},
		{ID: "far", Content: "b", Embedding: []float32{0, 1, 0}},
	}, core.AddOptions{Scope: groupScope}))

	// A limit above the collection size is capped rather than rejected.
	got, err := s.Search(ctx, "báo cáo", core.QueryOptions{Scope: groupScope, Limit: 10})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "close", got[0].ID)
	assert.InDelta(t, 0.9/math.Sqrt(0.82), got[0].Score, 1e-5)

	got, err = s.Search(ctx, "báo cáo", core.QueryOptions{Scope: groupScope, Limit: 1})
	require.NoError(t, err)
	require.Len(t, got, 1)

	got, err = s.Search(ctx, "báo cáo", core.QueryOptions{Scope: core.Scope{AgentID: "nobody"}})
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = s.Search(ctx, " ", core.QueryOptions{Scope: groupScope})
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestStore_UpdateAndDelete(t *testing.T) {
	s := newTestStore(t, fixedEmbed(map[string][]float32{"mới": {0, 1, 0}}))
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, []core.MemoryRecord{{ID: "m1", Type: core.ItemTask, Content: "cũ", Embedding: []float32{1, 0, 0}}}, core.AddOptions{Scope: groupScope}))

	require.NoError(t, s.Update(ctx, "m1", "mới"))
	got, err := s.GetAll(ctx, core.QueryOptions{Scope: groupScope})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "mới", got[0].Content)
	assert.Equal(t, core.ItemTask, got[0].Type)
	assert.Equal(t, []float32{0, 1, 0}, got[0].Embedding)

	assert.ErrorIs(t, s.Update(ctx, "missing", "x"), core.ErrNotFound)
	assert.ErrorIs(t, s.Update(ctx, "m1", ""), core.ErrValidation)

	require.NoError(t, s.Delete(ctx, "m1"))
	assert.ErrorIs(t, s.Delete(ctx, "m1"), core.ErrNotFound)

	got, err = s.GetAll(ctx, core.QueryOptions{Scope: groupScope})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStore_Persistent(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := NewStore(dir, 3, nil)
	require.NoError(t, err)
	require.NoError(t, s.Add(ctx, []core.MemoryRecord{{ID: "p1", Content: "giữ lại", Embedding: []float32{1, 0, 0}}}, core.AddOptions{Scope: groupScope}))

	reopened, err := NewStore(dir, 3, nil)
	require.NoError(t, err)
	got, err := reopened.GetAll(ctx, core.QueryOptions{Scope: groupScope})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "giữ lại", got[0].Content)
}
