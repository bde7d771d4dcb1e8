package chromem

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/luvu182/luxbot/internal/core"
	"github.com/luvu182/luxbot/pkg/log"
	chromem "github.com/philippgille/chromem-go"
)

const (
	keyType      = "type"
	keySummary   = "summary"
	keyUserID    = "user_id"
	keyAgentID   = "agent_id"
	keyDueDate   = "due_date"
	keyCreatedAt = "created_at"
	keyMetadata  = "metadata"

	maxQueryAttempts = 3
)

var errNoEmbedFunc = errors.New("chromem store has no embedding function")

// Store keeps memories in chromem-go, one collection per agent (or per user
// when no agent is set).
type Store struct {
	db    *chromem.DB
	dims  int
	embed core.EmbedFunc
	now   func() time.Time
}

// NewStore opens a persistent database under path, or an in-memory one when
// path is empty.
func NewStore(path string, dims int, embed core.EmbedFunc) (*Store, error) {
	if dims <= 0 {
		return nil, fmt.Errorf("%w: embedding dimensions must be positive", core.ErrValidation)
	}

	db := chromem.NewDB()
	if path != "" {
		var err error
		if db, err = chromem.NewPersistentDB(path, false); err != nil {
			return nil, fmt.Errorf("open chromem db: %w", err)
		}
	}

	return &Store{db: db, dims: dims, embed: embed, now: time.Now}, nil
}

func collectionName(scope core.Scope) string {
	if scope.AgentID != "" {
		return "agent_" + scope.AgentID
	}
	return "user_" + scope.UserID
}

func (s *Store) embedFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		if s.embed == nil {
			return nil, errNoEmbedFunc
		}
		return s.embed(ctx, text)
	}
}

func (s *Store) collection(scope core.Scope, create bool) (*chromem.Collection, error) {
	if scope.AgentID == "" && scope.UserID == "" {
		return nil, fmt.Errorf("%w: scope requires a user or agent id", core.ErrValidation)
	}

	name := collectionName(scope)
	if !create {
		return s.db.GetCollection(name, s.embedFunc()), nil
	}

	col, err := s.db.GetOrCreateCollection(name, map[string]string{"dimensions": strconv.Itoa(s.dims)}, s.embedFunc())
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	return col, nil
}

func (s *Store) Add(ctx context.Context, records []core.MemoryRecord, opts core.AddOptions) error {
	col, err := s.collection(opts.Scope, true)
	if err != nil {
		return err
	}

	// Validate the whole batch before writing any of it.
	now := s.now().UTC()
	docs := make([]chromem.Document, 0, len(records))
	for _, rec := range records {
		if strings.TrimSpace(rec.Content) == "" {
			return fmt.Errorf("%w: memory content cannot be empty", core.ErrValidation)
		}
		if len(rec.Embedding) > 0 && len(rec.Embedding) != s.dims {
			return &core.DimensionMismatchError{Left: s.dims, Right: len(rec.Embedding)}
		}
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = now
		}

		doc, err := encode(rec, opts)
		if err != nil {
			return err
		}
		docs = append(docs, doc)
	}

	// AddDocument replaces by id, so a retried batch does not duplicate.
	for _, doc := range docs {
		if err := col.AddDocument(ctx, doc); err != nil {
			return fmt.Errorf("add document %s: %w", doc.ID, err)
		}
	}

	log.FromCtx(ctx).Debug().Str("collection", col.Name).Int("count", len(docs)).Msg("chromem documents added")
	return nil
}

// Search embeds the query and ranks the scope's documents by cosine.
func (s *Store) Search(ctx context.Context, query string, opts core.QueryOptions) ([]core.Candidate, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: search query cannot be empty", core.ErrValidation)
	}
	if s.embed == nil {
		return nil, errNoEmbedFunc
	}

	col, err := s.collection(opts.Scope, false)
	if err != nil || col == nil {
		return nil, err
	}

	vec, err := s.embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	results, err := queryShrinking(ctx, col, vec, opts.Limit, scopeFilter(opts.Scope))
	if err != nil {
		return nil, err
	}
	return decodeResults(results)
}

// GetAll returns the newest documents in scope first.
func (s *Store) GetAll(ctx context.Context, opts core.QueryOptions) ([]core.Candidate, error) {
	col, err := s.collection(opts.Scope, false)
	if err != nil || col == nil {
		return nil, err
	}

	// chromem has no listing API; a query over every document with any
	// probe vector returns them all.
	probe := make([]float32, s.dims)
	for i := range probe {
		probe[i] = 1
	}
	results, err := queryShrinking(ctx, col, probe, 0, scopeFilter(opts.Scope))
	if err != nil {
		return nil, err
	}

	out, err := decodeResults(results)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Score = 0
	}
	slices.SortStableFunc(out, func(a, b core.Candidate) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (s *Store) Update(ctx context.Context, id, content string) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("%w: memory content cannot be empty", core.ErrValidation)
	}
	if s.embed == nil {
		return errNoEmbedFunc
	}

	col, doc, err := s.find(ctx, id)
	if err != nil {
		return err
	}

	vec, err := s.embed(ctx, content)
	if err != nil {
		return fmt.Errorf("embed updated memory: %w", err)
	}
	if len(vec) != s.dims {
		return &core.DimensionMismatchError{Left: s.dims, Right: len(vec)}
	}

	doc.Content = content
	doc.Embedding = vec
	// AddDocument replaces a document with the same id.
	if err := col.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("replace document %s: %w", id, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	col, _, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if err := col.Delete(ctx, nil, nil, id); err != nil {
		return fmt.Errorf("delete document %s: %w", id, err)
	}
	return nil
}

func (s *Store) find(ctx context.Context, id string) (*chromem.Collection, chromem.Document, error) {
	if id == "" {
		return nil, chromem.Document{}, fmt.Errorf("%w: memory id cannot be empty", core.ErrValidation)
	}
	for _, col := range s.db.ListCollections() {
		if doc, err := col.GetByID(ctx, id); err == nil {
			return col, doc, nil
		}
	}
	return nil, chromem.Document{}, fmt.Errorf("memory %s: %w", id, core.ErrNotFound)
}

func scopeFilter(scope core.Scope) map[string]string {
	if scope.AgentID != "" && scope.UserID != "" {
		return map[string]string{keyUserID: scope.UserID}
	}
	return nil
}

// queryShrinking asks for limit results (all when limit <= 0), capped at the
// collection size, and retries when deletes shrink the collection mid-call.
func queryShrinking(ctx context.Context, col *chromem.Collection, vec []float32, limit int, where map[string]string) ([]chromem.Result, error) {
	for range maxQueryAttempts {
		n := col.Count()
		if n == 0 {
			return nil, nil
		}
		if limit > 0 {
			n = min(n, limit)
		}

		results, err := col.QueryEmbedding(ctx, vec, n, where, nil)
		if err == nil {
			return results, nil
		}
		if !strings.Contains(err.Error(), "nResults must be") {
			return nil, fmt.Errorf("chromem query: %w", err)
		}
	}
	return nil, errors.New("chromem query: collection kept shrinking")
}

func encode(rec core.MemoryRecord, opts core.AddOptions) (chromem.Document, error) {
	md := make(map[string]any, len(opts.Metadata)+len(rec.Metadata))
	for k, v := range opts.Metadata {
		md[k] = v
	}
	for k, v := range rec.Metadata {
		md[k] = v
	}
	mdJSON, err := json.Marshal(md)
	if err != nil {
		return chromem.Document{}, fmt.Errorf("marshal metadata: %w", err)
	}

	meta := map[string]string{
		keyType:      string(rec.Type),
		keySummary:   rec.Summary,
		keyUserID:    opts.Scope.UserID,
		keyAgentID:   opts.Scope.AgentID,
		keyCreatedAt: rec.CreatedAt.UTC().Format(time.RFC3339Nano),
		keyMetadata:  string(mdJSON),
	}
	if rec.DueDate != nil {
		meta[keyDueDate] = rec.DueDate.Format(time.RFC3339Nano)
	}

	return chromem.Document{
		ID:        rec.ID,
		Content:   rec.Content,
		Embedding: rec.Embedding,
		Metadata:  meta,
	}, nil
}

func decodeResults(results []chromem.Result) ([]core.Candidate, error) {
	out := make([]core.Candidate, 0, len(results))
	for _, r := range results {
		rec, err := decode(r.ID, r.Content, r.Embedding, r.Metadata)
		if err != nil {
			return nil, err
		}
		out = append(out, core.Candidate{MemoryRecord: rec, Score: float64(r.Similarity)})
	}
	return out, nil
}

func decode(id, content string, embedding []float32, meta map[string]string) (core.MemoryRecord, error) {
	rec := core.MemoryRecord{
		ID:        id,
		Type:      core.ItemType(meta[keyType]),
		Content:   content,
		Summary:   meta[keySummary],
		Embedding: slices.Clone(embedding),
	}

	created, err := time.Parse(time.RFC3339Nano, meta[keyCreatedAt])
	if err != nil {
		return rec, fmt.Errorf("document %s: bad created_at: %w", id, err)
	}
	rec.CreatedAt = created

	if raw := meta[keyDueDate]; raw != "" {
		due, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return rec, fmt.Errorf("document %s: bad due_date: %w", id, err)
		}
		rec.DueDate = &due
	}

	if raw := meta[keyMetadata]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &rec.Metadata); err != nil {
			return rec, fmt.Errorf("document %s: bad metadata: %w", id, err)
		}
	}
	return rec, nil
}
