package sqlite

import (
	"cmp"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/luvu182/luxbot/internal/core"
	"github.com/luvu182/luxbot/pkg/log"
)

const settingDimensions = "embedding_dimensions"

// MemoryRepo stores memories and their embeddings. Ranking by vector is left
// to the retriever; Search here is a plain keyword match.
type MemoryRepo struct {
	db    *sql.DB
	dims  int
	embed core.EmbedFunc
	now   func() time.Time
}

// NewMemoryRepo pins the embedding dimension on first use and refuses to open
// a database created with a different one.
func NewMemoryRepo(ctx context.Context, db *sql.DB, dims int, embed core.EmbedFunc) (*MemoryRepo, error) {
	r := &MemoryRepo{db: db, dims: dims, embed: embed, now: time.Now}
	if err := r.checkDimensions(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *MemoryRepo) checkDimensions(ctx context.Context) error {
	var stored string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, settingDimensions).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		_, err = r.db.ExecContext(ctx, `INSERT INTO settings (key, value) VALUES (?, ?)`, settingDimensions, strconv.Itoa(r.dims))
		if err != nil {
			return fmt.Errorf("failed to save embedding dimensions: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read embedding dimensions: %w", err)
	}

	n, err := strconv.Atoi(stored)
	if err != nil {
		return fmt.Errorf("corrupt embedding dimensions setting %q: %w", stored, err)
	}
	if n != r.dims {
		return fmt.Errorf("database was created for another embedding model: %w", &core.DimensionMismatchError{Left: n, Right: r.dims})
	}
	return nil
}

// Add writes records in one transaction. A record whose id already exists
// replaces the stored one.
func (r *MemoryRepo) Add(ctx context.Context, records []core.MemoryRecord, opts core.AddOptions) error {
	if opts.Scope.AgentID == "" && opts.Scope.UserID == "" {
		return fmt.Errorf("%w: scope requires a user or agent id", core.ErrValidation)
	}
	if len(records) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO memories (id, user_id, agent_id, type, content, summary, due_date, embedding, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			type = excluded.type,
			content = excluded.content,
			summary = excluded.summary,
			due_date = excluded.due_date,
			embedding = excluded.embedding,
			metadata = excluded.metadata,
			updated_at = excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	now := r.now().UTC()
	for _, rec := range records {
		if strings.TrimSpace(rec.Content) == "" {
			return fmt.Errorf("%w: memory content cannot be empty", core.ErrValidation)
		}
		if len(rec.Embedding) > 0 && len(rec.Embedding) != r.dims {
			return &core.DimensionMismatchError{Left: r.dims, Right: len(rec.Embedding)}
		}

		id := rec.ID
		if id == "" {
			id = uuid.NewString()
		}
		created := rec.CreatedAt
		if created.IsZero() {
			created = now
		}

		md := maps.Clone(opts.Metadata)
		if md == nil {
			md = make(map[string]any)
		}
		maps.Copy(md, rec.Metadata)
		mdJSON, err := json.Marshal(md)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}

		blob, err := serializeVector(rec.Embedding)
		if err != nil {
			return err
		}

		_, err = stmt.ExecContext(ctx,
			id, opts.Scope.UserID, opts.Scope.AgentID, string(rec.Type), rec.Content, rec.Summary,
			toMillis(rec.DueDate), blob, string(mdJSON), created.UnixMilli(), now.UnixMilli(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert memory: %w", err)
		}
	}

	return tx.Commit()
}

// Search scores memories by the share of query words they contain.
func (r *MemoryRepo) Search(ctx context.Context, query string, opts core.QueryOptions) ([]core.Candidate, error) {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return nil, fmt.Errorf("%w: search query cannot be empty", core.ErrValidation)
	}

	all, err := r.GetAll(ctx, core.QueryOptions{Scope: opts.Scope})
	if err != nil {
		return nil, err
	}

	var hits []core.Candidate
	for _, c := range all {
		text := strings.ToLower(c.Content + " " + c.Summary)
		matched := 0
		for _, t := range terms {
			if strings.Contains(text, t) {
				matched++
			}
		}
		if matched == 0 {
			continue
		}
		c.Score = float64(matched) / float64(len(terms))
		hits = append(hits, c)
	}

	slices.SortStableFunc(hits, func(a, b core.Candidate) int {
		return cmp.Compare(b.Score, a.Score)
	})
	if opts.Limit > 0 && len(hits) > opts.Limit {
		hits = hits[:opts.Limit]
	}
	return hits, nil
}

// GetAll returns the newest memories in scope first.
func (r *MemoryRepo) GetAll(ctx context.Context, opts core.QueryOptions) ([]core.Candidate, error) {
	var (
		where []string
		args  []any
	)
	if opts.Scope.AgentID != "" {
		where = append(where, "agent_id = ?")
		args = append(args, opts.Scope.AgentID)
	}
	if opts.Scope.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, opts.Scope.UserID)
	}
	if len(where) == 0 {
		return nil, fmt.Errorf("%w: scope requires a user or agent id", core.ErrValidation)
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = -1
	}
	args = append(args, limit)

	query := `SELECT id, type, content, summary, due_date, embedding, metadata, created_at
		FROM memories WHERE ` + strings.Join(where, " AND ") + ` ORDER BY created_at DESC, rowid DESC LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query memories: %w", err)
	}
	defer rows.Close()

	var out []core.Candidate
	for rows.Next() {
		rec, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, core.Candidate{MemoryRecord: rec})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	log.FromCtx(ctx).Debug().Int("count", len(out)).Str("agent", opts.Scope.AgentID).Msg("loaded memories")
	return out, nil
}

func (r *MemoryRepo) Update(ctx context.Context, id, content string) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("%w: memory content cannot be empty", core.ErrValidation)
	}

	var blob []byte
	if r.embed != nil {
		vec, err := r.embed(ctx, content)
		if err != nil {
			return fmt.Errorf("failed to embed updated memory: %w", err)
		}
		if len(vec) != r.dims {
			return &core.DimensionMismatchError{Left: r.dims, Right: len(vec)}
		}
		if blob, err = serializeVector(vec); err != nil {
			return err
		}
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE memories SET content = ?, embedding = ?, updated_at = ? WHERE id = ?`,
		content, blob, r.now().UTC().UnixMilli(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update memory: %w", err)
	}
	return expectOneRow(res, id)
}

func (r *MemoryRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM memories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete memory: %w", err)
	}
	return expectOneRow(res, id)
}

func expectOneRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("memory %s: %w", id, core.ErrNotFound)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMemory(s scanner) (core.MemoryRecord, error) {
	var (
		rec       core.MemoryRecord
		itemType  string
		dueDate   sql.NullInt64
		blob      []byte
		mdJSON    string
		createdAt int64
	)
	if err := s.Scan(&rec.ID, &itemType, &rec.Content, &rec.Summary, &dueDate, &blob, &mdJSON, &createdAt); err != nil {
		return rec, fmt.Errorf("failed to scan memory: %w", err)
	}

	rec.Type = core.ItemType(itemType)
	rec.CreatedAt = time.UnixMilli(createdAt).UTC()
	if dueDate.Valid {
		t := time.UnixMilli(dueDate.Int64).UTC()
		rec.DueDate = &t
	}

	vec, err := deserializeVector(blob)
	if err != nil {
		return rec, fmt.Errorf("memory %s: %w", rec.ID, err)
	}
	rec.Embedding = vec

	if mdJSON != "" {
		if err := json.Unmarshal([]byte(mdJSON), &rec.Metadata); err != nil {
			return rec, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}
	return rec, nil
}

func toMillis(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixMilli()
}
