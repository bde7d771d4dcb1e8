package memory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/luvu182/luxbot/internal/core"
	"github.com/luvu182/luxbot/pkg/log"
)

const sourceExtraction = "extraction"

type StoreParams struct {
	GroupID   string
	UserID    string
	MessageID string
	Items     []core.ExtractedItem
	// IDs, when set, name Items by position. Storing the same params again
	// then overwrites the records instead of adding new ones.
	IDs []string
}

// NewRecordIDs mints n memory ids for StoreParams.IDs.
func NewRecordIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = uuid.NewString()
	}
	return ids
}

// Writer embeds extracted items and persists them under the group scope.
type Writer struct {
	embedder core.Embedder
	store    core.MemoryStore
	now      func() time.Time
}

func NewWriter(embedder core.Embedder, store core.MemoryStore) *Writer {
	return &Writer{
		embedder: embedder,
		store:    store,
		now:      time.Now,
	}
}

// StoreExtractedInfo returns the ids of the stored records. Items with blank
// content are skipped and unparseable due dates are dropped.
func (w *Writer) StoreExtractedInfo(ctx context.Context, p StoreParams) ([]string, error) {
	if p.GroupID == "" {
		return nil, fmt.Errorf("%w: group id is required", core.ErrValidation)
	}

	if len(p.IDs) > 0 && len(p.IDs) != len(p.Items) {
		return nil, fmt.Errorf("%w: %d ids for %d items", core.ErrValidation, len(p.IDs), len(p.Items))
	}

	items := make([]core.ExtractedItem, 0, len(p.Items))
	itemIDs := make([]string, 0, len(p.Items))
	contents := make([]string, 0, len(p.Items))
	for i, it := range p.Items {
		if strings.TrimSpace(it.Content) == "" {
			continue
		}
		id := uuid.NewString()
		if len(p.IDs) > 0 && p.IDs[i] != "" {
			id = p.IDs[i]
		}
		items = append(items, it)
		itemIDs = append(itemIDs, id)
		contents = append(contents, it.Content)
	}
	if len(items) == 0 {
		return nil, nil
	}

	vectors, err := w.embedder.EmbedBatch(ctx, contents)
	if err != nil {
		return nil, fmt.Errorf("embed extracted items: %w", err)
	}

	now := w.now().UTC()
	records := make([]core.MemoryRecord, 0, len(items))
	ids := make([]string, 0, len(items))
	for i, it := range items {
		rec := core.MemoryRecord{
			ID:        itemIDs[i],
			Type:      it.Type,
			Content:   it.Content,
			Summary:   it.Summary,
			Embedding: vectors[i],
			Metadata:  itemMetadata(it, p.MessageID),
			CreatedAt: now,
		}
		if t, ok := parseDueDate(it.DueDate); ok {
			rec.DueDate = &t
		} else if it.DueDate != "" {
			log.FromCtx(ctx).Debug().Str("due_date", it.DueDate).Msg("dropping unparseable due date")
		}

		records = append(records, rec)
		ids = append(ids, rec.ID)
	}

	err = w.store.Add(ctx, records, core.AddOptions{
		Scope:    core.Scope{UserID: p.UserID, AgentID: core.GroupAgentID(p.GroupID)},
		Metadata: map[string]any{"source": sourceExtraction, "groupId": p.GroupID},
	})
	if err != nil {
		return nil, fmt.Errorf("store extracted info: %w", err)
	}

	log.FromCtx(ctx).Info().
		Str("group", p.GroupID).
		Int("count", len(records)).
		Msg("memories stored")

	return ids, nil
}

// StoreMemory saves a single memory written by a user rather than extracted.
func (w *Writer) StoreMemory(ctx context.Context, groupID, userID, content string) (string, error) {
	ids, err := w.StoreExtractedInfo(ctx, StoreParams{
		GroupID: groupID,
		UserID:  userID,
		Items: []core.ExtractedItem{{
			Type:       core.ItemImportant,
			Content:    content,
			Confidence: 1,
		}},
	})
	if err != nil {
		return "", err
	}
	if len(ids) == 0 {
		return "", fmt.Errorf("%w: memory content cannot be empty", core.ErrValidation)
	}
	return ids[0], nil
}

func itemMetadata(it core.ExtractedItem, messageID string) map[string]any {
	md := map[string]any{"confidence": it.Confidence}
	if it.Assignee != "" {
		md["assignee"] = it.Assignee
	}
	if messageID != "" {
		md["messageId"] = messageID
	}
	return md
}
