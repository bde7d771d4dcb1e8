package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/luvu182/luxbot/internal/core"
	"github.com/luvu182/luxbot/pkg/log"
)

// MessagesRepo keeps raw group history used as extraction context.
type MessagesRepo struct {
	db *sql.DB
}

func NewMessagesRepo(db *sql.DB) *MessagesRepo {
	return &MessagesRepo{db: db}
}

func (h *MessagesRepo) AddMessage(ctx context.Context, groupID string, msg core.ContextMessage) error {
	created := msg.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	query := `INSERT INTO messages (group_id, sender_name, content, created_at) VALUES (?, ?, ?, ?)`
	_, err := h.db.ExecContext(ctx, query, groupID, msg.SenderName, msg.Content, created.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

func (h *MessagesRepo) RecentMessages(ctx context.Context, groupID string, limit int) ([]core.ContextMessage, error) {
	// Fetch the LAST 'limit' messages by ordering DESC
	query := `SELECT sender_name, content, created_at FROM messages WHERE group_id = ? ORDER BY id DESC LIMIT ?`

	rows, err := h.db.QueryContext(ctx, query, groupID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []core.ContextMessage
	for rows.Next() {
		var (
			msg     core.ContextMessage
			created int64
		)
		if err := rows.Scan(&msg.SenderName, &msg.Content, &created); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msg.CreatedAt = time.UnixMilli(created).UTC()
		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Newest first from the query; callers want chronological order.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	log.FromCtx(ctx).Debug().Int("count", len(messages)).Msg("loaded group messages")
	return messages, nil
}
