package core

import (
	"context"
	"time"
)

const groupAgentPrefix = "group_"

// Scope partitions memory. AgentID is shared by every member of a group.
type Scope struct {
	UserID  string
	AgentID string
}

func GroupAgentID(groupID string) string {
	return groupAgentPrefix + groupID
}

func GroupScope(groupID string) Scope {
	return Scope{AgentID: GroupAgentID(groupID)}
}

type MemoryRecord struct {
	ID        string         `json:"id"`
	Type      ItemType       `json:"type"`
	Content   string         `json:"content"`
	Summary   string         `json:"summary,omitempty"`
	DueDate   *time.Time     `json:"due_date,omitempty"`
	Embedding []float32      `json:"-"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Candidate is a stored record plus the score the store itself assigned.
type Candidate struct {
	MemoryRecord
	Score float64 `json:"score"`
}

type AddOptions struct {
	Scope    Scope
	Metadata map[string]any
}

type QueryOptions struct {
	Scope Scope
	Limit int
}

type MemoryStore interface {
	Add(ctx context.Context, records []MemoryRecord, opts AddOptions) error
	Search(ctx context.Context, query string, opts QueryOptions) ([]Candidate, error)
	GetAll(ctx context.Context, opts QueryOptions) ([]Candidate, error)
	Update(ctx context.Context, id, content string) error
	Delete(ctx context.Context, id string) error
}

type MessagesRepository interface {
	AddMessage(ctx context.Context, groupID string, msg ContextMessage) error
	RecentMessages(ctx context.Context, groupID string, limit int) ([]ContextMessage, error)
}

// EmbedFunc lets stores re-embed content on update.
type EmbedFunc func(ctx context.Context, text string) ([]float32, error)
