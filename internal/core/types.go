package core

import (
	"fmt"
	"strings"
	"time"
)

const (
	LuxName          = "LuxBot"
	LuxUserAgent     = "LuxBot-Agent/0.1"
	LuxRepositoryURL = "https://github.com/luvu182/luxbot"
	LuxVersion       = "0.1.0"
)

// Task selects the primary model and the default system prompt.
type Task string

const (
	TaskChat          Task = "chat"
	TaskExtraction    Task = "extraction"
	TaskSummarization Task = "summarization"
	TaskQuery         Task = "query"
	TaskTranslation   Task = "translation"
)

var Tasks = []Task{TaskChat, TaskExtraction, TaskSummarization, TaskQuery, TaskTranslation}

func ParseTask(s string) (Task, error) {
	t := Task(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Tasks {
		if t == known {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: unknown task %q", ErrValidation, s)
}

type LLMRequest struct {
	Task        Task
	System      string
	Prompt      string
	Temperature *float64
	MaxTokens   int
}

func (r LLMRequest) Validate() error {
	if strings.TrimSpace(r.Prompt) == "" {
		return fmt.Errorf("%w: prompt cannot be empty", ErrValidation)
	}
	if r.MaxTokens < 0 {
		return fmt.Errorf("%w: max tokens must be positive", ErrValidation)
	}
	return nil
}

type LLMResponse struct {
	Text         string `json:"text"`
	Model        string `json:"model"`
	UsedFallback bool   `json:"usedFallback"`
	LatencyMs    int64  `json:"latencyMs"`
}

type ItemType string

const (
	ItemTask      ItemType = "task"
	ItemDecision  ItemType = "decision"
	ItemDeadline  ItemType = "deadline"
	ItemImportant ItemType = "important"
	ItemGeneral   ItemType = "general"
)

func (t ItemType) Valid() bool {
	switch t {
	case ItemTask, ItemDecision, ItemDeadline, ItemImportant, ItemGeneral:
		return true
	}
	return false
}

// MinConfidence is the lowest model-reported confidence kept by extraction.
const MinConfidence = 0.7

type ExtractedItem struct {
	Type       ItemType `json:"type"`
	Content    string   `json:"content"`
	Summary    string   `json:"summary,omitempty"`
	Assignee   string   `json:"assignee,omitempty"`
	DueDate    string   `json:"dueDate,omitempty"`
	Confidence float64  `json:"confidence"`
}

type MemorySearchResult struct {
	ID         string     `json:"id"`
	Type       ItemType   `json:"type"`
	Content    string     `json:"content"`
	Summary    string     `json:"summary,omitempty"`
	DueDate    *time.Time `json:"dueDate,omitempty"`
	Similarity float64    `json:"similarity"`
}

// ContextMessage is one line of group history handed to extraction.
type ContextMessage struct {
	SenderName string    `json:"sender_name"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

type ExtractionContext struct {
	SenderName     string
	GroupName      string
	RecentMessages []ContextMessage
}
