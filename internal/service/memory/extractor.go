package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/luvu182/luxbot/internal/core"
	"github.com/luvu182/luxbot/pkg/log"
	"golang.org/x/sync/errgroup"
)

const (
	extractionTemperature  = 0.1
	defaultContextBudget   = 1024
	defaultBatchConcurrent = 4
)

// Generator is the slice of the generation service the extractor needs.
type Generator interface {
	Generate(ctx context.Context, req core.LLMRequest) (core.LLMResponse, error)
}

// Extractor pulls structured items out of chat messages. It never fails:
// model or parse errors are logged and yield no items.
type Extractor struct {
	gen           Generator
	contextBudget int
	now           func() time.Time
}

func NewExtractor(gen Generator, contextBudget int) *Extractor {
	if contextBudget <= 0 {
		contextBudget = defaultContextBudget
	}
	return &Extractor{
		gen:           gen,
		contextBudget: contextBudget,
		now:           time.Now,
	}
}

func (e *Extractor) ExtractInfo(ctx context.Context, message string, ec *core.ExtractionContext) []core.ExtractedItem {
	if strings.TrimSpace(message) == "" {
		return []core.ExtractedItem{}
	}

	logger := log.FromCtx(ctx)
	temperature := extractionTemperature

	resp, err := e.gen.Generate(ctx, core.LLMRequest{
		Task:        core.TaskExtraction,
		Prompt:      buildExtractionPrompt(message, ec, e.now(), e.contextBudget),
		Temperature: &temperature,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("extraction request failed")
		return []core.ExtractedItem{}
	}

	items, err := parseExtractionResponse(resp.Text)
	if err != nil {
		logger.Warn().Err(err).Str("model", resp.Model).Msg("extraction response rejected")
		return []core.ExtractedItem{}
	}

	kept := FilterByConfidence(items, core.MinConfidence)
	logger.Debug().
		Int("parsed", len(items)).
		Int("kept", len(kept)).
		Msg("extraction finished")
	return kept
}

// ExtractBatch runs ExtractInfo for every message. Result i belongs to
// messages[i]; a failure in one message leaves the others untouched.
func (e *Extractor) ExtractBatch(ctx context.Context, messages []string, ec *core.ExtractionContext) [][]core.ExtractedItem {
	results := make([][]core.ExtractedItem, len(messages))

	var g errgroup.Group
	g.SetLimit(defaultBatchConcurrent)
	for i, msg := range messages {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					log.FromCtx(ctx).Error().Interface("panic", r).Int("index", i).Msg("extraction panicked")
					results[i] = []core.ExtractedItem{}
				}
			}()

			results[i] = e.ExtractInfo(ctx, msg, ec)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// FilterByConfidence keeps items whose confidence is at least minConfidence.
func FilterByConfidence(items []core.ExtractedItem, minConfidence float64) []core.ExtractedItem {
	kept := make([]core.ExtractedItem, 0, len(items))
	for _, it := range items {
		if it.Confidence >= minConfidence {
			kept = append(kept, it)
		}
	}
	return kept
}

type rawItem struct {
	Type       core.ItemType `json:"type"`
	Content    string        `json:"content"`
	Summary    *string       `json:"summary"`
	Assignee   *string       `json:"assignee"`
	DueDate    *string       `json:"dueDate"`
	Confidence *float64      `json:"confidence"`
}

// parseExtractionResponse accepts the first JSON value in the reply that
// decodes as an item list or an {"items": [...]} envelope.
func parseExtractionResponse(content string) ([]core.ExtractedItem, error) {
	candidates := jsonValues(content)
	if len(candidates) == 0 {
		return nil, errors.New("no JSON found in response")
	}

	var lastErr error
	for _, c := range candidates {
		items, err := parseItems(c)
		if err == nil {
			return items, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func parseItems(jsonStr string) ([]core.ExtractedItem, error) {
	var raw []rawItem
	if strings.HasPrefix(jsonStr, "[") {
		if err := json.Unmarshal([]byte(jsonStr), &raw); err != nil {
			return nil, fmt.Errorf("unmarshal items: %w", err)
		}
	} else {
		var envelope struct {
			Items *[]rawItem `json:"items"`
		}
		if err := json.Unmarshal([]byte(jsonStr), &envelope); err != nil {
			return nil, fmt.Errorf("unmarshal items: %w", err)
		}
		if envelope.Items == nil {
			return nil, errors.New("response has no items field")
		}
		raw = *envelope.Items
	}

	items := make([]core.ExtractedItem, 0, len(raw))
	for i, r := range raw {
		item, err := r.validate()
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		items = append(items, item)
	}
	return items, nil
}

func (r rawItem) validate() (core.ExtractedItem, error) {
	if !r.Type.Valid() {
		return core.ExtractedItem{}, fmt.Errorf("unknown type %q", r.Type)
	}
	if strings.TrimSpace(r.Content) == "" {
		return core.ExtractedItem{}, errors.New("empty content")
	}
	if r.Confidence == nil {
		return core.ExtractedItem{}, errors.New("missing confidence")
	}
	if *r.Confidence < 0 || *r.Confidence > 1 {
		return core.ExtractedItem{}, fmt.Errorf("confidence %v out of range", *r.Confidence)
	}

	return core.ExtractedItem{
		Type:       r.Type,
		Content:    strings.TrimSpace(r.Content),
		Summary:    deref(r.Summary),
		Assignee:   deref(r.Assignee),
		DueDate:    deref(r.DueDate),
		Confidence: *r.Confidence,
	}, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

// jsonValues returns every well-formed object or array embedded in a model
// reply, in order. Markdown fences, bracketed labels and chatter around the
// payload are skipped.
func jsonValues(content string) []string {
	var values []string
	for i := 0; i < len(content); {
		start := strings.IndexAny(content[i:], "{[")
		if start == -1 {
			break
		}
		start += i

		var raw json.RawMessage
		dec := json.NewDecoder(strings.NewReader(content[start:]))
		if err := dec.Decode(&raw); err != nil {
			i = start + 1
			continue
		}
		values = append(values, string(raw))
		i = start + int(dec.InputOffset())
	}
	return values
}
