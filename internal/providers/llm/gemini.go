package llm

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/luvu182/luxbot/internal/core"
	"github.com/tidwall/gjson"
)

const (
	DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com"
	geminiAPIVersion     = "/v1beta"
)

// Gemini talks to the Generative Language REST API.
type Gemini struct {
	baseProvider
}

func NewGemini(baseURL, apiKey string, timeout time.Duration) *Gemini {
	if baseURL == "" {
		baseURL = DefaultGeminiBaseURL
	}
	return &Gemini{baseProvider: newBaseProvider(baseURL, apiKey, timeout)}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
}

type geminiGenerateRequest struct {
	Contents          []geminiContent        `json:"contents"`
	SystemInstruction *geminiContent         `json:"systemInstruction,omitempty"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
}

type geminiEmbedRequest struct {
	Content              geminiContent `json:"content"`
	TaskType             string        `json:"taskType,omitempty"`
	OutputDimensionality int           `json:"outputDimensionality,omitempty"`
}

func (g *Gemini) headers() map[string]string {
	return map[string]string{"x-goog-api-key": g.apiKey}
}

func buildGeminiRequest(req core.LLMRequest) geminiGenerateRequest {
	body := geminiGenerateRequest{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: req.Prompt}}}},
		GenerationConfig: geminiGenerationConfig{
			Temperature:     req.Temperature,
			MaxOutputTokens: req.MaxTokens,
		},
	}
	if req.System != "" {
		body.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.System}}}
	}
	return body
}

func (g *Gemini) Generate(ctx context.Context, model string, req core.LLMRequest) (string, error) {
	path := fmt.Sprintf("%s/models/%s:generateContent", geminiAPIVersion, model)
	data, err := g.doUnary(ctx, path, buildGeminiRequest(req), g.headers())
	if err != nil {
		return "", err
	}

	text, err := geminiText(data)
	if err != nil {
		return "", err
	}
	if text == "" {
		return "", fmt.Errorf("empty response (finish=%s, block=%s)",
			gjson.GetBytes(data, "candidates.0.finishReason").String(),
			gjson.GetBytes(data, "promptFeedback.blockReason").String())
	}
	return text, nil
}

func (g *Gemini) Stream(ctx context.Context, model string, req core.LLMRequest) (core.TextStream, error) {
	path := fmt.Sprintf("%s/models/%s:streamGenerateContent?alt=sse", geminiAPIVersion, model)
	resp, err := g.doRequest(ctx, http.MethodPost, path, buildGeminiRequest(req), g.headers())
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		data, _ := io.ReadAll(resp.Body)
		return nil, statusError(resp.StatusCode, data)
	}
	return newSSEStream(resp.Body, geminiText), nil
}

func (g *Gemini) Embed(ctx context.Context, model, text string, dimensions int) ([]float32, error) {
	path := fmt.Sprintf("%s/models/%s:embedContent", geminiAPIVersion, model)
	body := geminiEmbedRequest{
		Content:              geminiContent{Parts: []geminiPart{{Text: text}}},
		TaskType:             "SEMANTIC_SIMILARITY",
		OutputDimensionality: dimensions,
	}

	data, err := g.doUnary(ctx, path, body, g.headers())
	if err != nil {
		return nil, err
	}

	values := gjson.GetBytes(data, "embedding.values").Array()
	if len(values) == 0 {
		return nil, fmt.Errorf("empty embedding in response")
	}
	vec := make([]float32, len(values))
	for i, v := range values {
		vec[i] = float32(v.Float())
	}
	return vec, nil
}

// geminiText joins the text parts of the first candidate.
func geminiText(data []byte) (string, error) {
	if msg := gjson.GetBytes(data, "error.message"); msg.Exists() {
		return "", fmt.Errorf("gemini: %s", msg.String())
	}

	var b strings.Builder
	for _, part := range gjson.GetBytes(data, "candidates.0.content.parts.#.text").Array() {
		b.WriteString(part.String())
	}
	return b.String(), nil
}
