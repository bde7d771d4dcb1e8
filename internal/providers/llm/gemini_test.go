package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/luvu182/luxbot/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func temp(v float64) *float64 { return &v }

func TestGeminiGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models/gemini-2.5-flash-lite:generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req geminiGenerateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Xin chào", req.Contents[0].Parts[0].Text)
		require.NotNil(t, req.SystemInstruction)
		assert.Equal(t, "Bạn là LuxBot", req.SystemInstruction.Parts[0].Text)
		assert.Equal(t, 0.1, *req.GenerationConfig.Temperature)
		assert.Equal(t, 256, req.GenerationConfig.MaxOutputTokens)

		fmt.Fprint(w, `{"candidates":[{"content":{"parts":[{"text":"Chào "},{"text":"bạn"}]},"finishReason":"STOP"}]}`)
	}))
	defer srv.Close()

	g := NewGemini(srv.URL, "test-key", time.Second)
	text, err := g.Generate(context.Background(), "gemini-2.5-flash-lite", core.LLMRequest{
		System:      "Bạn là LuxBot",
		Prompt:      "Xin chào",
		Temperature: temp(0.1),
		MaxTokens:   256,
	})
	require.NoError(t, err)
	assert.Equal(t, "Chào bạn", text)
}

func TestGeminiGenerateErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"http error message", http.StatusTooManyRequests, `{"error":{"code":429,"message":"quota exceeded"}}`, "http 429: quota exceeded"},
		{"blocked prompt", http.StatusOK, `{"promptFeedback":{"blockReason":"SAFETY"}}`, "block=SAFETY"},
		{"no candidates", http.StatusOK, `{}`, "empty response"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			g := NewGemini(srv.URL, "k", time.Second)
			_, err := g.Generate(context.Background(), "m", core.LLMRequest{Prompt: "x"})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGeminiGenerateTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	g := NewGemini(srv.URL, "k", 20*time.Millisecond)
	_, err := g.Generate(context.Background(), "m", core.LLMRequest{Prompt: "x"})
	assert.Error(t, err)
}

func TestGeminiStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models/gemini-2.5-flash-lite:streamGenerateContent", r.URL.Path)
		assert.Equal(t, "sse", r.URL.Query().Get("alt"))

		w.Header().Set("Content-Type", "text/event-stream")
		for _, chunk := range []string{"Họp ", "lúc ", "3 giờ"} {
			fmt.Fprintf(w, "data: {\"candidates\":[{\"content\":{\"parts\":[{\"text\":%q}]}}]}\n\n", chunk)
		}
	}))
	defer srv.Close()

	g := NewGemini(srv.URL, "k", time.Second)
	stream, err := g.Stream(context.Background(), "gemini-2.5-flash-lite", core.LLMRequest{Prompt: "x"})
	require.NoError(t, err)
	defer stream.Close()

	var parts []string
	for stream.Next() {
		parts = append(parts, stream.Current())
	}
	require.NoError(t, stream.Err())
	assert.Equal(t, "Họp lúc 3 giờ", strings.Join(parts, ""))
}

func TestGeminiStreamInitiationError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, `{"error":{"message":"overloaded"}}`)
	}))
	defer srv.Close()

	g := NewGemini(srv.URL, "k", time.Second)
	_, err := g.Stream(context.Background(), "m", core.LLMRequest{Prompt: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overloaded")
}

func TestGeminiStreamMidStreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: {\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"ok\"}]}}]}\n\n")
		fmt.Fprint(w, "data: {\"error\":{\"message\":\"internal\"}}\n\n")
	}))
	defer srv.Close()

	g := NewGemini(srv.URL, "k", time.Second)
	stream, err := g.Stream(context.Background(), "m", core.LLMRequest{Prompt: "x"})
	require.NoError(t, err)
	defer stream.Close()

	require.True(t, stream.Next())
	assert.Equal(t, "ok", stream.Current())
	assert.False(t, stream.Next())
	assert.ErrorContains(t, stream.Err(), "internal")
}

func TestGeminiEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models/text-embedding-004:embedContent", r.URL.Path)

		var req geminiEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "deadline thứ Sáu", req.Content.Parts[0].Text)
		assert.Equal(t, 3, req.OutputDimensionality)

		fmt.Fprint(w, `{"embedding":{"values":[0.1,0.2,0.3]}}`)
	}))
	defer srv.Close()

	g := NewGemini(srv.URL, "k", time.Second)
	vec, err := g.Embed(context.Background(), "text-embedding-004", "deadline thứ Sáu", 3)
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
}

func TestGeminiEmbedEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"embedding":{}}`)
	}))
	defer srv.Close()

	g := NewGemini(srv.URL, "k", time.Second)
	_, err := g.Embed(context.Background(), "m", "x", 3)
	assert.Error(t, err)
}
