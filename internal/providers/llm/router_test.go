package llm

import (
	"testing"

	"github.com/luvu182/luxbot/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T, routes map[core.Task]Family) *Router {
	t.Helper()
	r, err := NewRouter(RouterConfig{
		GeminiModel: "gemini-2.5-flash-lite",
		OpenAIModel: "gpt-4o-mini",
		Routes:      routes,
	})
	require.NoError(t, err)
	return r
}

func TestRouter_FallbackIsTwoCycle(t *testing.T) {
	r := newTestRouter(t, DefaultRoutes())

	for _, h := range r.Handles() {
		fb := r.GetFallback(h)
		assert.NotEqual(t, h.Family(), fb.Family(), "fallback must cross families")
		assert.Equal(t, h, r.GetFallback(fb))
	}
}

func TestRouter_FallbackTargets(t *testing.T) {
	r := newTestRouter(t, DefaultRoutes())

	primary := r.SelectModel(core.TaskChat)
	assert.Equal(t, "gemini-2.5-flash-lite", r.GetModelName(primary))
	assert.Equal(t, "gpt-4o-mini", r.GetModelName(r.GetFallback(primary)))
}

func TestRouter_SelectModelStable(t *testing.T) {
	r := newTestRouter(t, map[core.Task]Family{
		core.TaskChat:       FamilyOpenAI,
		core.TaskExtraction: FamilyGemini,
	})

	for _, task := range core.Tasks {
		first := r.SelectModel(task)
		for i := 0; i < 10; i++ {
			assert.Equal(t, first, r.SelectModel(task))
		}
	}
	assert.Equal(t, FamilyOpenAI, r.SelectModel(core.TaskChat).Family())
	assert.Equal(t, FamilyGemini, r.SelectModel(core.TaskExtraction).Family())
}

func TestRouter_UnmappedTaskUsesDefault(t *testing.T) {
	r, err := NewRouter(RouterConfig{
		GeminiModel: "gemini-2.5-flash-lite",
		OpenAIModel: "gpt-4o-mini",
		Default:     FamilyOpenAI,
	})
	require.NoError(t, err)

	assert.Equal(t, FamilyOpenAI, r.SelectModel(core.Task("poetry")).Family())
	assert.Equal(t, FamilyOpenAI, r.SelectModel(core.TaskQuery).Family())
}

func TestRouter_GetModelName(t *testing.T) {
	r := newTestRouter(t, nil)

	for _, h := range r.Handles() {
		assert.NotEmpty(t, r.GetModelName(h))
		assert.NotEqual(t, UnknownModel, r.GetModelName(h))
	}

	assert.Equal(t, UnknownModel, r.GetModelName(ModelHandle{}))
	assert.Equal(t, UnknownModel, r.GetModelName(ModelHandle{family: FamilyGemini, model: "gemini-1.5-pro"}))
	// Handles compare by value, so an equal handle from elsewhere is recognised.
	assert.Equal(t, "gpt-4o-mini", r.GetModelName(ModelHandle{family: FamilyOpenAI, model: "gpt-4o-mini"}))
}

func TestRouter_ZeroHandleFallsBackToDefault(t *testing.T) {
	r := newTestRouter(t, nil)
	assert.Equal(t, r.SelectModel(core.TaskChat), r.GetFallback(ModelHandle{}))
}

func TestNewRouter_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  RouterConfig
	}{
		{"missing gemini", RouterConfig{OpenAIModel: "gpt-4o-mini"}},
		{"missing openai", RouterConfig{GeminiModel: "gemini-2.5-flash-lite"}},
		{"bad default", RouterConfig{GeminiModel: "g", OpenAIModel: "o", Default: Family(9)}},
		{"bad route", RouterConfig{GeminiModel: "g", OpenAIModel: "o", Routes: map[core.Task]Family{core.TaskChat: Family(7)}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRouter(tt.cfg)
			assert.ErrorIs(t, err, core.ErrValidation)
		})
	}
}

func TestParseFamily(t *testing.T) {
	f, err := ParseFamily("OpenAI")
	require.NoError(t, err)
	assert.Equal(t, FamilyOpenAI, f)

	f, err = ParseFamily("google")
	require.NoError(t, err)
	assert.Equal(t, FamilyGemini, f)

	_, err = ParseFamily("anthropic")
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestRouter_ModelFor(t *testing.T) {
	r, err := NewRouter(RouterConfig{
		GeminiModel: "gemini-2.5-flash-lite",
		OpenAIModel: "gpt-4o-mini",
		Default:     FamilyGemini,
		Routes:      map[core.Task]Family{core.TaskExtraction: FamilyOpenAI},
	})
	require.NoError(t, err)

	assert.Equal(t, "gemini/gemini-2.5-flash-lite", r.ModelFor(core.TaskQuery))
	assert.Equal(t, "openai/gpt-4o-mini", r.ModelFor(core.TaskExtraction))
}
