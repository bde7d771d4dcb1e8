package llm

import (
	"fmt"
	"sort"
	"strings"

	"github.com/luvu182/luxbot/internal/core"
)

const UnknownModel = "unknown"

// Family is a provider family. Fallback always crosses families.
type Family uint8

const (
	FamilyGemini Family = iota + 1
	FamilyOpenAI
)

func (f Family) String() string {
	switch f {
	case FamilyGemini:
		return "gemini"
	case FamilyOpenAI:
		return "openai"
	}
	return fmt.Sprintf("family(%d)", uint8(f))
}

func (f Family) other() Family {
	if f == FamilyGemini {
		return FamilyOpenAI
	}
	return FamilyGemini
}

func ParseFamily(s string) (Family, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "gemini", "google":
		return FamilyGemini, nil
	case "openai":
		return FamilyOpenAI, nil
	}
	return 0, fmt.Errorf("%w: unknown provider family %q", core.ErrValidation, s)
}

// ModelHandle references one configured backend model. Handles are only
// minted by a Router and compare by value. The zero handle is never configured.
type ModelHandle struct {
	family Family
	model  string
}

func (h ModelHandle) Family() Family { return h.family }

func (h ModelHandle) Model() string { return h.model }

type RouterConfig struct {
	GeminiModel string
	OpenAIModel string
	// Default serves tasks missing from Routes.
	Default Family
	Routes  map[core.Task]Family
}

// DefaultRoutes sends every task to Gemini Flash Lite.
func DefaultRoutes() map[core.Task]Family {
	return RoutesFor(FamilyGemini)
}

// RoutesFor sends every known task to fam.
func RoutesFor(fam Family) map[core.Task]Family {
	routes := make(map[core.Task]Family, len(core.Tasks))
	for _, t := range core.Tasks {
		routes[t] = fam
	}
	return routes
}

// Router maps tasks to model handles. The configured set holds exactly one
// handle per family, which makes GetFallback a 2-cycle.
type Router struct {
	handles map[Family]ModelHandle
	routes  map[core.Task]Family
	def     Family
}

func NewRouter(cfg RouterConfig) (*Router, error) {
	if strings.TrimSpace(cfg.GeminiModel) == "" || strings.TrimSpace(cfg.OpenAIModel) == "" {
		return nil, fmt.Errorf("%w: both gemini and openai model names are required", core.ErrValidation)
	}

	r := &Router{
		handles: map[Family]ModelHandle{
			FamilyGemini: {family: FamilyGemini, model: cfg.GeminiModel},
			FamilyOpenAI: {family: FamilyOpenAI, model: cfg.OpenAIModel},
		},
		routes: make(map[core.Task]Family, len(cfg.Routes)),
		def:    cfg.Default,
	}
	if r.def == 0 {
		r.def = FamilyGemini
	}
	if _, ok := r.handles[r.def]; !ok {
		return nil, fmt.Errorf("%w: default family %s is not configured", core.ErrValidation, r.def)
	}

	for task, fam := range cfg.Routes {
		if _, ok := r.handles[fam]; !ok {
			return nil, fmt.Errorf("%w: task %s routes to unconfigured family %s", core.ErrValidation, task, fam)
		}
		r.routes[task] = fam
	}
	return r, nil
}

// SelectModel is total and deterministic. Unmapped tasks get the default handle.
func (r *Router) SelectModel(task core.Task) ModelHandle {
	fam, ok := r.routes[task]
	if !ok {
		fam = r.def
	}
	return r.handles[fam]
}

// GetFallback returns the other family's handle.
func (r *Router) GetFallback(primary ModelHandle) ModelHandle {
	if _, ok := r.handles[primary.family]; !ok {
		return r.handles[r.def]
	}
	return r.handles[primary.family.other()]
}

func (r *Router) GetModelName(h ModelHandle) string {
	if configured, ok := r.handles[h.family]; ok && configured == h {
		return h.model
	}
	return UnknownModel
}

func (r *Router) Handles() []ModelHandle {
	res := make([]ModelHandle, 0, len(r.handles))
	for _, h := range r.handles {
		res = append(res, h)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].family < res[j].family })
	return res
}

// ModelFor names the primary model for task, as "family/model".
func (r *Router) ModelFor(task core.Task) string {
	h := r.SelectModel(task)
	return h.family.String() + "/" + r.GetModelName(h)
}
