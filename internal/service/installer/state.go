package installer

import (
	"strconv"
	"strings"

	"github.com/luvu182/luxbot/internal/config"
	"github.com/luvu182/luxbot/pkg/env"
)

const (
	familyGemini = "gemini"
	familyOpenAI = "openai"
	familyBoth   = "both"

	channelTelegram = "telegram"
	channelNone     = "none"
)

// InstallState collects wizard answers before they are written to .env.
type InstallState struct {
	Providers    string
	GeminiAPIKey string
	OpenAIAPIKey string
	StoreBackend string
	Channel      string
	TelegramKey  string
	AllowedChats string
}

func NewInstallState() *InstallState {
	return &InstallState{
		Providers:    familyBoth,
		StoreBackend: config.StoreSQLite,
		Channel:      channelTelegram,
	}
}

func (s *InstallState) wants(family string) bool {
	return s.Providers == family || s.Providers == familyBoth
}

// envFile is the subset of configuration the wizard writes. Zero fields are
// left out so the config defaults apply.
type envFile struct {
	GeminiAPIKey        string `env:"LUX_GEMINI_API_KEY"`
	OpenAIAPIKey        string `env:"LUX_OPENAI_API_KEY"`
	EmbeddingProvider   string `env:"LUX_EMBEDDING_PROVIDER"`
	EmbeddingModel      string `env:"LUX_EMBEDDING_MODEL"`
	EmbeddingDimensions int    `env:"LUX_EMBEDDING_DIMENSIONS"`
	StoreBackend        string `env:"LUX_STORE_BACKEND"`
	EnableTelegram      bool   `env:"LUX_ENABLE_TELEGRAM"`
	TelegramToken       string `env:"LUX_TELEGRAM_TOKEN"`
	AllowedChats        string `env:"LUX_TELEGRAM_ALLOWED_CHATS"`
}

func (s *InstallState) envFile() envFile {
	f := envFile{
		StoreBackend:        s.StoreBackend,
		EmbeddingDimensions: 768,
	}
	if s.wants(familyGemini) {
		f.GeminiAPIKey = strings.TrimSpace(s.GeminiAPIKey)
	}
	if s.wants(familyOpenAI) {
		f.OpenAIAPIKey = strings.TrimSpace(s.OpenAIAPIKey)
	}

	// Gemini embeddings whenever a Gemini key is present.
	if f.GeminiAPIKey != "" {
		f.EmbeddingProvider = familyGemini
		f.EmbeddingModel = "text-embedding-004"
	} else {
		f.EmbeddingProvider = familyOpenAI
		f.EmbeddingModel = "text-embedding-3-small"
	}

	if s.Channel == channelTelegram && strings.TrimSpace(s.TelegramKey) != "" {
		f.EnableTelegram = true
		f.TelegramToken = strings.TrimSpace(s.TelegramKey)
		f.AllowedChats = normalizeChatIDs(s.AllowedChats)
	}
	return f
}

// Render returns the .env content for the collected answers.
func (s *InstallState) Render() (string, error) {
	f := s.envFile()
	return env.Marshal(&f)
}

// normalizeChatIDs keeps the numeric ids of a comma or space separated list.
func normalizeChatIDs(raw string) string {
	var ids []string
	for _, part := range strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ' ' }) {
		if _, err := strconv.ParseInt(part, 10, 64); err == nil {
			ids = append(ids, part)
		}
	}
	return strings.Join(ids, ",")
}
