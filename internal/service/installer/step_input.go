package installer

import (
	"fmt"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// InputStep collects one line of text. Steps whose skip func reports true
// complete without showing anything.
type InputStep struct {
	input    textinput.Model
	title    string
	optional bool
	skip     func(state *InstallState) bool
	apply    func(state *InstallState, value string)
}

func newInputStep(title, placeholder string, secret bool) *InputStep {
	ti := textinput.New()
	ti.Focus()
	ti.CharLimit = 255
	ti.Width = 40
	ti.Placeholder = placeholder
	if secret {
		ti.EchoMode = textinput.EchoPassword
		ti.EchoCharacter = '*'
	}
	return &InputStep{input: ti, title: title}
}

func NewGeminiKeyStep() Step {
	s := newInputStep("Gemini API Key", "AIza...", true)
	s.skip = func(state *InstallState) bool { return !state.wants(familyGemini) }
	s.apply = func(state *InstallState, v string) { state.GeminiAPIKey = v }
	return s
}

func NewOpenAIKeyStep() Step {
	s := newInputStep("OpenAI API Key", "sk-...", true)
	s.skip = func(state *InstallState) bool { return !state.wants(familyOpenAI) }
	s.apply = func(state *InstallState, v string) { state.OpenAIAPIKey = v }
	return s
}

func NewTelegramTokenStep() Step {
	s := newInputStep("Telegram Bot Token", "123456789:ABCDEF...", true)
	s.skip = func(state *InstallState) bool { return state.Channel != channelTelegram }
	s.apply = func(state *InstallState, v string) { state.TelegramKey = v }
	return s
}

func NewTelegramChatsStep() Step {
	s := newInputStep("allowed Telegram chat ids", "-1001234567890, -1009876543210", false)
	s.optional = true
	s.skip = func(state *InstallState) bool { return state.Channel != channelTelegram }
	s.apply = func(state *InstallState, v string) { state.AllowedChats = v }
	return s
}

func (s *InputStep) Init() tea.Cmd {
	return textinput.Blink
}

func (s *InputStep) Update(msg tea.Msg, state *InstallState, width, height int) (Step, tea.Cmd) {
	if s.skip != nil && s.skip(state) {
		return nil, nil
	}

	var cmd tea.Cmd
	s.input, cmd = s.input.Update(msg)

	if key, ok := msg.(tea.KeyMsg); ok && key.String() == "enter" {
		if s.input.Value() == "" && !s.optional {
			return s, cmd
		}
		s.apply(state, s.input.Value())
		return nil, nil
	}
	return s, cmd
}

func (s *InputStep) View(state *InstallState) string {
	hint := ""
	if s.optional {
		hint = " (optional, press Enter to skip)"
	}
	return fmt.Sprintf("Enter your %s%s:\n\n%s\n\n(press enter to confirm)\n", s.title, hint, s.input.View())
}
