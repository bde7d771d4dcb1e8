package installer

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

type choice struct {
	label string
	value string
}

// ChoiceStep is a single-select menu that stores the picked value in state.
type ChoiceStep struct {
	title   string
	choices []choice
	cursor  int
	apply   func(state *InstallState, value string)
}

func NewProviderStep() Step {
	return &ChoiceStep{
		title: "Select the AI providers:",
		choices: []choice{
			{"Gemini + OpenAI (fallback enabled)", familyBoth},
			{"Gemini only", familyGemini},
			{"OpenAI only", familyOpenAI},
		},
		apply: func(state *InstallState, v string) { state.Providers = v },
	}
}

func NewStoreStep() Step {
	return &ChoiceStep{
		title: "Select the memory store:",
		choices: []choice{
			{"SQLite (single file)", "sqlite"},
			{"chromem (embedded vector database)", "chromem"},
		},
		apply: func(state *InstallState, v string) { state.StoreBackend = v },
	}
}

func NewChannelStep() Step {
	return &ChoiceStep{
		title: "Select your Chat Channel:",
		choices: []choice{
			{"Telegram", channelTelegram},
			{"None (MCP and CLI only)", channelNone},
		},
		apply: func(state *InstallState, v string) { state.Channel = v },
	}
}

func (s *ChoiceStep) Init() tea.Cmd {
	return nil
}

func (s *ChoiceStep) Update(msg tea.Msg, state *InstallState, width, height int) (Step, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "up", "k":
			if s.cursor > 0 {
				s.cursor--
			}
		case "down", "j":
			if s.cursor < len(s.choices)-1 {
				s.cursor++
			}
		case "enter":
			s.apply(state, s.choices[s.cursor].value)
			return nil, nil
		}
	}
	return s, nil
}

func (s *ChoiceStep) View(state *InstallState) string {
	var b strings.Builder
	b.WriteString(s.title + "\n\n")
	for i, c := range s.choices {
		if s.cursor == i {
			b.WriteString(selStyle.Render(fmt.Sprintf("> %s", c.label)) + "\n")
		} else {
			b.WriteString(itemStyle.Render(fmt.Sprintf("  %s", c.label)) + "\n")
		}
	}
	b.WriteString("\n(press ctrl+c to quit)\n")
	return b.String()
}
