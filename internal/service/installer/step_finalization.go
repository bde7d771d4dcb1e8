package installer

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

// FinalizationStep checks that the answers can produce a working setup.
type FinalizationStep struct {
	err error
}

func NewFinalizationStep() Step {
	return &FinalizationStep{}
}

func (s *FinalizationStep) Init() tea.Cmd {
	return func() tea.Msg { return nextMsg{} }
}

func (s *FinalizationStep) Update(msg tea.Msg, state *InstallState, width, height int) (Step, tea.Cmd) {
	if s.err != nil {
		return s, nil
	}
	f := state.envFile()
	if f.GeminiAPIKey == "" && f.OpenAIAPIKey == "" {
		s.err = fmt.Errorf("at least one provider API key is required")
		return s, nil
	}
	return nil, nil
}

func (s *FinalizationStep) View(state *InstallState) string {
	if s.err != nil {
		return errorStyle.Render(fmt.Sprintf("Error: %v", s.err)) + "\n\n(press ctrl+c to quit)\n"
	}
	return "Finalizing configuration...\n"
}
