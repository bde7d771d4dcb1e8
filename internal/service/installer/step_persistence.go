package installer

import (
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/luvu182/luxbot/internal/config"
)

// SaveEnvStep writes the collected configuration to .env file
type SaveEnvStep struct {
	runtimePath string
	err         error
	saved       bool
}

func NewSaveEnvStep() Step {
	return &SaveEnvStep{runtimePath: config.GetRuntimePath()}
}

func (s *SaveEnvStep) Init() tea.Cmd {
	return func() tea.Msg { return nextMsg{} }
}

func (s *SaveEnvStep) Update(msg tea.Msg, state *InstallState, width, height int) (Step, tea.Cmd) {
	if s.saved {
		return nil, nil
	}
	if s.err != nil {
		return s, nil
	}

	if err := saveEnv(s.runtimePath, state); err != nil {
		s.err = err
		return s, nil
	}

	s.saved = true
	return nil, nil
}

func (s *SaveEnvStep) View(state *InstallState) string {
	if s.err != nil {
		return errorStyle.Render(fmt.Sprintf("Error: %v", s.err)) + "\n\n(press ctrl+c to quit)\n"
	}
	if s.saved {
		return "Configuration saved successfully!\n"
	}
	return "Saving configuration...\n"
}

// saveEnv never overwrites an existing .env file.
func saveEnv(runtimePath string, state *InstallState) error {
	if err := os.MkdirAll(runtimePath, 0755); err != nil {
		return fmt.Errorf("failed to create runtime directory: %w", err)
	}

	envPath := filepath.Join(runtimePath, ".env")
	if _, err := os.Stat(envPath); err == nil {
		return fmt.Errorf(".env file already exists at %s", envPath)
	}

	content, err := state.Render()
	if err != nil {
		return fmt.Errorf("failed to render .env: %w", err)
	}

	if err := os.WriteFile(envPath, []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", envPath, err)
	}
	return nil
}
