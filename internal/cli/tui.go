package cli

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

// =============================================================================
// ProgressModel - Batch progress bar
// =============================================================================

// progressMsg reports that done of total work items have finished.
type progressMsg struct {
	done  int
	total int
}

// finishedMsg signals that the whole batch is complete.
type finishedMsg struct{}

// ProgressModel is the bubbletea model rendering a progress bar for batch
// operations. It is driven externally via Program.Send.
type ProgressModel struct {
	Label string
	Done  int
	Total int
	Width int

	quitting bool
}

// NewProgressModel creates a progress model with the given label and total.
func NewProgressModel(label string, total int) ProgressModel {
	return ProgressModel{
		Label: label,
		Total: total,
		Width: 40,
	}
}

func (m ProgressModel) Init() tea.Cmd {
	return nil
}

func (m ProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case progressMsg:
		m.Done = msg.done
		m.Total = msg.total
	case finishedMsg:
		m.quitting = true
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.quitting = true
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.Width = msg.Width - len(m.Label) - 16
		if m.Width < 10 {
			m.Width = 10
		}
	}
	return m, nil
}

func (m ProgressModel) View() string {
	if m.quitting {
		return ""
	}

	filled := 0
	if m.Total > 0 {
		filled = m.Done * m.Width / m.Total
	}
	if filled > m.Width {
		filled = m.Width
	}

	bar := styleBarFilled.Render(strings.Repeat("█", filled)) +
		styleBarEmpty.Render(strings.Repeat("░", m.Width-filled))

	return fmt.Sprintf("%s %s %s\n",
		StyleDim.Render(m.Label),
		bar,
		StyleValue.Render(fmt.Sprintf("%d/%d", m.Done, m.Total)))
}
