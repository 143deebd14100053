package models

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	kb "github.com/PizzaHomicide/marquee/internal/ui/tui/keybindings"
	"github.com/PizzaHomicide/marquee/internal/ui/tui/styles"
)

// HelpModel displays every keybinding with scrolling
type HelpModel struct {
	width, height int
	viewport      viewport.Model
}

// NewHelpModel creates a new help model
func NewHelpModel() *HelpModel {
	return &HelpModel{viewport: viewport.New(0, 0)}
}

// Update scrolls the help content
func (m *HelpModel) Update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	switch msg := msg.(type) {
	case tea.MouseMsg:
		m.viewport, cmd = m.viewport.Update(msg)
	case tea.KeyMsg:
		switch kb.GetActionByKey(msg, kb.ContextHelp) {
		case kb.ActionMoveUp, kb.ActionMoveDown, kb.ActionPageUp, kb.ActionPageDown:
			m.viewport, cmd = m.viewport.Update(msg)
		case kb.ActionMoveTop:
			m.viewport.GotoTop()
		case kb.ActionMoveBottom:
			m.viewport.GotoBottom()
		}
	}
	return cmd
}

// Resize updates the dimensions
func (m *HelpModel) Resize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = max(1, width-4)
	m.viewport.Height = max(1, height-10)
	m.viewport.SetContent(m.generateHelpContent())
	m.viewport.GotoTop()
}

// View renders the help screen
func (m *HelpModel) View() string {
	footer := styles.CenteredText(m.width, styles.Info.Render("↑/↓: Scroll • PgUp/PgDn: Page scroll • Home/End: Goto top/bottom • ESC: Return"))
	return lipgloss.JoinVertical(
		lipgloss.Left,
		styles.Header(m.width, "Help"),
		"",
		styles.ContentBox(m.width-2, m.viewport.View(), 1),
		"",
		footer,
	)
}

// formatKeybindingSection formats a section of keybindings with aligned colons
func formatKeybindingSection(title string, bindings []kb.Binding) string {
	if len(bindings) == 0 {
		return ""
	}

	keyText := func(b kb.Binding) string {
		text := b.KeyMap.Primary
		if text == " " {
			text = "space"
		}
		if b.KeyMap.Secondary != "" {
			text += " or " + b.KeyMap.Secondary
		}
		return text
	}

	maxKeyWidth := 0
	for _, binding := range bindings {
		maxKeyWidth = max(maxKeyWidth, runewidth.StringWidth(keyText(binding)))
	}

	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().Bold(true).Render(title))
	b.WriteString("\n\n")
	for _, binding := range bindings {
		text := keyText(binding)
		padding := strings.Repeat(" ", maxKeyWidth-runewidth.StringWidth(text))
		b.WriteString(fmt.Sprintf("• %s%s : %s\n", lipgloss.NewStyle().Bold(true).Render(text), padding, binding.KeyMap.Help))
	}
	return b.String()
}

// generateHelpContent builds the complete help content
func (m *HelpModel) generateHelpContent() string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))

	var b strings.Builder
	b.WriteString(titleStyle.Render("Player"))
	b.WriteString("\n\n")
	b.WriteString("The player hands the chapter to the playback backend detected for this machine and mirrors its state. " +
		"Progress is saved while you watch and when you leave, and the next chapter starts when one finishes.\n\n")

	b.WriteString(titleStyle.Render("Keybindings"))
	b.WriteString("\n\n")
	sections := []struct {
		title   string
		context kb.ContextName
	}{
		{"Global commands:", kb.ContextGlobal},
		{"Player commands:", kb.ContextPlayer},
		{"Chapter selection commands:", kb.ContextChapterSelection},
		{"When in search mode:", kb.ContextSearchMode},
	}
	for i, s := range sections {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(formatKeybindingSection(s.title, kb.ContextBindings[s.context]))
	}
	return b.String()
}
