package models

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/PizzaHomicide/marquee/internal/catalog"
	"github.com/PizzaHomicide/marquee/internal/episode"
	"github.com/PizzaHomicide/marquee/internal/log"
	kb "github.com/PizzaHomicide/marquee/internal/ui/tui/keybindings"
	"github.com/PizzaHomicide/marquee/internal/ui/tui/styles"
	"github.com/PizzaHomicide/marquee/internal/ui/tui/util"
)

// chapterEntry is one row of the chapter selector
type chapterEntry struct {
	ref     episode.Ref
	code    string // S01E02
	title   string
	current bool
}

// ChapterSelectModel represents the chapter selection modal
type ChapterSelectModel struct {
	width, height  int
	seriesTitle    string
	entries        []chapterEntry
	filtered       []chapterEntry
	cursor         int
	searchInput    textinput.Model
	searchMode     bool
	viewportOffset int
}

// NewChapterSelectModel lists every chapter of seasons with current highlighted
func NewChapterSelectModel(seriesTitle string, seasons []episode.Season, current episode.Ref) *ChapterSelectModel {
	input := textinput.New()
	input.Placeholder = "Filter chapters..."
	input.Width = 30

	var entries []chapterEntry
	cursor := 0
	for si, season := range seasons {
		for ci, chapter := range season.Chapters {
			ref := episode.Ref{Season: si, Chapter: ci}
			if ref == current {
				cursor = len(entries)
			}
			entries = append(entries, chapterEntry{
				ref:     ref,
				code:    fmt.Sprintf("S%02dE%02d", season.Number, chapter.Number),
				title:   catalog.ChapterTitle(season, chapter),
				current: ref == current,
			})
		}
	}

	m := &ChapterSelectModel{
		seriesTitle: seriesTitle,
		entries:     entries,
		filtered:    entries,
		cursor:      cursor,
		searchInput: input,
	}
	m.ensureCursorVisible()
	return m
}

// Selected returns the chapter under the cursor
func (m *ChapterSelectModel) Selected() (episode.Ref, bool) {
	if m.cursor < 0 || m.cursor >= len(m.filtered) {
		return episode.Ref{}, false
	}
	return m.filtered[m.cursor].ref, true
}

// Searching reports whether the filter input has focus
func (m *ChapterSelectModel) Searching() bool {
	return m.searchMode
}

// Update updates the model based on messages
func (m *ChapterSelectModel) Update(msg tea.Msg) tea.Cmd {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return nil
	}
	if m.searchMode {
		return m.handleSearchModeKeyMsg(keyMsg)
	}
	return m.handleKeyMsg(keyMsg)
}

func (m *ChapterSelectModel) handleKeyMsg(msg tea.KeyMsg) tea.Cmd {
	switch kb.GetActionByKey(msg, kb.ContextChapterSelection) {
	case kb.ActionSelectChapter:
		ref, ok := m.Selected()
		if !ok {
			log.Debug("Nothing to select in chapter selector")
			return nil
		}
		return func() tea.Msg { return ChapterSelectedMsg{Ref: ref} }
	case kb.ActionEnableSearch:
		m.searchMode = true
		return m.searchInput.Focus()
	case kb.ActionMoveDown:
		m.cursor++
	case kb.ActionMoveUp:
		m.cursor--
	case kb.ActionPageDown:
		m.cursor += m.pageSize()
	case kb.ActionPageUp:
		m.cursor -= m.pageSize()
	case kb.ActionMoveTop:
		m.cursor = 0
	case kb.ActionMoveBottom:
		m.cursor = len(m.filtered) - 1
	}
	m.ensureCursorVisible()
	return nil
}

func (m *ChapterSelectModel) handleSearchModeKeyMsg(msg tea.KeyMsg) tea.Cmd {
	switch kb.GetActionByKey(msg, kb.ContextSearchMode) {
	case kb.ActionBack:
		// Cancels search, clearing the filter
		m.searchMode = false
		m.searchInput.Blur()
		m.searchInput.SetValue("")
		m.applyFilter()
		return nil
	case kb.ActionSearchComplete:
		m.searchMode = false
		m.searchInput.Blur()
		m.applyFilter()
		return nil
	}

	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	m.applyFilter()
	return cmd
}

// applyFilter narrows the list to chapters whose code, number or title fuzzily match the search input
func (m *ChapterSelectModel) applyFilter() {
	query := m.searchInput.Value()
	if query == "" {
		m.filtered = m.entries
		m.ensureCursorVisible()
		return
	}

	var filtered []chapterEntry
	for _, e := range m.entries {
		if fuzzy.MatchFold(query, e.code) ||
			fuzzy.MatchFold(query, strconv.Itoa(e.ref.Chapter+1)) ||
			fuzzy.MatchFold(query, e.title) {
			filtered = append(filtered, e)
		}
	}
	m.filtered = filtered
	m.cursor = 0
	m.ensureCursorVisible()
}

func (m *ChapterSelectModel) pageSize() int {
	return max(1, m.height-11)
}

func (m *ChapterSelectModel) visibleCount() int {
	return min(len(m.filtered), max(1, m.height-10))
}

// ensureCursorVisible clamps the cursor and scrolls the viewport to it
func (m *ChapterSelectModel) ensureCursorVisible() {
	if len(m.filtered) == 0 {
		m.cursor = 0
		m.viewportOffset = 0
		return
	}
	m.cursor = max(0, min(m.cursor, len(m.filtered)-1))

	visible := m.visibleCount()
	if m.cursor < m.viewportOffset {
		m.viewportOffset = m.cursor
	}
	if m.cursor >= m.viewportOffset+visible {
		m.viewportOffset = m.cursor - visible + 1
	}
	m.viewportOffset = max(0, min(m.viewportOffset, len(m.filtered)-visible))
}

// Resize updates the dimensions of the chapter selector
func (m *ChapterSelectModel) Resize(width, height int) {
	m.width = width
	m.height = height
	m.ensureCursorVisible()
}

// View renders the chapter selection modal
func (m *ChapterSelectModel) View() string {
	header := styles.Header(m.width, "Chapter Selection - "+m.seriesTitle)
	content := m.renderChapterList()

	if m.searchMode || m.searchInput.Value() != "" {
		searchPrompt := styles.Title.Render("Search: ") + m.searchInput.View()
		content = lipgloss.JoinVertical(lipgloss.Left, searchPrompt, content)
	}

	footer := styles.FilterStatus.Render(" ↑/↓: Navigate • Enter: Play • /: Search • Esc: Cancel ")
	return fmt.Sprintf("%s\n\n%s\n\n%s", header, content, footer)
}

func (m *ChapterSelectModel) renderChapterList() string {
	if len(m.filtered) == 0 {
		if m.searchInput.Value() != "" {
			return styles.CenteredText(m.width, "No chapters match your filter")
		}
		return styles.CenteredText(m.width, "No chapters found")
	}

	rowWidth := max(20, m.width-4)
	titleWidth := max(10, rowWidth-14)

	normalStyle := lipgloss.NewStyle().Width(rowWidth).Padding(0, 1)
	selectedStyle := normalStyle.
		Bold(true).
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(lipgloss.Color("#7D56F4"))

	var b strings.Builder
	b.WriteString(normalStyle.Bold(true).Render(fmt.Sprintf("%-8s  %s", "Chapter", "Title")))
	b.WriteString("\n")
	b.WriteString(strings.Repeat("─", max(1, rowWidth-2)))
	b.WriteString("\n")

	start := m.viewportOffset
	end := min(len(m.filtered), start+m.visibleCount())
	for i := start; i < end; i++ {
		e := m.filtered[i]
		marker := " "
		if e.current {
			marker = "▶"
		}
		row := fmt.Sprintf("%s %-7s  %s", marker, e.code, util.PadRight(e.title, titleWidth))
		if i == m.cursor {
			b.WriteString(selectedStyle.Render(row))
		} else {
			b.WriteString(normalStyle.Render(row))
		}
		b.WriteString("\n")
	}

	if len(m.filtered) > end-start {
		b.WriteString(styles.CenteredText(rowWidth, fmt.Sprintf("Showing %d-%d of %d", start+1, end, len(m.filtered))))
	}

	return styles.ContentBox(m.width-2, b.String(), 1)
}
