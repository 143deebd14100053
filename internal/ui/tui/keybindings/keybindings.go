package keybindings

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// Action represents a specific action that can be triggered by a key
type Action string

// Define all possible actions
const (
	// Global actions
	ActionQuit       Action = "quit"
	ActionToggleHelp Action = "toggle_help"
	ActionBack       Action = "back" // General purpose "go back" or "cancel"

	// Navigation actions
	ActionMoveUp     Action = "move_up"
	ActionMoveDown   Action = "move_down"
	ActionPageUp     Action = "page_up"
	ActionPageDown   Action = "page_down"
	ActionMoveTop    Action = "move_top"
	ActionMoveBottom Action = "move_bottom"

	// Player actions
	ActionTogglePause         Action = "toggle_pause"
	ActionSeekBackward        Action = "seek_backward"
	ActionSeekForward         Action = "seek_forward"
	ActionStop                Action = "stop"
	ActionOpenChapterSelector Action = "chapter_selector"

	// Chapter selection actions
	ActionSelectChapter Action = "select_chapter"

	// Search mode actions
	ActionEnableSearch   Action = "enable_search"
	ActionSearchComplete Action = "search_complete"
)

// ContextName represents a specific UI context in the application that has its own keybinds
type ContextName string

const (
	ContextGlobal           ContextName = "global"
	ContextPlayer           ContextName = "player"
	ContextChapterSelection ContextName = "chapter_selection"
	ContextSearchMode       ContextName = "search_mode"
	ContextHelp             ContextName = "help"
)

var ContextBindings = map[ContextName][]Binding{
	ContextGlobal:           globalBindings,
	ContextPlayer:           playerBindings,
	ContextChapterSelection: chapterSelectBindings,
	ContextSearchMode:       searchModeBindings,
	ContextHelp:             helpBindings,
}

// KeyMap stores the mappings from actions to key sequences for each context
type KeyMap struct {
	Primary   string
	Secondary string // Optional alternative key
	Help      string // Description for help screen
}

// Binding maps an action to its keys and help text
type Binding struct {
	Action Action
	KeyMap KeyMap
}

var navigationBindings = []Binding{
	{Action: ActionMoveUp, KeyMap: KeyMap{Primary: "up", Secondary: "k", Help: "Move cursor up"}},
	{Action: ActionMoveDown, KeyMap: KeyMap{Primary: "down", Secondary: "j", Help: "Move cursor down"}},
	{Action: ActionPageUp, KeyMap: KeyMap{Primary: "pgup", Help: "Move up one page"}},
	{Action: ActionPageDown, KeyMap: KeyMap{Primary: "pgdown", Help: "Move down one page"}},
	{Action: ActionMoveTop, KeyMap: KeyMap{Primary: "home", Help: "Move top of view"}},
	{Action: ActionMoveBottom, KeyMap: KeyMap{Primary: "end", Help: "Move bottom of view"}},
}

// globalBindings contains key bindings that work across all views
var globalBindings = []Binding{
	{Action: ActionQuit, KeyMap: KeyMap{Primary: "ctrl+c", Help: "Quit application"}},
	{Action: ActionToggleHelp, KeyMap: KeyMap{Primary: "ctrl+h", Secondary: "?", Help: "Toggle help screen"}},
	{Action: ActionBack, KeyMap: KeyMap{Primary: "esc", Help: "Go back/cancel current action"}},
}

var helpBindings = withNavigation([]Binding{})

// playerBindings drive the mounted playback
var playerBindings = []Binding{
	{Action: ActionTogglePause, KeyMap: KeyMap{Primary: " ", Secondary: "p", Help: "Pause or resume"}},
	{Action: ActionSeekBackward, KeyMap: KeyMap{Primary: "left", Secondary: "h", Help: "Seek backward"}},
	{Action: ActionSeekForward, KeyMap: KeyMap{Primary: "right", Secondary: "l", Help: "Seek forward"}},
	{Action: ActionStop, KeyMap: KeyMap{Primary: "s", Help: "Stop playback"}},
	{Action: ActionOpenChapterSelector, KeyMap: KeyMap{Primary: "c", Help: "Choose chapter to play"}},
	{Action: ActionBack, KeyMap: KeyMap{Primary: "q", Help: "Close the player"}},
}

var chapterSelectBindings = withNavigation([]Binding{
	{Action: ActionSelectChapter, KeyMap: KeyMap{Primary: "enter", Help: "Play chapter"}},
	{Action: ActionEnableSearch, KeyMap: KeyMap{Primary: "/", Secondary: "ctrl+f", Help: "Search chapters"}},
})

// searchModeBindings contains key bindings specific for when search mode is active
var searchModeBindings = []Binding{
	{Action: ActionBack, KeyMap: KeyMap{Primary: "esc", Secondary: "ctrl+f", Help: "Exit search mode and remove the filter"}},
	{Action: ActionSearchComplete, KeyMap: KeyMap{Primary: "enter", Help: "Apply the search filter and return control to the list"}},
}

// GetActionByKey returns just the action for a given key, or an empty Action if not found
func GetActionByKey(keyMsg tea.KeyMsg, name ContextName) Action {
	if bindings, exists := ContextBindings[name]; exists {
		k := keyMsg.String()
		for _, binding := range bindings {
			if binding.KeyMap.Primary == k || binding.KeyMap.Secondary == k {
				return binding.Action
			}
		}
	}
	return ""
}

// displayKey names a key the way the footer shows it
func displayKey(k string) string {
	switch k {
	case " ":
		return "space"
	case "left":
		return "←"
	case "right":
		return "→"
	case "up":
		return "↑"
	case "down":
		return "↓"
	}
	return k
}

// HelpKeys converts a context's bindings into bubbles key bindings for the short help footer
func HelpKeys(name ContextName) []key.Binding {
	bindings := ContextBindings[name]
	out := make([]key.Binding, 0, len(bindings))
	for _, b := range bindings {
		keys := []string{b.KeyMap.Primary}
		shown := displayKey(b.KeyMap.Primary)
		if b.KeyMap.Secondary != "" {
			keys = append(keys, b.KeyMap.Secondary)
			shown += "/" + displayKey(b.KeyMap.Secondary)
		}
		out = append(out, key.NewBinding(key.WithKeys(keys...), key.WithHelp(shown, b.KeyMap.Help)))
	}
	return out
}

// ShortHelp adapts a context to bubbles/help
type ShortHelp ContextName

func (s ShortHelp) ShortHelp() []key.Binding {
	return HelpKeys(ContextName(s))
}

func (s ShortHelp) FullHelp() [][]key.Binding {
	return [][]key.Binding{HelpKeys(ContextName(s))}
}

// withNavigation is a helper function to include navigation bindings in other binding sets
func withNavigation(bindings []Binding) []Binding {
	return append(append([]Binding{}, navigationBindings...), bindings...)
}
