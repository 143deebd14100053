package models

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/PizzaHomicide/marquee/internal/catalog"
	"github.com/PizzaHomicide/marquee/internal/episode"
	"github.com/PizzaHomicide/marquee/internal/log"
	"github.com/PizzaHomicide/marquee/internal/playback"
	"github.com/PizzaHomicide/marquee/internal/presence"
	kb "github.com/PizzaHomicide/marquee/internal/ui/tui/keybindings"
	"github.com/PizzaHomicide/marquee/internal/ui/tui/styles"
	"github.com/PizzaHomicide/marquee/internal/ui/tui/util"
)

// Playback is the part of a playback controller the host drives
type Playback interface {
	Start(ctx context.Context) error
	Teardown(ctx context.Context) error
	HandleIntent(intent presence.Intent)
	HandleLifecycle(event presence.LifecycleEvent)
	Session() playback.Session
}

// MountFunc creates the playback for one mount
type MountFunc func(req playback.Request, cells playback.HostCells, onAdvance func(season, chapter int), onStatus func(playback.Status)) (Playback, error)

// Options configures the host
type Options struct {
	Title     *catalog.Title
	Selection catalog.Selection
	Mount     MountFunc
	// Presence is optional.  Focus changes go through it when set so the controller hears them as lifecycle events.
	Presence        *presence.Service
	SeekOffset      time.Duration
	TeardownTimeout time.Duration
}

// mount is one live playback.  The host only ever holds one.
type mount struct {
	id       int
	playback Playback
	cells    playback.HostCells
}

// AppModel hosts one title and mounts one playback at a time
type AppModel struct {
	opts          Options
	activeModal   Modal
	width, height int

	// Controller callbacks arrive on their own goroutines and are fed back into Update through this channel
	events chan tea.Msg

	mountSeq  int
	current   *mount
	selection catalog.Selection
	status    playback.Status
	err       error
	quitting  bool
	// tearingDown counts teardowns still running.  Quitting waits for them so progress gets flushed.
	tearingDown int

	chapterSelectModel *ChapterSelectModel
	helpModel          *HelpModel
	progressBar        progress.Model
	help               help.Model
}

// NewAppModel creates a new instance of the host model
func NewAppModel(opts Options) AppModel {
	if opts.SeekOffset <= 0 {
		opts.SeekOffset = 10 * time.Second
	}
	if opts.TeardownTimeout <= 0 {
		opts.TeardownTimeout = 10 * time.Second
	}
	return AppModel{
		opts:        opts,
		activeModal: ModalNone,
		events:      make(chan tea.Msg, 64),
		selection:   opts.Selection,
		status:      playback.Status{State: playback.StateIdle},
		helpModel:   NewHelpModel(),
		progressBar: progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
		help:        help.New(),
	}
}

func (m AppModel) Init() tea.Cmd {
	log.Info("Initialising marquee host", "title", m.opts.Title.Title)
	selection := m.opts.Selection
	return tea.Batch(
		func() tea.Msg { return MountMsg{Selection: selection} },
		m.waitForEvent(),
	)
}

// waitForEvent delivers the next controller callback as a message
func (m AppModel) waitForEvent() tea.Cmd {
	events := m.events
	return func() tea.Msg {
		return <-events
	}
}

// send queues a callback message.  It never blocks a controller goroutine.
func (m AppModel) send(msg tea.Msg) {
	select {
	case m.events <- msg:
	default:
		log.Warn("Host event queue full, dropping message", "type", fmt.Sprintf("%T", msg))
	}
}

// Update handles messages and updates the models as appropriate
func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		log.Debug("Window size changed", "width", msg.Width, "height", msg.Height)
		m.width = msg.Width
		m.height = msg.Height
		m.progressBar.Width = max(10, msg.Width-40)
		m.help.Width = msg.Width
		m.helpModel.Resize(msg.Width, msg.Height)
		if m.chapterSelectModel != nil {
			m.chapterSelectModel.Resize(msg.Width, msg.Height)
		}
		return m, nil

	case tea.FocusMsg:
		return m, m.lifecycle(presence.LifecycleEvent{Foreground: true, Reason: "focus"})
	case tea.BlurMsg:
		return m, m.lifecycle(presence.LifecycleEvent{Foreground: false, Reason: "blur"})

	case MountMsg:
		return m.mount(msg.Selection)

	case StartedMsg:
		if m.current == nil || msg.Mount != m.current.id {
			return m, nil
		}
		if msg.Err != nil {
			var startErr *playback.StartError
			if !errors.As(msg.Err, &startErr) {
				log.Warn("Playback start returned an error", "error", msg.Err)
			}
			m.err = msg.Err
		}
		return m, nil

	case StatusMsg:
		if m.current != nil && msg.Mount == m.current.id {
			m.status = msg.Status
		}
		return m, m.waitForEvent()

	case AdvanceMsg:
		if m.current == nil || msg.Mount != m.current.id {
			return m, m.waitForEvent()
		}
		log.Info("Advancing to next chapter", "season", msg.Next.Season, "chapter", msg.Next.Chapter)
		next := catalog.Selection{Season: msg.Next.Season, Chapter: msg.Next.Chapter, Autoplay: true}
		model, cmd := m.unmount(&next, false)
		return model, tea.Batch(cmd, model.waitForEvent())

	case UnmountedMsg:
		m.tearingDown--
		if msg.Err != nil {
			log.Warn("Teardown finished with errors", "mount", msg.Mount, "error", msg.Err)
		}
		if m.quitting {
			if m.tearingDown > 0 {
				return m, nil
			}
			return m, tea.Quit
		}
		if msg.Next != nil {
			return m.mount(*msg.Next)
		}
		return m, nil

	case ChapterSelectedMsg:
		m.activeModal = ModalNone
		m.chapterSelectModel = nil
		next := catalog.Selection{Season: msg.Ref.Season, Chapter: msg.Ref.Chapter, Autoplay: true}
		return m.unmount(&next, false)
	}

	if m.activeModal == ModalHelp {
		return m, m.helpModel.Update(msg)
	}
	return m, nil
}

func (m AppModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	action := kb.GetActionByKey(msg, kb.ContextGlobal)
	// Typed text belongs to the chapter search input
	searching := m.activeModal == ModalChapterSelect && m.chapterSelectModel.Searching()
	if searching && action != kb.ActionQuit {
		action = ""
	}

	switch action {
	case kb.ActionQuit:
		log.Info("Quit command received.  Shutting down...")
		return m.unmount(nil, true)
	case kb.ActionToggleHelp:
		if m.activeModal == ModalHelp {
			m.activeModal = ModalNone
		} else if m.activeModal == ModalNone {
			m.activeModal = ModalHelp
		}
		return m, nil
	case kb.ActionBack:
		if m.activeModal != ModalNone {
			m.activeModal = ModalNone
			m.chapterSelectModel = nil
			return m, nil
		}
	}

	switch m.activeModal {
	case ModalHelp:
		return m, m.helpModel.Update(msg)
	case ModalChapterSelect:
		return m, m.chapterSelectModel.Update(msg)
	}

	return m.handlePlayerKeyMsg(msg)
}

func (m AppModel) handlePlayerKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch kb.GetActionByKey(msg, kb.ContextPlayer) {
	case kb.ActionTogglePause:
		if m.current == nil {
			return m, nil
		}
		kind := presence.IntentPlay
		if m.current.playback.Session().Playing {
			kind = presence.IntentPause
		}
		return m, m.intent(presence.Intent{Kind: kind})
	case kb.ActionSeekBackward:
		return m, m.intent(presence.Intent{Kind: presence.IntentSeek, Offset: -m.opts.SeekOffset})
	case kb.ActionSeekForward:
		return m, m.intent(presence.Intent{Kind: presence.IntentSeek, Offset: m.opts.SeekOffset})
	case kb.ActionStop:
		return m, m.intent(presence.Intent{Kind: presence.IntentStop})
	case kb.ActionOpenChapterSelector:
		if !m.opts.Title.IsSeries() {
			return m, nil
		}
		current := episode.Ref{Season: m.selection.Season, Chapter: m.selection.Chapter}
		m.chapterSelectModel = NewChapterSelectModel(m.opts.Title.Title, m.opts.Title.Seasons, current)
		m.chapterSelectModel.Resize(m.width, m.height)
		m.activeModal = ModalChapterSelect
		return m, nil
	case kb.ActionBack:
		return m.unmount(nil, true)
	}
	return m, nil
}

// intent runs a transport intent off the update loop since it may wait on a bridge round trip
func (m AppModel) intent(intent presence.Intent) tea.Cmd {
	if m.current == nil {
		return nil
	}
	pb := m.current.playback
	return func() tea.Msg {
		pb.HandleIntent(intent)
		return nil
	}
}

func (m AppModel) lifecycle(event presence.LifecycleEvent) tea.Cmd {
	if m.opts.Presence != nil {
		svc := m.opts.Presence
		return func() tea.Msg {
			svc.NotifyLifecycle(event)
			return nil
		}
	}
	if m.current == nil {
		return nil
	}
	pb := m.current.playback
	return func() tea.Msg {
		pb.HandleLifecycle(event)
		return nil
	}
}

// mount creates and starts playback for sel.  Any previous mount must already be torn down.
func (m AppModel) mount(sel catalog.Selection) (tea.Model, tea.Cmd) {
	if m.quitting {
		return m, nil
	}
	req, err := m.opts.Title.Request(sel)
	if err != nil {
		m.err = err
		return m, nil
	}

	m.mountSeq++
	id := m.mountSeq
	cells := playback.HostCells{IsUnmounting: &atomic.Bool{}, IsNavigatingAway: &atomic.Bool{}}
	pb, err := m.opts.Mount(req, cells,
		func(season, chapter int) {
			m.send(AdvanceMsg{Mount: id, Next: episode.Ref{Season: season, Chapter: chapter}})
		},
		func(status playback.Status) {
			m.send(StatusMsg{Mount: id, Status: status})
		},
	)
	if err != nil {
		m.err = err
		return m, nil
	}

	log.Info("Mounting playback", "mount", id, "title", req.Title, "start", req.StartOffset)
	m.current = &mount{id: id, playback: pb, cells: cells}
	m.selection = sel
	m.status = playback.Status{State: playback.StateIdle}
	m.err = nil
	return m, func() tea.Msg {
		return StartedMsg{Mount: id, Err: pb.Start(context.Background())}
	}
}

// unmount tears the current mount down, then mounts next or quits
func (m AppModel) unmount(next *catalog.Selection, quit bool) (AppModel, tea.Cmd) {
	if quit {
		m.quitting = true
	}
	cur := m.current
	m.current = nil
	if cur == nil {
		if quit {
			if m.tearingDown > 0 {
				return m, nil
			}
			return m, tea.Quit
		}
		if next != nil {
			sel := *next
			return m, func() tea.Msg { return MountMsg{Selection: sel} }
		}
		return m, nil
	}

	// Set before the teardown goroutine runs so in-flight callbacks already see it
	cur.cells.IsUnmounting.Store(true)
	if next != nil {
		cur.cells.IsNavigatingAway.Store(true)
	}

	m.tearingDown++
	timeout := m.opts.TeardownTimeout
	return m, func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		err := cur.playback.Teardown(ctx)
		return UnmountedMsg{Mount: cur.id, Err: err, Next: next, Quit: quit}
	}
}

func (m AppModel) View() string {
	switch m.activeModal {
	case ModalHelp:
		return m.helpModel.View()
	case ModalChapterSelect:
		return m.chapterSelectModel.View()
	}
	return m.playerView()
}

func (m AppModel) playerView() string {
	title := m.opts.Title.Title
	heading := title
	if req, err := m.opts.Title.Request(m.selection); err == nil && req.Title != title {
		heading = title + " - " + req.Title
	}

	var b strings.Builder
	b.WriteString(styles.Header(m.width, util.TruncateString(heading, max(10, m.width-4))))
	b.WriteString("\n\n")

	line := styles.StateBadge(string(m.status.State))
	if m.status.Backend != "" {
		line += "  " + styles.Subtle.Render(string(m.status.Backend))
	}
	if m.status.Muted {
		line += "  " + styles.Subtle.Render("muted")
	}
	b.WriteString(line)
	b.WriteString("\n\n")

	position := util.FormatPosition(m.status.Position)
	if m.status.Duration > 0 {
		ratio := float64(m.status.Position) / float64(m.status.Duration)
		b.WriteString(m.progressBar.ViewAs(min(1, max(0, ratio))))
		b.WriteString("  ")
		position += " / " + util.FormatPosition(m.status.Duration)
	}
	b.WriteString(styles.Info.Render(position))
	b.WriteString("\n")

	switch {
	case m.status.State == playback.StateManualPlayRequired:
		b.WriteString("\n" + styles.Info.Render("The browser blocked autoplay. Press space to start playback."))
	case m.err != nil:
		b.WriteString("\n" + styles.Error.Render(util.TruncateString(m.err.Error(), max(10, m.width-2))))
	case m.quitting:
		b.WriteString("\n" + styles.Subtle.Render("Saving progress..."))
	}

	content := styles.ContentBox(max(20, m.width-2), b.String(), 1)
	footer := m.help.View(kb.ShortHelp(kb.ContextPlayer))
	return lipgloss.JoinVertical(lipgloss.Left, content, "", footer)
}
