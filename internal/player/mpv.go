package player

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/PizzaHomicide/marquee/internal/bus"
	"github.com/PizzaHomicide/marquee/internal/config"
	"github.com/PizzaHomicide/marquee/internal/log"
	"github.com/PizzaHomicide/marquee/internal/platform"
)

// DesktopBackend plays content in an mpv window driven over its IPC socket
type DesktopBackend struct {
	config    config.MPVConfig
	ipcClient *MPVIPCClient
	topic     bus.Topic[Event]

	// startProcess is swapped out by tests
	startProcess func(cmd *exec.Cmd) error

	mu       sync.Mutex
	cmd      *exec.Cmd
	started  bool
	stopping bool
	stopped  bool
	position time.Duration
	duration time.Duration
	pumpDone chan struct{}
}

// NewDesktopBackend creates a new MPV backed instance
func NewDesktopBackend(cfg config.MPVConfig) *DesktopBackend {
	return &DesktopBackend{
		config:       cfg,
		ipcClient:    NewMPVIPCClient(cfg.Socket),
		startProcess: func(cmd *exec.Cmd) error { return cmd.Start() },
	}
}

func (p *DesktopBackend) Kind() platform.Kind {
	return platform.KindEmbeddedDesktop
}

// buildArgs assembles the mpv command line for req
func (p *DesktopBackend) buildArgs(req StartRequest) []string {
	// mpv exits at the end of the file and takes no terminal input
	args := []string{
		"--no-terminal",
		"--keep-open=no",
		"--input-ipc-server=" + p.config.Socket,
	}
	if req.StartOffset > 0 {
		args = append(args, "--start="+strconv.FormatFloat(seconds(req.StartOffset), 'f', 3, 64))
	}
	if req.Title != "" {
		args = append(args, "--force-media-title="+req.Title)
	}
	if !req.Autoplay {
		args = append(args, "--pause")
	}

	if p.config.Args != "" {
		args = append(args, ParseArgs(p.config.Args)...)
	}

	// The stream URL is always the final argument.  Chapters are not queued as a playlist: the controller advances
	// by remounting, and mpv moving on by itself would write progress for the wrong chapter.
	return append(args, req.URL)
}

// Start spawns mpv and waits until its IPC socket accepts commands
func (p *DesktopBackend) Start(ctx context.Context, req StartRequest) (StartResult, error) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return StartResult{Success: true, Playing: req.Autoplay}, nil
	}
	p.started = true
	p.mu.Unlock()

	log.Info("Starting MPV playback", "url", req.URL, "start", req.StartOffset, "chapters", len(req.Chapters))

	mpvPath := p.config.Path
	if mpvPath == "" {
		mpvPath = "mpv"
	}

	// Stale sockets from a crashed run would accept the dial and then go nowhere
	if socketIsFile {
		_ = os.Remove(p.config.Socket)
	}

	cmd := exec.Command(mpvPath, p.buildArgs(req)...)
	setupPlayerProcess(cmd)

	if err := p.startProcess(cmd); err != nil {
		p.resetStart()
		return StartResult{}, fmt.Errorf("failed to start MPV: %w", err)
	}
	p.mu.Lock()
	p.cmd = cmd
	p.mu.Unlock()

	if cmd.Process != nil {
		// Reap the process so it does not linger as a zombie
		go func() { _ = cmd.Wait() }()
	}

	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := p.ipcClient.WaitForConnection(connCtx, 40, 250*time.Millisecond); err != nil {
		_ = p.killProcess()
		p.resetStart()
		return StartResult{}, fmt.Errorf("failed to connect to MPV: %w", err)
	}

	if err := p.observe(ctx); err != nil {
		log.Warn("Failed to observe MPV properties", "error", err)
	}

	pumpDone := make(chan struct{})
	p.mu.Lock()
	p.pumpDone = pumpDone
	p.mu.Unlock()
	go p.pump(pumpDone)

	return StartResult{Success: true, Playing: req.Autoplay}, nil
}

func (p *DesktopBackend) resetStart() {
	p.mu.Lock()
	p.started = false
	p.cmd = nil
	p.mu.Unlock()
}

func (p *DesktopBackend) observe(ctx context.Context) error {
	return errors.Join(
		p.ipcClient.ObserveProperty(ctx, observePlaybackTime, "playback-time"),
		p.ipcClient.ObserveProperty(ctx, observeDuration, "duration"),
	)
}

// pump translates mpv events into backend events until the IPC connection ends
func (p *DesktopBackend) pump(done chan struct{}) {
	defer close(done)

	// Used for logging.  Progress is cast to an int so the same percentage arrives many times in a row.
	lastLoggedProgress := -1

	for event := range p.ipcClient.Events() {
		switch event.Event {
		case "property-change":
			value, ok := parseFloatData(event.Data)
			if !ok {
				continue
			}
			switch event.Name {
			case "duration":
				p.mu.Lock()
				p.duration = fromSeconds(value)
				p.mu.Unlock()
			case "playback-time":
				p.mu.Lock()
				p.position = fromSeconds(value)
				pos, dur := p.position, p.duration
				p.mu.Unlock()

				if progress := progressPercent(pos, dur); progress != lastLoggedProgress && progress%5 == 0 {
					log.Info("Playback progress", "percent", progress)
					lastLoggedProgress = progress
				}
				p.topic.Publish(Event{Type: EventPositionTick, Position: pos, Duration: dur})
			}
		case "end-file":
			log.Info("MPV playback ended", "reason", event.Reason)
			p.finish(event.Reason == "eof")
			return
		}
	}

	// Connection went away without an end-file event
	p.finish(false)
}

// finish publishes the terminal event unless the stop was requested by us
func (p *DesktopBackend) finish(completed bool) {
	p.mu.Lock()
	requested := p.stopping
	pos, dur := p.position, p.duration
	p.stopped = true
	p.mu.Unlock()

	switch {
	case completed:
		p.topic.Publish(Event{Type: EventCompleted, Position: pos, Duration: dur})
	case !requested:
		p.topic.Publish(Event{Type: EventStoppedExternally, Position: pos, Duration: dur})
	}
}

func parseFloatData(data json.RawMessage) (float64, bool) {
	if len(data) == 0 {
		return 0, false
	}
	var value float64
	if err := json.Unmarshal(data, &value); err != nil {
		log.Trace("Ignoring non numeric property value", "data", string(data))
		return 0, false
	}
	return value, true
}

func progressPercent(pos, dur time.Duration) int {
	if pos <= 0 || dur <= 0 {
		return 0
	}
	return int(pos * 100 / dur)
}

func (p *DesktopBackend) Pause(ctx context.Context) error {
	return p.ipcClient.SetProperty(ctx, "pause", true)
}

func (p *DesktopBackend) Resume(ctx context.Context) error {
	return p.ipcClient.SetProperty(ctx, "pause", false)
}

func (p *DesktopBackend) SeekBy(ctx context.Context, delta time.Duration) error {
	return p.ipcClient.SeekRelative(ctx, seconds(delta))
}

// Stop asks mpv to quit, killing the process if it does not answer
func (p *DesktopBackend) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.started || p.stopping || p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopping = true
	p.mu.Unlock()

	log.Info("Stopping MPV playback")
	err := p.ipcClient.Quit(ctx)
	if err == nil || errors.Is(err, ErrBridgeClosed) {
		return nil
	}
	log.Warn("MPV did not accept quit, killing process", "error", err)
	return p.killProcess()
}

func (p *DesktopBackend) killProcess() error {
	p.mu.Lock()
	cmd := p.cmd
	p.mu.Unlock()
	if cmd != nil && cmd.Process != nil {
		if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			return err
		}
	}
	return nil
}

func (p *DesktopBackend) Subscribe(handler func(Event)) bus.Token {
	return p.topic.Subscribe(handler)
}

func (p *DesktopBackend) Unsubscribe(token bus.Token) bool {
	return p.topic.Unsubscribe(token)
}

// Release closes the IPC connection and removes the socket file
func (p *DesktopBackend) Release() error {
	p.mu.Lock()
	p.stopping = true
	pumpDone := p.pumpDone
	p.mu.Unlock()

	err := p.ipcClient.Close()
	if pumpDone != nil {
		<-pumpDone
	}

	if socketIsFile {
		if _, statErr := os.Stat(p.config.Socket); statErr == nil {
			if rmErr := os.Remove(p.config.Socket); rmErr != nil {
				log.Warn("Failed to remove MPV socket file", "path", p.config.Socket, "error", rmErr)
			}
		}
	}
	return err
}
